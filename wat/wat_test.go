package wat

import (
	"bytes"
	"testing"

	"github.com/wippyai/script-runtime/wasm"
)

func TestCompileEmptyModule(t *testing.T) {
	bin, err := Compile(`(module)`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(bin) != 8 {
		t.Fatalf("empty module should be 8 bytes, got %d", len(bin))
	}
	if !bytes.Equal(bin[:4], wasm.Magic) {
		t.Errorf("missing magic: % X", bin[:4])
	}
	if !bytes.Equal(bin[4:8], wasm.Version) {
		t.Errorf("bad version: % X", bin[4:8])
	}
}

func TestCompileAdd(t *testing.T) {
	bin, err := Compile(`
		(module
		  (func (export "add") (param $a i32) (param $b i32) (result i32)
		    (i32.add (local.get $a) (local.get $b))))`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	mod, err := wasm.Decode(bin)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	sig, ok := mod.ExportedFunc("add")
	if !ok {
		t.Fatal(`export "add" not found`)
	}
	if len(sig.Params) != 2 || len(sig.Results) != 1 {
		t.Fatalf("signature: %d params, %d results", len(sig.Params), len(sig.Results))
	}
	for i, p := range sig.Params {
		if p.Code != wasm.ValI32 {
			t.Errorf("param %d: code 0x%02X, want i32", i, p.Code)
		}
	}
	if sig.Results[0].Code != wasm.ValI32 {
		t.Errorf("result: code 0x%02X, want i32", sig.Results[0].Code)
	}
}

func TestCompileGCStruct(t *testing.T) {
	bin, err := Compile(`
		(module
		  (type $box (struct (field $val (mut i32))))
		  (func (export "make_box") (result (ref $box))
		    (struct.new $box (i32.const 42)))
		  (func (export "get_val") (param $b (ref $box)) (result i32)
		    (struct.get $box $val (local.get $b)))
		  (func (export "set_val") (param $b (ref $box)) (param $v i32)
		    (struct.set $box $val (local.get $b) (local.get $v))))`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	mod, err := wasm.Decode(bin)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	idx, ok := mod.StructResult("make_box")
	if !ok {
		t.Fatal(`"make_box" should return a concrete struct reference`)
	}
	st := mod.Types[idx]
	if st.Kind != wasm.TypeStruct {
		t.Fatalf("type %d: kind %d, want struct", idx, st.Kind)
	}
	if len(st.Fields) != 1 || !st.Fields[0].Mutable || st.Fields[0].Type.Code != wasm.ValI32 {
		t.Errorf("box fields: %+v", st.Fields)
	}

	getter, ok := mod.ExportedFunc("get_val")
	if !ok {
		t.Fatal(`export "get_val" not found`)
	}
	ref, ok := getter.Params[0].ConcreteRef()
	if !ok || ref != idx {
		t.Errorf("get_val param references type %d, want %d", ref, idx)
	}
}

func TestCompileControlFlow(t *testing.T) {
	bin, err := Compile(`
		(module
		  (func (export "abs") (param $x i32) (result i32)
		    (if (result i32) (i32.lt_s (local.get $x) (i32.const 0))
		      (then (i32.sub (i32.const 0) (local.get $x)))
		      (else (local.get $x))))
		  (func (export "sum_to") (param $n i32) (result i32)
		    (local $acc i32)
		    (block $done
		      (loop $top
		        (br_if $done (i32.eqz (local.get $n)))
		        (local.set $acc (i32.add (local.get $acc) (local.get $n)))
		        (local.set $n (i32.sub (local.get $n) (i32.const 1)))
		        (br $top)))
		    (local.get $acc)))`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, err := wasm.Decode(bin); err != nil {
		t.Fatalf("Decode: %v", err)
	}
}

func TestCompileMemoryAndGlobals(t *testing.T) {
	bin, err := Compile(`
		(module
		  (memory (export "mem") 1 4)
		  (global $counter (mut i32) (i32.const 0))
		  (func (export "bump") (result i32)
		    (global.set $counter (i32.add (global.get $counter) (i32.const 1)))
		    (global.get $counter))
		  (func (export "peek") (param $addr i32) (result i32)
		    (i32.load offset=8 (local.get $addr))))`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	mod, err := wasm.Decode(bin)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	found := false
	for _, e := range mod.Exports {
		if e.Name == "mem" && e.Kind == wasm.KindMemory {
			found = true
		}
	}
	if !found {
		t.Error(`memory export "mem" missing`)
	}
}

func TestCompileFuncTypeReference(t *testing.T) {
	bin, err := Compile(`
		(module
		  (type $binop (func (param i32 i32) (result i32)))
		  (func $mul (type $binop) (param $a i32) (param $b i32) (result i32)
		    (i32.mul (local.get $a) (local.get $b)))
		  (export "mul" (func $mul)))`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	mod, err := wasm.Decode(bin)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	sig, ok := mod.ExportedFunc("mul")
	if !ok {
		t.Fatal(`export "mul" not found`)
	}
	if len(sig.Params) != 2 || len(sig.Results) != 1 {
		t.Errorf("signature: %d params, %d results", len(sig.Params), len(sig.Results))
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"empty input", ``},
		{"not a module", `(func)`},
		{"unclosed module", `(module (func`},
		{"unknown instruction", `(module (func (i32.frobnicate)))`},
		{"unknown local", `(module (func (result i32) (local.get $missing)))`},
		{"unknown type", `(module (func (struct.new $nope)))`},
		{"unknown field", `
			(module
			  (type $box (struct (field $val i32)))
			  (func (param $b (ref $box)) (result i32)
			    (struct.get $box $nope (local.get $b))))`},
		{"duplicate func name", `(module (func $f) (func $f))`},
		{"trailing garbage", `(module) (module)`},
		{"unterminated string", `(module (func (export "f`},
		{"unterminated string ending in escape", `(module (func (export "f\`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compile(tt.source); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
