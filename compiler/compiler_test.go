package compiler

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/wippyai/script-runtime/dialect"
	"github.com/wippyai/script-runtime/errors"
	"github.com/wippyai/script-runtime/wasm"
)

func TestTypeScriptStripsAnnotations(t *testing.T) {
	art, err := TypeScript([]byte(`
		function greet(name: string): string {
			return "hello " + name;
		}
		const x: number = 42;
	`))
	if err != nil {
		t.Fatalf("TypeScript: %v", err)
	}
	src, ok := art.(Source)
	if !ok {
		t.Fatalf("artifact type %T, want Source", art)
	}
	if strings.Contains(src.Text, ": string") || strings.Contains(src.Text, ": number") {
		t.Errorf("annotations survived translation:\n%s", src.Text)
	}
	if !strings.Contains(src.Text, "hello") {
		t.Errorf("program body lost:\n%s", src.Text)
	}
}

func TestTypeScriptTypeErrorsAreNotFatal(t *testing.T) {
	// Well-formed but mistyped. Translation is syntactic, so this compiles.
	art, err := TypeScript([]byte(`const n: number = "not a number";`))
	if err != nil {
		t.Fatalf("mistyped program should still compile, got %v", err)
	}
	if _, ok := art.(Source); !ok {
		t.Fatalf("artifact type %T, want Source", art)
	}
}

func TestTypeScriptSyntaxError(t *testing.T) {
	_, err := TypeScript([]byte(`function broken( {`))
	if err == nil {
		t.Fatal("expected a syntax error")
	}
	if !stderrors.Is(err, errors.Syntax("", "", nil)) {
		t.Errorf("error %v should match the compile/syntax taxonomy", err)
	}
}

func TestWasmTextCompiles(t *testing.T) {
	art, err := WasmText([]byte(`
		(module
		  (func (export "add") (param i32 i32) (result i32)
		    (i32.add (local.get 0) (local.get 1))))`))
	if err != nil {
		t.Fatalf("WasmText: %v", err)
	}
	mod, ok := art.(Module)
	if !ok {
		t.Fatalf("artifact type %T, want Module", art)
	}
	if !wasm.IsModule(mod.Binary) {
		t.Error("binary missing wasm magic")
	}
	if _, ok := mod.Info.ExportedFunc("add"); !ok {
		t.Error(`export table missing "add"`)
	}
}

func TestWasmTextBinaryPassthrough(t *testing.T) {
	first, err := WasmText([]byte(`(module (func (export "f")))`))
	if err != nil {
		t.Fatalf("WasmText: %v", err)
	}
	bin := first.(Module).Binary

	second, err := WasmText(bin)
	if err != nil {
		t.Fatalf("passthrough: %v", err)
	}
	got := second.(Module).Binary
	if len(got) != len(bin) {
		t.Errorf("passthrough altered the binary: %d bytes, want %d", len(got), len(bin))
	}
	if _, ok := second.(Module).Info.ExportedFunc("f"); !ok {
		t.Error("passthrough lost the export table")
	}
}

func TestWasmTextSyntaxError(t *testing.T) {
	_, err := WasmText([]byte(`(module (func (i32.bogus))`))
	if err == nil {
		t.Fatal("expected a syntax error")
	}
	if !stderrors.Is(err, errors.Syntax("", "", nil)) {
		t.Errorf("error %v should match the compile/syntax taxonomy", err)
	}
}

func TestForDialect(t *testing.T) {
	art, err := ForDialect(dialect.NativeScript)([]byte(`console.log(1)`))
	if err != nil {
		t.Fatalf("native adapter: %v", err)
	}
	if src, ok := art.(Source); !ok || src.Text != "console.log(1)" {
		t.Errorf("native adapter should pass source through, got %#v", art)
	}

	if _, err := ForDialect(dialect.WasmText)([]byte(`(module)`)); err != nil {
		t.Errorf("wasm-text adapter: %v", err)
	}
	if _, err := ForDialect(dialect.TypeScript)([]byte(`let x = 1`)); err != nil {
		t.Errorf("typescript adapter: %v", err)
	}
}
