package binder

import (
	"context"
	"strings"
	"testing"

	"github.com/wippyai/script-runtime/wasm"
)

// boxState is the handle the stub's constructor returns.
type boxState struct {
	val int64
}

// gcModuleInfo compiles the reference GC box module and returns its decoded
// summary, shared by the bridge tests.
func gcModuleInfo(t *testing.T) *wasm.Module {
	t.Helper()
	return decodeWAT(t, `
		(module
		  (type $box (struct (field $val (mut i32))))
		  (func (export "make_box") (result (ref $box))
		    (struct.new $box (i32.const 42)))
		  (func (export "get_val") (param $b (ref $box)) (result i32)
		    (struct.get $box $val (local.get $b)))
		  (func (export "set_val") (param $b (ref $box)) (param $v i32)
		    (struct.set $box $val (local.get $b) (local.get $v))))`)
}

func gcStubInstance() *stubInstance {
	inst := newStubInstance()
	inst.funcs["make_box"] = func(...any) (any, error) {
		return &boxState{val: 42}, nil
	}
	inst.funcs["get_val"] = func(args ...any) (any, error) {
		return args[0].(*boxState).val, nil
	}
	inst.funcs["set_val"] = func(args ...any) (any, error) {
		args[0].(*boxState).val = args[1].(int64)
		return nil, nil
	}
	return inst
}

func TestStructReadWriteCycle(t *testing.T) {
	b := New(context.Background(), nil)
	info := gcModuleInfo(t)
	inst := gcStubInstance()

	if err := b.BindModule("box.wat", inst, info); err != nil {
		t.Fatalf("BindModule: %v", err)
	}

	v, err := b.Runtime().RunString(`
		var box = make_box();
		var before = box.val;
		box.val = 99;
		var after = box.val;
		[before, after];
	`)
	if err != nil {
		t.Fatalf("script: %v", err)
	}

	pair := v.Export().([]any)
	if pair[0] != int64(42) || pair[1] != int64(99) {
		t.Errorf("read/write cycle = %v, want [42 99]", pair)
	}
}

func TestProbeOrderPrefersGetPrefix(t *testing.T) {
	b := New(context.Background(), nil)
	info := gcModuleInfo(t)

	inst := gcStubInstance()
	// A competing accessor later in the chain must not be chosen.
	inst.funcs["struct_get_val"] = func(...any) (any, error) {
		return int64(-1), nil
	}

	if err := b.BindModule("box.wat", inst, info); err != nil {
		t.Fatal(err)
	}
	v, err := b.Runtime().RunString(`make_box().val`)
	if err != nil {
		t.Fatalf("script: %v", err)
	}
	if v.ToInteger() != 42 {
		t.Errorf("box.val = %v, want 42 via get_val", v)
	}
	if inst.lookups["struct_get_val"] != 0 {
		t.Error("probe chain should stop at get_val")
	}
}

func TestProbeFallsBackToStructGet(t *testing.T) {
	b := New(context.Background(), nil)
	info := gcModuleInfo(t)

	inst := newStubInstance()
	inst.funcs["make_box"] = func(...any) (any, error) { return &boxState{val: 7}, nil }
	inst.funcs["struct_get_val"] = func(args ...any) (any, error) {
		return args[0].(*boxState).val, nil
	}
	inst.funcs["struct_set_val"] = func(args ...any) (any, error) {
		args[0].(*boxState).val = args[1].(int64)
		return nil, nil
	}

	if err := b.BindModule("box.wat", inst, info); err != nil {
		t.Fatal(err)
	}
	v, err := b.Runtime().RunString(`
		var box = make_box();
		box.val = 8;
		box.val;
	`)
	if err != nil {
		t.Fatalf("script: %v", err)
	}
	if v.ToInteger() != 8 {
		t.Errorf("box.val = %v, want 8 via struct accessors", v)
	}
}

// camelStubInstance exposes the box only through camel-case accessors, so
// every probe of val tries get_val first and misses.
func camelStubInstance() *stubInstance {
	inst := newStubInstance()
	inst.funcs["make_box"] = func(...any) (any, error) {
		return &boxState{val: 42}, nil
	}
	inst.funcs["getVal"] = func(args ...any) (any, error) {
		return args[0].(*boxState).val, nil
	}
	inst.funcs["setVal"] = func(args ...any) (any, error) {
		args[0].(*boxState).val = args[1].(int64)
		return nil, nil
	}
	return inst
}

func TestAccessorResolutionIsMemoizedPerType(t *testing.T) {
	b := New(context.Background(), nil)
	info := gcModuleInfo(t)
	inst := camelStubInstance()

	if err := b.BindModule("box.wat", inst, info); err != nil {
		t.Fatal(err)
	}

	// Two distinct values of the same struct type; the probe chain for a
	// field runs once, not once per value or per access. The leading get_val
	// probe always misses on this instance, so its lookup count exposes
	// re-probing.
	_, err := b.Runtime().RunString(`
		var a = make_box();
		var b = make_box();
		a.val; a.val; b.val;
	`)
	if err != nil {
		t.Fatalf("script: %v", err)
	}

	if n := inst.lookups["get_val"]; n != 1 {
		t.Errorf("leading probe ran %d times, want 1 (memoized per type)", n)
	}
}

func TestAccessorMemoizationScopedToInstance(t *testing.T) {
	b := New(context.Background(), nil)
	info := gcModuleInfo(t)

	// Two modules share type index 0 for their struct but use different
	// accessor conventions. One module's resolution must never be replayed
	// against the other's exports.
	snake := gcStubInstance()
	camel := camelStubInstance()

	if err := b.BindModule("snake.wat", snake, info); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Runtime().RunString(`var a = make_box(); var av = a.val;`); err != nil {
		t.Fatalf("snake access: %v", err)
	}

	if err := b.BindModule("camel.wat", camel, info); err != nil {
		t.Fatal(err)
	}
	v, err := b.Runtime().RunString(`
		var b2 = make_box();
		b2.val = 7;
		[av, b2.val, a.val];
	`)
	if err != nil {
		t.Fatalf("camel access: %v", err)
	}

	triple := v.Export().([]any)
	if triple[0] != int64(42) || triple[1] != int64(7) || triple[2] != int64(42) {
		t.Errorf("cross-module accesses = %v, want [42 7 42]", triple)
	}
}

func TestStructDisplayWithCamelAccessor(t *testing.T) {
	b := New(context.Background(), nil)
	info := gcModuleInfo(t)
	inst := camelStubInstance()

	if err := b.BindModule("box.wat", inst, info); err != nil {
		t.Fatal(err)
	}

	// Field enumeration must see every getter pattern the probe chain
	// resolves, camel case included.
	v, err := b.Runtime().RunString(`make_box().toString()`)
	if err != nil {
		t.Fatalf("script: %v", err)
	}
	if v.String() != "struct{val=42}" {
		t.Errorf("toString() = %q, want %q", v.String(), "struct{val=42}")
	}
}

func TestUnresolvedAccessorFailsTheAccess(t *testing.T) {
	b := New(context.Background(), nil)
	info := gcModuleInfo(t)
	inst := gcStubInstance()

	if err := b.BindModule("box.wat", inst, info); err != nil {
		t.Fatal(err)
	}

	_, err := b.Runtime().RunString(`make_box().missing`)
	if err == nil {
		t.Fatal("expected an accessor resolution failure")
	}
	if !strings.Contains(err.Error(), "accessor") {
		t.Errorf("error %v should name the accessor failure", err)
	}

	// The failed access must not poison the value or the type.
	v, err := b.Runtime().RunString(`make_box().val`)
	if err != nil {
		t.Fatalf("later access: %v", err)
	}
	if v.ToInteger() != 42 {
		t.Errorf("box.val = %v after failed sibling access, want 42", v)
	}
}

func TestStructDisplay(t *testing.T) {
	b := New(context.Background(), nil)
	info := gcModuleInfo(t)
	inst := gcStubInstance()

	if err := b.BindModule("box.wat", inst, info); err != nil {
		t.Fatal(err)
	}

	v, err := b.Runtime().RunString(`make_box().toString()`)
	if err != nil {
		t.Fatalf("script: %v", err)
	}
	if v.String() != "struct{val=42}" {
		t.Errorf("toString() = %q, want %q", v.String(), "struct{val=42}")
	}
}

func TestDirectAccessOnTransparentHandle(t *testing.T) {
	b := New(context.Background(), nil)
	info := gcModuleInfo(t)

	// No accessor exports at all; the handle is an externalized box the
	// host can see through.
	inst := newStubInstance()
	inst.funcs["make_box"] = func(...any) (any, error) {
		return map[string]any{"val": int64(42)}, nil
	}

	if err := b.BindModule("box.wat", inst, info); err != nil {
		t.Fatal(err)
	}
	v, err := b.Runtime().RunString(`
		var box = make_box();
		var before = box.val;
		box.val = 99;
		[before, box.val];
	`)
	if err != nil {
		t.Fatalf("script: %v", err)
	}
	pair := v.Export().([]any)
	if pair[0] != int64(42) || pair[1] != int64(99) {
		t.Errorf("direct access cycle = %v, want [42 99]", pair)
	}
}
