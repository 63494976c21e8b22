package pipeline

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/wippyai/script-runtime/cache"
	"github.com/wippyai/script-runtime/dialect"
	"github.com/wippyai/script-runtime/engine"
	"github.com/wippyai/script-runtime/errors"
)

const addWAT = `
	(module
	  (func (export "add") (param i32 i32) (result i32)
	    (i32.add (local.get 0) (local.get 1))))`

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	eng, err := engine.New(context.Background())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() { eng.Close(context.Background()) })
	return New(cache.NewStore(cache.DefaultConfig()), eng)
}

func runAll(t *testing.T, doc *Document) []Result {
	t.Helper()
	results := doc.Run(context.Background())
	t.Cleanup(func() { doc.Close(context.Background()) })
	return results
}

func failures(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

func TestWasmExportCalledFromScript(t *testing.T) {
	p := newTestPipeline(t)
	doc := p.NewDocument(context.Background())

	doc.AddScript(Script{Type: "application/wasm", Name: "add.wat", Source: []byte(addWAT)})
	doc.AddScript(Script{Name: "use.js", Source: []byte(`var result = add(2, 3);`)})

	results := runAll(t, doc)
	if f := failures(results); len(f) != 0 {
		t.Fatalf("unexpected failures: %+v", f)
	}

	v, err := doc.Binder().Lookup("result")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if v.ToInteger() != 5 {
		t.Errorf("result = %v, want 5", v)
	}
}

func TestTypeScriptCallsWasm(t *testing.T) {
	p := newTestPipeline(t)
	doc := p.NewDocument(context.Background())

	doc.AddScript(Script{Type: "application/wasm", Name: "add.wat", Source: []byte(addWAT)})
	doc.AddScript(Script{Type: "text/typescript", Name: "use.ts", Source: []byte(
		`const total: number = add(40, 2); (globalThis as any).total = total;`)})

	results := runAll(t, doc)
	if f := failures(results); len(f) != 0 {
		t.Fatalf("unexpected failures: %+v", f)
	}
	if results[1].Dialect != dialect.TypeScript {
		t.Errorf("second unit resolved to %v, want TypeScript", results[1].Dialect)
	}

	v, err := doc.Binder().Lookup("total")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if v.ToInteger() != 42 {
		t.Errorf("total = %v, want 42", v)
	}
}

func TestOrderNoRetroactiveVisibility(t *testing.T) {
	p := newTestPipeline(t)
	doc := p.NewDocument(context.Background())

	// The caller runs before the module that would provide add.
	doc.AddScript(Script{Name: "early.js", Source: []byte(`var r = add(1, 1);`)})
	doc.AddScript(Script{Type: "application/wasm", Name: "add.wat", Source: []byte(addWAT)})
	doc.AddScript(Script{Name: "late.js", Source: []byte(`var r2 = add(1, 1);`)})

	results := runAll(t, doc)
	if results[0].Err == nil {
		t.Error("early caller should fail; exports are never retroactive")
	}
	if results[1].Err != nil || results[2].Err != nil {
		t.Errorf("later units should succeed: %+v", results[1:])
	}

	v, err := doc.Binder().Lookup("r2")
	if err != nil || v.ToInteger() != 2 {
		t.Errorf("r2 = %v (err %v), want 2", v, err)
	}
}

func TestSyntaxErrorDoesNotBlockSiblings(t *testing.T) {
	p := newTestPipeline(t)
	doc := p.NewDocument(context.Background())

	doc.AddScript(Script{Type: "text/typescript", Name: "broken.ts", Source: []byte(`function broken( {`)})
	doc.AddScript(Script{Name: "ok.js", Source: []byte(`var ok = true;`)})

	results := runAll(t, doc)
	if results[0].Err == nil {
		t.Fatal("broken.ts should fail")
	}
	if !stderrors.Is(results[0].Err, errors.Syntax("", "", nil)) {
		t.Errorf("error %v should match the compile/syntax taxonomy", results[0].Err)
	}
	if results[1].Err != nil {
		t.Errorf("sibling unit failed: %v", results[1].Err)
	}

	if _, err := doc.Binder().Lookup("ok"); err != nil {
		t.Errorf("sibling binding missing: %v", err)
	}
}

func TestMistypedTypeScriptStillRuns(t *testing.T) {
	p := newTestPipeline(t)
	doc := p.NewDocument(context.Background())

	doc.AddScript(Script{Type: "text/typescript", Name: "mistyped.ts", Source: []byte(
		`const n: number = "actually a string"; var len = n.length;`)})

	results := runAll(t, doc)
	if f := failures(results); len(f) != 0 {
		t.Fatalf("type errors must not be fatal: %+v", f)
	}
	v, err := doc.Binder().Lookup("len")
	if err != nil || v.ToInteger() != 17 {
		t.Errorf("len = %v (err %v), want 17", v, err)
	}
}

func TestIdenticalContentSharesOneCompile(t *testing.T) {
	p := newTestPipeline(t)

	for _, name := range []string{"a.wat", "b.wat"} {
		doc := p.NewDocument(context.Background())
		doc.AddScript(Script{Type: "application/wasm", Name: name, Source: []byte(addWAT)})
		if f := failures(runAll(t, doc)); len(f) != 0 {
			t.Fatalf("%s: %+v", name, f)
		}
	}

	stats := p.CacheStats()
	if stats.Compiles != 1 {
		t.Errorf("compiles = %d, want 1 across documents", stats.Compiles)
	}
	if stats.Hits != 1 {
		t.Errorf("hits = %d, want 1", stats.Hits)
	}
}

func TestDocumentTeardownAbandonsPendingUnits(t *testing.T) {
	p := newTestPipeline(t)

	doomed := p.NewDocument(context.Background())
	doomed.AddScript(Script{Name: "pending.js", Source: []byte(`var x = 1;`)})
	doomed.Close(context.Background())

	results := doomed.Run(context.Background())
	if len(results) != 1 || results[0].Err == nil {
		t.Fatalf("results = %+v, want one canceled unit", results)
	}
	if !stderrors.Is(results[0].Err, errors.Canceled("", nil)) {
		t.Errorf("error %v should match the execute/canceled taxonomy", results[0].Err)
	}

	// An unrelated document is unaffected.
	other := p.NewDocument(context.Background())
	other.AddScript(Script{Name: "fine.js", Source: []byte(`var y = 2;`)})
	if f := failures(runAll(t, other)); len(f) != 0 {
		t.Errorf("unrelated document failed: %+v", f)
	}
}

func TestGCModuleCompilesAndCaches(t *testing.T) {
	p := newTestPipeline(t)
	doc := p.NewDocument(context.Background())

	// Struct types compile to valid GC encodings; instantiation depends on
	// engine support and may fail, but compilation must succeed and cache.
	doc.AddScript(Script{Type: "application/wasm", Name: "box.wat", Source: []byte(`
		(module
		  (type $box (struct (field $val (mut i32))))
		  (func (export "make_box") (result (ref $box))
		    (struct.new $box (i32.const 42))))`)})

	results := runAll(t, doc)
	if results[0].Err != nil {
		if !stderrors.Is(results[0].Err, errors.Instantiation("", nil)) {
			t.Errorf("error %v should be an instantiation failure, not a compile failure", results[0].Err)
		}
	}
	if stats := p.CacheStats(); stats.Compiles != 1 {
		t.Errorf("compiles = %d, want the GC module cached", stats.Compiles)
	}
}

func TestConsoleOutputFlowsThroughPipeline(t *testing.T) {
	p := newTestPipeline(t)
	doc := p.NewDocument(context.Background())

	doc.AddScript(Script{Name: "log.js", Source: []byte(`console.log("from script")`)})
	if f := failures(runAll(t, doc)); len(f) != 0 {
		t.Fatalf("unexpected failures: %+v", f)
	}
}
