// Package scriptruntime implements the script-type compilation and binding
// pipeline of a document host: it inspects each script occurrence, decides
// which source dialect it is written in, compiles it through the matching
// adapter, caches the compiled artifact, executes it, and publishes
// WebAssembly exports into the document's shared global scope.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	scriptruntime/       Root package with the shared export surface interfaces
//	├── dialect/         Script dialect resolution (type token, extension, magic)
//	├── cache/           Content-addressed, per-dialect LRU compilation caches
//	├── compiler/        Dialect adapters (TypeScript→JS, WAT→wasm binary)
//	├── wat/             WAT text format to wasm binary compiler
//	├── wasm/            Core wasm binary primitives (constants, LEB128, decode)
//	├── engine/          wazero-backed module instantiation
//	├── binder/          Export binding and the struct accessor bridge
//	├── pipeline/        Per-document orchestration of the full pipeline
//	└── errors/          Structured error types for every pipeline phase
//
// # Quick Start
//
// Run a document's scripts in order:
//
//	store := cache.NewStore(cache.DefaultConfig())
//	eng, err := engine.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	p := pipeline.New(store, eng)
//	doc := p.NewDocument(ctx)
//	defer doc.Close(ctx)
//
//	doc.AddScript(pipeline.Script{Type: "application/wasm", Name: "math.wat", Source: watBytes})
//	doc.AddScript(pipeline.Script{Name: "app.js", Source: []byte("console.log(add(2, 3))")})
//	for _, r := range doc.Run(ctx) {
//	    if r.Err != nil {
//	        log.Fatal(r.Err)
//	    }
//	}
//
// # Execution Model
//
// Script units within one document execute strictly sequentially in document
// order. Compilation may be offloaded to worker goroutines, but binding and
// execution are serialized so that a script always observes exactly the
// exports installed by the scripts before it, and never those after it.
//
// # Caching
//
// The compilation caches are process-wide and shared across documents. Keys
// are content fingerprints of the raw source bytes, so the same script
// reached through different URLs compiles once. Failed compilations are never
// cached and are retried on every occurrence.
//
// # Thread Safety
//
// Store and Engine are safe for concurrent use across documents. A Document
// and its global scope are confined to one goroutine at a time.
package scriptruntime
