// Package wasm holds the core WebAssembly binary format primitives shared by
// the WAT compiler, the compilation cache, and the export binder: format
// constants (including the GC proposal encodings), LEB128 helpers, magic
// sniffing, and a lightweight module decoder that recovers the export table
// and the composite type space without executing anything.
package wasm
