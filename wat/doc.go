// Package wat compiles WebAssembly Text format source into a wasm binary
// module. It implements the subset of the text format that script-tagged
// modules use in practice (functions, memories, globals, exports, the core
// numeric instruction set) plus the GC proposal's struct types
// (struct.new/struct.get/struct.set and typed references), which the struct
// accessor bridge depends on.
//
// The compilation is a byte-exact text-to-binary transformation: no
// optimization, no transformation of semantics. A syntactically invalid
// module fails compilation; validation beyond syntax is left to the engine
// that instantiates the output.
package wat
