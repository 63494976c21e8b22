// Package binder installs compiled artifacts into a document's shared global
// scope and bridges field access on wasm struct values.
//
// Script artifacts run directly in the scope; module artifacts have every
// export installed by name, later bindings silently replacing earlier ones.
// Struct values returned by module functions come back wrapped: reading
// box.val probes the instance for get_val, getVal, then struct_get_val,
// falls back to direct property access, and fails the single access when the
// chain exhausts. Resolution is memoized per struct type.
package binder
