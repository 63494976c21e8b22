// Package engine runs wasm binaries on wazero and adapts them to the
// ModuleInstance surface the export binder consumes.
//
// The engine never decodes module metadata itself; the compiler adapters
// ship a decoded export table alongside the binary. Instances are not safe
// for concurrent calls, which matches the pipeline's serialized binding and
// execution.
package engine
