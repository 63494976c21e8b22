// Package pipeline orchestrates script units through resolution,
// compilation, binding, and execution.
//
// A Pipeline holds the process-wide pieces (compilation cache, wasm engine);
// a Document owns one ordered script list and one global scope. Script
// bodies never overlap: unit N+1 does not start until unit N returned
// control. Compilation alone is offloaded, and an early artifact still waits
// its turn to bind so later scripts always see earlier exports.
package pipeline
