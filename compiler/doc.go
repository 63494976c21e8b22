// Package compiler holds the per-dialect adapters that translate script
// source into runnable artifacts.
//
// Each adapter is a pure function from source bytes to an Artifact or a
// structured failure, which makes the results safe to share through the
// compilation cache. TypeScript translation strips types without checking
// them; WebAssembly text is compiled to binary, and input that is already
// binary passes through.
package compiler
