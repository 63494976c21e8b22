// Package cache is the content-addressed compilation cache.
//
// Artifacts are keyed by a fingerprint of the raw source bytes, so identical
// content compiles once no matter how many resources carry it. Each cached
// dialect has its own LRU-bounded space; TypeScript and wasm never compete
// for capacity. Compile failures pass through to the caller and are never
// stored.
package cache
