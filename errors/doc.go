// Package errors provides the structured error types used by every pipeline
// phase. Errors carry a Phase (where) and a Kind (what), match by that pair
// under errors.Is, and are always scoped to one script unit: an error from
// one unit never aborts its siblings.
package errors
