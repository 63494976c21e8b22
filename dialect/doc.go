// Package dialect resolves a script occurrence to the source kind the
// pipeline should compile it as.
//
// Resolution is a pure two-tier lookup: the declared type token is checked
// against a fixed table first, and only when it is absent, generic, or
// unrecognized does the resource name's file extension decide. Unknown input
// resolves to native script rather than failing.
package dialect
