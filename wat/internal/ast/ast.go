// Package ast holds the parsed form of a WAT module, with all symbolic names
// already resolved to indices.
package ast

import "github.com/wippyai/script-runtime/wasm"

// ValType is a value type; Heap carries the s33 immediate for (ref ht) and
// (ref null ht).
type ValType struct {
	Heap int64
	Code byte
}

func (v ValType) Equal(o ValType) bool {
	return v.Code == o.Code && v.Heap == o.Heap
}

// Field is one struct field with its declared name (used to resolve
// struct.get/struct.set field immediates).
type Field struct {
	Name    string
	Type    ValType
	Mutable bool
}

// TypeDef is one entry of the type section: a function signature or a GC
// struct type.
type TypeDef struct {
	Name    string
	Params  []ValType
	Results []ValType
	Fields  []Field
	Kind    byte // wasm.FuncTypeByte or wasm.StructTypeByte
}

func (t TypeDef) IsFunc() bool { return t.Kind == wasm.FuncTypeByte }

// SameSignature reports whether two function typedefs have equal signatures.
func (t TypeDef) SameSignature(o TypeDef) bool {
	if !t.IsFunc() || !o.IsFunc() ||
		len(t.Params) != len(o.Params) || len(t.Results) != len(o.Results) {
		return false
	}
	for i := range t.Params {
		if !t.Params[i].Equal(o.Params[i]) {
			return false
		}
	}
	for i := range t.Results {
		if !t.Results[i].Equal(o.Results[i]) {
			return false
		}
	}
	return true
}

// Instr is one resolved instruction. X and Y hold index immediates (for
// struct.get, X is the type index and Y the field index). Const instructions
// use I/F32/F64.
type Instr struct {
	I     int64
	F64   float64
	F32   float32
	X     uint32
	Y     uint32
	GC    uint32 // sub-opcode when Op == wasm.OpPrefixGC
	Block ValType
	Op    byte
	IsGC  bool
}

type Limits struct {
	Max *uint32
	Min uint32
}

type Global struct {
	Name    string
	Init    []Instr
	Type    ValType
	Mutable bool
}

type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// Func is one defined function with its resolved type index and body.
type Func struct {
	Name    string
	Locals  []ValType
	Body    []Instr
	TypeIdx uint32
}

type Module struct {
	Types    []TypeDef
	Funcs    []Func
	Memories []Limits
	Globals  []Global
	Exports  []Export
}
