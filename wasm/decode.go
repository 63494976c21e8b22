package wasm

import (
	"bytes"
	"fmt"
)

// TypeKind discriminates composite types in the type section.
type TypeKind byte

const (
	TypeFunc TypeKind = iota
	TypeStruct
	TypeArray
)

// ValType is a decoded value type. For concrete reference types (ref ht) and
// (ref null ht), Heap carries the type index (>= 0) or the abstract heap
// type (< 0, see the HeapType constants).
type ValType struct {
	Heap int64
	Code byte
}

// IsRef reports whether the value type is any reference type.
func (v ValType) IsRef() bool {
	return v.Code == ValRef || v.Code == ValRefNull ||
		v.Code == ValFuncRef || v.Code == ValExternRef ||
		v.Code == ValAnyRef || v.Code == ValEqRef ||
		v.Code == ValI31Ref || v.Code == ValStructRef || v.Code == ValArrayRef
}

// ConcreteRef returns the referenced type index for (ref $t) / (ref null $t).
func (v ValType) ConcreteRef() (uint32, bool) {
	if (v.Code == ValRef || v.Code == ValRefNull) && v.Heap >= 0 {
		return uint32(v.Heap), true
	}
	return 0, false
}

// FieldType is one field of a GC struct or array type.
type FieldType struct {
	Type    ValType
	Mutable bool
}

// Type is one composite type from the type section.
type Type struct {
	Params  []ValType
	Results []ValType
	Fields  []FieldType
	Kind    TypeKind
}

// Export is one entry of the export section, in section order.
type Export struct {
	Name  string
	Kind  byte
	Index uint32
}

// Module is the decoded summary of a wasm binary: the composite type space
// and the export table. Code bodies are not decoded; execution belongs to
// the engine.
type Module struct {
	Types   []Type
	Exports []Export

	funcTypes []uint32 // type index per function, imports first
}

// IsModule reports whether b starts with the wasm binary magic. This is the
// sniff the dialect resolver and the WAT adapter use to recognize
// already-binary input.
func IsModule(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], Magic)
}

// Decode parses the module summary from a wasm binary.
func Decode(b []byte) (*Module, error) {
	if !IsModule(b) {
		return nil, fmt.Errorf("wasm: bad magic")
	}
	if len(b) < 8 || !bytes.Equal(b[4:8], Version) {
		return nil, fmt.Errorf("wasm: unsupported version")
	}

	d := &decoder{buf: b, pos: 8}
	m := &Module{}

	for d.pos < len(d.buf) {
		id := d.byte()
		size := d.u32()
		if d.err != nil {
			return nil, d.err
		}
		end := d.pos + int(size)
		if end > len(d.buf) {
			return nil, fmt.Errorf("wasm: section %d overruns module", id)
		}

		switch id {
		case SectionType:
			d.typeSection(m)
		case SectionImport:
			d.importSection(m)
		case SectionFunction:
			n := d.u32()
			for i := uint32(0); i < n && d.err == nil; i++ {
				m.funcTypes = append(m.funcTypes, d.u32())
			}
		case SectionExport:
			n := d.u32()
			for i := uint32(0); i < n && d.err == nil; i++ {
				m.Exports = append(m.Exports, Export{
					Name:  d.name(),
					Kind:  d.byte(),
					Index: d.u32(),
				})
			}
		default:
			// Other sections carry no export or type information.
		}
		if d.err != nil {
			return nil, d.err
		}
		d.pos = end
	}

	return m, nil
}

// FuncType returns the signature of the function at the given function-space
// index (imports included).
func (m *Module) FuncType(idx uint32) (*Type, bool) {
	if int(idx) >= len(m.funcTypes) {
		return nil, false
	}
	ti := m.funcTypes[idx]
	if int(ti) >= len(m.Types) || m.Types[ti].Kind != TypeFunc {
		return nil, false
	}
	return &m.Types[ti], true
}

// ExportedFunc returns the signature of the exported function with the given
// name.
func (m *Module) ExportedFunc(name string) (*Type, bool) {
	for _, e := range m.Exports {
		if e.Name == name && e.Kind == KindFunc {
			return m.FuncType(e.Index)
		}
	}
	return nil, false
}

// StructResult reports whether the named exported function returns exactly
// one concrete struct reference, and if so which struct type index. The
// accessor bridge keys its per-type descriptors on that index.
func (m *Module) StructResult(name string) (uint32, bool) {
	t, ok := m.ExportedFunc(name)
	if !ok || len(t.Results) != 1 {
		return 0, false
	}
	idx, ok := t.Results[0].ConcreteRef()
	if !ok || int(idx) >= len(m.Types) || m.Types[idx].Kind != TypeStruct {
		return 0, false
	}
	return idx, true
}

type decoder struct {
	err error
	buf []byte
	pos int
}

func (d *decoder) byte() byte {
	if d.err != nil {
		return 0
	}
	if d.pos >= len(d.buf) {
		d.err = ErrTruncated
		return 0
	}
	b := d.buf[d.pos]
	d.pos++
	return b
}

func (d *decoder) u32() uint32 {
	if d.err != nil {
		return 0
	}
	v, n, err := Uint32(d.buf[d.pos:])
	if err != nil {
		d.err = err
		return 0
	}
	d.pos += n
	return v
}

func (d *decoder) s64() int64 {
	if d.err != nil {
		return 0
	}
	v, n, err := Int(d.buf[d.pos:])
	if err != nil {
		d.err = err
		return 0
	}
	d.pos += n
	return v
}

func (d *decoder) name() string {
	n := d.u32()
	if d.err != nil {
		return ""
	}
	if d.pos+int(n) > len(d.buf) {
		d.err = ErrTruncated
		return ""
	}
	s := string(d.buf[d.pos : d.pos+int(n)])
	d.pos += int(n)
	return s
}

func (d *decoder) valType() ValType {
	c := d.byte()
	vt := ValType{Code: c}
	if c == ValRef || c == ValRefNull {
		vt.Heap = d.s64()
	}
	return vt
}

// compType decodes one composite type, unwrapping sub/final wrappers.
func (d *decoder) compType() Type {
	disc := d.byte()
	if disc == SubTypeByte || disc == SubFinalByte {
		// Supertype list, then the underlying composite type.
		n := d.u32()
		for i := uint32(0); i < n && d.err == nil; i++ {
			d.u32()
		}
		disc = d.byte()
	}

	var t Type
	switch disc {
	case FuncTypeByte:
		t.Kind = TypeFunc
		np := d.u32()
		for i := uint32(0); i < np && d.err == nil; i++ {
			t.Params = append(t.Params, d.valType())
		}
		nr := d.u32()
		for i := uint32(0); i < nr && d.err == nil; i++ {
			t.Results = append(t.Results, d.valType())
		}
	case StructTypeByte:
		t.Kind = TypeStruct
		nf := d.u32()
		for i := uint32(0); i < nf && d.err == nil; i++ {
			ft := FieldType{Type: d.valType()}
			ft.Mutable = d.byte() == FieldMutable
			t.Fields = append(t.Fields, ft)
		}
	case ArrayTypeByte:
		t.Kind = TypeArray
		ft := FieldType{Type: d.valType()}
		ft.Mutable = d.byte() == FieldMutable
		t.Fields = []FieldType{ft}
	default:
		if d.err == nil {
			d.err = fmt.Errorf("wasm: unknown composite type 0x%02X", disc)
		}
	}
	return t
}

func (d *decoder) typeSection(m *Module) {
	n := d.u32()
	for i := uint32(0); i < n && d.err == nil; i++ {
		// A rec group contributes each member to the type index space.
		if d.pos < len(d.buf) && d.buf[d.pos] == RecTypeByte {
			d.pos++
			cnt := d.u32()
			for j := uint32(0); j < cnt && d.err == nil; j++ {
				m.Types = append(m.Types, d.compType())
			}
			continue
		}
		m.Types = append(m.Types, d.compType())
	}
}

func (d *decoder) importSection(m *Module) {
	n := d.u32()
	for i := uint32(0); i < n && d.err == nil; i++ {
		d.name() // module
		d.name() // name
		switch kind := d.byte(); kind {
		case KindFunc:
			m.funcTypes = append(m.funcTypes, d.u32())
		case KindTable:
			d.valType()
			d.limits()
		case KindMemory:
			d.limits()
		case KindGlobal:
			d.valType()
			d.byte()
		default:
			if d.err == nil {
				d.err = fmt.Errorf("wasm: unknown import kind %d", kind)
			}
		}
	}
}

func (d *decoder) limits() {
	flags := d.byte()
	d.u32()
	if flags&0x01 != 0 {
		d.u32()
	}
}
