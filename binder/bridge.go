package binder

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/dop251/goja"

	scriptruntime "github.com/wippyai/script-runtime"
	"github.com/wippyai/script-runtime/errors"
)

// The probe chains for field access, attempted in order. The bridge tells
// readers from writers purely by exported-name pattern.
var (
	readProbes = []func(field string) string{
		func(f string) string { return "get_" + f },
		func(f string) string { return "get" + capitalize(f) },
		func(f string) string { return "struct_get_" + f },
	}
	writeProbes = []func(field string) string{
		func(f string) string { return "set_" + f },
		func(f string) string { return "set" + capitalize(f) },
		func(f string) string { return "struct_set_" + f },
	}
)

// bridge memoizes accessor resolution per struct type, not per value:
// resolving box.val once serves every box the document ever sees. A type
// index is only meaningful inside its defining module, so the key carries
// the instance; two modules with colliding indices never share accessors.
type bridge struct {
	mu    sync.Mutex
	types map[typeKey]*structType
}

type typeKey struct {
	inst scriptruntime.ModuleInstance
	idx  uint32
}

func newBridge() *bridge {
	return &bridge{types: make(map[typeKey]*structType)}
}

func (br *bridge) typeFor(inst scriptruntime.ModuleInstance, idx uint32) *structType {
	br.mu.Lock()
	defer br.mu.Unlock()
	key := typeKey{inst: inst, idx: idx}
	st, ok := br.types[key]
	if !ok {
		st = &structType{
			readers: make(map[string]string),
			writers: make(map[string]string),
		}
		br.types[key] = st
	}
	return st
}

// structType caches resolved accessor export names by field.
type structType struct {
	mu      sync.Mutex
	readers map[string]string
	writers map[string]string
}

func (st *structType) resolved(m map[string]string, field string) (string, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	name, ok := m[field]
	return name, ok
}

func (st *structType) memoize(m map[string]string, field, export string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	m[field] = export
}

// wrapStruct wraps an opaque struct handle so field access routes through the
// probe chain.
func (b *Binder) wrapStruct(inst scriptruntime.ModuleInstance, typeIdx uint32, handle any) goja.Value {
	sv := &structValue{
		b:      b,
		inst:   inst,
		st:     b.bridge.typeFor(inst, typeIdx),
		handle: handle,
	}
	return b.vm.NewDynamicObject(sv)
}

// structValue is a goja DynamicObject over one struct handle. The engine
// treats the handle as opaque; every field read and write goes through an
// accessor export or, failing that, direct property access on the handle.
type structValue struct {
	b      *Binder
	inst   scriptruntime.ModuleInstance
	st     *structType
	handle any
}

func (s *structValue) Get(key string) goja.Value {
	switch key {
	case "toString", "valueOf":
		return s.b.vm.ToValue(func(goja.FunctionCall) goja.Value {
			return s.b.vm.ToValue(s.display())
		})
	case "then", "constructor", "toJSON":
		// Engine-internal probes; absence of these must stay silent.
		return goja.Undefined()
	}

	if export, ok := s.resolveRead(key); ok {
		if export == "" {
			v, _ := s.directRead(key)
			return s.b.vm.ToValue(v)
		}
		res, err := s.inst.Function(export).Call(s.b.callCtx, s.handle)
		if err != nil {
			panic(s.b.vm.NewGoError(err))
		}
		return s.b.vm.ToValue(res)
	}
	panic(s.b.vm.NewGoError(errors.AccessorUnresolved(key)))
}

func (s *structValue) Set(key string, val goja.Value) bool {
	if export, ok := s.resolveWrite(key); ok {
		if export == "" {
			return s.directWrite(key, val.Export())
		}
		if _, err := s.inst.Function(export).Call(s.b.callCtx, s.handle, val.Export()); err != nil {
			panic(s.b.vm.NewGoError(err))
		}
		return true
	}
	panic(s.b.vm.NewGoError(errors.AccessorUnresolved(key)))
}

func (s *structValue) Has(key string) bool {
	_, ok := s.resolveRead(key)
	return ok
}

func (s *structValue) Delete(key string) bool { return false }

// Keys enumerates the fields discoverable from the instance's accessor
// exports.
func (s *structValue) Keys() []string {
	fields := make(map[string]bool)
	for _, name := range s.inst.ExportNames() {
		if f, ok := fieldOfGetter(name); ok {
			fields[f] = true
		}
	}
	out := make([]string, 0, len(fields))
	for f := range fields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// resolveRead returns the accessor export for a field read, probing and
// memoizing on first use. An empty export name means direct property access.
// Failure is not memoized; a later bind may introduce the accessor.
func (s *structValue) resolveRead(field string) (string, bool) {
	if export, ok := s.st.resolved(s.st.readers, field); ok {
		return export, true
	}
	for _, probe := range readProbes {
		name := probe(field)
		if s.inst.Function(name) != nil {
			s.st.memoize(s.st.readers, field, name)
			return name, true
		}
	}
	if _, ok := s.directRead(field); ok {
		s.st.memoize(s.st.readers, field, "")
		return "", true
	}
	return "", false
}

func (s *structValue) resolveWrite(field string) (string, bool) {
	if export, ok := s.st.resolved(s.st.writers, field); ok {
		return export, true
	}
	for _, probe := range writeProbes {
		name := probe(field)
		if s.inst.Function(name) != nil {
			s.st.memoize(s.st.writers, field, name)
			return name, true
		}
	}
	if _, ok := s.directRead(field); ok {
		s.st.memoize(s.st.writers, field, "")
		return "", true
	}
	return "", false
}

// directRead treats the handle as a transparent wrapper. This only succeeds
// for externalized forms the host can see through, such as a boxed map.
func (s *structValue) directRead(field string) (any, bool) {
	if m, ok := s.handle.(map[string]any); ok {
		v, ok := m[field]
		return v, ok
	}
	return nil, false
}

func (s *structValue) directWrite(field string, val any) bool {
	if m, ok := s.handle.(map[string]any); ok {
		m[field] = val
		return true
	}
	return false
}

// display renders the struct through its readable accessors, in the form
// struct{val=42}.
func (s *structValue) display() string {
	var sb strings.Builder
	sb.WriteString("struct{")
	for i, field := range s.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(field)
		sb.WriteByte('=')
		export, ok := s.resolveRead(field)
		if !ok || export == "" {
			v, _ := s.directRead(field)
			fmt.Fprintf(&sb, "%v", v)
			continue
		}
		v, err := s.inst.Function(export).Call(s.b.callCtx, s.handle)
		if err != nil {
			sb.WriteString("<error>")
			continue
		}
		fmt.Fprintf(&sb, "%v", v)
	}
	sb.WriteByte('}')
	return sb.String()
}

// fieldOfGetter extracts the field name from a getter-convention export. It
// recognizes every pattern the read probe chain can resolve.
func fieldOfGetter(export string) (string, bool) {
	switch {
	case strings.HasPrefix(export, "struct_get_"):
		return export[len("struct_get_"):], true
	case strings.HasPrefix(export, "get_"):
		return export[len("get_"):], true
	case len(export) > len("get") && strings.HasPrefix(export, "get") &&
		unicode.IsUpper(rune(export[len("get")])):
		return decapitalize(export[len("get"):]), true
	}
	return "", false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func decapitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
