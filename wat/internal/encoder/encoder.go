// Package encoder serializes an ast.Module into the wasm binary format.
package encoder

import (
	"github.com/wippyai/script-runtime/wasm"
	"github.com/wippyai/script-runtime/wat/internal/ast"
)

// Encode emits the binary form of mod. The parser has already resolved all
// names, so encoding cannot fail.
func Encode(mod *ast.Module) []byte {
	out := append([]byte{}, wasm.Magic...)
	out = append(out, wasm.Version...)

	out = section(out, wasm.SectionType, typeSection(mod))
	out = section(out, wasm.SectionFunction, funcSection(mod))
	out = section(out, wasm.SectionMemory, memorySection(mod))
	out = section(out, wasm.SectionGlobal, globalSection(mod))
	out = section(out, wasm.SectionExport, exportSection(mod))
	out = section(out, wasm.SectionCode, codeSection(mod))

	return out
}

// section appends a section header and body; empty sections are omitted.
func section(dst []byte, id byte, body []byte) []byte {
	if body == nil {
		return dst
	}
	dst = append(dst, id)
	dst = wasm.AppendUint(dst, uint64(len(body)))
	return append(dst, body...)
}

func typeSection(mod *ast.Module) []byte {
	if len(mod.Types) == 0 {
		return nil
	}
	body := wasm.AppendUint(nil, uint64(len(mod.Types)))
	for _, td := range mod.Types {
		body = append(body, td.Kind)
		if td.IsFunc() {
			body = valTypes(body, td.Params)
			body = valTypes(body, td.Results)
			continue
		}
		body = wasm.AppendUint(body, uint64(len(td.Fields)))
		for _, f := range td.Fields {
			body = valType(body, f.Type)
			if f.Mutable {
				body = append(body, wasm.FieldMutable)
			} else {
				body = append(body, wasm.FieldImmutable)
			}
		}
	}
	return body
}

func funcSection(mod *ast.Module) []byte {
	if len(mod.Funcs) == 0 {
		return nil
	}
	body := wasm.AppendUint(nil, uint64(len(mod.Funcs)))
	for _, fn := range mod.Funcs {
		body = wasm.AppendUint(body, uint64(fn.TypeIdx))
	}
	return body
}

func memorySection(mod *ast.Module) []byte {
	if len(mod.Memories) == 0 {
		return nil
	}
	body := wasm.AppendUint(nil, uint64(len(mod.Memories)))
	for _, m := range mod.Memories {
		if m.Max != nil {
			body = append(body, 0x01)
			body = wasm.AppendUint(body, uint64(m.Min))
			body = wasm.AppendUint(body, uint64(*m.Max))
		} else {
			body = append(body, 0x00)
			body = wasm.AppendUint(body, uint64(m.Min))
		}
	}
	return body
}

func globalSection(mod *ast.Module) []byte {
	if len(mod.Globals) == 0 {
		return nil
	}
	body := wasm.AppendUint(nil, uint64(len(mod.Globals)))
	for _, g := range mod.Globals {
		body = valType(body, g.Type)
		if g.Mutable {
			body = append(body, 0x01)
		} else {
			body = append(body, 0x00)
		}
		body = instrs(body, g.Init)
		body = append(body, wasm.OpEnd)
	}
	return body
}

func exportSection(mod *ast.Module) []byte {
	if len(mod.Exports) == 0 {
		return nil
	}
	body := wasm.AppendUint(nil, uint64(len(mod.Exports)))
	for _, e := range mod.Exports {
		body = wasm.AppendUint(body, uint64(len(e.Name)))
		body = append(body, e.Name...)
		body = append(body, e.Kind)
		body = wasm.AppendUint(body, uint64(e.Idx))
	}
	return body
}

func codeSection(mod *ast.Module) []byte {
	if len(mod.Funcs) == 0 {
		return nil
	}
	body := wasm.AppendUint(nil, uint64(len(mod.Funcs)))
	for _, fn := range mod.Funcs {
		code := localDecls(fn.Locals)
		code = instrs(code, fn.Body)
		code = append(code, wasm.OpEnd)
		body = wasm.AppendUint(body, uint64(len(code)))
		body = append(body, code...)
	}
	return body
}

// localDecls run-length encodes consecutive locals of the same type.
func localDecls(locals []ast.ValType) []byte {
	type run struct {
		vt    ast.ValType
		count uint64
	}
	var runs []run
	for _, vt := range locals {
		if n := len(runs); n > 0 && runs[n-1].vt.Equal(vt) {
			runs[n-1].count++
			continue
		}
		runs = append(runs, run{vt: vt, count: 1})
	}

	out := wasm.AppendUint(nil, uint64(len(runs)))
	for _, r := range runs {
		out = wasm.AppendUint(out, r.count)
		out = valType(out, r.vt)
	}
	return out
}

func valTypes(dst []byte, types []ast.ValType) []byte {
	dst = wasm.AppendUint(dst, uint64(len(types)))
	for _, vt := range types {
		dst = valType(dst, vt)
	}
	return dst
}

func valType(dst []byte, vt ast.ValType) []byte {
	dst = append(dst, vt.Code)
	if vt.Code == wasm.ValRef || vt.Code == wasm.ValRefNull {
		dst = wasm.AppendInt(dst, vt.Heap)
	}
	return dst
}

func blockType(dst []byte, vt ast.ValType) []byte {
	if vt.Code == wasm.BlockTypeVoid {
		return append(dst, wasm.BlockTypeVoid)
	}
	return valType(dst, vt)
}

func instrs(dst []byte, body []ast.Instr) []byte {
	for _, in := range body {
		dst = instr(dst, in)
	}
	return dst
}

func instr(dst []byte, in ast.Instr) []byte {
	if in.IsGC {
		dst = append(dst, wasm.OpPrefixGC)
		dst = wasm.AppendUint(dst, uint64(in.GC))
		switch in.GC {
		case wasm.GCStructNew, wasm.GCStructNewDefault,
			wasm.GCRefCast, wasm.GCRefCastNull:
			dst = wasm.AppendUint(dst, uint64(in.X))
		case wasm.GCStructGet, wasm.GCStructGetS, wasm.GCStructGetU,
			wasm.GCStructSet:
			dst = wasm.AppendUint(dst, uint64(in.X))
			dst = wasm.AppendUint(dst, uint64(in.Y))
		}
		return dst
	}

	dst = append(dst, in.Op)
	switch in.Op {
	case wasm.OpBlock, wasm.OpLoop, wasm.OpIf:
		dst = blockType(dst, in.Block)

	case wasm.OpBr, wasm.OpBrIf, wasm.OpCall,
		wasm.OpLocalGet, wasm.OpLocalSet, wasm.OpLocalTee,
		wasm.OpGlobalGet, wasm.OpGlobalSet,
		wasm.OpRefFunc:
		dst = wasm.AppendUint(dst, uint64(in.X))

	case wasm.OpI32Load, wasm.OpI64Load, wasm.OpF32Load, wasm.OpF64Load,
		wasm.OpI32Store, wasm.OpI64Store, wasm.OpF32Store, wasm.OpF64Store:
		// X is the alignment exponent, Y the byte offset.
		dst = wasm.AppendUint(dst, uint64(in.X))
		dst = wasm.AppendUint(dst, uint64(in.Y))

	case wasm.OpMemorySize, wasm.OpMemoryGrow:
		dst = append(dst, 0x00)

	case wasm.OpI32Const:
		// Literals in the unsigned i32 range wrap to their signed value.
		dst = wasm.AppendInt(dst, int64(int32(in.I)))
	case wasm.OpI64Const:
		dst = wasm.AppendInt(dst, in.I)
	case wasm.OpF32Const:
		dst = wasm.AppendF32(dst, in.F32)
	case wasm.OpF64Const:
		dst = wasm.AppendF64(dst, in.F64)

	case wasm.OpRefNull:
		dst = wasm.AppendInt(dst, in.I)
	}
	return dst
}
