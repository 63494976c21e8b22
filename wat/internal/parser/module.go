package parser

import (
	"fmt"

	"github.com/wippyai/script-runtime/wasm"
	"github.com/wippyai/script-runtime/wat/internal/ast"
	"github.com/wippyai/script-runtime/wat/internal/token"
)

func (p *parser) parseFields() error {
	for {
		t := p.peek()
		if t == nil {
			return fmt.Errorf("unexpected end of input: unclosed module")
		}
		if t.Kind == token.RParen {
			p.pos++
			return nil
		}
		if t.Kind != token.LParen || p.pos+1 >= len(p.toks) {
			return fmt.Errorf("line %d: expected module field, got %q", t.Line, t.Text)
		}

		var err error
		switch head := p.toks[p.pos+1].Text; head {
		case "type":
			err = p.parseTypeDef()
		case "func":
			err = p.parseFunc()
		case "memory":
			err = p.parseMemory()
		case "global":
			err = p.parseGlobal()
		case "export":
			err = p.parseExport()
		default:
			err = fmt.Errorf("line %d: unsupported module field %q", t.Line, head)
		}
		if err != nil {
			return err
		}
	}
}

func (p *parser) parseTypeDef() error {
	p.pos += 2 // ( type
	p.optName()

	if _, err := p.expect(token.LParen); err != nil {
		return err
	}
	kw := p.next()
	if kw == nil {
		return fmt.Errorf("unexpected end of input in type definition")
	}

	var td ast.TypeDef
	switch kw.Text {
	case "func":
		td.Kind = wasm.FuncTypeByte
		var err error
		td.Params, _, err = p.parseParams()
		if err != nil {
			return err
		}
		if td.Results, err = p.parseResults(); err != nil {
			return err
		}
	case "struct":
		td.Kind = wasm.StructTypeByte
		for p.atForm("field") {
			fields, err := p.parseFieldClause()
			if err != nil {
				return err
			}
			td.Fields = append(td.Fields, fields...)
		}
	default:
		return fmt.Errorf("line %d: expected 'func' or 'struct', got %q", kw.Line, kw.Text)
	}

	if _, err := p.expect(token.RParen); err != nil {
		return err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return err
	}

	if p.nextType >= len(p.typeIdx) {
		return fmt.Errorf("too many type definitions")
	}
	p.mod.Types[p.nextType] = td
	p.nextType++
	return nil
}

// parseFieldClause parses one (field $name? fieldtype...) clause. A named
// clause holds exactly one field; an unnamed clause may hold several.
func (p *parser) parseFieldClause() ([]ast.Field, error) {
	p.pos += 2 // ( field
	name := p.optName()

	var fields []ast.Field
	for {
		t := p.peek()
		if t == nil {
			return nil, fmt.Errorf("unexpected end of input in struct field")
		}
		if t.Kind == token.RParen {
			p.pos++
			break
		}

		f := ast.Field{Name: name}
		if p.atForm("mut") {
			p.pos += 2
			vt, err := p.valType()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RParen); err != nil {
				return nil, err
			}
			f.Type = vt
			f.Mutable = true
		} else {
			vt, err := p.valType()
			if err != nil {
				return nil, err
			}
			f.Type = vt
		}
		fields = append(fields, f)

		if name != "" {
			if _, err := p.expect(token.RParen); err != nil {
				return nil, err
			}
			break
		}
	}
	return fields, nil
}

// parseParams parses consecutive (param ...) clauses, returning the types
// and the declared parameter names by index.
func (p *parser) parseParams() ([]ast.ValType, map[string]uint32, error) {
	var types []ast.ValType
	names := make(map[string]uint32)

	for p.atForm("param") {
		p.pos += 2
		if name := p.optName(); name != "" {
			vt, err := p.valType()
			if err != nil {
				return nil, nil, err
			}
			names[name] = uint32(len(types))
			types = append(types, vt)
			if _, err := p.expect(token.RParen); err != nil {
				return nil, nil, err
			}
			continue
		}
		for {
			t := p.peek()
			if t == nil {
				return nil, nil, fmt.Errorf("unexpected end of input in param")
			}
			if t.Kind == token.RParen {
				p.pos++
				break
			}
			vt, err := p.valType()
			if err != nil {
				return nil, nil, err
			}
			types = append(types, vt)
		}
	}
	return types, names, nil
}

func (p *parser) parseResults() ([]ast.ValType, error) {
	var types []ast.ValType
	for p.atForm("result") {
		p.pos += 2
		for {
			t := p.peek()
			if t == nil {
				return nil, fmt.Errorf("unexpected end of input in result")
			}
			if t.Kind == token.RParen {
				p.pos++
				break
			}
			vt, err := p.valType()
			if err != nil {
				return nil, err
			}
			types = append(types, vt)
		}
	}
	return types, nil
}

// parseInlineExports consumes (export "name") abbreviations and registers
// them against the given kind and index.
func (p *parser) parseInlineExports(kind byte, idx uint32) error {
	for p.atForm("export") {
		p.pos += 2
		name, err := p.expect(token.Str)
		if err != nil {
			return err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return err
		}
		p.mod.Exports = append(p.mod.Exports, ast.Export{Name: name.Text, Kind: kind, Idx: idx})
	}
	return nil
}

func (p *parser) parseFunc() error {
	p.pos += 2 // ( func
	fnIdx := uint32(len(p.mod.Funcs))
	p.optName()

	if err := p.parseInlineExports(wasm.KindFunc, fnIdx); err != nil {
		return err
	}

	var fn ast.Func
	var paramNames map[string]uint32
	var nParams uint32
	if p.atForm("type") {
		p.pos += 2
		ti, err := p.idx(p.typeIdx, "type")
		if err != nil {
			return err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return err
		}
		fn.TypeIdx = ti
		// Params may still be declared redundantly to name them for the body.
		params, names, err := p.parseParams()
		if err != nil {
			return err
		}
		if _, err := p.parseResults(); err != nil {
			return err
		}
		nParams = uint32(len(params))
		if nParams == 0 && int(ti) < len(p.mod.Types) {
			nParams = uint32(len(p.mod.Types[ti].Params))
		}
		paramNames = names
	} else {
		params, names, err := p.parseParams()
		if err != nil {
			return err
		}
		results, err := p.parseResults()
		if err != nil {
			return err
		}
		fn.TypeIdx = p.findOrAddFuncType(ast.TypeDef{
			Kind:    wasm.FuncTypeByte,
			Params:  params,
			Results: results,
		})
		nParams = uint32(len(params))
		paramNames = names
	}

	ctx := newFuncCtx(p, nParams, paramNames)
	for p.atForm("local") {
		p.pos += 2
		if name := p.optName(); name != "" {
			vt, err := p.valType()
			if err != nil {
				return err
			}
			ctx.addLocal(name, vt)
			if _, err := p.expect(token.RParen); err != nil {
				return err
			}
			continue
		}
		for {
			t := p.peek()
			if t == nil {
				return fmt.Errorf("unexpected end of input in local")
			}
			if t.Kind == token.RParen {
				p.pos++
				break
			}
			vt, err := p.valType()
			if err != nil {
				return err
			}
			ctx.addLocal("", vt)
		}
	}
	body, err := p.parseInstrs(ctx)
	if err != nil {
		return err
	}
	fn.Body = body
	fn.Locals = ctx.locals

	if _, err := p.expect(token.RParen); err != nil {
		return err
	}
	p.mod.Funcs = append(p.mod.Funcs, fn)
	return nil
}

func (p *parser) parseMemory() error {
	p.pos += 2 // ( memory
	idx := uint32(len(p.mod.Memories))
	p.optName()
	if err := p.parseInlineExports(wasm.KindMemory, idx); err != nil {
		return err
	}

	minTok, err := p.expect(token.Num)
	if err != nil {
		return err
	}
	minPages, err := parseUint(minTok.Text)
	if err != nil {
		return fmt.Errorf("line %d: bad memory size %q", minTok.Line, minTok.Text)
	}
	lim := ast.Limits{Min: uint32(minPages)}

	if t := p.peek(); t != nil && t.Kind == token.Num {
		p.pos++
		maxPages, err := parseUint(t.Text)
		if err != nil {
			return fmt.Errorf("line %d: bad memory max %q", t.Line, t.Text)
		}
		m := uint32(maxPages)
		lim.Max = &m
	}

	if _, err := p.expect(token.RParen); err != nil {
		return err
	}
	p.mod.Memories = append(p.mod.Memories, lim)
	return nil
}

func (p *parser) parseGlobal() error {
	p.pos += 2 // ( global
	idx := uint32(len(p.mod.Globals))
	p.optName()
	if err := p.parseInlineExports(wasm.KindGlobal, idx); err != nil {
		return err
	}

	var g ast.Global
	if p.atForm("mut") {
		p.pos += 2
		vt, err := p.valType()
		if err != nil {
			return err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return err
		}
		g.Type = vt
		g.Mutable = true
	} else {
		vt, err := p.valType()
		if err != nil {
			return err
		}
		g.Type = vt
	}

	ctx := newFuncCtx(p, 0, nil)
	init, err := p.parseInstrs(ctx)
	if err != nil {
		return err
	}
	g.Init = init

	if _, err := p.expect(token.RParen); err != nil {
		return err
	}
	p.mod.Globals = append(p.mod.Globals, g)
	return nil
}

func (p *parser) parseExport() error {
	p.pos += 2 // ( export
	name, err := p.expect(token.Str)
	if err != nil {
		return err
	}
	if _, err := p.expect(token.LParen); err != nil {
		return err
	}
	kw := p.next()
	if kw == nil {
		return fmt.Errorf("unexpected end of input in export")
	}

	var kind byte
	var idx uint32
	switch kw.Text {
	case "func":
		kind = wasm.KindFunc
		idx, err = p.idx(p.funcIdx, "func")
	case "memory":
		kind = wasm.KindMemory
		idx, err = p.idx(nil, "memory")
	case "global":
		kind = wasm.KindGlobal
		idx, err = p.idx(p.globIdx, "global")
	default:
		err = fmt.Errorf("line %d: unsupported export kind %q", kw.Line, kw.Text)
	}
	if err != nil {
		return err
	}

	if _, err := p.expect(token.RParen); err != nil {
		return err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return err
	}
	p.mod.Exports = append(p.mod.Exports, ast.Export{Name: name.Text, Kind: kind, Idx: idx})
	return nil
}
