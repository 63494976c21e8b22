// Package parser turns a WAT token stream into a resolved ast.Module.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/script-runtime/wasm"
	"github.com/wippyai/script-runtime/wat/internal/ast"
	"github.com/wippyai/script-runtime/wat/internal/token"
)

type parser struct {
	mod      *ast.Module
	typeIdx  map[string]uint32
	funcIdx  map[string]uint32
	globIdx  map[string]uint32
	toks     []token.Token
	pos      int
	nextType int // next declared (type ...) slot to fill
}

// Parse parses a single (module ...) form.
func Parse(toks []token.Token) (*ast.Module, error) {
	p := &parser{
		toks:    toks,
		mod:     &ast.Module{},
		typeIdx: make(map[string]uint32),
		funcIdx: make(map[string]uint32),
		globIdx: make(map[string]uint32),
	}

	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	if err := p.keyword("module"); err != nil {
		return nil, err
	}
	if err := p.prescan(); err != nil {
		return nil, err
	}
	// Declared types occupy the leading indices in declaration order;
	// inline function signatures are interned after them.
	p.mod.Types = make([]ast.TypeDef, len(p.typeIdx))
	if err := p.parseFields(); err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		t := p.toks[p.pos]
		return nil, fmt.Errorf("line %d: unexpected %q after module", t.Line, t.Text)
	}
	return p.mod, nil
}

// prescan registers the names and indices of all top-level declarations so
// that bodies may reference types, functions, and globals defined later.
func (p *parser) prescan() error {
	depth := 0
	for i := p.pos; i < len(p.toks); i++ {
		t := p.toks[i]
		switch t.Kind {
		case token.LParen:
			depth++
			if depth != 1 || i+1 >= len(p.toks) {
				continue
			}
			head := p.toks[i+1].Text
			var name string
			if i+2 < len(p.toks) && strings.HasPrefix(p.toks[i+2].Text, "$") {
				name = p.toks[i+2].Text
			}
			switch head {
			case "type":
				if name != "" {
					if _, dup := p.typeIdx[name]; dup {
						return fmt.Errorf("line %d: duplicate type %s", t.Line, name)
					}
					p.typeIdx[name] = uint32(len(p.typeIdx))
				} else {
					p.typeIdx[fmt.Sprintf("$:%d", len(p.typeIdx))] = uint32(len(p.typeIdx))
				}
			case "func":
				if name != "" {
					if _, dup := p.funcIdx[name]; dup {
						return fmt.Errorf("line %d: duplicate func %s", t.Line, name)
					}
					p.funcIdx[name] = uint32(len(p.funcIdx))
				} else {
					p.funcIdx[fmt.Sprintf("$:%d", len(p.funcIdx))] = uint32(len(p.funcIdx))
				}
			case "global":
				if name != "" {
					p.globIdx[name] = uint32(len(p.globIdx))
				} else {
					p.globIdx[fmt.Sprintf("$:%d", len(p.globIdx))] = uint32(len(p.globIdx))
				}
			}
		case token.RParen:
			depth--
			if depth < 0 {
				return nil
			}
		}
	}
	return fmt.Errorf("unexpected end of input: unclosed module")
}

func (p *parser) peek() *token.Token {
	if p.pos >= len(p.toks) {
		return nil
	}
	return &p.toks[p.pos]
}

func (p *parser) next() *token.Token {
	t := p.peek()
	if t != nil {
		p.pos++
	}
	return t
}

func (p *parser) expect(k token.Kind) (*token.Token, error) {
	t := p.next()
	if t == nil {
		return nil, fmt.Errorf("unexpected end of input: expected %v", k)
	}
	if t.Kind != k {
		return nil, fmt.Errorf("line %d: expected %v, got %q", t.Line, k, t.Text)
	}
	return t, nil
}

func (p *parser) keyword(kw string) error {
	t := p.next()
	if t == nil {
		return fmt.Errorf("unexpected end of input: expected '%s'", kw)
	}
	if t.Kind != token.Word || t.Text != kw {
		return fmt.Errorf("line %d: expected '%s', got %q", t.Line, kw, t.Text)
	}
	return nil
}

// optName consumes a $identifier if present.
func (p *parser) optName() string {
	if t := p.peek(); t != nil && t.Kind == token.Word && strings.HasPrefix(t.Text, "$") {
		p.pos++
		return t.Text
	}
	return ""
}

// atForm reports whether the next tokens open the form (head ...).
func (p *parser) atForm(head string) bool {
	return p.pos+1 < len(p.toks) &&
		p.toks[p.pos].Kind == token.LParen &&
		p.toks[p.pos+1].Kind == token.Word &&
		p.toks[p.pos+1].Text == head
}

// skipForm consumes a balanced form starting at the current '('.
func (p *parser) skipForm() error {
	if _, err := p.expect(token.LParen); err != nil {
		return err
	}
	depth := 1
	for depth > 0 {
		t := p.next()
		if t == nil {
			return fmt.Errorf("unexpected end of input")
		}
		switch t.Kind {
		case token.LParen:
			depth++
		case token.RParen:
			depth--
		}
	}
	return nil
}

// idx resolves a numeric or $symbolic index against a name table.
func (p *parser) idx(table map[string]uint32, what string) (uint32, error) {
	t := p.next()
	if t == nil {
		return 0, fmt.Errorf("unexpected end of input: expected %s index", what)
	}
	if strings.HasPrefix(t.Text, "$") {
		if i, ok := table[t.Text]; ok {
			return i, nil
		}
		return 0, fmt.Errorf("line %d: unknown %s %s", t.Line, what, t.Text)
	}
	if t.Kind != token.Num {
		return 0, fmt.Errorf("line %d: expected %s index, got %q", t.Line, what, t.Text)
	}
	v, err := parseUint(t.Text)
	if err != nil {
		return 0, fmt.Errorf("line %d: bad %s index %q", t.Line, what, t.Text)
	}
	return uint32(v), nil
}

// valType parses a value type: a plain keyword or a (ref null? ht) form.
func (p *parser) valType() (ast.ValType, error) {
	t := p.peek()
	if t == nil {
		return ast.ValType{}, fmt.Errorf("unexpected end of input: expected value type")
	}

	if t.Kind == token.LParen {
		p.pos++
		if err := p.keyword("ref"); err != nil {
			return ast.ValType{}, err
		}
		code := wasm.ValRef
		if n := p.peek(); n != nil && n.Kind == token.Word && n.Text == "null" {
			p.pos++
			code = wasm.ValRefNull
		}
		heap, err := p.heapType()
		if err != nil {
			return ast.ValType{}, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return ast.ValType{}, err
		}
		return ast.ValType{Code: code, Heap: heap}, nil
	}

	p.pos++
	switch t.Text {
	case "i32":
		return ast.ValType{Code: wasm.ValI32}, nil
	case "i64":
		return ast.ValType{Code: wasm.ValI64}, nil
	case "f32":
		return ast.ValType{Code: wasm.ValF32}, nil
	case "f64":
		return ast.ValType{Code: wasm.ValF64}, nil
	case "funcref":
		return ast.ValType{Code: wasm.ValFuncRef}, nil
	case "externref":
		return ast.ValType{Code: wasm.ValExternRef}, nil
	case "anyref":
		return ast.ValType{Code: wasm.ValAnyRef}, nil
	case "eqref":
		return ast.ValType{Code: wasm.ValEqRef}, nil
	case "i31ref":
		return ast.ValType{Code: wasm.ValI31Ref}, nil
	case "structref":
		return ast.ValType{Code: wasm.ValStructRef}, nil
	case "arrayref":
		return ast.ValType{Code: wasm.ValArrayRef}, nil
	}
	return ast.ValType{}, fmt.Errorf("line %d: unknown value type %q", t.Line, t.Text)
}

// heapType parses the ht of a reference type: an abstract keyword or a
// concrete type index.
func (p *parser) heapType() (int64, error) {
	t := p.peek()
	if t == nil {
		return 0, fmt.Errorf("unexpected end of input: expected heap type")
	}
	switch t.Text {
	case "func":
		p.pos++
		return wasm.HeapTypeFunc, nil
	case "extern":
		p.pos++
		return wasm.HeapTypeExtern, nil
	case "any":
		p.pos++
		return wasm.HeapTypeAny, nil
	case "eq":
		p.pos++
		return wasm.HeapTypeEq, nil
	case "struct":
		p.pos++
		return wasm.HeapTypeStruct, nil
	case "array":
		p.pos++
		return wasm.HeapTypeArray, nil
	}
	i, err := p.idx(p.typeIdx, "type")
	if err != nil {
		return 0, err
	}
	return int64(i), nil
}

// findOrAddFuncType interns an inline function signature.
func (p *parser) findOrAddFuncType(td ast.TypeDef) uint32 {
	for i, t := range p.mod.Types {
		if t.SameSignature(td) {
			return uint32(i)
		}
	}
	p.mod.Types = append(p.mod.Types, td)
	return uint32(len(p.mod.Types) - 1)
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 0, 64)
}

func parseInt(s string) (int64, error) {
	clean := strings.ReplaceAll(s, "_", "")
	v, err := strconv.ParseInt(clean, 0, 64)
	if err == nil {
		return v, nil
	}
	// i32.const / i64.const accept the unsigned range too.
	u, uerr := strconv.ParseUint(clean, 0, 64)
	if uerr != nil {
		return 0, err
	}
	return int64(u), nil
}

func parseFloat(s string) (float64, error) {
	clean := strings.ReplaceAll(s, "_", "")
	switch clean {
	case "inf", "+inf":
		clean = "+Inf"
	case "-inf":
		clean = "-Inf"
	case "nan", "+nan", "-nan":
		clean = "NaN"
	}
	return strconv.ParseFloat(clean, 64)
}
