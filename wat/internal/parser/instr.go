package parser

import (
	"fmt"
	"strings"

	"github.com/wippyai/script-runtime/wasm"
	"github.com/wippyai/script-runtime/wat/internal/ast"
	"github.com/wippyai/script-runtime/wat/internal/token"
)

// simpleOps maps instruction names with no immediates to their opcodes.
var simpleOps = map[string]byte{
	"unreachable": wasm.OpUnreachable,
	"nop":         wasm.OpNop,
	"return":      wasm.OpReturn,
	"drop":        wasm.OpDrop,
	"select":      wasm.OpSelect,

	"i32.eqz": wasm.OpI32Eqz, "i32.eq": wasm.OpI32Eq, "i32.ne": wasm.OpI32Ne,
	"i32.lt_s": wasm.OpI32LtS, "i32.lt_u": wasm.OpI32LtU,
	"i32.gt_s": wasm.OpI32GtS, "i32.gt_u": wasm.OpI32GtU,
	"i32.le_s": wasm.OpI32LeS, "i32.le_u": wasm.OpI32LeU,
	"i32.ge_s": wasm.OpI32GeS, "i32.ge_u": wasm.OpI32GeU,
	"i32.add": wasm.OpI32Add, "i32.sub": wasm.OpI32Sub, "i32.mul": wasm.OpI32Mul,
	"i32.div_s": wasm.OpI32DivS, "i32.div_u": wasm.OpI32DivU,
	"i32.rem_s": wasm.OpI32RemS, "i32.rem_u": wasm.OpI32RemU,
	"i32.and": wasm.OpI32And, "i32.or": wasm.OpI32Or, "i32.xor": wasm.OpI32Xor,
	"i32.shl": wasm.OpI32Shl, "i32.shr_s": wasm.OpI32ShrS, "i32.shr_u": wasm.OpI32ShrU,

	"i64.eqz": wasm.OpI64Eqz, "i64.eq": wasm.OpI64Eq, "i64.ne": wasm.OpI64Ne,
	"i64.lt_s": wasm.OpI64LtS, "i64.gt_s": wasm.OpI64GtS,
	"i64.le_s": wasm.OpI64LeS, "i64.ge_s": wasm.OpI64GeS,
	"i64.add": wasm.OpI64Add, "i64.sub": wasm.OpI64Sub, "i64.mul": wasm.OpI64Mul,
	"i64.div_s": wasm.OpI64DivS,
	"i64.and":   wasm.OpI64And, "i64.or": wasm.OpI64Or, "i64.xor": wasm.OpI64Xor,

	"f32.eq": wasm.OpF32Eq, "f32.ne": wasm.OpF32Ne,
	"f32.lt": wasm.OpF32Lt, "f32.gt": wasm.OpF32Gt, "f32.le": wasm.OpF32Le, "f32.ge": wasm.OpF32Ge,
	"f32.abs": wasm.OpF32Abs, "f32.neg": wasm.OpF32Neg, "f32.sqrt": wasm.OpF32Sqrt,
	"f32.add": wasm.OpF32Add, "f32.sub": wasm.OpF32Sub, "f32.mul": wasm.OpF32Mul,
	"f32.div": wasm.OpF32Div, "f32.min": wasm.OpF32Min, "f32.max": wasm.OpF32Max,

	"f64.eq": wasm.OpF64Eq, "f64.ne": wasm.OpF64Ne,
	"f64.lt": wasm.OpF64Lt, "f64.gt": wasm.OpF64Gt, "f64.le": wasm.OpF64Le, "f64.ge": wasm.OpF64Ge,
	"f64.abs": wasm.OpF64Abs, "f64.neg": wasm.OpF64Neg, "f64.sqrt": wasm.OpF64Sqrt,
	"f64.add": wasm.OpF64Add, "f64.sub": wasm.OpF64Sub, "f64.mul": wasm.OpF64Mul,
	"f64.div": wasm.OpF64Div, "f64.min": wasm.OpF64Min, "f64.max": wasm.OpF64Max,

	"i32.wrap_i64":    wasm.OpI32WrapI64,
	"i64.extend_i32_s": wasm.OpI64ExtendI32S,
	"i64.extend_i32_u": wasm.OpI64ExtendI32U,

	"ref.is_null": wasm.OpRefIsNull,
}

// memOps maps load/store names to opcode and natural alignment (log2).
var memOps = map[string]struct {
	op    byte
	align uint32
}{
	"i32.load":  {wasm.OpI32Load, 2},
	"i64.load":  {wasm.OpI64Load, 3},
	"f32.load":  {wasm.OpF32Load, 2},
	"f64.load":  {wasm.OpF64Load, 3},
	"i32.store": {wasm.OpI32Store, 2},
	"i64.store": {wasm.OpI64Store, 3},
	"f32.store": {wasm.OpF32Store, 2},
	"f64.store": {wasm.OpF64Store, 3},
}

type funcCtx struct {
	p          *parser
	localNames map[string]uint32
	locals     []ast.ValType
	labels     []string
	nParams    uint32
	nLocals    uint32
}

func newFuncCtx(p *parser, nParams uint32, paramNames map[string]uint32) *funcCtx {
	if paramNames == nil {
		paramNames = make(map[string]uint32)
	}
	return &funcCtx{p: p, localNames: paramNames, nParams: nParams}
}

func (c *funcCtx) addLocal(name string, vt ast.ValType) {
	idx := c.nParams + c.nLocals
	if name != "" {
		c.localNames[name] = idx
	}
	c.locals = append(c.locals, vt)
	c.nLocals++
}

func (c *funcCtx) labelDepth(name string) (uint32, bool) {
	for i := len(c.labels) - 1; i >= 0; i-- {
		if c.labels[i] == name {
			return uint32(len(c.labels) - 1 - i), true
		}
	}
	return 0, false
}

// parseInstrs parses instructions until the enclosing ')' (left unconsumed).
func (p *parser) parseInstrs(ctx *funcCtx) ([]ast.Instr, error) {
	var out []ast.Instr
	for {
		t := p.peek()
		if t == nil {
			return nil, fmt.Errorf("unexpected end of input in instruction sequence")
		}
		if t.Kind == token.RParen {
			return out, nil
		}
		if err := p.parseInstr(ctx, &out); err != nil {
			return nil, err
		}
	}
}

// parseInstr parses one flat instruction or one folded expression.
func (p *parser) parseInstr(ctx *funcCtx, out *[]ast.Instr) error {
	t := p.peek()
	if t == nil {
		return fmt.Errorf("unexpected end of input: expected instruction")
	}

	if t.Kind == token.LParen {
		return p.parseFolded(ctx, out)
	}
	if t.Kind != token.Word {
		return fmt.Errorf("line %d: expected instruction, got %q", t.Line, t.Text)
	}
	p.pos++
	return p.parseOp(ctx, t, out)
}

// parseFolded parses (op operand* ) emitting operands before op, and the
// folded control forms (block ...), (loop ...), (if ...).
func (p *parser) parseFolded(ctx *funcCtx, out *[]ast.Instr) error {
	p.pos++ // (
	op, err := p.expect(token.Word)
	if err != nil {
		return err
	}

	switch op.Text {
	case "block", "loop":
		return p.parseBlock(ctx, op.Text, out)
	case "if":
		return p.parseIf(ctx, out)
	case "then", "else":
		return fmt.Errorf("line %d: %q outside of if", op.Line, op.Text)
	}

	// Immediates come before folded operands; operands emit first.
	instr, err := p.instrImmediates(ctx, op)
	if err != nil {
		return err
	}
	for {
		t := p.peek()
		if t == nil {
			return fmt.Errorf("unexpected end of input in %s", op.Text)
		}
		if t.Kind == token.RParen {
			p.pos++
			break
		}
		if err := p.parseInstr(ctx, out); err != nil {
			return err
		}
	}
	*out = append(*out, instr)
	return nil
}

func (p *parser) parseOp(ctx *funcCtx, op *token.Token, out *[]ast.Instr) error {
	switch op.Text {
	case "block", "loop", "if", "then", "else", "end":
		return fmt.Errorf("line %d: flat %q is not supported; use the folded form", op.Line, op.Text)
	}
	instr, err := p.instrImmediates(ctx, op)
	if err != nil {
		return err
	}
	*out = append(*out, instr)
	return nil
}

// blockResult parses an optional (result t) of a block form.
func (p *parser) blockResult() (ast.ValType, error) {
	if !p.atForm("result") {
		return ast.ValType{Code: wasm.BlockTypeVoid}, nil
	}
	p.pos += 2
	vt, err := p.valType()
	if err != nil {
		return ast.ValType{}, err
	}
	_, err = p.expect(token.RParen)
	return vt, err
}

func (p *parser) parseBlock(ctx *funcCtx, kind string, out *[]ast.Instr) error {
	label := p.optName()
	bt, err := p.blockResult()
	if err != nil {
		return err
	}

	op := wasm.OpBlock
	if kind == "loop" {
		op = wasm.OpLoop
	}
	*out = append(*out, ast.Instr{Op: op, Block: bt})

	ctx.labels = append(ctx.labels, label)
	body, err := p.parseInstrs(ctx)
	if err != nil {
		return err
	}
	ctx.labels = ctx.labels[:len(ctx.labels)-1]
	if _, err := p.expect(token.RParen); err != nil {
		return err
	}

	*out = append(*out, body...)
	*out = append(*out, ast.Instr{Op: wasm.OpEnd})
	return nil
}

// parseIf parses (if $label? (result t)? cond (then ...) (else ...)?).
func (p *parser) parseIf(ctx *funcCtx, out *[]ast.Instr) error {
	label := p.optName()
	bt, err := p.blockResult()
	if err != nil {
		return err
	}

	// Condition expressions emit before the if opcode.
	for !p.atForm("then") {
		t := p.peek()
		if t == nil || t.Kind == token.RParen {
			return fmt.Errorf("if without (then ...)")
		}
		if err := p.parseInstr(ctx, out); err != nil {
			return err
		}
	}
	*out = append(*out, ast.Instr{Op: wasm.OpIf, Block: bt})

	ctx.labels = append(ctx.labels, label)
	p.pos += 2 // ( then
	thenBody, err := p.parseInstrs(ctx)
	if err != nil {
		return err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return err
	}
	*out = append(*out, thenBody...)

	if p.atForm("else") {
		p.pos += 2
		elseBody, err := p.parseInstrs(ctx)
		if err != nil {
			return err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return err
		}
		if len(elseBody) > 0 {
			*out = append(*out, ast.Instr{Op: wasm.OpElse})
			*out = append(*out, elseBody...)
		}
	}
	ctx.labels = ctx.labels[:len(ctx.labels)-1]

	if _, err := p.expect(token.RParen); err != nil {
		return err
	}
	*out = append(*out, ast.Instr{Op: wasm.OpEnd})
	return nil
}

// instrImmediates parses the immediates of a non-control instruction.
func (p *parser) instrImmediates(ctx *funcCtx, op *token.Token) (ast.Instr, error) {
	name := op.Text

	if code, ok := simpleOps[name]; ok {
		return ast.Instr{Op: code}, nil
	}
	if m, ok := memOps[name]; ok {
		return p.memImmediates(op, m.op, m.align)
	}

	switch name {
	case "local.get", "local.set", "local.tee":
		idx, err := p.localIdx(ctx)
		if err != nil {
			return ast.Instr{}, err
		}
		code := wasm.OpLocalGet
		switch name {
		case "local.set":
			code = wasm.OpLocalSet
		case "local.tee":
			code = wasm.OpLocalTee
		}
		return ast.Instr{Op: code, X: idx}, nil

	case "global.get", "global.set":
		idx, err := p.idx(p.globIdx, "global")
		if err != nil {
			return ast.Instr{}, err
		}
		code := wasm.OpGlobalGet
		if name == "global.set" {
			code = wasm.OpGlobalSet
		}
		return ast.Instr{Op: code, X: idx}, nil

	case "call":
		idx, err := p.idx(p.funcIdx, "func")
		if err != nil {
			return ast.Instr{}, err
		}
		return ast.Instr{Op: wasm.OpCall, X: idx}, nil

	case "br", "br_if":
		depth, err := p.labelImmediate(ctx)
		if err != nil {
			return ast.Instr{}, err
		}
		code := wasm.OpBr
		if name == "br_if" {
			code = wasm.OpBrIf
		}
		return ast.Instr{Op: code, X: depth}, nil

	case "i32.const", "i64.const":
		t, err := p.expect(token.Num)
		if err != nil {
			return ast.Instr{}, err
		}
		v, err := parseInt(t.Text)
		if err != nil {
			return ast.Instr{}, fmt.Errorf("line %d: bad integer %q", t.Line, t.Text)
		}
		code := wasm.OpI32Const
		if name == "i64.const" {
			code = wasm.OpI64Const
		}
		return ast.Instr{Op: code, I: v}, nil

	case "f32.const", "f64.const":
		t := p.next()
		if t == nil {
			return ast.Instr{}, fmt.Errorf("unexpected end of input in %s", name)
		}
		v, err := parseFloat(t.Text)
		if err != nil {
			return ast.Instr{}, fmt.Errorf("line %d: bad float %q", t.Line, t.Text)
		}
		if name == "f32.const" {
			return ast.Instr{Op: wasm.OpF32Const, F32: float32(v)}, nil
		}
		return ast.Instr{Op: wasm.OpF64Const, F64: v}, nil

	case "memory.size":
		return ast.Instr{Op: wasm.OpMemorySize}, nil
	case "memory.grow":
		return ast.Instr{Op: wasm.OpMemoryGrow}, nil

	case "ref.null":
		heap, err := p.heapType()
		if err != nil {
			return ast.Instr{}, err
		}
		return ast.Instr{Op: wasm.OpRefNull, I: heap}, nil

	case "ref.func":
		idx, err := p.idx(p.funcIdx, "func")
		if err != nil {
			return ast.Instr{}, err
		}
		return ast.Instr{Op: wasm.OpRefFunc, X: idx}, nil

	case "struct.new", "struct.new_default":
		ti, err := p.idx(p.typeIdx, "type")
		if err != nil {
			return ast.Instr{}, err
		}
		gc := wasm.GCStructNew
		if name == "struct.new_default" {
			gc = wasm.GCStructNewDefault
		}
		return ast.Instr{Op: wasm.OpPrefixGC, IsGC: true, GC: gc, X: ti}, nil

	case "struct.get", "struct.get_s", "struct.get_u", "struct.set":
		ti, err := p.idx(p.typeIdx, "type")
		if err != nil {
			return ast.Instr{}, err
		}
		fi, err := p.fieldIdx(ti)
		if err != nil {
			return ast.Instr{}, err
		}
		var gc uint32
		switch name {
		case "struct.get":
			gc = wasm.GCStructGet
		case "struct.get_s":
			gc = wasm.GCStructGetS
		case "struct.get_u":
			gc = wasm.GCStructGetU
		case "struct.set":
			gc = wasm.GCStructSet
		}
		return ast.Instr{Op: wasm.OpPrefixGC, IsGC: true, GC: gc, X: ti, Y: fi}, nil
	}

	return ast.Instr{}, fmt.Errorf("line %d: unknown instruction %q", op.Line, name)
}

func (p *parser) memImmediates(op *token.Token, code byte, naturalAlign uint32) (ast.Instr, error) {
	instr := ast.Instr{Op: code, X: naturalAlign}
	for {
		t := p.peek()
		if t == nil || t.Kind != token.Word {
			return instr, nil
		}
		switch {
		case strings.HasPrefix(t.Text, "offset="):
			v, err := parseUint(t.Text[len("offset="):])
			if err != nil {
				return ast.Instr{}, fmt.Errorf("line %d: bad offset %q", t.Line, t.Text)
			}
			instr.Y = uint32(v)
			p.pos++
		case strings.HasPrefix(t.Text, "align="):
			v, err := parseUint(t.Text[len("align="):])
			if err != nil || v == 0 || v&(v-1) != 0 {
				return ast.Instr{}, fmt.Errorf("line %d: bad align %q", t.Line, t.Text)
			}
			var log2 uint32
			for v > 1 {
				v >>= 1
				log2++
			}
			instr.X = log2
			p.pos++
		default:
			return instr, nil
		}
	}
}

func (p *parser) localIdx(ctx *funcCtx) (uint32, error) {
	t := p.next()
	if t == nil {
		return 0, fmt.Errorf("unexpected end of input: expected local index")
	}
	if strings.HasPrefix(t.Text, "$") {
		if i, ok := ctx.localNames[t.Text]; ok {
			return i, nil
		}
		return 0, fmt.Errorf("line %d: unknown local %s", t.Line, t.Text)
	}
	if t.Kind != token.Num {
		return 0, fmt.Errorf("line %d: expected local index, got %q", t.Line, t.Text)
	}
	v, err := parseUint(t.Text)
	if err != nil {
		return 0, fmt.Errorf("line %d: bad local index %q", t.Line, t.Text)
	}
	return uint32(v), nil
}

func (p *parser) labelImmediate(ctx *funcCtx) (uint32, error) {
	t := p.next()
	if t == nil {
		return 0, fmt.Errorf("unexpected end of input: expected label")
	}
	if strings.HasPrefix(t.Text, "$") {
		if d, ok := ctx.labelDepth(t.Text); ok {
			return d, nil
		}
		return 0, fmt.Errorf("line %d: unknown label %s", t.Line, t.Text)
	}
	if t.Kind != token.Num {
		return 0, fmt.Errorf("line %d: expected label, got %q", t.Line, t.Text)
	}
	v, err := parseUint(t.Text)
	if err != nil {
		return 0, fmt.Errorf("line %d: bad label %q", t.Line, t.Text)
	}
	return uint32(v), nil
}

// fieldIdx resolves a struct field immediate, numeric or by declared name.
func (p *parser) fieldIdx(typeIdx uint32) (uint32, error) {
	t := p.next()
	if t == nil {
		return 0, fmt.Errorf("unexpected end of input: expected field index")
	}
	if strings.HasPrefix(t.Text, "$") {
		if int(typeIdx) < len(p.mod.Types) {
			for i, f := range p.mod.Types[typeIdx].Fields {
				if f.Name == t.Text {
					return uint32(i), nil
				}
			}
		}
		return 0, fmt.Errorf("line %d: unknown field %s", t.Line, t.Text)
	}
	if t.Kind != token.Num {
		return 0, fmt.Errorf("line %d: expected field index, got %q", t.Line, t.Text)
	}
	v, err := parseUint(t.Text)
	if err != nil {
		return 0, fmt.Errorf("line %d: bad field index %q", t.Line, t.Text)
	}
	return uint32(v), nil
}
