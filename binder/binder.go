package binder

import (
	"context"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	scriptruntime "github.com/wippyai/script-runtime"
	"github.com/wippyai/script-runtime/errors"
	"github.com/wippyai/script-runtime/wasm"
)

// Binder owns one document's shared global scope. Script artifacts execute
// directly in it; module artifacts have their exports installed into it by
// name. Binding is not safe for concurrent use; the pipeline serializes it in
// document order.
type Binder struct {
	vm      *goja.Runtime
	log     *zap.Logger
	bridge  *bridge
	callCtx context.Context
	bound   []string
}

// New creates a binder with a fresh global scope. The context bounds wasm
// calls made from script code.
func New(ctx context.Context, log *zap.Logger) *Binder {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Binder{
		vm:      goja.New(),
		log:     log,
		bridge:  newBridge(),
		callCtx: ctx,
	}
	installConsole(b.vm, log)
	return b
}

// Runtime exposes the underlying scope for the host shell.
func (b *Binder) Runtime() *goja.Runtime { return b.vm }

// SetContext replaces the context used for wasm calls triggered by script
// execution.
func (b *Binder) SetContext(ctx context.Context) { b.callCtx = ctx }

// BindSource executes translated script source in the global scope. Top-level
// declarations become bindings visible to every later unit.
func (b *Binder) BindSource(script, text string) error {
	if _, err := b.vm.RunScript(script, text); err != nil {
		return &errors.Error{
			Phase:  errors.PhaseExecute,
			Kind:   errors.KindInvalidInput,
			Script: script,
			Detail: "script threw",
			Cause:  err,
		}
	}
	return nil
}

// BindModule walks the module's export table in order and installs each
// export into the global scope, silently overwriting prior bindings of the
// same name. Functions whose single result is a concrete struct reference
// return bridge-wrapped values.
func (b *Binder) BindModule(script string, inst scriptruntime.ModuleInstance, info *wasm.Module) error {
	for _, exp := range info.Exports {
		switch exp.Kind {
		case wasm.KindFunc:
			b.bindFunction(script, inst, info, exp.Name)
		case wasm.KindGlobal:
			if v, ok := inst.Global(exp.Name); ok {
				b.vm.Set(exp.Name, v)
				b.bound = append(b.bound, exp.Name)
			}
		default:
			// Memories and tables have no scriptable surface here.
			b.log.Debug("skipping non-scriptable export",
				zap.String("script", script),
				zap.String("export", exp.Name))
		}
	}
	return nil
}

func (b *Binder) bindFunction(script string, inst scriptruntime.ModuleInstance, info *wasm.Module, name string) {
	fn := inst.Function(name)
	if fn == nil {
		return
	}
	structIdx, wrapsStruct := info.StructResult(name)

	b.vm.Set(name, func(call goja.FunctionCall) goja.Value {
		args := make([]any, len(call.Arguments))
		for i, a := range call.Arguments {
			args[i] = unwrapArg(a)
		}
		res, err := fn.Call(b.callCtx, args...)
		if err != nil {
			panic(b.vm.NewGoError(err))
		}
		if wrapsStruct && res != nil {
			return b.wrapStruct(inst, structIdx, res)
		}
		return b.vm.ToValue(res)
	})
	b.bound = append(b.bound, name)

	b.log.Debug("export bound",
		zap.String("script", script),
		zap.String("name", name))
}

// unwrapArg recovers the raw handle from a bridge-wrapped struct value so it
// can flow back into module calls; everything else exports normally.
func unwrapArg(v goja.Value) any {
	if obj, ok := v.(*goja.Object); ok {
		if sv, ok := obj.Export().(*structValue); ok {
			return sv.handle
		}
	}
	return v.Export()
}

// Lookup resolves a bound name in the global scope.
func (b *Binder) Lookup(name string) (goja.Value, error) {
	v := b.vm.GlobalObject().Get(name)
	if v == nil || goja.IsUndefined(v) {
		return nil, errors.BindingNotFound(name)
	}
	return v, nil
}

// BoundNames returns the module export names installed so far, in binding
// order, duplicates included.
func (b *Binder) BoundNames() []string {
	out := make([]string, len(b.bound))
	copy(out, b.bound)
	return out
}
