package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	scriptruntime "github.com/wippyai/script-runtime"
	"github.com/wippyai/script-runtime/errors"
)

// Config holds configuration for engine creation.
type Config struct {
	// MemoryLimitPages caps linear memory per instance in 64KB pages.
	// 0 means the wazero default.
	MemoryLimitPages uint32
}

// Engine executes wasm modules. One Engine may serve many documents; the
// compiled-module cache inside the runtime is shared.
type Engine struct {
	runtime wazero.Runtime
}

// New creates an engine with default configuration.
func New(ctx context.Context) (*Engine, error) {
	return NewWithConfig(ctx, nil)
}

// NewWithConfig creates an engine with custom configuration.
func NewWithConfig(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	return &Engine{runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg)}, nil
}

// Instantiate compiles and instantiates a wasm binary. The name labels the
// instance in errors and logs; instances are anonymous inside the runtime so
// the same module may be instantiated repeatedly.
func (e *Engine) Instantiate(ctx context.Context, binary []byte, name string) (scriptruntime.ModuleInstance, error) {
	compiled, err := e.runtime.CompileModule(ctx, binary)
	if err != nil {
		return nil, errors.Instantiation(name, fmt.Errorf("compile module: %w", err))
	}

	mod, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		compiled.Close(ctx)
		return nil, errors.Instantiation(name, err)
	}

	Logger().Debug("module instantiated",
		zap.String("script", name),
		zap.Int("size", len(binary)))
	return &instance{mod: mod, compiled: compiled, name: name}, nil
}

func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// instance adapts a wazero module to the runtime's ModuleInstance surface.
// It is not safe for concurrent calls; the binder serializes access.
type instance struct {
	mod      api.Module
	compiled wazero.CompiledModule
	name     string
}

func (i *instance) ExportNames() []string {
	defs := i.mod.ExportedFunctionDefinitions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	return names
}

func (i *instance) Function(name string) scriptruntime.ExportedFunction {
	fn := i.mod.ExportedFunction(name)
	if fn == nil {
		return nil
	}
	return &exportedFunction{fn: fn, script: i.name, name: name}
}

func (i *instance) Global(name string) (any, bool) {
	g := i.mod.ExportedGlobal(name)
	if g == nil {
		return nil, false
	}
	return decodeValue(g.Type(), g.Get()), true
}

func (i *instance) Close(ctx context.Context) error {
	var firstErr error
	if i.mod != nil {
		if err := i.mod.Close(ctx); err != nil {
			firstErr = err
		}
		i.mod = nil
	}
	if i.compiled != nil {
		if err := i.compiled.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		i.compiled = nil
	}
	return firstErr
}

type exportedFunction struct {
	fn     api.Function
	script string
	name   string
}

// Call invokes the function, coercing Go arguments to the wasm signature and
// decoding results back. One result returns the value itself; several return
// a slice.
func (f *exportedFunction) Call(ctx context.Context, args ...any) (any, error) {
	def := f.fn.Definition()
	paramTypes := def.ParamTypes()
	if len(args) != len(paramTypes) {
		return nil, errors.InvalidInput(errors.PhaseExecute,
			fmt.Sprintf("%s: %d arguments for %d parameters", f.name, len(args), len(paramTypes)))
	}

	stack := make([]uint64, len(args))
	for n, arg := range args {
		v, err := encodeValue(paramTypes[n], arg)
		if err != nil {
			return nil, errors.InvalidInput(errors.PhaseExecute,
				fmt.Sprintf("%s: argument %d: %v", f.name, n, err))
		}
		stack[n] = v
	}

	results, err := f.fn.Call(ctx, stack...)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseExecute, errors.KindInvalidInput, err, f.name)
	}

	resultTypes := def.ResultTypes()
	switch len(resultTypes) {
	case 0:
		return nil, nil
	case 1:
		return decodeValue(resultTypes[0], results[0]), nil
	}
	out := make([]any, len(resultTypes))
	for n, rt := range resultTypes {
		out[n] = decodeValue(rt, results[n])
	}
	return out, nil
}

// encodeValue coerces a Go value onto the wasm stack representation. Integer
// parameters accept any numeric argument; a float argument truncates.
func encodeValue(vt api.ValueType, arg any) (uint64, error) {
	switch vt {
	case api.ValueTypeI32:
		i, ok := toInt(arg)
		if !ok {
			return 0, fmt.Errorf("cannot pass %T as i32", arg)
		}
		return api.EncodeI32(int32(i)), nil
	case api.ValueTypeI64:
		i, ok := toInt(arg)
		if !ok {
			return 0, fmt.Errorf("cannot pass %T as i64", arg)
		}
		return api.EncodeI64(i), nil
	case api.ValueTypeF32:
		f, ok := toFloat(arg)
		if !ok {
			return 0, fmt.Errorf("cannot pass %T as f32", arg)
		}
		return api.EncodeF32(float32(f)), nil
	case api.ValueTypeF64:
		f, ok := toFloat(arg)
		if !ok {
			return 0, fmt.Errorf("cannot pass %T as f64", arg)
		}
		return api.EncodeF64(f), nil
	}
	return 0, fmt.Errorf("unsupported parameter type %s", api.ValueTypeName(vt))
}

func toInt(arg any) (int64, bool) {
	switch v := arg.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float32:
		return int64(v), true
	case float64:
		return int64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case nil:
		return 0, true
	}
	return 0, false
}

func toFloat(arg any) (float64, bool) {
	switch v := arg.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	i, ok := toInt(arg)
	return float64(i), ok
}

func decodeValue(vt api.ValueType, raw uint64) any {
	switch vt {
	case api.ValueTypeI32:
		return int64(api.DecodeI32(raw))
	case api.ValueTypeI64:
		return int64(raw)
	case api.ValueTypeF32:
		return float64(api.DecodeF32(raw))
	case api.ValueTypeF64:
		return api.DecodeF64(raw)
	}
	return raw
}
