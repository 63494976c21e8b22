package compiler

import (
	"fmt"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/wippyai/script-runtime/dialect"
	"github.com/wippyai/script-runtime/errors"
	"github.com/wippyai/script-runtime/wasm"
	"github.com/wippyai/script-runtime/wat"
)

// Artifact is the output of a compiler adapter: either translated script
// source or a wasm binary with its decoded export table.
type Artifact interface {
	artifact()
}

// Source is a text artifact, ready to run in the script engine.
type Source struct {
	Text string
}

// Module is a binary artifact. Info summarizes the module's type space and
// export table; the binder reads export names and struct shapes from it
// without re-decoding the binary.
type Module struct {
	Binary []byte
	Info   *wasm.Module
}

func (Source) artifact() {}
func (Module) artifact() {}

// Func is the adapter signature the cache invokes on a miss: a pure function
// from source bytes to an artifact or a structured failure.
type Func func(source []byte) (Artifact, error)

// ForDialect returns the adapter for a dialect. Native script needs no
// translation and passes through verbatim.
func ForDialect(d dialect.Dialect) Func {
	switch d {
	case dialect.TypeScript:
		return TypeScript
	case dialect.WasmText, dialect.WasmBinary:
		return WasmText
	}
	return Native
}

// Native passes script source through unchanged.
func Native(source []byte) (Artifact, error) {
	return Source{Text: string(source)}, nil
}

// TypeScript strips type annotations from TypeScript source, producing plain
// script. Translation is syntactic: mistyped but well-formed programs still
// compile, so type diagnostics never fail a script. Syntax errors do.
func TypeScript(source []byte) (Artifact, error) {
	result := api.Transform(string(source), api.TransformOptions{
		Loader: api.LoaderTS,
		Target: api.ESNext,
	})
	if len(result.Errors) > 0 {
		return nil, errors.Syntax("", formatMessage(result.Errors[0]), nil)
	}
	return Source{Text: string(result.Code)}, nil
}

// WasmText compiles WebAssembly text into a binary module. Input that already
// carries the binary magic number passes through undecoded text compilation
// and is only validated and summarized.
func WasmText(source []byte) (Artifact, error) {
	bin := source
	if !wasm.IsModule(source) {
		compiled, err := wat.Compile(string(source))
		if err != nil {
			return nil, errors.Syntax("", err.Error(), err)
		}
		bin = compiled
	}

	info, err := wasm.Decode(bin)
	if err != nil {
		return nil, errors.Syntax("", err.Error(), err)
	}
	return Module{Binary: bin, Info: info}, nil
}

func formatMessage(m api.Message) string {
	if m.Location == nil {
		return m.Text
	}
	return fmt.Sprintf("%d:%d: %s", m.Location.Line, m.Location.Column, m.Text)
}
