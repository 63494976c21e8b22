package scriptruntime

import "context"

// ExportedFunction is a callable export of an instantiated module.
type ExportedFunction interface {
	// Call invokes the function. Arguments and results are Go values
	// (int32/int64/float32/float64 for numeric types, opaque handles for
	// references); the implementation coerces them against the function's
	// declared signature.
	Call(ctx context.Context, args ...any) (any, error)
}

// ModuleInstance is the call surface of one instantiated wasm module. The
// export binder consumes it to publish exports into a document's global
// scope; the struct accessor bridge consumes it to probe for accessor
// functions.
type ModuleInstance interface {
	// ExportNames returns every exported name, in export-section order.
	ExportNames() []string

	// Function returns the exported function with the given name, or nil
	// if the name is absent or not a function.
	Function(name string) ExportedFunction

	// Global returns the current value of an exported global, or false if
	// the name is absent or not a global.
	Global(name string) (any, bool)

	// Close releases the instance.
	Close(ctx context.Context) error
}
