package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the pipeline the error occurred
type Phase string

const (
	PhaseResolve Phase = "resolve" // dialect resolution
	PhaseCompile Phase = "compile" // dialect adapters
	PhaseCache   Phase = "cache"   // compilation cache
	PhaseBind    Phase = "bind"    // export binding
	PhaseExecute Phase = "execute" // script execution
	PhaseAccess  Phase = "access"  // struct field access
)

// Kind categorizes the error
type Kind string

const (
	KindSyntax             Kind = "syntax"
	KindTypeDiagnostic     Kind = "type_diagnostic"
	KindInstantiation      Kind = "instantiation"
	KindBindingNotFound    Kind = "binding_not_found"
	KindAccessorUnresolved Kind = "accessor_unresolved"
	KindCorruptEntry       Kind = "corrupt_entry"
	KindCanceled           Kind = "canceled"
	KindInvalidInput       Kind = "invalid_input"
	KindNotFound           Kind = "not_found"
)

// Error is the structured error type used throughout the pipeline
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Script string // originating script unit, if known
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Script != "" {
		b.WriteString(" in ")
		b.WriteString(e.Script)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Two Errors match when their
// Phase and Kind agree, so callers can test for a taxonomy entry without
// caring about the detail text.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Convenience constructors for the pipeline error taxonomy

// Syntax creates a fatal compile syntax error for one script unit.
func Syntax(script, detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindSyntax,
		Script: script,
		Detail: detail,
		Cause:  cause,
	}
}

// Instantiation creates a module instantiation error.
func Instantiation(script string, cause error) *Error {
	return &Error{
		Phase:  PhaseBind,
		Kind:   KindInstantiation,
		Script: script,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// BindingNotFound reports a call against a name that was never bound.
func BindingNotFound(name string) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindBindingNotFound,
		Detail: fmt.Sprintf("binding %q not found", name),
	}
}

// AccessorUnresolved reports a struct field access whose probe chain
// exhausted without success.
func AccessorUnresolved(field string) *Error {
	return &Error{
		Phase:  PhaseAccess,
		Kind:   KindAccessorUnresolved,
		Detail: fmt.Sprintf("no accessor resolves field %q", field),
	}
}

// CorruptEntry reports an unusable cache entry. Callers treat it as a miss.
func CorruptEntry(detail string) *Error {
	return &Error{
		Phase:  PhaseCache,
		Kind:   KindCorruptEntry,
		Detail: detail,
	}
}

// Canceled reports a pipeline step abandoned because its document went away.
func Canceled(script string, cause error) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindCanceled,
		Script: script,
		Detail: "document discarded",
		Cause:  cause,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Wrap wraps an existing error with phase and kind context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
