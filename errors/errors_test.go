package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	err := Syntax("a.ts", "unexpected token", nil)
	got := err.Error()
	for _, want := range []string{"[compile]", "syntax", "a.ts", "unexpected token"} {
		if !strings.Contains(got, want) {
			t.Errorf("error %q missing %q", got, want)
		}
	}
}

func TestErrorFormatCause(t *testing.T) {
	cause := stderrors.New("boom")
	err := Instantiation("mod.wat", cause)
	if !strings.Contains(err.Error(), "caused by: boom") {
		t.Errorf("error %q missing cause", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Error("Unwrap chain lost the cause")
	}
}

func TestIsMatchesPhaseAndKind(t *testing.T) {
	err := BindingNotFound("add")
	if !stderrors.Is(err, &Error{Phase: PhaseExecute, Kind: KindBindingNotFound}) {
		t.Error("expected match on phase+kind")
	}
	if stderrors.Is(err, &Error{Phase: PhaseCompile, Kind: KindBindingNotFound}) {
		t.Error("unexpected match across phases")
	}
}

func TestConstructorTaxonomy(t *testing.T) {
	tests := []struct {
		name  string
		err   *Error
		phase Phase
		kind  Kind
	}{
		{"syntax", Syntax("s", "d", nil), PhaseCompile, KindSyntax},
		{"instantiation", Instantiation("s", nil), PhaseBind, KindInstantiation},
		{"binding_not_found", BindingNotFound("f"), PhaseExecute, KindBindingNotFound},
		{"accessor_unresolved", AccessorUnresolved("val"), PhaseAccess, KindAccessorUnresolved},
		{"corrupt_entry", CorruptEntry("bad"), PhaseCache, KindCorruptEntry},
		{"canceled", Canceled("s", nil), PhaseExecute, KindCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Phase != tt.phase || tt.err.Kind != tt.kind {
				t.Errorf("got %s/%s, want %s/%s", tt.err.Phase, tt.err.Kind, tt.phase, tt.kind)
			}
		})
	}
}
