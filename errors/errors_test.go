package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:   PhaseClassify,
				Kind:    KindLayoutMismatch,
				Path:    []string{"Wrapper", "inner"},
				GoType:  "Wrapper",
				ABIType: "u64",
				Detail:  "size 16 != 8",
			},
			contains: []string{"[classify]", "layout_mismatch", "Wrapper.inner", "Go type Wrapper", "ABI type u64", "size 16 != 8"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseLift,
				Kind:  KindTrapRepresentation,
			},
			contains: []string{"[lift]", "trap_representation"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseAlloc,
				Kind:   KindAllocation,
				Detail: "heap exhausted",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[alloc]", "allocation", "heap exhausted", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := ExecutionFailed("__vec_to_vec", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := TrapRepresentation(PhaseLift, []string{"arg0"}, "bool", 7)

	if !errors.Is(err, &Error{Phase: PhaseLift, Kind: KindTrapRepresentation}) {
		t.Error("expected match on phase and kind")
	}
	if errors.Is(err, &Error{Phase: PhaseLower, Kind: KindTrapRepresentation}) {
		t.Error("different phase should not match")
	}
	if errors.Is(err, &Error{Phase: PhaseLift, Kind: KindConversionFailed}) {
		t.Error("different kind should not match")
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseExport, KindUnsupported).
		Path("fn", "arg1").
		GoType("map[string]int").
		ABIType("?").
		Value(3).
		Detail("no ABI form for %s", "maps").
		Build()

	if err.Phase != PhaseExport || err.Kind != KindUnsupported {
		t.Fatalf("unexpected phase/kind: %s/%s", err.Phase, err.Kind)
	}
	if got := strings.Join(err.Path, "."); got != "fn.arg1" {
		t.Errorf("path = %q", got)
	}
	if err.Detail != "no ABI form for maps" {
		t.Errorf("detail = %q", err.Detail)
	}
	if err.Value != 3 {
		t.Errorf("value = %v", err.Value)
	}
}

func TestKindOf(t *testing.T) {
	base := ArgIsNull(PhaseCall, "out0")
	wrapped := fmt.Errorf("calling shim: %w", base)

	if got := KindOf(wrapped); got != KindArgIsNull {
		t.Errorf("KindOf(wrapped) = %q, want %q", got, KindArgIsNull)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
	if got := KindOf(nil); got != "" {
		t.Errorf("KindOf(nil) = %q, want empty", got)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err   *Error
		phase Phase
		kind  Kind
	}{
		{InvalidDeclaration(nil, "T", "x"), PhaseClassify, KindInvalidDeclaration},
		{LayoutMismatch(nil, "T", "u64", "x"), PhaseClassify, KindLayoutMismatch},
		{ConversionFailed(PhaseLift, nil, "bad handle"), PhaseLift, KindConversionFailed},
		{AllocationFailed(PhaseAlloc, 16, 8), PhaseAlloc, KindAllocation},
		{OutOfBounds(PhaseLift, nil, 10, 4), PhaseLift, KindOutOfBounds},
		{Misaligned(PhaseLift, nil, 3, 8), PhaseLift, KindMisaligned},
		{Overflow(PhaseLower, nil, 1<<40, "u32"), PhaseLower, KindOverflow},
		{NotFound(PhaseCall, "symbol", "__x"), PhaseCall, KindNotFound},
		{InvalidInput(PhaseBind, "x"), PhaseBind, KindInvalidInput},
		{Registration(PhaseBind, "ffi", "__x", errors.New("dup")), PhaseBind, KindRegistration},
		{Unsupported(PhaseExport, "chan"), PhaseExport, KindUnsupported},
		{TypeMismatch(PhaseLower, nil, "int", "u8"), PhaseLower, KindTypeMismatch},
		{Wrap(PhaseCall, KindExecutionFailed, errors.New("boom"), "x"), PhaseCall, KindExecutionFailed},
	}

	for _, tt := range tests {
		if tt.err.Phase != tt.phase || tt.err.Kind != tt.kind {
			t.Errorf("%s: got %s/%s, want %s/%s", tt.err, tt.err.Phase, tt.err.Kind, tt.phase, tt.kind)
		}
		if tt.err.Error() == "" {
			t.Errorf("empty message for %s/%s", tt.phase, tt.kind)
		}
	}
}
