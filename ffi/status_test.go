package ffi

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/wippyai/wasm-ffi/errors"
)

func TestStatusOf(t *testing.T) {
	for _, s := range []Status{Ok, ArgIsNull, ConversionFailed, TrapRepresentation, ExecutionFail} {
		if got := StatusOf(int32(s)); got != s {
			t.Errorf("StatusOf(%d) = %s", int32(s), got)
		}
	}
	for _, code := range []int32{1, -5, -6, 1 << 30} {
		if got := StatusOf(code); got != Unknown {
			t.Errorf("StatusOf(%d) = %s, want Unknown", code, got)
		}
	}
}

func TestStatus_Word(t *testing.T) {
	if ArgIsNull.Word() != 0xffffffff {
		t.Errorf("ArgIsNull.Word() = %#x", ArgIsNull.Word())
	}
	if got := StatusOf(int32(uint32(ExecutionFail.Word()))); got != ExecutionFail {
		t.Errorf("round trip = %s", got)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want Status
	}{
		{nil, Ok},
		{errors.ArgIsNull(errors.PhaseCall, "out0"), ArgIsNull},
		{errors.TrapRepresentation(errors.PhaseLift, nil, "bool", 2), TrapRepresentation},
		{errors.ExecutionFailed("__f", stderrors.New("boom")), ExecutionFail},
		{errors.ConversionFailed(errors.PhaseLift, nil, "stale"), ConversionFailed},
		{errors.OutOfBounds(errors.PhaseLift, nil, 1<<20, 8), ConversionFailed},
		{errors.Misaligned(errors.PhaseLift, nil, 3, 8), ConversionFailed},
		{fmt.Errorf("wrapped: %w", errors.ArgIsNull(errors.PhaseCall, "x")), ArgIsNull},
		{errors.InvalidInput(errors.PhaseCall, "short stack"), ConversionFailed},
		{errors.Unsupported(errors.PhaseLift, "no linear memory bound"), ConversionFailed},
		{errors.NotFound(errors.PhaseBind, "module", "mem"), ConversionFailed},
		{errors.AllocationFailed(errors.PhaseAlloc, 8, 8), ConversionFailed},
		{errors.InvalidDeclaration(nil, "T", "two fields"), Unknown},
		{stderrors.New("plain"), Unknown},
	}
	for _, tc := range tests {
		if got := StatusFor(tc.err); got != tc.want {
			t.Errorf("StatusFor(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
