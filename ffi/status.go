package ffi

import (
	"github.com/wippyai/wasm-ffi/errors"
)

// Status is the 32-bit code every shim returns.
type Status int32

const (
	// Ok means every out-pointer was written exactly once.
	Ok Status = 0
	// ArgIsNull means a required pointer argument was null.
	ArgIsNull Status = -1
	// ConversionFailed means an argument has no host counterpart.
	ConversionFailed Status = -2
	// TrapRepresentation means an argument holds an invalid bit pattern.
	TrapRepresentation Status = -3
	// ExecutionFail means the host operation reported failure.
	ExecutionFail Status = -4
	// Unknown is reserved. Callers treat unrecognized codes as Unknown and fatal.
	Unknown Status = -5
)

// StatusOf maps a raw code to a Status; unrecognized codes become Unknown.
func StatusOf(code int32) Status {
	s := Status(code)
	switch s {
	case Ok, ArgIsNull, ConversionFailed, TrapRepresentation, ExecutionFail:
		return s
	default:
		return Unknown
	}
}

func (s Status) String() string {
	switch s {
	case Ok:
		return "Ok"
	case ArgIsNull:
		return "ArgIsNull"
	case ConversionFailed:
		return "ConversionFailed"
	case TrapRepresentation:
		return "TrapRepresentation"
	case ExecutionFail:
		return "ExecutionFail"
	default:
		return "Unknown"
	}
}

// Word encodes the status as an i32 stack slot.
func (s Status) Word() uint64 {
	return uint64(uint32(int32(s)))
}

// StatusFor maps a conversion or call error to the status a shim reports.
func StatusFor(err error) Status {
	if err == nil {
		return Ok
	}
	switch errors.KindOf(err) {
	case errors.KindArgIsNull:
		return ArgIsNull
	case errors.KindTrapRepresentation:
		return TrapRepresentation
	case errors.KindExecutionFailed:
		return ExecutionFail
	case errors.KindConversionFailed, errors.KindOutOfBounds, errors.KindMisaligned,
		errors.KindOverflow, errors.KindTypeMismatch, errors.KindAllocation,
		errors.KindDoubleFree,
		// the call could not be set up: bad stack, nothing bound, no such symbol
		errors.KindInvalidInput, errors.KindUnsupported, errors.KindNotFound:
		return ConversionFailed
	default:
		return Unknown
	}
}
