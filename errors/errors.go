package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseClassify Phase = "classify" // type classification
	PhaseExport   Phase = "export"   // shim synthesis
	PhaseLower    Phase = "lower"    // host to ABI
	PhaseLift     Phase = "lift"     // ABI to host
	PhaseCall     Phase = "call"     // shim invocation
	PhaseAlloc    Phase = "alloc"    // linear memory allocation
	PhaseBind     Phase = "bind"     // host module binding
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidDeclaration Kind = "invalid_declaration"
	KindLayoutMismatch     Kind = "layout_mismatch"
	KindUnsupported        Kind = "unsupported"
	KindTypeMismatch       Kind = "type_mismatch"
	KindArgIsNull          Kind = "arg_is_null"
	KindConversionFailed   Kind = "conversion_failed"
	KindTrapRepresentation Kind = "trap_representation"
	KindExecutionFailed    Kind = "execution_failed"
	KindOutOfBounds        Kind = "out_of_bounds"
	KindMisaligned         Kind = "misaligned"
	KindAllocation         Kind = "allocation"
	KindDoubleFree         Kind = "double_free"
	KindOverflow           Kind = "overflow"
	KindNotFound           Kind = "not_found"
	KindInvalidInput       Kind = "invalid_input"
	KindRegistration       Kind = "registration"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	GoType  string
	ABIType string
	Detail  string
	Path    []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.ABIType != "" {
		b.WriteString(": ")
		switch {
		case e.GoType != "" && e.ABIType != "":
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", ABI type ")
			b.WriteString(e.ABIType)
		case e.GoType != "":
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		default:
			b.WriteString("ABI type ")
			b.WriteString(e.ABIType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.ABIType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
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

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// ABIType sets the ABI type name
func (b *Builder) ABIType(t string) *Builder {
	b.err.ABIType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidDeclaration reports a role declaration the type's shape contradicts
func InvalidDeclaration(path []string, goType, detail string) *Error {
	return &Error{
		Phase:  PhaseClassify,
		Kind:   KindInvalidDeclaration,
		Path:   path,
		GoType: goType,
		Detail: detail,
	}
}

// LayoutMismatch reports a wrapper whose layout differs from its inner field
func LayoutMismatch(path []string, goType, abiType, detail string) *Error {
	return &Error{
		Phase:   PhaseClassify,
		Kind:    KindLayoutMismatch,
		Path:    path,
		GoType:  goType,
		ABIType: abiType,
		Detail:  detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, abiType string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindTypeMismatch,
		Path:    path,
		GoType:  goType,
		ABIType: abiType,
	}
}

// ArgIsNull reports a required pointer argument that was null
func ArgIsNull(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindArgIsNull,
		Path:   []string{what},
		Detail: "null pointer",
	}
}

// ConversionFailed reports an ABI value with no host counterpart
func ConversionFailed(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindConversionFailed,
		Path:   path,
		Detail: detail,
	}
}

// TrapRepresentation reports a bit pattern that is not a valid host value
func TrapRepresentation(phase Phase, path []string, abiType string, bits uint64) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindTrapRepresentation,
		Path:    path,
		ABIType: abiType,
		Detail:  fmt.Sprintf("invalid bit pattern %#x", bits),
		Value:   bits,
	}
}

// ExecutionFailed wraps an error reported by a host operation
func ExecutionFailed(symbol string, cause error) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindExecutionFailed,
		Detail: symbol,
		Cause:  cause,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// OutOfBounds creates an out of bounds error for a linear memory range
func OutOfBounds(phase Phase, path []string, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("range [%d, +%d) outside linear memory", offset, length),
		Value:  offset,
	}
}

// Misaligned reports a pointer that violates the referent's alignment
func Misaligned(phase Phase, path []string, addr, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMisaligned,
		Path:   path,
		Detail: fmt.Sprintf("address %#x not aligned to %d", addr, align),
		Value:  addr,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, target string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindOverflow,
		Path:    path,
		ABIType: target,
		Detail:  fmt.Sprintf("value %v overflows %s", value, target),
		Value:   value,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
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

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a registration error
func Registration(phase Phase, module, name string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s.%s", module, name),
		Cause:  cause,
	}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
