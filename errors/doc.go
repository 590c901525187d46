// Package errors provides structured error types for the wasm-ffi library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the Go type, the ABI type, a field path and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseClassify, errors.KindLayoutMismatch).
//		Path("TransparentStruct", "payload").
//		GoType("TransparentStruct").
//		ABIType("u64").
//		Detail("size 16 != inner size 8").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TrapRepresentation(errors.PhaseLift, path, "bool", 7)
//	err := errors.ArgIsNull(errors.PhaseCall, "out0")
//
// All errors implement the standard error interface and support errors.Is/As.
// Is matches on Phase and Kind only.
package errors
