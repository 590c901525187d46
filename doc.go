// Package wasmffi exposes Go functions and methods to WebAssembly guests as
// C-ABI style entry points, with zero-copy passing of transparent wrapper types.
//
// A host type crosses the boundary in one of four roles:
//
//	robust       bit-pattern equivalent to a primitive; passed by value
//	transparent  single non-zero-sized field; passed as its inner field's ABI form
//	wrapping     multi-field record; laid out field by field in linear memory
//	opaque       anything else; passed as a handle into a host table
//
// # Architecture Overview
//
//	wasmffi/            Root package with core Memory and Allocator interfaces
//	├── ffi/            Classification, conversion protocol, carriers and shims
//	├── memory/         wazero memory adapter, host heap, guest allocator
//	├── resource/       Handle table for opaque values
//	├── wasmhost/       Binds an ffi.Library into a wazero host module
//	├── internal/demo/  Library served by the command and examples
//	├── errors/         Structured error types for debugging
//	└── cmd/ffi/        Inspect and invoke a library from the terminal
//
// # Quick Start
//
//	type Meters struct {
//	    _ ffi.Transparent
//	    _ ffi.Robust
//	    v uint64
//	}
//
//	lib := ffi.NewLibrary()
//	if err := lib.Func("double", func(m Meters) Meters { return Meters{v: m.v * 2} }); err != nil {
//	    log.Fatal(err)
//	}
//
//	host, err := wasmhost.Instantiate(ctx, rt, lib)
//
// The guest now imports ffi.__double with core signature (i64, i32) -> i32:
// the argument word, an out-pointer for the result, and a status code.
//
// # Memory Model
//
// Arguments and results referenced by pointer live in the guest's linear
// memory. Borrowed values and owned slices whose host layout equals their ABI
// layout are reinterpreted in place with no copy. Views into linear memory are
// invalidated by memory.grow; host code must not retain them past a call.
package wasmffi
