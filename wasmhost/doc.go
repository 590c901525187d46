// Package wasmhost exposes an ffi.Library to wasm guests as a wazero host
// module.
//
// Every shim becomes a host function with its core signature: one i32, i64,
// f32 or f64 parameter per argument word, one i32 per out-pointer, and a
// single i32 status result.
//
//	lib := ffi.NewLibrary()
//	_ = lib.Func("SelfToSelf", func(v T) T { return v })
//
//	host, err := wasmhost.Instantiate(ctx, rt, lib)
//	// guests import "ffi" "__self_to_self" (i64 i32) -> i32
//
// Each call resolves the linear memory and allocator it runs against:
//
//   - memory: the calling module's memory, or the memory of the module
//     named by WithMemoryFrom
//   - allocator: WithAllocator, else the caller's cabi_realloc export;
//     without either, calls that must allocate fail with ConversionFailed
package wasmhost
