// Package ffi implements the conversion protocol between Go values and a
// C-style ABI over WebAssembly linear memory, and synthesizes entry points
// (shims) that wrap Go functions and methods.
//
// # Roles
//
// Every host type is classified once, when the first shim using it is
// exported:
//
//	Go type                              Role         ABI form
//	──────────────────────────────────────────────────────────────
//	uint8..uint64, int8..int64, floats   robust       itself
//	bool                                 non-robust   u8, only 0 or 1
//	struct{ _ Transparent; v I }         transparent  A(I), fully unwrapped
//	struct{ _ Robust; v I }              transparent  A(I), fully unwrapped
//	struct{ _ Record; ... }              wrapping     C layout, by pointer
//	struct{ _ Record; _ Robust; ... }    robust       C layout, bulk copied
//	anything else                        opaque       u32 handle
//
// Zero-sized fields never reach the ABI. Go pads a trailing zero-sized
// field, so they must precede the data field of a transparent type:
//
//	type Tagged[P any] struct {
//	    _ ffi.Phantom[P]
//	    _ ffi.Robust
//	    v uint64
//	}
//
// # Containers
//
//	[]T       owned sequence, carrier {data, len, cap}; ownership moves
//	View[T]   borrowed sequence, carrier {data, len}
//	*T        exclusive borrow of a T in linear memory
//	Ref[T]    shared borrow of a T in linear memory
//
// Elements laid out as their ABI form (plain types) are viewed in place;
// other elements are converted one by one.
//
// # Shims
//
// A shim takes each argument's words in order followed by one out-pointer
// per result and returns a Status. Out-pointers are validated before any
// conversion and written only once every result converted, so a failed call
// leaves them untouched. Owned argument buffers belong to the callee: they
// are freed after the call unless handed back in a result.
//
// # Calling side
//
// Converter runs the same protocol for the caller: Lower and Lift for
// argument words, Place to put a value where it can be borrowed, ReadOut and
// ReadOutBoxed for results. A Store owns the temporaries of one call; the nil
// Store is the unit store.
package ffi
