// Package layout computes linear-memory layouts of ABI types.
//
// ABI types are described with WIT types so the layout rules match the
// component model's canonical ABI:
//   - Primitives: size equals alignment (u8=1, u32=4, u64=8, etc.)
//   - Records: fields laid out sequentially with padding for alignment
//   - Tuples: same as records with positional fields
//   - Handles (own/borrow): a u32 index
//   - Lists: (pointer, length) pair in memory, content elsewhere
//
// # Usage
//
//	info := layout.NewCalculator().Calculate(witType)
//	// info.Size, info.Align, info.FieldOffs available
//
// This package is internal to ffi.
package layout
