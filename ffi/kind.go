package ffi

// Kind is the ABI form of a type.
type Kind uint8

const (
	KindU8 Kind = iota
	KindS8
	KindU16
	KindS16
	KindU32
	KindS32
	KindU64
	KindS64
	KindF32
	KindF64
	KindBool
	KindHandle
	KindRecord
	KindPointer
	KindOwnedSlice
	KindView
)

var kindNames = [...]string{
	KindU8:         "u8",
	KindS8:         "s8",
	KindU16:        "u16",
	KindS16:        "s16",
	KindU32:        "u32",
	KindS32:        "s32",
	KindU64:        "u64",
	KindS64:        "s64",
	KindF32:        "f32",
	KindF64:        "f64",
	KindBool:       "bool",
	KindHandle:     "handle",
	KindRecord:     "record",
	KindPointer:    "pointer",
	KindOwnedSlice: "owned-slice",
	KindView:       "view",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsScalar reports whether the kind is a fixed-width number or bool.
func (k Kind) IsScalar() bool {
	return k <= KindBool
}

// size returns the in-memory size of scalar, handle and pointer kinds.
func (k Kind) size() uint32 {
	switch k {
	case KindU8, KindS8, KindBool:
		return 1
	case KindU16, KindS16:
		return 2
	case KindU32, KindS32, KindF32, KindHandle, KindPointer:
		return 4
	case KindU64, KindS64, KindF64:
		return 8
	case KindOwnedSlice:
		return OutBoxedSliceSize
	case KindView:
		return SliceRefSize
	default:
		return 0
	}
}

// CoreType is a wasm core value type carrying one ABI word.
type CoreType uint8

const (
	CoreI32 CoreType = iota
	CoreI64
	CoreF32
	CoreF64
)

func (c CoreType) String() string {
	switch c {
	case CoreI32:
		return "i32"
	case CoreI64:
		return "i64"
	case CoreF32:
		return "f32"
	case CoreF64:
		return "f64"
	default:
		return "unknown"
	}
}

// core returns the core type a single-word kind travels in.
func (k Kind) core() CoreType {
	switch k {
	case KindU64, KindS64:
		return CoreI64
	case KindF32:
		return CoreF32
	case KindF64:
		return CoreF64
	default:
		return CoreI32
	}
}
