package main

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wippyai/wasm-ffi/ffi"
)

// encodeScalar parses s as a value of t and returns its ABI bytes.
func encodeScalar(t *ffi.Type, s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	b := make([]byte, t.Size)
	switch t.Kind {
	case ffi.KindBool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, err
		}
		if v {
			b[0] = 1
		}
	case ffi.KindU8, ffi.KindU16, ffi.KindU32, ffi.KindU64, ffi.KindHandle:
		v, err := strconv.ParseUint(s, 0, int(t.Size)*8)
		if err != nil {
			return nil, err
		}
		putUint(b, v)
	case ffi.KindS8, ffi.KindS16, ffi.KindS32, ffi.KindS64:
		v, err := strconv.ParseInt(s, 0, int(t.Size)*8)
		if err != nil {
			return nil, err
		}
		putUint(b, uint64(v))
	case ffi.KindF32:
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	case ffi.KindF64:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	default:
		return nil, fmt.Errorf("%s values cannot be written on the command line", t)
	}
	return b, nil
}

func putUint(b []byte, v uint64) {
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
}

// word returns the stack word holding the single-word value b.
func word(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// formatScalar renders the ABI bytes of a value of t.
func formatScalar(t *ffi.Type, b []byte) string {
	switch t.Kind {
	case ffi.KindBool:
		switch b[0] {
		case 0:
			return "false"
		case 1:
			return "true"
		default:
			return fmt.Sprintf("invalid bool %#x", b[0])
		}
	case ffi.KindU8, ffi.KindU16, ffi.KindU32, ffi.KindU64:
		return strconv.FormatUint(word(b), 10)
	case ffi.KindHandle:
		return "handle " + strconv.FormatUint(word(b), 10)
	case ffi.KindS8:
		return strconv.FormatInt(int64(int8(b[0])), 10)
	case ffi.KindS16:
		return strconv.FormatInt(int64(int16(binary.LittleEndian.Uint16(b))), 10)
	case ffi.KindS32:
		return strconv.FormatInt(int64(int32(binary.LittleEndian.Uint32(b))), 10)
	case ffi.KindS64:
		return strconv.FormatInt(int64(binary.LittleEndian.Uint64(b)), 10)
	case ffi.KindF32:
		return strconv.FormatFloat(float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), 'g', -1, 32)
	case ffi.KindF64:
		return strconv.FormatFloat(math.Float64frombits(binary.LittleEndian.Uint64(b)), 'g', -1, 64)
	default:
		return t.String() + "{" + hex.EncodeToString(b) + "}"
	}
}

// formatElems renders n consecutive elements of t.
func formatElems(t *ffi.Type, b []byte, n uint32) string {
	parts := make([]string, n)
	for i := uint32(0); i < n; i++ {
		off := i * t.Size
		parts[i] = formatScalar(t, b[off:off+t.Size])
	}
	return "[" + strings.Join(parts, " ") + "]"
}
