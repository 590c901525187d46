package ffi

import (
	"encoding/binary"
	"reflect"
	"strings"
	"unsafe"

	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/ffi/internal/abi"
)

// seqMode says who ends up owning a sequence buffer being lifted.
type seqMode uint8

const (
	seqBorrow seqMode = iota // caller keeps it; view in place when plain
	seqOwn                   // callee may hand it back; view in place, free unless handed back
	seqTake                  // consumer copies it out and frees it
)

func pathString(path []string) string {
	if len(path) == 0 {
		return "value"
	}
	return strings.Join(path, ".")
}

// isNullArg reports whether argument words hold a null pointer where the
// type requires one to be valid.
func isNullArg(t *Type, words []uint64) bool {
	switch t.Shape {
	case ShapeExclusive, ShapeShared:
		return uint32(words[0]) == 0
	case ShapeView:
		return uint32(words[0]) == 0 && uint32(words[1]) != 0
	case ShapeOwnedSlice:
		return uint32(words[0]) == 0 && (uint32(words[1]) != 0 || uint32(words[2]) != 0)
	default:
		return t.Indirect() && uint32(words[0]) == 0
	}
}

// liftArg converts argument words into the host value at dst. inPlace lets
// a callee view an owned sequence in linear memory instead of copying it to
// the Go heap.
func (f *frame) liftArg(t *Type, words []uint64, dst unsafe.Pointer, inPlace bool, path []string) error {
	if isNullArg(t, words) {
		return errors.ArgIsNull(errors.PhaseLift, pathString(path))
	}

	switch t.Shape {
	case ShapeValue:
		if !t.Indirect() {
			return f.liftWord(t, words[0], dst, path)
		}
		src, err := f.env.span(errors.PhaseLift, path, uint32(words[0]), t.Size, t.Align)
		if err != nil {
			return err
		}
		return f.get(t, src, dst, path)

	case ShapeExclusive, ShapeShared:
		p, err := f.env.hostPointer(errors.PhaseLift, path, uint32(words[0]), t.Elem.Size, t.Elem.Align)
		if err != nil {
			return err
		}
		*(*unsafe.Pointer)(dst) = p
		return nil

	case ShapeView:
		c := sliceRefFromWords(words)
		return f.liftSequence(t, c.Data, c.Len, c.Len, seqBorrow, dst, path)

	case ShapeOwnedSlice:
		c := outBoxedFromWords(words)
		if c.Len > c.Cap {
			return errors.ConversionFailed(errors.PhaseLift, path, "carrier length exceeds capacity")
		}
		mode := seqTake
		if f.callee && inPlace {
			mode = seqOwn
		}
		return f.liftSequence(t, c.Data, c.Len, c.Cap, mode, dst, path)
	}
	return errors.Unsupported(errors.PhaseLift, t.Shape.String())
}

func (f *frame) liftSequence(t *Type, data, n, capacity uint32, mode seqMode, dst unsafe.Pointer, path []string) error {
	elem := t.Elem
	rv := reflect.NewAt(t.Go, dst).Elem()

	if capacity > abi.MaxListLength {
		return errors.Overflow(errors.PhaseLift, path, capacity, "sequence capacity")
	}
	size, ok := abi.SafeMulU32(capacity, elem.Size)
	if !ok {
		return errors.Overflow(errors.PhaseLift, path, capacity, "sequence byte length")
	}
	if data == 0 {
		rv.SetZero()
		return nil
	}

	src, err := f.env.span(errors.PhaseLift, path, data, size, elem.Align)
	if err != nil {
		return err
	}
	if mode != seqBorrow {
		f.own(Allocation{Ptr: data, Size: size, Align: elem.Align})
	}

	if elem.Plain && mode != seqTake {
		s := reflect.SliceAt(elem.Go, unsafe.Pointer(unsafe.SliceData(src)), int(capacity)).Slice(0, int(n))
		rv.Set(s.Convert(t.Go))
		return nil
	}

	s := reflect.MakeSlice(t.Go, int(n), int(n))
	if elem.Plain {
		if n > 0 {
			copy(unsafe.Slice((*byte)(s.UnsafePointer()), n*elem.Size), src)
		}
		rv.Set(s)
		return nil
	}
	elemPath := append(append([]string{}, path...), "[elem]")
	for i := uint32(0); i < n; i++ {
		off := i * elem.Size
		if err := f.get(elem, src[off:off+elem.Size], s.Index(int(i)).Addr().UnsafePointer(), elemPath); err != nil {
			return err
		}
	}
	rv.Set(s)
	return nil
}

// lowerArg converts the host value at src into argument words.
func (f *frame) lowerArg(t *Type, src unsafe.Pointer, path []string) ([]uint64, error) {
	switch t.Shape {
	case ShapeValue:
		if !t.Indirect() {
			w, err := f.lowerWord(t, src, path)
			if err != nil {
				return nil, err
			}
			return []uint64{w}, nil
		}
		addr, err := f.store.alloc(f.env, errors.PhaseLower, t.Size, t.Align)
		if err != nil {
			return nil, err
		}
		dst, err := f.env.span(errors.PhaseLower, path, addr, t.Size, t.Align)
		if err != nil {
			return nil, err
		}
		if err := f.put(t, src, dst, path); err != nil {
			return nil, err
		}
		return []uint64{uint64(addr)}, nil

	case ShapeExclusive, ShapeShared:
		p := *(*unsafe.Pointer)(src)
		if p == nil {
			return []uint64{0}, nil
		}
		addr, ok := f.env.addrOf(p, t.Elem.Size)
		if !ok {
			return nil, errors.ConversionFailed(errors.PhaseLower, path,
				"borrowed referent must live in linear memory; place it first")
		}
		return []uint64{uint64(addr)}, nil

	case ShapeView:
		data, n, err := f.lowerSequence(t, src, false, path)
		if err != nil {
			return nil, err
		}
		return SliceRef{Data: data, Len: n}.Words(), nil

	case ShapeOwnedSlice:
		data, n, err := f.lowerSequence(t, src, true, path)
		if err != nil {
			return nil, err
		}
		return OutBoxedSlice{Data: data, Len: n, Cap: n}.Words(), nil
	}
	return nil, errors.Unsupported(errors.PhaseLower, t.Shape.String())
}

// lowerSequence moves a host sequence into linear memory. Owned buffers
// belong to the receiver once the frame commits; borrowed ones live in the
// store unless the sequence already aliases memory.
func (f *frame) lowerSequence(t *Type, src unsafe.Pointer, owned bool, path []string) (uint32, uint32, error) {
	elem := t.Elem
	rv := reflect.NewAt(t.Go, src).Elem()
	if rv.Len() == 0 {
		return 0, 0, nil
	}
	if rv.Len() > abi.MaxListLength {
		return 0, 0, errors.Overflow(errors.PhaseLower, path, rv.Len(), "sequence length")
	}
	n := uint32(rv.Len())
	size, ok := abi.SafeMulU32(n, elem.Size)
	if !ok {
		return 0, 0, errors.Overflow(errors.PhaseLower, path, n, "sequence byte length")
	}

	if !owned && elem.Plain {
		if addr, ok := f.env.addrOf(rv.UnsafePointer(), size); ok {
			return addr, n, nil
		}
	}

	var ptr uint32
	var err error
	if owned {
		ptr, err = f.alloc(errors.PhaseLower, size, elem.Align)
	} else {
		ptr, err = f.store.alloc(f.env, errors.PhaseLower, size, elem.Align)
	}
	if err != nil {
		return 0, 0, err
	}
	dst, err := f.env.span(errors.PhaseLower, path, ptr, size, elem.Align)
	if err != nil {
		return 0, 0, err
	}
	if err := f.encodeElems(elem, rv, dst, path); err != nil {
		return 0, 0, err
	}
	return ptr, n, nil
}

func (f *frame) encodeElems(elem *Type, rv reflect.Value, dst []byte, path []string) error {
	n := rv.Len()
	if elem.Plain {
		copy(dst, unsafe.Slice((*byte)(rv.UnsafePointer()), uint32(n)*elem.Size))
		return nil
	}
	elemPath := append(append([]string{}, path...), "[elem]")
	for i := 0; i < n; i++ {
		off := uint32(i) * elem.Size
		if err := f.put(elem, rv.Index(i).Addr().UnsafePointer(), dst[off:], elemPath); err != nil {
			return err
		}
	}
	return nil
}

// lowerResult writes the ABI form of a result into dst, a staging buffer of
// t.Size bytes.
func (f *frame) lowerResult(t *Type, src unsafe.Pointer, dst []byte, path []string) error {
	switch t.Shape {
	case ShapeValue:
		return f.put(t, src, dst, path)

	case ShapeExclusive, ShapeShared:
		p := *(*unsafe.Pointer)(src)
		if p == nil {
			return errors.ConversionFailed(errors.PhaseLower, path, "null borrow")
		}
		addr, ok := f.env.addrOf(p, t.Elem.Size)
		if !ok {
			return errors.ConversionFailed(errors.PhaseLower, path,
				"borrowed result does not point into linear memory")
		}
		binary.LittleEndian.PutUint32(dst, addr)
		return nil

	case ShapeView:
		rv := reflect.NewAt(t.Go, src).Elem()
		if rv.Len() == 0 {
			SliceRef{}.put(dst)
			return nil
		}
		n := uint32(rv.Len())
		size, ok := abi.SafeMulU32(n, t.Elem.Size)
		if !ok {
			return errors.Overflow(errors.PhaseLower, path, n, "sequence byte length")
		}
		addr, ok := f.env.addrOf(rv.UnsafePointer(), size)
		if !ok {
			return errors.ConversionFailed(errors.PhaseLower, path,
				"borrowed sequence result must alias linear memory")
		}
		SliceRef{Data: addr, Len: n}.put(dst)
		return nil

	case ShapeOwnedSlice:
		return f.lowerOwnedResult(t, src, dst, path)
	}
	return errors.Unsupported(errors.PhaseLower, t.Shape.String())
}

// lowerOwnedResult hands an owned argument buffer back as-is when the result
// covers it exactly, and copies into a fresh buffer otherwise.
func (f *frame) lowerOwnedResult(t *Type, src unsafe.Pointer, dst []byte, path []string) error {
	elem := t.Elem
	rv := reflect.NewAt(t.Go, src).Elem()
	n, c := rv.Len(), rv.Cap()
	if c > abi.MaxListLength {
		return errors.Overflow(errors.PhaseLower, path, c, "sequence capacity")
	}

	if elem.Plain && c > 0 {
		capSize, ok := abi.SafeMulU32(uint32(c), elem.Size)
		if ok {
			if addr, ok := f.env.addrOf(rv.UnsafePointer(), capSize); ok && f.claim(addr, capSize) {
				OutBoxedSlice{Data: addr, Len: uint32(n), Cap: uint32(c)}.put(dst)
				return nil
			}
		}
	}
	if n == 0 {
		OutBoxedSlice{}.put(dst)
		return nil
	}

	size, ok := abi.SafeMulU32(uint32(n), elem.Size)
	if !ok {
		return errors.Overflow(errors.PhaseLower, path, n, "sequence byte length")
	}
	ptr, err := f.alloc(errors.PhaseLower, size, elem.Align)
	if err != nil {
		return err
	}
	buf, err := f.env.span(errors.PhaseLower, path, ptr, size, elem.Align)
	if err != nil {
		return err
	}
	if err := f.encodeElems(elem, rv, buf, path); err != nil {
		return err
	}
	OutBoxedSlice{Data: ptr, Len: uint32(n), Cap: uint32(n)}.put(dst)
	return nil
}

// readResult reads the value a shim wrote at an out-pointer.
func (f *frame) readResult(t *Type, addr uint32, dst unsafe.Pointer, path []string) error {
	if addr == 0 {
		return errors.ArgIsNull(errors.PhaseLift, pathString(path))
	}
	src, err := f.env.span(errors.PhaseLift, path, addr, t.Size, t.Align)
	if err != nil {
		return err
	}

	switch t.Shape {
	case ShapeValue:
		return f.get(t, src, dst, path)

	case ShapeExclusive, ShapeShared:
		ptr := binary.LittleEndian.Uint32(src)
		if ptr == 0 {
			return errors.ConversionFailed(errors.PhaseLift, path, "null borrow")
		}
		p, err := f.env.hostPointer(errors.PhaseLift, path, ptr, t.Elem.Size, t.Elem.Align)
		if err != nil {
			return err
		}
		*(*unsafe.Pointer)(dst) = p
		return nil

	case ShapeView:
		c := readSliceRef(src)
		if c.Data == 0 && c.Len != 0 {
			return errors.ConversionFailed(errors.PhaseLift, path, "null sequence with non-zero length")
		}
		return f.liftSequence(t, c.Data, c.Len, c.Len, seqBorrow, dst, path)

	case ShapeOwnedSlice:
		c := readOutBoxedSlice(src)
		if c.Len > c.Cap || (c.Data == 0 && c.Cap != 0) {
			return errors.ConversionFailed(errors.PhaseLift, path, "malformed owned carrier")
		}
		return f.liftSequence(t, c.Data, c.Len, c.Cap, seqTake, dst, path)
	}
	return errors.Unsupported(errors.PhaseLift, t.Shape.String())
}
