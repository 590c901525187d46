package ffi

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"unsafe"

	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/ffi/internal/abi"
	"github.com/wippyai/wasm-ffi/resource"
)

// region is an owned argument buffer the callee received.
type region struct {
	Allocation
	transferred bool
}

// frame is the state of one conversion: the buffers and handles it touched,
// so it can commit them or unwind them as a unit.
type frame struct {
	env     Env
	handles *resource.Table
	store   *Store
	owned   []region
	pending []Allocation
	minted  []resource.Handle
	pinned  []resource.Handle
	callee  bool
}

// alloc reserves a buffer that is released if the frame fails.
func (f *frame) alloc(phase errors.Phase, size, align uint32) (uint32, error) {
	ptr, err := f.env.alloc(phase, size, align)
	if err != nil {
		return 0, err
	}
	f.pending = append(f.pending, Allocation{Ptr: ptr, Size: size, Align: align})
	return ptr, nil
}

// finish commits or unwinds the frame. Pins are always returned.
func (f *frame) finish(failed bool) {
	for _, h := range f.pinned {
		f.handles.ReturnBorrow(h)
	}
	f.pinned = f.pinned[:0]

	if failed {
		for _, a := range f.pending {
			f.env.free(a.Ptr, a.Size, a.Align)
		}
		for _, h := range f.minted {
			f.handles.Remove(h)
		}
	}
	for _, r := range f.owned {
		if failed || !r.transferred {
			f.env.free(r.Ptr, r.Size, r.Align)
		}
	}
	f.pending, f.minted, f.owned = nil, nil, nil
}

// own records an owned buffer the frame must release unless it is handed
// back out. Recording the same buffer twice is a no-op.
func (f *frame) own(a Allocation) {
	for _, r := range f.owned {
		if r.Ptr == a.Ptr {
			return
		}
	}
	f.owned = append(f.owned, region{Allocation: a})
}

// adopt takes ownership of every well-formed owned carrier among the
// argument words, so that a call failing before it lifts them still
// releases them.
func (f *frame) adopt(params []*Type, stack []uint64) {
	off := 0
	for _, p := range params {
		w := p.Words()
		if p.Shape == ShapeOwnedSlice {
			c := outBoxedFromWords(stack[off : off+w])
			size, ok := abi.SafeMulU32(c.Cap, p.Elem.Size)
			if c.Data != 0 && ok && c.Len <= c.Cap {
				if _, err := f.env.span(errors.PhaseCall, nil, c.Data, size, p.Elem.Align); err == nil {
					f.own(Allocation{Ptr: c.Data, Size: size, Align: p.Elem.Align})
				}
			}
		}
		off += w
	}
}

// claim marks the owned region starting at addr as handed back out, when
// the result covers it exactly.
func (f *frame) claim(addr, size uint32) bool {
	for i := range f.owned {
		r := &f.owned[i]
		if r.Ptr == addr && r.Size == size && !r.transferred {
			r.transferred = true
			return true
		}
	}
	return false
}

// put writes the ABI bytes of the value at src into dst.
func (f *frame) put(t *Type, src unsafe.Pointer, dst []byte, path []string) error {
	switch t.Kind {
	case KindU8, KindS8:
		dst[0] = *(*uint8)(src)
	case KindBool:
		if *(*bool)(src) {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	case KindU16, KindS16:
		binary.LittleEndian.PutUint16(dst, *(*uint16)(src))
	case KindU32, KindS32, KindF32:
		binary.LittleEndian.PutUint32(dst, *(*uint32)(src))
	case KindU64, KindS64, KindF64:
		binary.LittleEndian.PutUint64(dst, *(*uint64)(src))
	case KindHandle:
		h, err := f.exportHandle(t, src, path)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(dst, h)
	case KindRecord:
		if t.Plain {
			copy(dst[:t.Size], unsafe.Slice((*byte)(src), t.Size))
			return nil
		}
		for _, field := range t.Fields {
			fieldPath := append(append([]string{}, path...), field.Name)
			if err := f.put(field.Type, unsafe.Add(src, field.GoOffset), dst[field.ABIOffset:], fieldPath); err != nil {
				return err
			}
		}
	default:
		return errors.New(errors.PhaseLower, errors.KindUnsupported).
			Path(path...).
			Detail("%s has no inline form", t).
			Build()
	}
	return nil
}

// get reads the ABI bytes in src into the host value at dst. Zero-sized
// fields of dst are left as they are.
func (f *frame) get(t *Type, src []byte, dst unsafe.Pointer, path []string) error {
	switch t.Kind {
	case KindU8, KindS8:
		*(*uint8)(dst) = src[0]
	case KindBool:
		b := src[0]
		if b > 1 {
			return errors.TrapRepresentation(errors.PhaseLift, path, "bool", uint64(b))
		}
		*(*bool)(dst) = b == 1
	case KindU16, KindS16:
		*(*uint16)(dst) = binary.LittleEndian.Uint16(src)
	case KindU32, KindS32, KindF32:
		*(*uint32)(dst) = binary.LittleEndian.Uint32(src)
	case KindU64, KindS64, KindF64:
		*(*uint64)(dst) = binary.LittleEndian.Uint64(src)
	case KindHandle:
		return f.importHandle(t, binary.LittleEndian.Uint32(src), dst, path)
	case KindRecord:
		if t.Plain {
			copy(unsafe.Slice((*byte)(dst), t.Size), src[:t.Size])
			return nil
		}
		for _, field := range t.Fields {
			fieldPath := append(append([]string{}, path...), field.Name)
			if err := f.get(field.Type, src[field.ABIOffset:], unsafe.Add(dst, field.GoOffset), fieldPath); err != nil {
				return err
			}
		}
	default:
		return errors.New(errors.PhaseLift, errors.KindUnsupported).
			Path(path...).
			Detail("%s has no inline form", t).
			Build()
	}
	return nil
}

// lowerWord encodes a single-word value. Narrow signed integers are sign
// extended to i32.
func (f *frame) lowerWord(t *Type, src unsafe.Pointer, path []string) (uint64, error) {
	switch t.Kind {
	case KindU8:
		return uint64(*(*uint8)(src)), nil
	case KindS8:
		return uint64(uint32(int32(*(*int8)(src)))), nil
	case KindBool:
		if *(*bool)(src) {
			return 1, nil
		}
		return 0, nil
	case KindU16:
		return uint64(*(*uint16)(src)), nil
	case KindS16:
		return uint64(uint32(int32(*(*int16)(src)))), nil
	case KindU32, KindS32, KindF32:
		return uint64(*(*uint32)(src)), nil
	case KindU64, KindS64, KindF64:
		return *(*uint64)(src), nil
	case KindHandle:
		h, err := f.exportHandle(t, src, path)
		return uint64(h), err
	default:
		return 0, errors.New(errors.PhaseLower, errors.KindUnsupported).
			Path(path...).
			Detail("%s does not fit a word", t).
			Build()
	}
}

// liftWord decodes a single-word value.
func (f *frame) liftWord(t *Type, w uint64, dst unsafe.Pointer, path []string) error {
	switch t.Kind {
	case KindU8, KindS8:
		*(*uint8)(dst) = uint8(w)
	case KindBool:
		b := uint32(w)
		if b > 1 {
			return errors.TrapRepresentation(errors.PhaseLift, path, "bool", uint64(b))
		}
		*(*bool)(dst) = b == 1
	case KindU16, KindS16:
		*(*uint16)(dst) = uint16(w)
	case KindU32, KindS32, KindF32:
		*(*uint32)(dst) = uint32(w)
	case KindU64, KindS64, KindF64:
		*(*uint64)(dst) = w
	case KindHandle:
		return f.importHandle(t, uint32(w), dst, path)
	default:
		return errors.New(errors.PhaseLift, errors.KindUnsupported).
			Path(path...).
			Detail("%s does not fit a word", t).
			Build()
	}
	return nil
}

func (f *frame) exportHandle(t *Type, src unsafe.Pointer, path []string) (uint32, error) {
	if f.handles == nil {
		return 0, errors.Unsupported(errors.PhaseLower, "no handle table for opaque "+t.Name)
	}
	v := reflect.NewAt(t.Go, src).Elem().Interface()
	h := f.handles.Insert(t.typeID, v)
	if h == 0 {
		return 0, errors.ConversionFailed(errors.PhaseLower, path, "handle table is closed")
	}
	f.minted = append(f.minted, h)
	return uint32(h), nil
}

// importHandle resolves a handle to its value. A callee pins the handle
// until the frame finishes so it cannot be dropped mid-call.
func (f *frame) importHandle(t *Type, raw uint32, dst unsafe.Pointer, path []string) error {
	if f.handles == nil {
		return errors.Unsupported(errors.PhaseLift, "no handle table for opaque "+t.Name)
	}
	if raw == 0 {
		return errors.ConversionFailed(errors.PhaseLift, path, "null handle")
	}
	h := resource.Handle(raw)
	v, ok := f.handles.GetTyped(h, t.typeID)
	if !ok {
		return errors.ConversionFailed(errors.PhaseLift, path,
			fmt.Sprintf("handle %d does not name a live %s", raw, t.Name))
	}
	if f.callee {
		if !f.handles.Borrow(h) {
			return errors.ConversionFailed(errors.PhaseLift, path,
				fmt.Sprintf("handle %d was dropped", raw))
		}
		f.pinned = append(f.pinned, h)
	}

	rv := reflect.NewAt(t.Go, dst).Elem()
	if v == nil {
		rv.SetZero()
		return nil
	}
	rv.Set(reflect.ValueOf(v))
	return nil
}
