package ffi

import (
	"reflect"
	"strconv"
	"unsafe"

	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/ffi/internal/abi"
	"github.com/wippyai/wasm-ffi/resource"
)

// Converter runs the conversion protocol from the calling side of a shim:
// it prepares argument words and reads results back from out-pointers.
type Converter struct {
	handles *resource.Table
	types   *Classifier
	env     Env
}

// NewConverter creates a converter over env using the shared classifier.
// handles must be the table of the library being called when opaque values
// cross.
func NewConverter(env Env, handles *resource.Table) *Converter {
	return &Converter{
		env:     env,
		handles: handles,
		types:   defaultClassifier,
	}
}

// Env returns the environment the converter works in.
func (c *Converter) Env() Env {
	return c.env
}

func (c *Converter) frame(store *Store) *frame {
	return &frame{
		env:     c.env,
		handles: c.handles,
		store:   store,
	}
}

func typeFor[T any](c *Converter) (*Type, error) {
	return c.types.Classify(reflect.TypeFor[T]())
}

// Lower converts v into its argument words. Robust and transparent values
// never touch the store; indirect records and borrowed views that do not
// already live in linear memory are placed in it. Owned sequences are
// copied into a fresh buffer that the callee takes over.
func Lower[T any](c *Converter, v T, store *Store) (words []uint64, err error) {
	t, err := typeFor[T](c)
	if err != nil {
		return nil, err
	}
	f := c.frame(store)
	defer func() { f.finish(err != nil) }()
	return f.lowerArg(t, unsafe.Pointer(&v), nil)
}

// Lift converts argument words back into a host value, validating
// non-robust bit patterns. Owned sequences are copied out and their buffer
// released through the converter's allocator.
func Lift[T any](c *Converter, words []uint64, store *Store) (T, error) {
	var v T
	t, err := typeFor[T](c)
	if err != nil {
		return v, err
	}
	if len(words) < t.Words() {
		return v, errors.InvalidInput(errors.PhaseLift, "need "+strconv.Itoa(t.Words())+" words for "+t.String())
	}
	f := c.frame(store)
	err = f.liftArg(t, words, unsafe.Pointer(&v), false, nil)
	f.finish(err != nil)
	if err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// LowerRef converts a borrow into its pointer word. The referent must live
// in linear memory for the duration of the call; see Place.
func LowerRef[T any](c *Converter, p *T, store *Store) (uint64, error) {
	words, err := Lower[*T](c, p, store)
	if err != nil {
		return 0, err
	}
	return words[0], nil
}

// LowerShared converts a shared borrow into its pointer word.
func LowerShared[T any](c *Converter, r Ref[T], store *Store) (uint64, error) {
	words, err := Lower[Ref[T]](c, r, store)
	if err != nil {
		return 0, err
	}
	return words[0], nil
}

// LiftRef turns a pointer word into a borrow of linear memory.
func LiftRef[T any](c *Converter, addr uint32) (*T, error) {
	return Lift[*T](c, []uint64{uint64(addr)}, nil)
}

// Place copies v into a store-owned slot of linear memory and returns its
// address and a pointer aliasing it. Only types laid out as their ABI form
// can be placed.
func Place[T any](c *Converter, v T, store *Store) (uint32, *T, error) {
	t, err := typeFor[T](c)
	if err != nil {
		return 0, nil, err
	}
	if t.Shape != ShapeValue || !t.Plain {
		return 0, nil, errors.Unsupported(errors.PhaseLower, "cannot place "+t.String()+" in linear memory")
	}
	addr, err := store.alloc(c.env, errors.PhaseLower, t.Size, t.Align)
	if err != nil {
		return 0, nil, err
	}
	p, err := c.env.hostPointer(errors.PhaseLower, nil, addr, t.Size, t.Align)
	if err != nil {
		return 0, nil, err
	}
	dst := (*T)(p)
	*dst = v
	return addr, dst, nil
}

// PlaceView copies items into store-owned linear memory and returns a view
// aliasing the copy together with its carrier.
func PlaceView[T any](c *Converter, items []T, store *Store) (View[T], SliceRef, error) {
	t, err := typeFor[T](c)
	if err != nil {
		return nil, SliceRef{}, err
	}
	if t.Shape != ShapeValue || !t.Plain {
		return nil, SliceRef{}, errors.Unsupported(errors.PhaseLower, "cannot place "+t.String()+" in linear memory")
	}
	if len(items) == 0 {
		return View[T]{}, SliceRef{}, nil
	}
	if len(items) > abi.MaxListLength {
		return nil, SliceRef{}, errors.Overflow(errors.PhaseLower, nil, len(items), "sequence length")
	}
	size, ok := abi.SafeMulU32(uint32(len(items)), t.Size)
	if !ok {
		return nil, SliceRef{}, errors.Overflow(errors.PhaseLower, nil, len(items), "sequence byte length")
	}
	addr, err := store.alloc(c.env, errors.PhaseLower, size, t.Align)
	if err != nil {
		return nil, SliceRef{}, err
	}
	p, err := c.env.hostPointer(errors.PhaseLower, nil, addr, size, t.Align)
	if err != nil {
		return nil, SliceRef{}, err
	}
	view := View[T](unsafe.Slice((*T)(p), len(items)))
	copy(view, items)
	return view, SliceRef{Data: addr, Len: uint32(len(items))}, nil
}

// ReadOut reads the result a shim wrote at out after it returned Ok.
// Borrowed results alias linear memory. Owned sequences are copied out and
// their buffer is released through the converter's allocator; use
// ReadOutBoxed to keep the buffer instead.
func ReadOut[T any](c *Converter, out uint32) (T, error) {
	var v T
	t, err := typeFor[T](c)
	if err != nil {
		return v, err
	}
	f := c.frame(nil)
	err = f.readResult(t, out, unsafe.Pointer(&v), []string{"out"})
	f.finish(err != nil)
	if err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// Deallocator releases owned carriers through the companion entry point.
type Deallocator interface {
	Dealloc(ptr, size, align uint32) error
}

// DeallocFunc adapts a function to Deallocator.
type DeallocFunc func(ptr, size, align uint32) error

// Dealloc calls fn.
func (fn DeallocFunc) Dealloc(ptr, size, align uint32) error {
	return fn(ptr, size, align)
}

// OwnedSlice is an owned sequence read from an out-pointer. The caller owns
// the buffer and must Release it exactly once.
type OwnedSlice[T any] struct {
	items    []T
	carrier  OutBoxedSlice
	size     uint32
	align    uint32
	released bool
}

// ReadOutBoxed takes ownership of the owned carrier at out. Elements laid
// out as their ABI form are viewed in place; others are decoded into a
// host copy. Either way the buffer stays allocated until Release.
func ReadOutBoxed[T any](c *Converter, out uint32) (*OwnedSlice[T], error) {
	elem, err := typeFor[T](c)
	if err != nil {
		return nil, err
	}
	if elem.Shape != ShapeValue {
		return nil, errors.Unsupported(errors.PhaseLift, "sequence of "+elem.String())
	}
	if out == 0 {
		return nil, errors.ArgIsNull(errors.PhaseLift, "out")
	}
	src, err := c.env.span(errors.PhaseLift, []string{"out"}, out, OutBoxedSliceSize, 4)
	if err != nil {
		return nil, err
	}
	carrier := readOutBoxedSlice(src)
	if carrier.Len > carrier.Cap || (carrier.Data == 0 && carrier.Cap != 0) {
		return nil, errors.ConversionFailed(errors.PhaseLift, []string{"out"}, "malformed owned carrier")
	}

	o := &OwnedSlice[T]{carrier: carrier, align: elem.Align}
	if carrier.Data == 0 {
		return o, nil
	}

	size, ok := abi.SafeMulU32(carrier.Cap, elem.Size)
	if !ok {
		return nil, errors.Overflow(errors.PhaseLift, []string{"out"}, carrier.Cap, "sequence byte length")
	}
	buf, err := c.env.span(errors.PhaseLift, []string{"out", "data"}, carrier.Data, size, elem.Align)
	if err != nil {
		return nil, err
	}
	o.size = size

	if elem.Plain {
		o.items = unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(buf))), carrier.Cap)[:carrier.Len]
		return o, nil
	}

	items := make([]T, carrier.Len)
	f := c.frame(nil)
	for i := uint32(0); i < carrier.Len; i++ {
		off := i * elem.Size
		if err := f.get(elem, buf[off:off+elem.Size], unsafe.Pointer(&items[i]), []string{"out", "[elem]"}); err != nil {
			f.finish(true)
			return nil, err
		}
	}
	f.finish(false)
	o.items = items
	return o, nil
}

// Items returns the elements. For plain element types they alias linear
// memory and are invalid after Release.
func (o *OwnedSlice[T]) Items() []T {
	return o.items
}

// Len returns the element count.
func (o *OwnedSlice[T]) Len() int {
	return int(o.carrier.Len)
}

// Carrier returns the raw carrier.
func (o *OwnedSlice[T]) Carrier() OutBoxedSlice {
	return o.carrier
}

// Clone copies the elements to the Go heap.
func (o *OwnedSlice[T]) Clone() []T {
	return append([]T(nil), o.items...)
}

// Release hands the buffer back through d with {data, cap*size, align}.
// A second Release is an error and does not call d.
func (o *OwnedSlice[T]) Release(d Deallocator) error {
	if o.released {
		return errors.New(errors.PhaseCall, errors.KindDoubleFree).
			Detail("owned sequence at %#x already released", o.carrier.Data).
			Build()
	}
	o.released = true
	o.items = nil
	if o.carrier.IsNull() {
		return nil
	}
	return d.Dealloc(o.carrier.Data, o.size, o.align)
}
