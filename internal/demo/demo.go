// Package demo holds the library the ffi command and examples serve: the
// transparent wrapper scenarios plus an opaque counter.
package demo

import (
	"github.com/wippyai/wasm-ffi/ffi"
)

// GenericTransparentStruct is a robust u64 carrying a type parameter that
// never crosses the boundary.
type GenericTransparentStruct[P any] struct {
	_ ffi.Phantom[P]
	_ ffi.Robust
	v uint64
}

// NewGeneric wraps v.
func NewGeneric[P any](v uint64) GenericTransparentStruct[P] {
	return GenericTransparentStruct[P]{v: v}
}

// Value returns the wrapped integer.
func (g GenericTransparentStruct[P]) Value() uint64 {
	return g.v
}

// Payload is the instantiation TransparentStruct wraps.
type Payload = GenericTransparentStruct[struct{}]

// TransparentStruct wraps a Payload behind several zero-sized fields. It
// crosses the boundary as a bare u64.
type TransparentStruct struct {
	_       [0]uint8
	_       struct{}
	_       ffi.Phantom[string]
	_       ffi.Transparent
	_       ffi.Robust
	payload Payload
}

// New returns a TransparentStruct holding v.
func New(v uint64) TransparentStruct {
	return TransparentStruct{payload: NewGeneric[struct{}](v)}
}

// WithPayload replaces the payload of a copy of t.
func (t TransparentStruct) WithPayload(payload Payload) TransparentStruct {
	t.payload = payload
	return t
}

// Payload borrows the payload.
func (t *TransparentStruct) Payload() ffi.Ref[Payload] {
	return ffi.RefTo(&t.payload)
}

// PayloadMut borrows the payload exclusively.
func (t *TransparentStruct) PayloadMut() *Payload {
	return &t.payload
}

// Value returns the payload's integer.
func (t TransparentStruct) Value() uint64 {
	return t.payload.v
}

func SelfToSelf(v TransparentStruct) TransparentStruct { return v }

func VecToVec(v []TransparentStruct) []TransparentStruct { return v }

func SliceToSlice(v ffi.View[TransparentStruct]) ffi.View[TransparentStruct] { return v }

// Counter is opaque: guests only ever see a handle to it.
type Counter struct {
	n uint64
}

func NewCounter(start uint64) *Counter {
	return &Counter{n: start}
}

// Incr adds by and returns the new count.
func (c *Counter) Incr(by uint64) uint64 {
	c.n += by
	return c.n
}

func (c *Counter) Value() uint64 {
	return c.n
}

// Register exports the demo functions into lib.
func Register(lib *ffi.Library) error {
	exports := []func() error{
		func() error { return lib.Func("SelfToSelf", SelfToSelf) },
		func() error { return lib.Func("VecToVec", VecToVec) },
		func() error { return lib.Func("SliceToSlice", SliceToSlice) },
		func() error { return lib.Static("TransparentStruct", "New", New) },
		func() error { return lib.Method("TransparentStruct", "WithPayload", TransparentStruct.WithPayload) },
		func() error {
			return lib.Method("TransparentStruct", "Payload", (*TransparentStruct).Payload, ffi.Shared())
		},
		func() error { return lib.Method("TransparentStruct", "PayloadMut", (*TransparentStruct).PayloadMut) },
		func() error { return lib.Func("NewCounter", NewCounter) },
		func() error { return lib.Method("Counter", "Incr", (*Counter).Incr) },
		func() error { return lib.Method("Counter", "Value", (*Counter).Value) },
	}
	for _, export := range exports {
		if err := export(); err != nil {
			return err
		}
	}
	return nil
}

// NewLibrary returns a library with the demo functions registered.
func NewLibrary(opts ...ffi.LibraryOption) (*ffi.Library, error) {
	lib := ffi.NewLibrary(opts...)
	if err := Register(lib); err != nil {
		_ = lib.Close()
		return nil, err
	}
	return lib, nil
}
