package ffi

import (
	"encoding/binary"
)

const (
	// OutBoxedSliceSize is the byte size of an owned carrier.
	OutBoxedSliceSize = 12
	// SliceRefSize is the byte size of a borrowed carrier.
	SliceRefSize = 8
)

// OutBoxedSlice is the owned sequence carrier. Whoever holds it must release
// Data exactly once through __dealloc with Cap elements' worth of bytes.
type OutBoxedSlice struct {
	Data uint32
	Len  uint32
	Cap  uint32
}

// Words returns the carrier as argument words.
func (c OutBoxedSlice) Words() []uint64 {
	return []uint64{uint64(c.Data), uint64(c.Len), uint64(c.Cap)}
}

// IsNull reports whether the carrier owns no buffer.
func (c OutBoxedSlice) IsNull() bool {
	return c.Data == 0
}

func (c OutBoxedSlice) put(b []byte) {
	binary.LittleEndian.PutUint32(b[0:], c.Data)
	binary.LittleEndian.PutUint32(b[4:], c.Len)
	binary.LittleEndian.PutUint32(b[8:], c.Cap)
}

func readOutBoxedSlice(b []byte) OutBoxedSlice {
	return OutBoxedSlice{
		Data: binary.LittleEndian.Uint32(b[0:]),
		Len:  binary.LittleEndian.Uint32(b[4:]),
		Cap:  binary.LittleEndian.Uint32(b[8:]),
	}
}

func outBoxedFromWords(w []uint64) OutBoxedSlice {
	return OutBoxedSlice{Data: uint32(w[0]), Len: uint32(w[1]), Cap: uint32(w[2])}
}

// SliceRef is the borrowed sequence carrier. It never owns Data.
type SliceRef struct {
	Data uint32
	Len  uint32
}

// Words returns the carrier as argument words.
func (c SliceRef) Words() []uint64 {
	return []uint64{uint64(c.Data), uint64(c.Len)}
}

func (c SliceRef) put(b []byte) {
	binary.LittleEndian.PutUint32(b[0:], c.Data)
	binary.LittleEndian.PutUint32(b[4:], c.Len)
}

func readSliceRef(b []byte) SliceRef {
	return SliceRef{
		Data: binary.LittleEndian.Uint32(b[0:]),
		Len:  binary.LittleEndian.Uint32(b[4:]),
	}
}

func sliceRefFromWords(w []uint64) SliceRef {
	return SliceRef{Data: uint32(w[0]), Len: uint32(w[1])}
}
