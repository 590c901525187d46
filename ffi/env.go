package ffi

import (
	"unsafe"

	wasmffi "github.com/wippyai/wasm-ffi"
	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/ffi/internal/abi"
	"github.com/wippyai/wasm-ffi/memory"
)

// Env is the linear memory a call runs against and the allocator that owns
// its buffers.
type Env struct {
	Memory    memory.Linear
	Allocator wasmffi.Allocator
}

// span returns [addr, addr+size) of linear memory after checking bounds and
// alignment. The slice aliases memory.
func (e Env) span(phase errors.Phase, path []string, addr, size, align uint32) ([]byte, error) {
	if e.Memory == nil {
		return nil, errors.Unsupported(phase, "no linear memory bound")
	}
	if !abi.IsAligned(addr, align) {
		return nil, errors.Misaligned(phase, path, addr, align)
	}
	end, ok := abi.SafeAddU32(addr, size)
	if !ok || end > e.Memory.Size() {
		return nil, errors.OutOfBounds(phase, path, addr, size)
	}
	b, err := e.Memory.Read(addr, size)
	if err != nil {
		return nil, errors.New(phase, errors.KindOutOfBounds).
			Path(path...).
			Cause(err).
			Build()
	}
	return b, nil
}

// hostPointer returns the host address of linear memory at addr.
func (e Env) hostPointer(phase errors.Phase, path []string, addr, size, align uint32) (unsafe.Pointer, error) {
	b, err := e.span(phase, path, addr, size, align)
	if err != nil {
		return nil, err
	}
	return unsafe.Pointer(unsafe.SliceData(b)), nil
}

// addrOf maps a host pointer back to linear memory when [p, p+n) lies
// inside it.
func (e Env) addrOf(p unsafe.Pointer, n uint32) (uint32, bool) {
	if e.Memory == nil || p == nil {
		return 0, false
	}
	size := e.Memory.Size()
	if size == 0 {
		return 0, false
	}
	whole, err := e.Memory.Read(0, size)
	if err != nil {
		return 0, false
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(whole)))
	ptr := uintptr(p)
	if ptr < base || ptr-base >= uintptr(size) {
		return 0, false
	}
	off := ptr - base
	if uint64(off)+uint64(n) > uint64(size) {
		return 0, false
	}
	return uint32(off), true
}

func (e Env) alloc(phase errors.Phase, size, align uint32) (uint32, error) {
	if e.Allocator == nil {
		return 0, errors.New(phase, errors.KindAllocation).
			Detail("no allocator bound for %d bytes", size).
			Build()
	}
	ptr, err := e.Allocator.Alloc(size, align)
	if err != nil {
		return 0, errors.New(phase, errors.KindAllocation).
			Detail("allocate %d bytes (align %d)", size, align).
			Cause(err).
			Build()
	}
	if ptr == 0 {
		return 0, errors.AllocationFailed(phase, size, align)
	}
	return ptr, nil
}

func (e Env) free(ptr, size, align uint32) {
	if e.Allocator == nil || ptr == 0 {
		return
	}
	e.Allocator.Free(ptr, size, align)
}
