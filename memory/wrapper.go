package memory

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wasmffi "github.com/wippyai/wasm-ffi"
	"github.com/wippyai/wasm-ffi/errors"
)

// Linear is the memory surface the ffi package needs: byte access plus size.
type Linear interface {
	wasmffi.Memory
	wasmffi.MemorySizer
}

// Wrap adapts a wazero memory to Linear; nil in, nil out.
func Wrap(mem api.Memory) Linear {
	if mem == nil {
		return nil
	}
	return &Wrapper{Mem: mem}
}

// Wrapper adapts wazero api.Memory to Linear. Out of range accesses fail
// with an errors.KindOutOfBounds error.
type Wrapper struct {
	Mem api.Memory
}

func oob(offset, length uint32) error {
	return errors.OutOfBounds(errors.PhaseLift, nil, offset, length)
}

func (m *Wrapper) Size() uint32 {
	return m.Mem.Size()
}

// Read returns a view of memory; writes through it are visible to the guest
// until the memory grows.
func (m *Wrapper) Read(offset, length uint32) ([]byte, error) {
	if data, ok := m.Mem.Read(offset, length); ok {
		return data, nil
	}
	return nil, oob(offset, length)
}

func (m *Wrapper) Write(offset uint32, data []byte) error {
	if m.Mem.Write(offset, data) {
		return nil
	}
	return oob(offset, uint32(len(data)))
}

func (m *Wrapper) ReadU8(offset uint32) (uint8, error) {
	if v, ok := m.Mem.ReadByte(offset); ok {
		return v, nil
	}
	return 0, oob(offset, 1)
}

func (m *Wrapper) ReadU16(offset uint32) (uint16, error) {
	if v, ok := m.Mem.ReadUint16Le(offset); ok {
		return v, nil
	}
	return 0, oob(offset, 2)
}

func (m *Wrapper) ReadU32(offset uint32) (uint32, error) {
	if v, ok := m.Mem.ReadUint32Le(offset); ok {
		return v, nil
	}
	return 0, oob(offset, 4)
}

func (m *Wrapper) ReadU64(offset uint32) (uint64, error) {
	if v, ok := m.Mem.ReadUint64Le(offset); ok {
		return v, nil
	}
	return 0, oob(offset, 8)
}

func (m *Wrapper) WriteU8(offset uint32, value uint8) error {
	if m.Mem.WriteByte(offset, value) {
		return nil
	}
	return oob(offset, 1)
}

func (m *Wrapper) WriteU16(offset uint32, value uint16) error {
	if m.Mem.WriteUint16Le(offset, value) {
		return nil
	}
	return oob(offset, 2)
}

func (m *Wrapper) WriteU32(offset uint32, value uint32) error {
	if m.Mem.WriteUint32Le(offset, value) {
		return nil
	}
	return oob(offset, 4)
}

func (m *Wrapper) WriteU64(offset uint32, value uint64) error {
	if m.Mem.WriteUint64Le(offset, value) {
		return nil
	}
	return oob(offset, 8)
}

// GuestAllocator allocates through a guest's cabi_realloc export:
// realloc(0, 0, align, size) to allocate and realloc(ptr, size, align, 0)
// to free.
type GuestAllocator struct {
	Ctx context.Context
	Fn  api.Function
}

// WrapAllocator wraps a cabi_realloc style function; nil in, nil out.
func WrapAllocator(ctx context.Context, fn api.Function) wasmffi.Allocator {
	if fn == nil {
		return nil
	}
	return &GuestAllocator{Ctx: ctx, Fn: fn}
}

func (a *GuestAllocator) Alloc(size, align uint32) (uint32, error) {
	results, err := a.Fn.Call(a.Ctx, 0, 0, uint64(align), uint64(size))
	if err != nil {
		return 0, errors.Wrap(errors.PhaseAlloc, errors.KindAllocation, err, "cabi_realloc trapped")
	}
	if len(results) == 0 || uint32(results[0]) == 0 {
		return 0, errors.AllocationFailed(errors.PhaseAlloc, size, align)
	}
	return uint32(results[0]), nil
}

// Free releases ptr. A trapping realloc is logged and otherwise ignored.
func (a *GuestAllocator) Free(ptr, size, align uint32) {
	if ptr == 0 {
		return
	}
	if _, err := a.Fn.Call(a.Ctx, uint64(ptr), uint64(size), uint64(align), 0); err != nil {
		Logger().Warn("guest free failed", zap.Uint32("ptr", ptr), zap.Error(err))
	}
}
