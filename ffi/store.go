package ffi

import (
	"sync"

	wasmffi "github.com/wippyai/wasm-ffi"
	"github.com/wippyai/wasm-ffi/errors"
)

// Allocation is one buffer in linear memory.
type Allocation struct {
	Ptr   uint32
	Size  uint32
	Align uint32
}

// Store owns the transient allocations argument conversion needs for one
// call. The nil *Store is the unit store: it holds nothing, and conversions
// that need a buffer fail against it.
type Store struct {
	allocations []Allocation
}

var storePool = sync.Pool{
	New: func() any {
		return &Store{allocations: make([]Allocation, 0, 8)}
	},
}

// NewStore returns an empty store from the pool.
func NewStore() *Store {
	return storePool.Get().(*Store)
}

const maxPooledStoreCapacity = 128

// Release returns the store to the pool. Call Free first; the store is
// invalid afterwards.
func (s *Store) Release() {
	if s == nil || cap(s.allocations) > maxPooledStoreCapacity {
		return
	}
	s.Reset()
	storePool.Put(s)
}

// FreeAndRelease frees every allocation and returns the store to the pool.
func (s *Store) FreeAndRelease(allocator wasmffi.Allocator) {
	s.Free(allocator)
	s.Release()
}

// Add records an allocation the store now owns.
func (s *Store) Add(ptr, size, align uint32) {
	s.allocations = append(s.allocations, Allocation{
		Ptr:   ptr,
		Size:  size,
		Align: align,
	})
}

// Free releases every allocation through allocator.
func (s *Store) Free(allocator wasmffi.Allocator) {
	if s == nil || allocator == nil {
		return
	}
	for _, a := range s.allocations {
		if a.Ptr != 0 {
			allocator.Free(a.Ptr, a.Size, a.Align)
		}
	}
	s.allocations = s.allocations[:0]
}

// Reset forgets every allocation without freeing it.
func (s *Store) Reset() {
	if s == nil {
		return
	}
	s.allocations = s.allocations[:0]
}

// Len returns the number of live allocations.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.allocations)
}

// alloc reserves a temporary that lives until the store is freed.
func (s *Store) alloc(env Env, phase errors.Phase, size, align uint32) (uint32, error) {
	if s == nil {
		return 0, errors.Unsupported(phase, "the unit store cannot hold temporaries; pass a Store")
	}
	ptr, err := env.alloc(phase, size, align)
	if err != nil {
		return 0, err
	}
	s.Add(ptr, size, align)
	return ptr, nil
}
