package memory

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-ffi/errors"
)

// HeapBase is the first address a Heap hands out by default.
// The low bytes stay unused so that 0 is never a valid allocation.
const HeapBase = 16

type block struct {
	ptr  uint32
	size uint32
}

type liveBlock struct {
	size  uint32
	align uint32
	start uint32 // start of the reserved range, before alignment padding
	span  uint32 // reserved bytes including padding
}

// HeapStats counts heap activity.
type HeapStats struct {
	Allocs       uint64
	Frees        uint64
	InvalidFrees uint64
	LiveBytes    uint32
	Live         int
}

// Heap is a first-fit allocator over [base, limit) of a linear memory.
// It validates every Free against the live allocation it names.
type Heap struct {
	live  map[uint32]liveBlock
	free  []block // sorted by ptr, coalesced
	stats HeapStats
	base  uint32
	limit uint32
	mu    sync.Mutex
}

// NewHeap manages the address range [base, limit).
func NewHeap(base, limit uint32) *Heap {
	if base == 0 {
		base = HeapBase
	}
	h := &Heap{
		live:  make(map[uint32]liveBlock),
		base:  base,
		limit: limit,
	}
	if limit > base {
		h.free = []block{{ptr: base, size: limit - base}}
	}
	return h
}

// NewHeapFor manages all of mem above HeapBase.
func NewHeapFor(mem Linear) *Heap {
	return NewHeap(HeapBase, mem.Size())
}

// Alloc reserves size bytes aligned to align. Zero-sized requests still
// return a distinct non-null pointer.
func (h *Heap) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, errors.New(errors.PhaseAlloc, errors.KindInvalidInput).
			Detail("alignment %d is not a power of two", align).
			Build()
	}
	need := size
	if need == 0 {
		need = 1
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for i, b := range h.free {
		ptr := alignUp(b.ptr, align)
		pad := ptr - b.ptr
		if ptr < b.ptr || uint64(pad)+uint64(need) > uint64(b.size) {
			continue
		}
		span := pad + need
		if span == b.size {
			h.free = append(h.free[:i], h.free[i+1:]...)
		} else {
			h.free[i] = block{ptr: b.ptr + span, size: b.size - span}
		}
		h.live[ptr] = liveBlock{size: size, align: align, start: b.ptr, span: span}
		h.stats.Allocs++
		h.stats.Live++
		h.stats.LiveBytes += size
		return ptr, nil
	}

	return 0, errors.AllocationFailed(errors.PhaseAlloc, size, align)
}

// Free releases an allocation. Size and align must match the Alloc call;
// mismatched or unknown frees are counted and ignored.
func (h *Heap) Free(ptr, size, align uint32) {
	if ptr == 0 {
		return
	}
	if align == 0 {
		align = 1
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	lb, ok := h.live[ptr]
	if !ok || lb.size != size || lb.align != align {
		h.stats.InvalidFrees++
		Logger().Warn("invalid free",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Uint32("align", align),
			zap.Bool("known", ok))
		return
	}

	delete(h.live, ptr)
	h.stats.Frees++
	h.stats.Live--
	h.stats.LiveBytes -= size
	h.release(block{ptr: lb.start, size: lb.span})
}

// release returns a range to the free list, merging neighbours. Caller holds h.mu.
func (h *Heap) release(b block) {
	i := sort.Search(len(h.free), func(i int) bool { return h.free[i].ptr > b.ptr })
	h.free = append(h.free, block{})
	copy(h.free[i+1:], h.free[i:])
	h.free[i] = b

	if i+1 < len(h.free) && h.free[i].ptr+h.free[i].size == h.free[i+1].ptr {
		h.free[i].size += h.free[i+1].size
		h.free = append(h.free[:i+1], h.free[i+2:]...)
	}
	if i > 0 && h.free[i-1].ptr+h.free[i-1].size == h.free[i].ptr {
		h.free[i-1].size += h.free[i].size
		h.free = append(h.free[:i], h.free[i+1:]...)
	}
}

// Owns reports whether ptr is the start of a live allocation of size bytes.
func (h *Heap) Owns(ptr, size uint32) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	lb, ok := h.live[ptr]
	return ok && lb.size == size
}

// Stats returns a snapshot of the heap counters.
func (h *Heap) Stats() HeapStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}
