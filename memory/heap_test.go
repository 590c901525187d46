package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeap_AllocAligned(t *testing.T) {
	h := NewHeap(HeapBase, 4096)

	p1, err := h.Alloc(3, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(HeapBase), p1)

	p2, err := h.Alloc(24, 8)
	require.NoError(t, err)
	require.Zero(t, p2%8)
	require.GreaterOrEqual(t, p2, p1+3)

	st := h.Stats()
	require.Equal(t, uint64(2), st.Allocs)
	require.Equal(t, 2, st.Live)
	require.Equal(t, uint32(27), st.LiveBytes)
}

func TestHeap_NeverReturnsNull(t *testing.T) {
	h := NewHeap(0, 128)
	p, err := h.Alloc(0, 1)
	require.NoError(t, err)
	require.NotZero(t, p)

	q, err := h.Alloc(0, 1)
	require.NoError(t, err)
	require.NotEqual(t, p, q, "zero-sized allocations are distinct")
}

func TestHeap_FreeAndReuse(t *testing.T) {
	h := NewHeap(HeapBase, 1024)

	a, err := h.Alloc(64, 8)
	require.NoError(t, err)
	b, err := h.Alloc(64, 8)
	require.NoError(t, err)

	h.Free(a, 64, 8)
	h.Free(b, 64, 8)

	st := h.Stats()
	require.Equal(t, uint64(2), st.Frees)
	require.Zero(t, st.Live)
	require.Len(t, h.free, 1, "adjacent free blocks coalesce")

	c, err := h.Alloc(128, 8)
	require.NoError(t, err)
	require.Equal(t, a, c)
}

func TestHeap_InvalidFrees(t *testing.T) {
	h := NewHeap(HeapBase, 1024)

	p, err := h.Alloc(16, 8)
	require.NoError(t, err)

	h.Free(p, 8, 8)   // wrong size
	h.Free(p, 16, 4)  // wrong align
	h.Free(p+8, 8, 8) // not a block start
	require.True(t, h.Owns(p, 16))

	h.Free(p, 16, 8)
	h.Free(p, 16, 8) // double free
	h.Free(0, 16, 8) // null is ignored silently

	st := h.Stats()
	require.Equal(t, uint64(1), st.Frees)
	require.Equal(t, uint64(4), st.InvalidFrees)
	require.False(t, h.Owns(p, 16))
}

func TestHeap_Exhausted(t *testing.T) {
	h := NewHeap(HeapBase, HeapBase+32)

	_, err := h.Alloc(32, 1)
	require.NoError(t, err)

	_, err = h.Alloc(1, 1)
	require.Error(t, err)

	_, err = h.Alloc(4, 3)
	require.Error(t, err, "non power-of-two alignment")
}

func TestHeap_ForMemory(t *testing.T) {
	mem := newStandalone(t, 1)
	h := NewHeapFor(mem)

	p, err := h.Alloc(PageSize-HeapBase, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(HeapBase), p)

	_, err = h.Alloc(1, 1)
	require.Error(t, err)
}
