package ffi

import (
	"testing"

	"github.com/wippyai/wasm-ffi/errors"
)

func TestStore_FreeAndRelease(t *testing.T) {
	te := newTestEnv(t)
	conv := NewConverter(te.Env, nil)

	store := NewStore()
	if _, _, err := PlaceView(conv, []uint16{1, 2, 3}, store); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Place(conv, uint32(9), store); err != nil {
		t.Fatal(err)
	}
	if store.Len() != 2 || te.heap.Stats().Live != 2 {
		t.Fatalf("store = %d, heap = %+v", store.Len(), te.heap.Stats())
	}

	store.FreeAndRelease(te.heap)
	if stats := te.heap.Stats(); stats.Live != 0 || stats.InvalidFrees != 0 {
		t.Errorf("heap = %+v", stats)
	}
}

func TestStore_Unit(t *testing.T) {
	te := newTestEnv(t)
	conv := NewConverter(te.Env, nil)

	var unit *Store
	if unit.Len() != 0 {
		t.Error("unit store holds allocations")
	}
	unit.Free(te.heap)
	unit.Reset()
	unit.Release()

	if _, _, err := Place(conv, uint64(1), unit); errors.KindOf(err) != errors.KindUnsupported {
		t.Errorf("Place into unit store: %v", err)
	}
	// transparent and robust values need no temporaries
	if _, err := Lower(conv, ts(3), unit); err != nil {
		t.Errorf("Lower: %v", err)
	}
}

func TestStore_BorrowedViewInMemory(t *testing.T) {
	te := newTestEnv(t)
	conv := NewConverter(te.Env, nil)

	store := NewStore()
	defer store.FreeAndRelease(te.heap)
	view, ref, err := PlaceView(conv, []uint32{4, 5}, store)
	if err != nil {
		t.Fatal(err)
	}

	// a view that already aliases memory is passed as-is
	other := NewStore()
	defer other.FreeAndRelease(te.heap)
	words, err := Lower(conv, view, other)
	if err != nil {
		t.Fatal(err)
	}
	if uint32(words[0]) != ref.Data || uint32(words[1]) != 2 || other.Len() != 0 {
		t.Errorf("words = %v, store = %d", words, other.Len())
	}

	words, err = Lower(conv, View[uint32]{7, 8, 9}, other)
	if err != nil {
		t.Fatal(err)
	}
	if other.Len() != 1 || uint32(words[1]) != 3 {
		t.Errorf("host view not placed: %v", words)
	}
}
