package resource

import (
	"sync"
	"testing"
)

type dropCounter struct {
	count int
}

func (d *dropCounter) Drop() {
	d.count++
}

func TestHandle_Layout(t *testing.T) {
	h := makeHandle(5, 3)
	if h.Index() != 5 || h.Generation() != 3 {
		t.Errorf("index %d gen %d", h.Index(), h.Generation())
	}
	if Handle(0).Index() != 0 {
		t.Error("null handle has an index")
	}
	if makeHandle(1, 0) != 1 {
		t.Errorf("first handle = %d, want 1", makeHandle(1, 0))
	}
}

func TestTable_StaleHandle(t *testing.T) {
	table := NewTable()

	h1 := table.Insert(1, "first")
	if !table.Drop(h1) {
		t.Fatal("Drop failed")
	}
	h2 := table.Insert(1, "second")
	if h2.Index() != h1.Index() {
		t.Fatalf("slot not reused: %d vs %d", h2.Index(), h1.Index())
	}
	if h2 == h1 {
		t.Fatal("reused slot must carry a new generation")
	}

	if _, ok := table.Get(h1); ok {
		t.Error("stale handle resolved")
	}
	if table.Drop(h1) {
		t.Error("stale handle dropped the new occupant")
	}
	if v, ok := table.Get(h2); !ok || v != "second" {
		t.Errorf("Get(h2) = %v, %v", v, ok)
	}
}

func TestTable_Pins(t *testing.T) {
	table := NewTable()
	h := table.Insert(7, "v")

	if table.ReturnBorrow(h) {
		t.Error("ReturnBorrow without Borrow succeeded")
	}
	table.Borrow(h)
	table.Borrow(h)
	if !table.Pinned(h) {
		t.Fatal("not pinned")
	}
	if _, ok := table.Remove(h); ok {
		t.Fatal("removed while pinned")
	}
	table.ReturnBorrow(h)
	if _, ok := table.Remove(h); ok {
		t.Fatal("removed with one pin left")
	}
	table.ReturnBorrow(h)
	if _, ok := table.Remove(h); !ok {
		t.Fatal("Remove failed after pins returned")
	}
	if table.Borrow(h) {
		t.Error("Borrow of removed handle succeeded")
	}
}

func TestTable_TypeID(t *testing.T) {
	table := NewTable()
	h := table.Insert(42, "v")
	if id, ok := table.TypeID(h); !ok || id != 42 {
		t.Errorf("TypeID = %d, %v", id, ok)
	}
	if _, ok := table.TypeID(0); ok {
		t.Error("null handle has a type")
	}
}

func TestTable_CloseRunsDroppers(t *testing.T) {
	table := NewTable()
	a, b := &dropCounter{}, &dropCounter{}
	table.Insert(1, a)
	h := table.Insert(1, b)
	table.Borrow(h)

	if err := table.Close(); err != nil {
		t.Fatal(err)
	}
	if a.count != 1 || b.count != 1 {
		t.Errorf("drops = %d, %d", a.count, b.count)
	}
	if table.Len() != 0 {
		t.Errorf("Len() = %d after Close", table.Len())
	}
	if err := table.Close(); err != nil {
		t.Fatal(err)
	}
	if a.count != 1 {
		t.Error("second Close dropped again")
	}
}

func TestTable_Concurrent(t *testing.T) {
	table := NewTable()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				h := table.Insert(uint32(g), i)
				if h == 0 {
					t.Error("Insert failed")
					return
				}
				if v, ok := table.GetTyped(h, uint32(g)); !ok || v != i {
					t.Errorf("GetTyped = %v, %v", v, ok)
					return
				}
				if !table.Drop(h) {
					t.Error("Drop failed")
					return
				}
			}
		}(g)
	}
	wg.Wait()
	if table.Len() != 0 {
		t.Errorf("Len() = %d", table.Len())
	}
}
