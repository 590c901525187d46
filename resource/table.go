package resource

import (
	"sync"
)

// Table maps handles to host values, with type tags, pins and lifecycle
// observers. It is safe for concurrent use.
type Table struct {
	observers []Observer
	slots     slots
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	closed    bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{}
}

// Insert adds a value and returns its handle, or 0 if the table is closed or
// full.
func (t *Table) Insert(typeID uint32, value any) Handle {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0
	}
	h, err := t.slots.insert(typeID, value)
	t.mu.Unlock()
	if err != nil {
		return 0
	}

	t.notify(Event{Type: EventCreated, Handle: h, TypeID: typeID, Value: value})
	return h
}

// Get retrieves a value by handle.
func (t *Table) Get(h Handle) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e := t.slots.lookup(h)
	if e == nil {
		return nil, false
	}
	return e.value, true
}

// GetTyped retrieves a value only if it was inserted with typeID.
func (t *Table) GetTyped(h Handle, typeID uint32) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e := t.slots.lookup(h)
	if e == nil || e.typeID != typeID {
		return nil, false
	}
	return e.value, true
}

// TypeID returns the tag h was inserted with.
func (t *Table) TypeID(h Handle) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e := t.slots.lookup(h)
	if e == nil {
		return 0, false
	}
	return e.typeID, true
}

// Remove takes a value out of the table without running its Dropper.
// A pinned handle is not removed.
func (t *Table) Remove(h Handle) (any, bool) {
	t.mu.Lock()
	old, ok := t.slots.remove(h)
	t.mu.Unlock()
	if !ok {
		return nil, false
	}

	t.notify(Event{Type: EventDropped, Handle: h, TypeID: old.typeID, Value: old.value})
	return old.value, true
}

// RemoveTyped removes a value only if it was inserted with typeID.
func (t *Table) RemoveTyped(h Handle, typeID uint32) (any, bool) {
	if id, ok := t.TypeID(h); !ok || id != typeID {
		return nil, false
	}
	return t.Remove(h)
}

// Drop removes a value and runs its Dropper, if any.
func (t *Table) Drop(h Handle) bool {
	value, ok := t.Remove(h)
	if !ok {
		return false
	}
	if d, ok := value.(Dropper); ok {
		d.Drop()
	}
	return true
}

// Borrow pins a handle until ReturnBorrow. Pinned handles cannot be removed.
func (t *Table) Borrow(h Handle) bool {
	t.mu.Lock()
	e := t.slots.lookup(h)
	if e != nil {
		e.pins++
	}
	t.mu.Unlock()
	if e == nil {
		return false
	}
	t.notify(Event{Type: EventBorrowed, Handle: h})
	return true
}

// ReturnBorrow releases a pin taken by Borrow.
func (t *Table) ReturnBorrow(h Handle) bool {
	t.mu.Lock()
	e := t.slots.lookup(h)
	ok := e != nil && e.pins > 0
	if ok {
		e.pins--
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	t.notify(Event{Type: EventBorrowReturned, Handle: h})
	return true
}

// Pinned reports whether h has outstanding borrows.
func (t *Table) Pinned(h Handle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e := t.slots.lookup(h)
	return e != nil && e.pins > 0
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.slots.live
}

// Close drops every live value, running Droppers, and rejects further
// inserts. Closing twice is a no-op.
func (t *Table) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	live := t.slots.drain()
	t.mu.Unlock()

	for _, e := range live {
		if d, ok := e.value.(Dropper); ok {
			d.Drop()
		}
	}
	return nil
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
