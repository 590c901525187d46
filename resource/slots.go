package resource

import (
	"errors"
)

var (
	ErrClosed = errors.New("handle table closed")
	ErrFull   = errors.New("handle table full")
)

type slot struct {
	value  any
	typeID uint32
	pins   uint32
	gen    uint8
	live   bool
}

// slots is the storage behind a Table. Freed indices are reused LIFO with a
// bumped generation. Callers hold the table lock.
type slots struct {
	entries []slot
	free    []uint32 // 1-based indices
	live    int
}

func (s *slots) insert(typeID uint32, value any) (Handle, error) {
	var index uint32
	if n := len(s.free); n > 0 {
		index = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		if len(s.entries) >= MaxLive {
			return 0, ErrFull
		}
		s.entries = append(s.entries, slot{})
		index = uint32(len(s.entries))
	}

	e := &s.entries[index-1]
	e.value = value
	e.typeID = typeID
	e.pins = 0
	e.live = true
	s.live++
	return makeHandle(index, e.gen), nil
}

// lookup returns the live slot h names, nil for null, stale or unknown
// handles.
func (s *slots) lookup(h Handle) *slot {
	index := h.Index()
	if index == 0 || int(index) > len(s.entries) {
		return nil
	}
	e := &s.entries[index-1]
	if !e.live || e.gen != h.Generation() {
		return nil
	}
	return e
}

// remove frees the slot h names unless it is pinned.
func (s *slots) remove(h Handle) (slot, bool) {
	e := s.lookup(h)
	if e == nil || e.pins > 0 {
		return slot{}, false
	}
	old := *e
	*e = slot{gen: e.gen + 1}
	s.free = append(s.free, h.Index())
	s.live--
	return old, true
}

// drain empties every slot and returns the values that were live.
func (s *slots) drain() []slot {
	var out []slot
	for _, e := range s.entries {
		if e.live {
			out = append(out, e)
		}
	}
	s.entries, s.free, s.live = nil, nil, 0
	return out
}
