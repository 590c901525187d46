package resource

// Handle is an opaque reference to a value in a Table. The low 24 bits hold
// the 1-based slot index and the high 8 bits the slot's generation, so a
// handle kept past its Drop does not resolve to the slot's next occupant.
// Handle 0 is reserved and always invalid.
type Handle uint32

const (
	indexBits = 24
	indexMask = 1<<indexBits - 1

	// MaxLive is the number of values a table can hold at once.
	MaxLive = indexMask
)

func makeHandle(index uint32, gen uint8) Handle {
	return Handle(uint32(gen)<<indexBits | index)
}

// Index returns the 1-based slot index, 0 for the null handle.
func (h Handle) Index() uint32 {
	return uint32(h) & indexMask
}

// Generation returns how many times the slot was reused, modulo 256.
func (h Handle) Generation() uint8 {
	return uint8(uint32(h) >> indexBits)
}

// EventType is a lifecycle transition of a handle.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventBorrowed
	EventBorrowReturned
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	case EventBorrowed:
		return "borrowed"
	case EventBorrowReturned:
		return "borrow-returned"
	default:
		return "unknown"
	}
}

// Event describes one lifecycle transition.
type Event struct {
	Value  any
	Handle Handle
	TypeID uint32
	Type   EventType
}

// Observer receives lifecycle events. It is called with no table lock held.
type Observer interface {
	OnResourceEvent(Event)
}

// Dropper is implemented by values that release something when their handle
// is dropped.
type Dropper interface {
	Drop()
}
