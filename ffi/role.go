package ffi

// Role is how a host type crosses the boundary.
type Role uint8

const (
	// RoleRobust types are bit-pattern equivalent to their ABI type.
	RoleRobust Role = iota
	// RoleOpaque types cross as a handle into the library's table.
	RoleOpaque
	// RoleTransparent types cross as their single non-zero-sized field.
	RoleTransparent
	// RoleWrapping types are records converted field by field.
	RoleWrapping
	// RoleNonRobust primitives have invalid bit patterns and are validated on lift.
	RoleNonRobust
)

var roleNames = [...]string{
	RoleRobust:      "robust",
	RoleOpaque:      "opaque",
	RoleTransparent: "transparent",
	RoleWrapping:    "wrapping",
	RoleNonRobust:   "non-robust",
}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return "unknown"
}

// Shape is the container a value crosses in.
type Shape uint8

const (
	ShapeValue      Shape = iota // by value
	ShapeOwnedSlice              // []T, carrier {data, len, cap}
	ShapeView                    // View[T], carrier {data, len}
	ShapeExclusive               // *T, writable pointer
	ShapeShared                  // Ref[T], read-only pointer
)

var shapeNames = [...]string{
	ShapeValue:      "value",
	ShapeOwnedSlice: "owned-slice",
	ShapeView:       "view",
	ShapeExclusive:  "exclusive",
	ShapeShared:     "shared",
}

func (s Shape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return "unknown"
}

// Role markers. Embed one as a blank field; markers are zero-sized and never
// reach the ABI.
//
//	type Meters struct {
//	    _ ffi.Transparent
//	    v uint64
//	}
type (
	// Transparent declares that the type's layout is its single non-zero-sized field.
	Transparent struct{}
	// Robust asserts that every bit pattern of the ABI form is a valid value.
	// On a single-field type it also implies Transparent.
	Robust struct{}
	// Record declares a multi-field type converted field by field.
	Record struct{}
)

// Phantom carries a type parameter with no runtime footprint. Unlike [0]P it
// never raises the alignment of the enclosing struct.
type Phantom[P any] struct{}

// View is a borrowed, read-only sequence. It crosses as {data, len}; the
// callee must not keep it past the call.
type View[T any] []T

func (View[T]) borrowedView() {}

type viewMarker interface{ borrowedView() }

// Ref is a shared borrow of a T that lives in linear memory.
type Ref[T any] struct {
	ptr *T
}

// RefTo borrows p.
func RefTo[T any](p *T) Ref[T] {
	return Ref[T]{ptr: p}
}

// Ptr returns the borrowed address. Writing through it breaks the borrow.
func (r Ref[T]) Ptr() *T {
	return r.ptr
}

// Load copies the referent.
func (r Ref[T]) Load() T {
	return *r.ptr
}

// IsNil reports whether the borrow is empty.
func (r Ref[T]) IsNil() bool {
	return r.ptr == nil
}

func (Ref[T]) sharedRef() {}

type refMarker interface{ sharedRef() }
