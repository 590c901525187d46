package ffi

import (
	"reflect"
	"strings"

	"go.bytecodealliance.org/wit"
)

// Type is the compiled descriptor of a host type: its role, its ABI form
// and everything the converters need to move it across the boundary.
//
// Transparent types are compiled down to their fully unwrapped tail: Kind,
// Size, Align and Plain describe the tail, so converters never walk the
// wrapper chain at call time.
type Type struct {
	Go     reflect.Type
	Elem   *Type   // element of a slice or view, referent of a pointer
	Tail   *Type   // innermost non-transparent type of a transparent wrapper
	WIT    wit.Type
	Name   string
	Fields []Field // non-zero-sized fields of a record, in declaration order
	Role   Role
	Shape  Shape
	Kind   Kind
	Size   uint32 // ABI size in linear memory
	Align  uint32 // ABI alignment in linear memory
	Plain  bool   // host bytes equal ABI bytes; values can be viewed in place
	Robust bool   // every ABI bit pattern is a valid host value
	typeID uint32 // handle table tag of opaque types
}

// Field is one non-zero-sized field of a record.
type Field struct {
	Type      *Type
	Name      string
	GoOffset  uintptr
	ABIOffset uint32
}

// Words returns how many ABI words the type occupies as an argument.
func (t *Type) Words() int {
	switch t.Shape {
	case ShapeOwnedSlice:
		return 3
	case ShapeView:
		return 2
	default:
		return 1
	}
}

// CoreTypes returns the core value types of the type's argument words.
func (t *Type) CoreTypes() []CoreType {
	switch t.Shape {
	case ShapeOwnedSlice:
		return []CoreType{CoreI32, CoreI32, CoreI32}
	case ShapeView:
		return []CoreType{CoreI32, CoreI32}
	case ShapeExclusive, ShapeShared:
		return []CoreType{CoreI32}
	default:
		return []CoreType{t.Kind.core()}
	}
}

// Indirect reports whether a value argument travels as a pointer to its
// ABI bytes rather than in a word.
func (t *Type) Indirect() bool {
	return t.Shape == ShapeValue && t.Kind == KindRecord
}

// TypeID returns the handle table tag of an opaque type, 0 otherwise.
func (t *Type) TypeID() uint32 {
	return t.typeID
}

// String renders the ABI form, e.g. "u64", "list<u64>", "own<counter>".
func (t *Type) String() string {
	switch t.Shape {
	case ShapeOwnedSlice:
		return "list<" + t.Elem.String() + ">"
	case ShapeView:
		return "view<" + t.Elem.String() + ">"
	case ShapeExclusive:
		return "ptr-mut<" + t.Elem.String() + ">"
	case ShapeShared:
		return "ptr<" + t.Elem.String() + ">"
	}
	switch t.Kind {
	case KindHandle:
		return "own<" + t.Name + ">"
	case KindRecord:
		return t.Name
	default:
		return t.Kind.String()
	}
}

// goName turns a reflect type name into an ABI identifier.
func goName(t reflect.Type) string {
	name := t.Name()
	if name == "" {
		name = t.String()
	}
	if i := strings.IndexByte(name, '['); i > 0 {
		name = name[:i]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimLeft(name, "*")
	return snakeCase(name)
}
