package ffi

import (
	"io"
	"reflect"
	"testing"

	"github.com/wippyai/wasm-ffi/errors"
)

type trailingZST struct {
	_ Transparent
	v uint64
	_ [0]string
}

type twoFields struct {
	_ Transparent
	a uint32
	b uint32
}

type noFields struct {
	_ Transparent
	_ [0]uint64
}

type flag struct {
	_ Transparent
	b bool
}

type nested struct {
	_ Transparent
	inner TransparentStruct
}

type counter struct {
	n uint64
}

type session struct {
	_ Transparent
	c *counter
}

type point struct {
	_    Record
	X    int32
	Y    int32
	Seen bool
}

type vec2 struct {
	_ Record
	_ Robust
	X float32
	Y float32
}

type robustWithBool struct {
	_ Record
	_ Robust
	X uint32
	B bool
}

type recordWithSlice struct {
	_     Record
	Items []uint32
}

type transparentRecord struct {
	_ Record
	_ Transparent
	X uint32
}

type overRecord struct {
	_ Transparent
	p point
}

type overVec struct {
	_ Robust
	v vec2
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		goType reflect.Type
		role   Role
		shape  Shape
		kind   Kind
		size   uint32
		plain  bool
	}{
		{"u8", reflect.TypeFor[uint8](), RoleRobust, ShapeValue, KindU8, 1, true},
		{"s16", reflect.TypeFor[int16](), RoleRobust, ShapeValue, KindS16, 2, true},
		{"f64", reflect.TypeFor[float64](), RoleRobust, ShapeValue, KindF64, 8, true},
		{"bool", reflect.TypeFor[bool](), RoleNonRobust, ShapeValue, KindBool, 1, false},
		{"generic", reflect.TypeFor[Payload](), RoleTransparent, ShapeValue, KindU64, 8, true},
		{"transparent", reflect.TypeFor[TransparentStruct](), RoleTransparent, ShapeValue, KindU64, 8, true},
		{"nested", reflect.TypeFor[nested](), RoleTransparent, ShapeValue, KindU64, 8, true},
		{"unmarked struct", reflect.TypeFor[counter](), RoleOpaque, ShapeValue, KindHandle, 4, false},
		{"pointer to opaque", reflect.TypeFor[*counter](), RoleOpaque, ShapeValue, KindHandle, 4, false},
		{"transparent over opaque", reflect.TypeFor[session](), RoleOpaque, ShapeValue, KindHandle, 4, false},
		{"interface", reflect.TypeFor[io.Reader](), RoleOpaque, ShapeValue, KindHandle, 4, false},
		{"map", reflect.TypeFor[map[string]int](), RoleOpaque, ShapeValue, KindHandle, 4, false},
		{"string", reflect.TypeFor[string](), RoleOpaque, ShapeValue, KindHandle, 4, false},
		{"record", reflect.TypeFor[point](), RoleWrapping, ShapeValue, KindRecord, 12, false},
		{"robust record", reflect.TypeFor[vec2](), RoleRobust, ShapeValue, KindRecord, 8, true},
		{"transparent over robust record", reflect.TypeFor[overVec](), RoleTransparent, ShapeValue, KindRecord, 8, true},
		{"owned", reflect.TypeFor[[]TransparentStruct](), RoleTransparent, ShapeOwnedSlice, KindOwnedSlice, 12, false},
		{"view", reflect.TypeFor[View[uint16]](), RoleRobust, ShapeView, KindView, 8, false},
		{"exclusive", reflect.TypeFor[*TransparentStruct](), RoleTransparent, ShapeExclusive, KindPointer, 4, false},
		{"shared", reflect.TypeFor[Ref[uint32]](), RoleRobust, ShapeShared, KindPointer, 4, false},
	}

	c := NewClassifier()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			typ, err := c.Classify(tc.goType)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if typ.Role != tc.role {
				t.Errorf("role = %s, want %s", typ.Role, tc.role)
			}
			if typ.Shape != tc.shape {
				t.Errorf("shape = %s, want %s", typ.Shape, tc.shape)
			}
			if typ.Kind != tc.kind {
				t.Errorf("kind = %s, want %s", typ.Kind, tc.kind)
			}
			if typ.Size != tc.size {
				t.Errorf("size = %d, want %d", typ.Size, tc.size)
			}
			if typ.Plain != tc.plain {
				t.Errorf("plain = %v, want %v", typ.Plain, tc.plain)
			}
		})
	}
}

func TestClassify_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		goType reflect.Type
		kind   errors.Kind
	}{
		{"trailing zero-sized field", reflect.TypeFor[trailingZST](), errors.KindLayoutMismatch},
		{"two data fields", reflect.TypeFor[twoFields](), errors.KindInvalidDeclaration},
		{"no data field", reflect.TypeFor[noFields](), errors.KindInvalidDeclaration},
		{"transparent over bool", reflect.TypeFor[flag](), errors.KindInvalidDeclaration},
		{"transparent over wrapping record", reflect.TypeFor[overRecord](), errors.KindInvalidDeclaration},
		{"robust record with bool", reflect.TypeFor[robustWithBool](), errors.KindInvalidDeclaration},
		{"record with container", reflect.TypeFor[recordWithSlice](), errors.KindUnsupported},
		{"record and transparent", reflect.TypeFor[transparentRecord](), errors.KindInvalidDeclaration},
		{"pointer to bool", reflect.TypeFor[*bool](), errors.KindUnsupported},
		{"shared bool", reflect.TypeFor[Ref[bool]](), errors.KindUnsupported},
		{"slice of pointers", reflect.TypeFor[[]*uint32](), errors.KindUnsupported},
	}

	c := NewClassifier()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Classify(tc.goType)
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := errors.KindOf(err); got != tc.kind {
				t.Errorf("kind = %q, want %q (%v)", got, tc.kind, err)
			}
		})
	}
}

func TestClassify_Cached(t *testing.T) {
	c := NewClassifier()
	a, err := c.Classify(reflect.TypeFor[counter]())
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Classify(reflect.TypeFor[counter]())
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("expected the cached descriptor")
	}
	other, _ := c.Classify(reflect.TypeFor[*counter]())
	if other.TypeID() == a.TypeID() || a.TypeID() == 0 {
		t.Errorf("opaque types share tag %d", a.TypeID())
	}
}

func TestClassify_RecordLayout(t *testing.T) {
	typ, err := NewClassifier().Classify(reflect.TypeFor[point]())
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		name string
		off  uint32
	}{{"x", 0}, {"y", 4}, {"seen", 8}}
	if len(typ.Fields) != len(want) {
		t.Fatalf("got %d fields", len(typ.Fields))
	}
	for i, w := range want {
		if typ.Fields[i].Name != w.name || typ.Fields[i].ABIOffset != w.off {
			t.Errorf("field %d = %s@%d, want %s@%d", i, typ.Fields[i].Name, typ.Fields[i].ABIOffset, w.name, w.off)
		}
	}
	if typ.Align != 4 || !typ.Indirect() {
		t.Errorf("align = %d indirect = %v", typ.Align, typ.Indirect())
	}
}

func TestClassify_Nil(t *testing.T) {
	if _, err := NewClassifier().Classify(nil); errors.KindOf(err) != errors.KindInvalidInput {
		t.Errorf("got %v", err)
	}
}

func TestKind_IsScalar(t *testing.T) {
	for _, k := range []Kind{KindU8, KindS32, KindU64, KindF64, KindBool} {
		if !k.IsScalar() {
			t.Errorf("%s should be scalar", k)
		}
	}
	for _, k := range []Kind{KindHandle, KindRecord, KindPointer} {
		if k.IsScalar() {
			t.Errorf("%s should not be scalar", k)
		}
	}
}
