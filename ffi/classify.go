package ffi

import (
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"

	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/ffi/internal/abi"
	"github.com/wippyai/wasm-ffi/ffi/internal/layout"
)

var (
	transparentMarker = reflect.TypeFor[Transparent]()
	robustMarker      = reflect.TypeFor[Robust]()
	recordMarker      = reflect.TypeFor[Record]()
	viewIface         = reflect.TypeFor[viewMarker]()
	refIface          = reflect.TypeFor[refMarker]()
)

// Classifier compiles host types into descriptors. Results are cached per
// reflect.Type, so classification happens once, when a shim is exported.
type Classifier struct {
	layout  *layout.Calculator
	cache   sync.Map // reflect.Type -> *Type
	nextID  atomic.Uint32
	layoutM sync.Mutex
}

// NewClassifier creates a classifier with an empty cache.
func NewClassifier() *Classifier {
	return &Classifier{
		layout: layout.NewCalculator(),
	}
}

var defaultClassifier = NewClassifier()

// TypeOf classifies T with the shared classifier.
func TypeOf[T any]() (*Type, error) {
	return defaultClassifier.Classify(reflect.TypeFor[T]())
}

// Classify returns the descriptor of goType.
func (c *Classifier) Classify(goType reflect.Type) (*Type, error) {
	if goType == nil {
		return nil, errors.New(errors.PhaseClassify, errors.KindInvalidInput).
			Detail("Go type cannot be nil").
			Build()
	}
	if cached, ok := c.cache.Load(goType); ok {
		return cached.(*Type), nil
	}
	return c.classify(goType, nil, map[reflect.Type]bool{})
}

func (c *Classifier) classify(goType reflect.Type, path []string, seen map[reflect.Type]bool) (*Type, error) {
	if cached, ok := c.cache.Load(goType); ok {
		return cached.(*Type), nil
	}
	if seen[goType] {
		return nil, errors.New(errors.PhaseClassify, errors.KindUnsupported).
			Path(path...).
			GoType(goType.String()).
			Detail("recursive type").
			Build()
	}
	seen[goType] = true
	defer delete(seen, goType)

	t, err := c.compile(goType, path, seen)
	if err != nil {
		return nil, err
	}

	actual, _ := c.cache.LoadOrStore(goType, t)
	t = actual.(*Type)
	Logger().Debug("classified type",
		zap.String("go", goType.String()),
		zap.Stringer("role", t.Role),
		zap.Stringer("shape", t.Shape),
		zap.String("abi", t.String()),
	)
	return t, nil
}

func (c *Classifier) compile(goType reflect.Type, path []string, seen map[reflect.Type]bool) (*Type, error) {
	switch goType.Kind() {
	case reflect.Bool:
		return c.primitive(goType, KindBool), nil
	case reflect.Uint8:
		return c.primitive(goType, KindU8), nil
	case reflect.Int8:
		return c.primitive(goType, KindS8), nil
	case reflect.Uint16:
		return c.primitive(goType, KindU16), nil
	case reflect.Int16:
		return c.primitive(goType, KindS16), nil
	case reflect.Uint32:
		return c.primitive(goType, KindU32), nil
	case reflect.Int32:
		return c.primitive(goType, KindS32), nil
	case reflect.Uint64:
		return c.primitive(goType, KindU64), nil
	case reflect.Int64:
		return c.primitive(goType, KindS64), nil
	case reflect.Float32:
		return c.primitive(goType, KindF32), nil
	case reflect.Float64:
		return c.primitive(goType, KindF64), nil
	case reflect.Uint, reflect.Uintptr:
		if goType.Size() == 8 {
			return c.primitive(goType, KindU64), nil
		}
		return c.primitive(goType, KindU32), nil
	case reflect.Int:
		if goType.Size() == 8 {
			return c.primitive(goType, KindS64), nil
		}
		return c.primitive(goType, KindS32), nil
	case reflect.Slice:
		return c.compileSlice(goType, path, seen)
	case reflect.Pointer:
		return c.compilePointer(goType, path, seen)
	case reflect.Struct:
		if goType.Implements(refIface) {
			return c.compileRef(goType, path, seen)
		}
		return c.compileStruct(goType, path, seen)
	case reflect.UnsafePointer:
		return nil, errors.New(errors.PhaseClassify, errors.KindUnsupported).
			Path(path...).
			GoType(goType.String()).
			Detail("raw pointers carry no type to check against").
			Build()
	default:
		return c.opaque(goType, nil), nil
	}
}

var scalarWIT = [...]wit.Type{
	KindU8:   wit.U8{},
	KindS8:   wit.S8{},
	KindU16:  wit.U16{},
	KindS16:  wit.S16{},
	KindU32:  wit.U32{},
	KindS32:  wit.S32{},
	KindU64:  wit.U64{},
	KindS64:  wit.S64{},
	KindF32:  wit.F32{},
	KindF64:  wit.F64{},
	KindBool: wit.Bool{},
}

func (c *Classifier) primitive(goType reflect.Type, kind Kind) *Type {
	size := kind.size()
	t := &Type{
		Go:     goType,
		WIT:    scalarWIT[kind],
		Name:   kind.String(),
		Shape:  ShapeValue,
		Kind:   kind,
		Size:   size,
		Align:  size,
		Role:   RoleRobust,
		Robust: true,
		Plain:  abi.LittleEndian,
	}
	if kind == KindBool {
		// 0 and 1 are the only valid bytes
		t.Role = RoleNonRobust
		t.Robust = false
		t.Plain = false
	}
	return t
}

// opaque describes a type that crosses as a handle. tail is the innermost
// type of a transparent wrapper over an opaque type, nil otherwise.
func (c *Classifier) opaque(goType reflect.Type, tail *Type) *Type {
	name := goName(goType)
	return &Type{
		Go:     goType,
		Tail:   tail,
		WIT:    &wit.TypeDef{Name: &name, Kind: &wit.Own{}},
		Name:   name,
		Role:   RoleOpaque,
		Shape:  ShapeValue,
		Kind:   KindHandle,
		Size:   4,
		Align:  4,
		typeID: c.nextID.Add(1),
	}
}

func (c *Classifier) compileSlice(goType reflect.Type, path []string, seen map[reflect.Type]bool) (*Type, error) {
	elemPath := append(append([]string{}, path...), "[elem]")
	elem, err := c.classify(goType.Elem(), elemPath, seen)
	if err != nil {
		return nil, err
	}
	if elem.Shape != ShapeValue {
		return nil, errors.New(errors.PhaseClassify, errors.KindUnsupported).
			Path(elemPath...).
			GoType(goType.String()).
			Detail("sequence elements must cross by value, got %s", elem.Shape).
			Build()
	}

	t := &Type{
		Go:    goType,
		Elem:  elem,
		WIT:   &wit.TypeDef{Kind: &wit.List{Type: elem.WIT}},
		Role:  elem.Role,
		Align: 4,
	}
	if goType.Implements(viewIface) {
		t.Shape, t.Kind, t.Size = ShapeView, KindView, SliceRefSize
	} else {
		t.Shape, t.Kind, t.Size = ShapeOwnedSlice, KindOwnedSlice, OutBoxedSliceSize
	}
	t.Name = t.String()
	return t, nil
}

func (c *Classifier) compilePointer(goType reflect.Type, path []string, seen map[reflect.Type]bool) (*Type, error) {
	elem, err := c.classify(goType.Elem(), path, seen)
	if err != nil {
		return nil, err
	}
	if elem.Role == RoleOpaque {
		// a pointer to a host-owned value is itself host-owned
		return c.opaque(goType, nil), nil
	}
	if !elem.Plain {
		return nil, errors.New(errors.PhaseClassify, errors.KindUnsupported).
			Path(path...).
			GoType(goType.String()).
			Detail("borrowed referent %s is not laid out as its ABI form", elem).
			Build()
	}
	return c.borrow(goType, elem, ShapeExclusive), nil
}

func (c *Classifier) compileRef(goType reflect.Type, path []string, seen map[reflect.Type]bool) (*Type, error) {
	elem, err := c.classify(goType.Field(0).Type.Elem(), path, seen)
	if err != nil {
		return nil, err
	}
	if !elem.Plain {
		return nil, errors.New(errors.PhaseClassify, errors.KindUnsupported).
			Path(path...).
			GoType(goType.String()).
			Detail("shared referent %s is not laid out as its ABI form", elem).
			Build()
	}
	return c.borrow(goType, elem, ShapeShared), nil
}

func (c *Classifier) borrow(goType reflect.Type, elem *Type, shape Shape) *Type {
	t := &Type{
		Go:    goType,
		Elem:  elem,
		WIT:   &wit.TypeDef{Kind: &wit.Borrow{}},
		Role:  elem.Role,
		Shape: shape,
		Kind:  KindPointer,
		Size:  4,
		Align: 4,
	}
	t.Name = t.String()
	return t
}

// Shared returns the shared-borrow form of an exclusive pointer type.
func (c *Classifier) shared(t *Type) *Type {
	if t.Shape != ShapeExclusive {
		return t
	}
	return c.borrow(t.Go, t.Elem, ShapeShared)
}

type structShape struct {
	fields      []reflect.StructField // non-zero-sized
	transparent bool
	robust      bool
	record      bool
}

func inspect(goType reflect.Type) structShape {
	var s structShape
	for i := 0; i < goType.NumField(); i++ {
		f := goType.Field(i)
		switch f.Type {
		case transparentMarker:
			s.transparent = true
			continue
		case robustMarker:
			s.robust = true
			continue
		case recordMarker:
			s.record = true
			continue
		}
		if f.Type.Size() == 0 {
			continue
		}
		s.fields = append(s.fields, f)
	}
	return s
}

func (c *Classifier) compileStruct(goType reflect.Type, path []string, seen map[reflect.Type]bool) (*Type, error) {
	s := inspect(goType)

	switch {
	case s.record && s.transparent:
		return nil, errors.InvalidDeclaration(path, goType.String(),
			"a record is serialized field by field and cannot be transparent")
	case s.record:
		return c.compileRecord(goType, s, path, seen)
	case s.transparent || s.robust:
		if len(s.fields) != 1 {
			return nil, errors.InvalidDeclaration(path, goType.String(),
				"transparent types need exactly one non-zero-sized field, found "+strconv.Itoa(len(s.fields)))
		}
		return c.compileTransparent(goType, s.fields[0], path, seen)
	default:
		return c.opaque(goType, nil), nil
	}
}

func (c *Classifier) compileTransparent(goType reflect.Type, inner reflect.StructField, path []string, seen map[reflect.Type]bool) (*Type, error) {
	if inner.Offset != 0 || goType.Size() != inner.Type.Size() || goType.Align() != inner.Type.Align() {
		return nil, errors.LayoutMismatch(path, goType.String(), inner.Type.String(),
			"wrapper layout differs from its field "+inner.Name+"; zero-sized fields must precede it")
	}

	fieldPath := append(append([]string{}, path...), inner.Name)
	in, err := c.classify(inner.Type, fieldPath, seen)
	if err != nil {
		return nil, err
	}

	if in.Shape != ShapeValue {
		return nil, errors.InvalidDeclaration(fieldPath, goType.String(),
			"transparent over "+in.Shape.String()+" is not supported")
	}

	tail := in
	if in.Role == RoleTransparent || in.Tail != nil {
		tail = in.Tail
	}

	if in.Role == RoleOpaque {
		return c.opaque(goType, tail), nil
	}
	if !in.Robust {
		return nil, errors.InvalidDeclaration(fieldPath, goType.String(),
			"transparent over non-robust "+in.String())
	}
	if tail.Size != uint32(goType.Size()) {
		return nil, errors.LayoutMismatch(path, goType.String(), tail.String(),
			"ABI size differs from host size")
	}

	return &Type{
		Go:     goType,
		Tail:   tail,
		Fields: tail.Fields,
		WIT:    tail.WIT,
		Name:   tail.Name,
		Role:   RoleTransparent,
		Shape:  ShapeValue,
		Kind:   tail.Kind,
		Size:   tail.Size,
		Align:  tail.Align,
		Plain:  tail.Plain,
		Robust: true,
	}, nil
}

func (c *Classifier) compileRecord(goType reflect.Type, s structShape, path []string, seen map[reflect.Type]bool) (*Type, error) {
	if len(s.fields) == 0 {
		return nil, errors.InvalidDeclaration(path, goType.String(), "record has no non-zero-sized fields")
	}

	fields := make([]Field, 0, len(s.fields))
	witFields := make([]wit.Field, 0, len(s.fields))
	robust, plain := true, abi.LittleEndian

	for _, f := range s.fields {
		fieldPath := append(append([]string{}, path...), f.Name)
		ft, err := c.classify(f.Type, fieldPath, seen)
		if err != nil {
			return nil, err
		}
		if ft.Shape != ShapeValue {
			return nil, errors.New(errors.PhaseClassify, errors.KindUnsupported).
				Path(fieldPath...).
				GoType(f.Type.String()).
				Detail("containers are not allowed in records").
				Build()
		}
		name := snakeCase(f.Name)
		fields = append(fields, Field{
			Type:     ft,
			Name:     name,
			GoOffset: f.Offset,
		})
		witFields = append(witFields, wit.Field{Name: name, Type: ft.WIT})
		robust = robust && ft.Robust
		plain = plain && ft.Plain
	}

	name := goName(goType)
	td := &wit.TypeDef{Name: &name, Kind: &wit.Record{Fields: witFields}}

	c.layoutM.Lock()
	info := c.layout.Calculate(td)
	c.layoutM.Unlock()

	sameLayout := info.Size == uint32(goType.Size()) && info.Align == uint32(goType.Align())
	for i := range fields {
		fields[i].ABIOffset = info.FieldOffs[i]
		if uintptr(fields[i].ABIOffset) != fields[i].GoOffset {
			sameLayout = false
		}
	}

	t := &Type{
		Go:     goType,
		Fields: fields,
		WIT:    td,
		Name:   name,
		Role:   RoleWrapping,
		Shape:  ShapeValue,
		Kind:   KindRecord,
		Size:   info.Size,
		Align:  info.Align,
	}

	if s.robust {
		if !robust {
			return nil, errors.InvalidDeclaration(path, goType.String(),
				"robust record has a field with invalid bit patterns")
		}
		if !sameLayout {
			return nil, errors.LayoutMismatch(path, goType.String(), name,
				"robust record must be laid out like its C form")
		}
		t.Role = RoleRobust
		t.Robust = true
		t.Plain = plain
	}
	return t, nil
}
