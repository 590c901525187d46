package ffi

import (
	"context"
	"testing"

	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/resource"
)

type widget struct {
	size uint32
}

func (w *widget) Resize(by uint32) uint32 {
	w.size += by
	return w.size
}

func TestLibrary_Builtins(t *testing.T) {
	lib := NewLibrary()
	defer lib.Close()

	shims := lib.Shims()
	if len(shims) != 2 || shims[0].Symbol != DeallocSymbol || shims[1].Symbol != DropSymbol {
		t.Fatalf("companions = %v", shims)
	}
	if shims[0].StackSize() != 3 || len(shims[0].CoreResults()) != 0 {
		t.Errorf("__dealloc stack = %d", shims[0].StackSize())
	}
}

func TestLibrary_Registration(t *testing.T) {
	lib := NewLibrary()
	defer lib.Close()

	mustExport(t, lib.Func("Echo", func(v uint32) uint32 { return v }))
	if err := lib.Func("Echo", func(v uint64) uint64 { return v }); errors.KindOf(err) != errors.KindRegistration {
		t.Errorf("duplicate: %v", err)
	}
	if err := lib.Func("NotAFunc", 42); errors.KindOf(err) != errors.KindInvalidInput {
		t.Errorf("non-function: %v", err)
	}
	if err := lib.Func("Variadic", func(v ...uint32) {}); errors.KindOf(err) != errors.KindUnsupported {
		t.Errorf("variadic: %v", err)
	}
	if err := lib.Func("BoolPtr", func(v *bool) {}); errors.KindOf(err) != errors.KindUnsupported {
		t.Errorf("pointer to non-plain: %v", err)
	}
	if err := lib.Func("Dangling", func(v []bool) View[bool] { return nil }); errors.KindOf(err) != errors.KindUnsupported {
		t.Errorf("non-plain view result: %v", err)
	}
	if err := lib.Method("T", "Nothing", func() {}); errors.KindOf(err) != errors.KindInvalidInput {
		t.Errorf("method without receiver: %v", err)
	}
}

func TestLibrary_MethodSymbols(t *testing.T) {
	lib := NewLibrary()
	defer lib.Close()

	mustExport(t, lib.Method("", "Resize", (*widget).Resize))
	mustExport(t, lib.Method("Widget", "Resize", (*widget).Resize, Symbol("widget_resize")))

	s, ok := lib.Shim("widget__resize")
	if !ok {
		t.Fatal("receiver type name not derived")
	}
	if s.Receiver == nil || s.Receiver.Role != RoleOpaque {
		t.Errorf("receiver = %v", s.Receiver)
	}
	if _, ok := lib.Shim("widget_resize"); !ok {
		t.Error("Symbol override ignored")
	}

	mustExport(t, lib.Static("Widget", "NewWidget", func(size uint32) *widget { return &widget{size: size} }))
	s, ok = lib.Shim("Widget__new_widget")
	if !ok {
		t.Fatal("static function not exported under its type")
	}
	if s.Receiver != nil || s.ParamName(0) != "arg0" {
		t.Errorf("static function has a receiver: %v", s.Receiver)
	}
}

func TestLibrary_CallErrors(t *testing.T) {
	te := newTestEnv(t)
	lib := NewLibrary()
	defer lib.Close()
	mustExport(t, lib.Func("Echo", func(v uint32) uint32 { return v }))

	st, err := lib.Call(context.Background(), te.Env, "__missing", nil)
	if st != ConversionFailed || errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("missing symbol: %s, %v", st, err)
	}
	st, err = lib.Call(context.Background(), te.Env, "__echo", []uint64{1})
	if st != ConversionFailed || errors.KindOf(err) != errors.KindInvalidInput {
		t.Errorf("short stack: %s, %v", st, err)
	}
	if st := call(t, lib, te.Env, DeallocSymbol, 0, 8, 8); st != ArgIsNull {
		t.Errorf("dealloc(null) = %s", st)
	}
	if st := call(t, lib, te.Env, DropSymbol, 0); st != ArgIsNull {
		t.Errorf("drop(0) = %s", st)
	}
	if st := call(t, lib, te.Env, DropSymbol, 77); st != ConversionFailed {
		t.Errorf("drop(77) = %s", st)
	}
}

func TestLibrary_Dealloc(t *testing.T) {
	te := newTestEnv(t)
	lib := NewLibrary()
	defer lib.Close()

	ptr, err := te.heap.Alloc(24, 8)
	if err != nil {
		t.Fatal(err)
	}
	if st := call(t, lib, te.Env, DeallocSymbol, uint64(ptr), 24, 8); st != Ok {
		t.Fatalf("dealloc = %s", st)
	}
	if te.heap.Owns(ptr, 24) {
		t.Error("buffer still live")
	}
	if st := call(t, lib, te.Env, DeallocSymbol, uint64(ptr), 24, 8); st != Ok {
		t.Fatalf("second dealloc = %s", st)
	}
	if te.heap.Stats().InvalidFrees != 1 {
		t.Errorf("double free not recorded: %+v", te.heap.Stats())
	}
}

func TestLibrary_SharedHandles(t *testing.T) {
	te := newTestEnv(t)
	table := resource.NewTable()
	a := NewLibrary(WithHandles(table))
	b := NewLibrary(WithHandles(table), WithClassifier(a.Classifier()))
	defer table.Close()

	mustExport(t, a.Method("", "Resize", (*widget).Resize))
	mustExport(t, b.Func("MakeWidget", func() *widget { return &widget{size: 1} }))

	out := te.slot(t, 4, 4)
	if st := call(t, b, te.Env, "__make_widget", uint64(out)); st != Ok {
		t.Fatalf("make = %s", st)
	}
	h, _ := te.Memory.ReadU32(out)
	res := te.slot(t, 4, 4)
	if st := call(t, a, te.Env, "widget__resize", uint64(h), 2, uint64(res)); st != Ok {
		t.Fatalf("resize = %s", st)
	}
	if v, _ := te.Memory.ReadU32(res); v != 3 {
		t.Errorf("size = %d", v)
	}
}

func TestLibrary_DropWhilePinned(t *testing.T) {
	te := newTestEnv(t)
	lib := NewLibrary()
	defer lib.Close()

	var h uint32
	mustExport(t, lib.Method("", "Resize", func(w *widget, by uint32) uint32 {
		if st := call(t, lib, te.Env, DropSymbol, uint64(h)); st != ConversionFailed {
			t.Errorf("drop during call = %s", st)
		}
		return w.Resize(by)
	}))

	conv := lib.Converter(te.Env)
	words, err := Lower(conv, &widget{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	h = uint32(words[0])
	res := te.slot(t, 4, 4)
	if st := call(t, lib, te.Env, "widget__resize", words[0], 5, uint64(res)); st != Ok {
		t.Fatalf("resize = %s", st)
	}
	if st := call(t, lib, te.Env, DropSymbol, uint64(h)); st != Ok {
		t.Errorf("drop after call = %s", st)
	}
}
