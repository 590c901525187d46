package ffi

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/resource"
)

// Companion entry points every library exports.
const (
	DeallocSymbol = "__dealloc"
	DropSymbol    = "__drop"
)

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// Library is a set of shims sharing one handle table.
type Library struct {
	handles *resource.Table
	types   *Classifier
	shims   map[string]*Shim
	order   []*Shim
	mu      sync.RWMutex
}

// LibraryOption configures a Library.
type LibraryOption func(*Library)

// WithHandles uses t for opaque values instead of a fresh table.
func WithHandles(t *resource.Table) LibraryOption {
	return func(l *Library) {
		l.handles = t
	}
}

// WithClassifier uses c instead of the shared classifier. Converters
// talking to the library must use the same one; see Library.Converter.
func WithClassifier(c *Classifier) LibraryOption {
	return func(l *Library) {
		l.types = c
	}
}

// NewLibrary creates a library holding only the companion entry points.
func NewLibrary(opts ...LibraryOption) *Library {
	l := &Library{
		handles: resource.NewTable(),
		types:   defaultClassifier,
		shims:   make(map[string]*Shim),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.registerBuiltins()
	return l
}

func (l *Library) registerBuiltins() {
	u32, _ := l.types.Classify(reflect.TypeFor[uint32]())
	l.add(&Shim{
		Symbol:  DeallocSymbol,
		Params:  []*Type{u32, u32, u32},
		names:   []string{"ptr", "size", "align"},
		builtin: l.dealloc,
		lib:     l,
	})
	l.add(&Shim{
		Symbol:  DropSymbol,
		Params:  []*Type{u32},
		names:   []string{"handle"},
		builtin: l.drop,
		lib:     l,
	})
}

func (l *Library) dealloc(_ context.Context, env Env, words []uint64) error {
	ptr := uint32(words[0])
	if ptr == 0 {
		return errors.ArgIsNull(errors.PhaseCall, "ptr")
	}
	if env.Allocator == nil {
		return errors.Unsupported(errors.PhaseCall, "no allocator bound")
	}
	env.Allocator.Free(ptr, uint32(words[1]), uint32(words[2]))
	return nil
}

func (l *Library) drop(_ context.Context, _ Env, words []uint64) error {
	h := resource.Handle(uint32(words[0]))
	if h == 0 {
		return errors.ArgIsNull(errors.PhaseCall, "handle")
	}
	if !l.handles.Drop(h) {
		return errors.ConversionFailed(errors.PhaseCall, []string{"handle"},
			fmt.Sprintf("handle %d is not live or is borrowed", h))
	}
	return nil
}

// Func exports fn as "__name". fn may take a leading context.Context and
// may return a trailing error, which the shim reports as ExecutionFail.
//
// An owned []T argument is copied to the Go heap and its linear-memory
// buffer freed, so fn may keep it. The exception is a signature that also
// returns an owned []T of the same element type: then the argument aliases
// the guest buffer so returning it moves the buffer back without a copy.
// Such an argument is valid only until fn returns unless fn returns it.
func (l *Library) Func(name string, fn any) error {
	return l.export(FuncSymbol(name), fn, false, false)
}

// Static exports fn, which takes no receiver, under its type's namespace as
// "typeName__name". Constructors are exported this way.
func (l *Library) Static(typeName, name string, fn any) error {
	return l.export(MethodSymbol(typeName, name), fn, false, false)
}

type methodConfig struct {
	symbol string
	shared bool
}

// MethodOption configures an exported method.
type MethodOption func(*methodConfig)

// Shared passes a *T receiver as a shared borrow rather than an exclusive
// one.
func Shared() MethodOption {
	return func(c *methodConfig) {
		c.shared = true
	}
}

// Symbol overrides the entry point name.
func Symbol(name string) MethodOption {
	return func(c *methodConfig) {
		c.symbol = name
	}
}

// Method exports a method expression, such as (*T).Name, as
// "typeName__name". The receiver crosses by value for T, as an exclusive
// borrow for *T and as a shared borrow for Ref[T] or with Shared.
// Owned sequence arguments behave as they do for Func.
func (l *Library) Method(typeName, name string, fn any, opts ...MethodOption) error {
	var cfg methodConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	symbol := cfg.symbol
	if symbol == "" {
		if typeName == "" {
			if ft := reflect.TypeOf(fn); ft != nil && ft.Kind() == reflect.Func && ft.NumIn() > 0 {
				recv := ft.In(0)
				if recv.Kind() == reflect.Pointer {
					recv = recv.Elem()
				}
				typeName = recv.Name()
			}
		}
		symbol = MethodSymbol(typeName, name)
	}
	return l.export(symbol, fn, true, cfg.shared)
}

func (l *Library) export(symbol string, fn any, method, shared bool) error {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return errors.InvalidInput(errors.PhaseExport, fmt.Sprintf("%s: expected a function, got %T", symbol, fn))
	}
	ft := rv.Type()
	if ft.IsVariadic() {
		return errors.Unsupported(errors.PhaseExport, symbol+": variadic functions")
	}

	s := &Shim{
		fn:     rv,
		lib:    l,
		Symbol: symbol,
	}

	ctxAt := 0
	if method {
		ctxAt = 1
	}
	for i := 0; i < ft.NumIn(); i++ {
		in := ft.In(i)
		if i == ctxAt && in == contextType {
			s.hasCtx = true
			continue
		}
		t, err := l.types.Classify(in)
		if err != nil {
			return wrapExport(symbol, "arg"+strconv.Itoa(i), err)
		}
		s.Params = append(s.Params, t)
	}
	if method {
		if len(s.Params) == 0 {
			return errors.InvalidInput(errors.PhaseExport, symbol+": a method needs a receiver")
		}
		if shared {
			s.Params[0] = l.types.shared(s.Params[0])
		}
		s.Receiver = s.Params[0]
	}

	n := ft.NumOut()
	if n > 0 && ft.Out(n-1) == errorType {
		s.returnsErr = true
		n--
	}
	for i := 0; i < n; i++ {
		t, err := l.types.Classify(ft.Out(i))
		if err != nil {
			return wrapExport(symbol, "out"+strconv.Itoa(i), err)
		}
		if t.Shape == ShapeView && !t.Elem.Plain {
			return errors.Unsupported(errors.PhaseExport,
				symbol+": a borrowed sequence result must alias memory, "+t.Elem.String()+" cannot")
		}
		s.Results = append(s.Results, t)
	}
	s.inPlace = s.viewsInPlace()

	if err := l.add(s); err != nil {
		return err
	}
	Logger().Debug("exported shim",
		zap.String("symbol", symbol),
		zap.Int("params", len(s.Params)),
		zap.Int("results", len(s.Results)),
	)
	return nil
}

func wrapExport(symbol, where string, err error) error {
	return errors.New(errors.PhaseExport, errors.KindOf(err)).
		Path(symbol, where).
		Cause(err).
		Build()
}

func (l *Library) add(s *Shim) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.shims[s.Symbol]; exists {
		return errors.New(errors.PhaseExport, errors.KindRegistration).
			Detail("symbol %s already exported", s.Symbol).
			Build()
	}
	l.shims[s.Symbol] = s
	l.order = append(l.order, s)
	return nil
}

// Shim returns the shim exported as symbol.
func (l *Library) Shim(symbol string) (*Shim, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.shims[symbol]
	return s, ok
}

// Shims returns every shim in export order, companions first.
func (l *Library) Shims() []*Shim {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*Shim(nil), l.order...)
}

// Call invokes the shim exported as symbol.
func (l *Library) Call(ctx context.Context, env Env, symbol string, stack []uint64) (Status, error) {
	s, ok := l.Shim(symbol)
	if !ok {
		err := errors.NotFound(errors.PhaseCall, "symbol", symbol)
		return StatusFor(err), err
	}
	return s.invoke(ctx, env, stack)
}

// Converter returns a converter that shares the library's handle table and
// classifier.
func (l *Library) Converter(env Env) *Converter {
	return &Converter{
		env:     env,
		handles: l.handles,
		types:   l.types,
	}
}

// Deallocator releases owned carriers by calling the library's __dealloc.
func (l *Library) Deallocator(ctx context.Context, env Env) Deallocator {
	return DeallocFunc(func(ptr, size, align uint32) error {
		_, err := l.Call(ctx, env, DeallocSymbol, []uint64{uint64(ptr), uint64(size), uint64(align)})
		return err
	})
}

// Handles returns the table opaque values live in.
func (l *Library) Handles() *resource.Table {
	return l.handles
}

// Classifier returns the classifier the library compiles types with.
func (l *Library) Classifier() *Classifier {
	return l.types
}

// Close drops every live handle.
func (l *Library) Close() error {
	return l.handles.Close()
}
