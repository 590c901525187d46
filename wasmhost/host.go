package wasmhost

import (
	"context"
	"strconv"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wasmffi "github.com/wippyai/wasm-ffi"
	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/ffi"
	"github.com/wippyai/wasm-ffi/memory"
)

// DefaultName is the import module name guests use by default.
const DefaultName = "ffi"

// ReallocExport is the guest export used as allocator when present.
const ReallocExport = "cabi_realloc"

type config struct {
	allocator  wasmffi.Allocator
	name       string
	memoryFrom string
}

// Option configures a host module.
type Option func(*config)

// WithName sets the import module name.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithMemoryFrom resolves linear memory from the module registered as name
// instead of the caller. Use it when the shims are called from the host or
// from modules that do not export a memory.
func WithMemoryFrom(name string) Option {
	return func(c *config) {
		c.memoryFrom = name
	}
}

// WithAllocator sets the allocator for owned buffers and temporaries.
func WithAllocator(a wasmffi.Allocator) Option {
	return func(c *config) {
		c.allocator = a
	}
}

// Host is an instantiated host module serving one library.
type Host struct {
	rt  wazero.Runtime
	mod api.Module
	lib *ffi.Library
	cfg config
}

// Instantiate registers every shim of lib in a host module of rt.
func Instantiate(ctx context.Context, rt wazero.Runtime, lib *ffi.Library, opts ...Option) (*Host, error) {
	cfg := config{name: DefaultName}
	for _, opt := range opts {
		opt(&cfg)
	}
	if lib == nil {
		return nil, errors.InvalidInput(errors.PhaseBind, "nil library")
	}

	h := &Host{rt: rt, lib: lib, cfg: cfg}
	builder := rt.NewHostModuleBuilder(cfg.name)
	for _, s := range lib.Shims() {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(h.handler(s), ValueTypes(s.CoreParams()), []api.ValueType{api.ValueTypeI32}).
			WithParameterNames(paramNames(s)...).
			Export(s.Symbol)
		Logger().Debug("bound shim",
			zap.String("module", cfg.name),
			zap.String("symbol", s.Symbol))
	}

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseBind, errors.KindRegistration, err, "instantiate host module "+cfg.name)
	}
	h.mod = mod
	return h, nil
}

// Module returns the wazero host module.
func (h *Host) Module() api.Module {
	return h.mod
}

// Library returns the library the host serves.
func (h *Host) Library() *ffi.Library {
	return h.lib
}

// Name returns the import module name.
func (h *Host) Name() string {
	return h.cfg.name
}

// Close closes the host module. The library stays usable.
func (h *Host) Close(ctx context.Context) error {
	return h.mod.Close(ctx)
}

// Env resolves the memory and allocator a call from caller runs against.
// With neither WithAllocator nor a cabi_realloc export the allocator is
// nil: the host never carves buffers out of memory it does not manage, so
// calls that need an allocation fail with ConversionFailed.
func (h *Host) Env(ctx context.Context, caller api.Module) (ffi.Env, error) {
	mem, err := h.memory(caller)
	if err != nil {
		return ffi.Env{}, err
	}
	env := ffi.Env{Memory: memory.Wrap(mem), Allocator: h.cfg.allocator}
	if env.Allocator == nil && caller != nil {
		env.Allocator = memory.WrapAllocator(ctx, caller.ExportedFunction(ReallocExport))
	}
	return env, nil
}

func (h *Host) memory(caller api.Module) (api.Memory, error) {
	if h.cfg.memoryFrom != "" {
		mod := h.rt.Module(h.cfg.memoryFrom)
		if mod == nil {
			return nil, errors.NotFound(errors.PhaseBind, "module", h.cfg.memoryFrom)
		}
		if mem := mod.Memory(); mem != nil {
			return mem, nil
		}
		return nil, errors.Unsupported(errors.PhaseBind, "module "+h.cfg.memoryFrom+" exports no memory")
	}
	if caller != nil {
		if mem := caller.Memory(); mem != nil {
			return mem, nil
		}
	}
	return nil, errors.Unsupported(errors.PhaseBind, "caller exports no memory; use WithMemoryFrom")
}

// Converter returns a converter for host code talking to the library over
// the memory of caller.
func (h *Host) Converter(ctx context.Context, caller api.Module) (*ffi.Converter, error) {
	env, err := h.Env(ctx, caller)
	if err != nil {
		return nil, err
	}
	return h.lib.Converter(env), nil
}

func (h *Host) handler(s *ffi.Shim) api.GoModuleFunc {
	n := s.StackSize()
	return func(ctx context.Context, caller api.Module, stack []uint64) {
		env, err := h.Env(ctx, caller)
		if err != nil {
			Logger().Debug("no environment for call",
				zap.String("symbol", s.Symbol),
				zap.Error(err))
			stack[0] = ffi.StatusFor(err).Word()
			return
		}
		stack[0] = s.Invoke(ctx, env, stack[:n]).Word()
	}
}

// ValueTypes maps ABI core types to wazero value types.
func ValueTypes(core []ffi.CoreType) []api.ValueType {
	out := make([]api.ValueType, len(core))
	for i, c := range core {
		switch c {
		case ffi.CoreI64:
			out[i] = api.ValueTypeI64
		case ffi.CoreF32:
			out[i] = api.ValueTypeF32
		case ffi.CoreF64:
			out[i] = api.ValueTypeF64
		default:
			out[i] = api.ValueTypeI32
		}
	}
	return out
}

func paramNames(s *ffi.Shim) []string {
	var names []string
	for i, p := range s.Params {
		base := s.ParamName(i)
		if p.Words() == 1 {
			names = append(names, base)
			continue
		}
		for j := 0; j < p.Words(); j++ {
			names = append(names, base+"_"+carrierFields[j])
		}
	}
	for i := range s.Results {
		names = append(names, "out"+strconv.Itoa(i))
	}
	return names
}

var carrierFields = [...]string{"data", "len", "cap"}
