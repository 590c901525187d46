package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/wasm-ffi/ffi"
	"github.com/wippyai/wasm-ffi/internal/demo"
	"github.com/wippyai/wasm-ffi/memory"
	"github.com/wippyai/wasm-ffi/wasmhost"
)

const memoryName = "mem"

// session runs the demo library on a standalone memory, calling shims
// through the host module exactly as a guest would.
type session struct {
	ctx  context.Context
	rt   wazero.Runtime
	lib  *ffi.Library
	host *wasmhost.Host
	mem  memory.Linear
	heap *memory.Heap
}

// outcome is what one call produced.
type outcome struct {
	Symbol    string
	Signature string
	Status    ffi.Status
	Results   []string
	Borrows   []string
}

type borrow struct {
	name string
	t    *ffi.Type
	addr uint32
}

func newSession(ctx context.Context, pages uint32) (*session, error) {
	rt := wazero.NewRuntime(ctx)
	memMod, err := memory.Standalone(ctx, rt, memoryName, pages)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("create memory: %w", err)
	}
	mem := memory.Wrap(memMod.Memory())
	heap := memory.NewHeapFor(mem)

	lib, err := demo.NewLibrary()
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("build library: %w", err)
	}
	host, err := wasmhost.Instantiate(ctx, rt, lib,
		wasmhost.WithMemoryFrom(memoryName),
		wasmhost.WithAllocator(heap))
	if err != nil {
		_ = lib.Close()
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("bind library: %w", err)
	}

	return &session{ctx: ctx, rt: rt, lib: lib, host: host, mem: mem, heap: heap}, nil
}

func (s *session) Close() error {
	_ = s.lib.Close()
	return s.rt.Close(s.ctx)
}

func (s *session) shims() []*ffi.Shim {
	return s.lib.Shims()
}

// shim finds a shim by symbol or by the Go name of a free function.
func (s *session) shim(name string) (*ffi.Shim, error) {
	if sh, ok := s.lib.Shim(name); ok {
		return sh, nil
	}
	if sh, ok := s.lib.Shim(ffi.FuncSymbol(name)); ok {
		return sh, nil
	}
	return nil, fmt.Errorf("unknown shim %q", name)
}

// call invokes a shim with textual arguments, one per parameter. Sequence
// arguments are space separated elements; pointer arguments may be "null".
func (s *session) call(name string, args []string) (*outcome, error) {
	sh, err := s.shim(name)
	if err != nil {
		return nil, err
	}
	if len(args) != len(sh.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", sh.Symbol, len(sh.Params), len(args))
	}

	store := ffi.NewStore()
	defer store.FreeAndRelease(s.heap)

	var stack []uint64
	var borrows []borrow
	for i, p := range sh.Params {
		words, b, err := s.encodeArg(p, args[i], store)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sh.ParamName(i), err)
		}
		if b != nil {
			b.name = sh.ParamName(i)
			borrows = append(borrows, *b)
		}
		stack = append(stack, words...)
	}

	outs := make([]uint32, len(sh.Results))
	for i, r := range sh.Results {
		ptr, err := s.temp(store, r.Size, r.Align)
		if err != nil {
			return nil, err
		}
		outs[i] = ptr
		stack = append(stack, uint64(ptr))
	}

	st, err := s.invoke(sh.Symbol, stack)
	if err != nil {
		return nil, err
	}
	out := &outcome{Symbol: sh.Symbol, Signature: sh.Signature(), Status: st}
	if st != ffi.Ok {
		return out, nil
	}

	for i, r := range sh.Results {
		text, err := s.decodeOut(r, outs[i])
		if err != nil {
			return nil, fmt.Errorf("out%d: %w", i, err)
		}
		out.Results = append(out.Results, text)
	}
	for _, b := range borrows {
		raw, err := s.mem.Read(b.addr, b.t.Size)
		if err != nil {
			return nil, err
		}
		out.Borrows = append(out.Borrows, fmt.Sprintf("%s: %s @%#x", b.name, formatScalar(b.t, raw), b.addr))
	}
	return out, nil
}

func (s *session) invoke(symbol string, stack []uint64) (ffi.Status, error) {
	fn := s.host.Module().ExportedFunction(symbol)
	if fn == nil {
		return ffi.Unknown, fmt.Errorf("%s is not bound", symbol)
	}
	res, err := fn.Call(s.ctx, stack...)
	if err != nil {
		return ffi.Unknown, fmt.Errorf("call %s: %w", symbol, err)
	}
	return ffi.StatusOf(int32(uint32(res[0]))), nil
}

// temp allocates a buffer released with store.
func (s *session) temp(store *ffi.Store, size, align uint32) (uint32, error) {
	ptr, err := s.heap.Alloc(size, align)
	if err != nil {
		return 0, err
	}
	store.Add(ptr, size, align)
	return ptr, nil
}

func (s *session) encodeArg(p *ffi.Type, text string, store *ffi.Store) ([]uint64, *borrow, error) {
	switch p.Shape {
	case ffi.ShapeValue:
		if p.Indirect() {
			return nil, nil, fmt.Errorf("%s arguments cannot be written on the command line", p)
		}
		b, err := encodeScalar(p, text)
		if err != nil {
			return nil, nil, err
		}
		return []uint64{word(b)}, nil, nil

	case ffi.ShapeExclusive, ffi.ShapeShared:
		if strings.TrimSpace(text) == "null" {
			return []uint64{0}, nil, nil
		}
		b, err := encodeScalar(p.Elem, text)
		if err != nil {
			return nil, nil, err
		}
		ptr, err := s.temp(store, p.Elem.Size, p.Elem.Align)
		if err != nil {
			return nil, nil, err
		}
		if err := s.mem.Write(ptr, b); err != nil {
			return nil, nil, err
		}
		return []uint64{uint64(ptr)}, &borrow{t: p.Elem, addr: ptr}, nil

	case ffi.ShapeOwnedSlice, ffi.ShapeView:
		fields := strings.Fields(text)
		if len(fields) == 0 {
			if p.Shape == ffi.ShapeView {
				return ffi.SliceRef{}.Words(), nil, nil
			}
			return ffi.OutBoxedSlice{}.Words(), nil, nil
		}
		var buf []byte
		for _, f := range fields {
			b, err := encodeScalar(p.Elem, f)
			if err != nil {
				return nil, nil, err
			}
			buf = append(buf, b...)
		}
		n := uint32(len(fields))
		size := n * p.Elem.Size

		if p.Shape == ffi.ShapeView {
			ptr, err := s.temp(store, size, p.Elem.Align)
			if err != nil {
				return nil, nil, err
			}
			if err := s.mem.Write(ptr, buf); err != nil {
				return nil, nil, err
			}
			return ffi.SliceRef{Data: ptr, Len: n}.Words(), nil, nil
		}
		// owned: the callee takes the buffer over
		ptr, err := s.heap.Alloc(size, p.Elem.Align)
		if err != nil {
			return nil, nil, err
		}
		if err := s.mem.Write(ptr, buf); err != nil {
			s.heap.Free(ptr, size, p.Elem.Align)
			return nil, nil, err
		}
		return ffi.OutBoxedSlice{Data: ptr, Len: n, Cap: n}.Words(), nil, nil
	}
	return nil, nil, fmt.Errorf("unsupported parameter %s", p)
}

func (s *session) decodeOut(r *ffi.Type, addr uint32) (string, error) {
	switch r.Shape {
	case ffi.ShapeValue:
		raw, err := s.mem.Read(addr, r.Size)
		if err != nil {
			return "", err
		}
		return formatScalar(r, raw), nil

	case ffi.ShapeExclusive, ffi.ShapeShared:
		ptr, err := s.mem.ReadU32(addr)
		if err != nil {
			return "", err
		}
		raw, err := s.mem.Read(ptr, r.Elem.Size)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("&%#x -> %s", ptr, formatScalar(r.Elem, raw)), nil

	case ffi.ShapeView:
		data, _ := s.mem.ReadU32(addr)
		n, _ := s.mem.ReadU32(addr + 4)
		raw, err := s.mem.Read(data, n*r.Elem.Size)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s (borrowed data=%#x len=%d)", formatElems(r.Elem, raw, n), data, n), nil

	case ffi.ShapeOwnedSlice:
		data, _ := s.mem.ReadU32(addr)
		n, _ := s.mem.ReadU32(addr + 4)
		c, _ := s.mem.ReadU32(addr + 8)
		raw, err := s.mem.Read(data, n*r.Elem.Size)
		if err != nil {
			return "", err
		}
		text := fmt.Sprintf("%s (owned data=%#x len=%d cap=%d", formatElems(r.Elem, raw, n), data, n, c)
		if data == 0 {
			return text + ")", nil
		}
		st, err := s.invoke(ffi.DeallocSymbol, []uint64{uint64(data), uint64(c * r.Elem.Size), uint64(r.Elem.Align)})
		if err != nil {
			return "", err
		}
		if st != ffi.Ok {
			return "", fmt.Errorf("release owned result: %s", st)
		}
		return text + ", released)", nil
	}
	return "", fmt.Errorf("unsupported result %s", r)
}

// splitArgs splits the -args flag: arguments are comma separated.
func splitArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
