package ffi

import (
	"bytes"
	"context"
	"testing"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/wasm-ffi/memory"
)

type testEnv struct {
	Env
	heap *memory.Heap
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	mod, err := memory.Standalone(ctx, rt, "", 1)
	if err != nil {
		t.Fatalf("standalone memory: %v", err)
	}
	mem := memory.Wrap(mod.Memory())
	heap := memory.NewHeapFor(mem)
	return testEnv{
		Env:  Env{Memory: mem, Allocator: heap},
		heap: heap,
	}
}

const sentinel = 0xAA

// slot allocates an out-pointer filled with sentinel bytes.
func (e testEnv) slot(t *testing.T, size, align uint32) uint32 {
	t.Helper()
	ptr, err := e.heap.Alloc(size, align)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if err := e.Memory.Write(ptr, bytes.Repeat([]byte{sentinel}, int(size))); err != nil {
		t.Fatalf("fill slot: %v", err)
	}
	return ptr
}

func (e testEnv) untouched(t *testing.T, ptr, size uint32) {
	t.Helper()
	b, err := e.Memory.Read(ptr, size)
	if err != nil {
		t.Fatalf("read slot: %v", err)
	}
	for i, v := range b {
		if v != sentinel {
			t.Fatalf("slot %#x byte %d was written: %#x", ptr, i, v)
		}
	}
}

func mustExport(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
}

func call(t *testing.T, lib *Library, env Env, symbol string, stack ...uint64) Status {
	t.Helper()
	st, _ := lib.Call(context.Background(), env, symbol, stack)
	return st
}
