// Package memory adapts wazero linear memory to the wasmffi interfaces and
// provides the allocators the conversion protocol draws from.
//
//	Wrap(api.Memory)           Memory + MemorySizer over a wazero memory
//	GuestAllocator             Allocator backed by the guest's cabi_realloc
//	Heap                       host-managed first-fit allocator over a memory region
//	Standalone                 memory-only module for hosts without a compiled guest
//
// Views returned by Read alias the memory buffer and are invalidated when the
// memory grows. The Heap never grows memory for that reason.
package memory
