package ffi

import "testing"

func TestShim_Signature(t *testing.T) {
	lib := newTransparentLibrary(t)
	counters := newCounterLibrary(t)

	tests := []struct {
		lib    *Library
		symbol string
		want   string
	}{
		{lib, "__self_to_self", "__self_to_self: func(arg0: u64) -> u64"},
		{lib, "__vec_to_vec", "__vec_to_vec: func(arg0: list<u64>) -> list<u64>"},
		{lib, "__slice_to_slice", "__slice_to_slice: func(arg0: view<u64>) -> view<u64>"},
		{lib, "TransparentStruct__payload", "TransparentStruct__payload: func(self: ptr<u64>) -> ptr<u64>"},
		{lib, "TransparentStruct__payload_mut", "TransparentStruct__payload_mut: func(self: ptr-mut<u64>) -> ptr-mut<u64>"},
		{lib, DeallocSymbol, "__dealloc: func(ptr: u32, size: u32, align: u32)"},
		{counters, "Counter__incr", "Counter__incr: func(self: own<counter>, arg0: u64) -> u64"},
		{counters, "__split", "__split: func(arg0: u64) -> tuple<u32, bool>"},
		{counters, "__swap", "__swap: func(arg0: point) -> point"},
		{counters, "__sum", "__sum: func(arg0: view<u32>) -> u64"},
	}
	for _, tc := range tests {
		s, ok := tc.lib.Shim(tc.symbol)
		if !ok {
			t.Errorf("%s not exported", tc.symbol)
			continue
		}
		if got := s.Signature(); got != tc.want {
			t.Errorf("Signature() = %q, want %q", got, tc.want)
		}
	}
}

func TestShim_Prototype(t *testing.T) {
	lib := newTransparentLibrary(t)
	counters := newCounterLibrary(t)

	tests := []struct {
		lib    *Library
		symbol string
		want   string
	}{
		{lib, "__self_to_self", "int32_t __self_to_self(uint64_t arg0, uint64_t *out0);"},
		{lib, "__vec_to_vec", "int32_t __vec_to_vec(uint64_t *arg0_data, uint32_t arg0_len, uint32_t arg0_cap, OutBoxedSlice *out0);"},
		{lib, "__slice_to_slice", "int32_t __slice_to_slice(const uint64_t *arg0_data, uint32_t arg0_len, SliceRef *out0);"},
		{lib, "TransparentStruct__payload", "int32_t TransparentStruct__payload(const uint64_t *self, const uint64_t **out0);"},
		{lib, "TransparentStruct__payload_mut", "int32_t TransparentStruct__payload_mut(uint64_t *self, uint64_t **out0);"},
		{lib, DropSymbol, "int32_t __drop(uint32_t handle);"},
		{counters, "__swap", "int32_t __swap(const struct point *arg0, struct point *out0);"},
		{counters, "__not", "int32_t __not(uint8_t arg0, uint8_t *out0);"},
	}
	for _, tc := range tests {
		s, ok := tc.lib.Shim(tc.symbol)
		if !ok {
			t.Errorf("%s not exported", tc.symbol)
			continue
		}
		if got := s.Prototype(); got != tc.want {
			t.Errorf("Prototype() = %q, want %q", got, tc.want)
		}
	}
}
