package ffi

import "testing"

func TestSnakeCase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SelfToSelf", "self_to_self"},
		{"PayloadMut", "payload_mut"},
		{"HTTPServer", "http_server"},
		{"ParseURL", "parse_url"},
		{"Vec2Add", "vec2_add"},
		{"already_snake", "already_snake"},
		{"x", "x"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := snakeCase(tc.in); got != tc.want {
			t.Errorf("snakeCase(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSymbols(t *testing.T) {
	if got := FuncSymbol("VecToVec"); got != "__vec_to_vec" {
		t.Errorf("FuncSymbol = %q", got)
	}
	if got := MethodSymbol("TransparentStruct", "WithPayload"); got != "TransparentStruct__with_payload" {
		t.Errorf("MethodSymbol = %q", got)
	}
}
