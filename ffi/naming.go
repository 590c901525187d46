package ffi

import (
	"strings"
	"unicode"
)

// FuncSymbol returns the entry point name of a free function: "__name".
func FuncSymbol(name string) string {
	return "__" + snakeCase(name)
}

// MethodSymbol returns the entry point name of a method: "Type__name".
func MethodSymbol(typeName, name string) string {
	return typeName + "__" + snakeCase(name)
}

// snakeCase converts a Go identifier: "PayloadMut" -> "payload_mut",
// "HTTPServer" -> "http_server". Snake case input is returned unchanged.
func snakeCase(s string) string {
	runes := []rune(s)
	var result strings.Builder
	for i, r := range runes {
		if !unicode.IsUpper(r) {
			result.WriteRune(r)
			continue
		}
		if i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				result.WriteByte('_')
			}
		}
		result.WriteRune(unicode.ToLower(r))
	}
	return result.String()
}
