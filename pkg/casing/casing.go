// Package casing converts JSON object keys between the engine's camelCase
// wire format and the snake_case used inside this service.
package casing

import (
	"strings"
	"unicode"
)

// SnakeKey converts a camelCase key to snake_case ("procInstId" -> "proc_inst_id").
func SnakeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 4)
	for i, r := range key {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CamelKey converts a snake_case key to camelCase ("proc_inst_id" -> "procInstId").
//
// SnakeKey(CamelKey(k)) == k only for keys made of lowercase segments that
// start with a letter. A digit segment loses its separator
// ("address_line_2" -> "addressLine2" -> "address_line2") and a leading
// underscore is dropped ("_id" -> "id").
func CamelKey(key string) string {
	if !strings.Contains(key, "_") {
		return key
	}
	parts := strings.Split(key, "_")
	var b strings.Builder
	b.Grow(len(key))
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// ToSnake returns a copy of v with every object key converted to snake_case.
// Nested objects and arrays are walked recursively; array order is kept.
func ToSnake(v any) any {
	return convert(v, SnakeKey)
}

// ToCamel returns a copy of v with every object key converted to camelCase.
func ToCamel(v any) any {
	return convert(v, CamelKey)
}

func convert(v any, keyFn func(string) string) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[keyFn(k)] = convert(val, keyFn)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = convert(val, keyFn)
		}
		return out
	default:
		return v
	}
}
