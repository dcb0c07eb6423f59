// Package naming converts database column names to the compact camelCase
// convention API consumers expect.
package naming

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Camelize converts a snake_case column name to camelCase. Names without
// underscores pass through with only their first rune lowered, so already
// converted keys are stable under repeated application. Names in scripts
// without letter case, such as Hangul, pass through unchanged.
func Camelize(name string) string {
	if name == "" {
		return name
	}

	parts := strings.Split(name, "_")
	var sb strings.Builder
	sb.Grow(len(name))

	wrote := false
	for _, part := range parts {
		if part == "" {
			continue
		}
		if !wrote {
			sb.WriteString(mapFirstRune(part, unicode.ToLower))
			wrote = true
			continue
		}
		sb.WriteString(mapFirstRune(strings.ToLower(part), unicode.ToUpper))
	}
	if !wrote {
		// Nothing but underscores; keep the original.
		return name
	}
	return sb.String()
}

// mapFirstRune applies f to the first rune only. When f leaves that rune
// unchanged, which covers every uncased letter, s comes back as-is.
func mapFirstRune(s string, f func(rune) rune) string {
	r, size := utf8.DecodeRuneInString(s)
	if mapped := f(r); mapped != r {
		return string(mapped) + s[size:]
	}
	return s
}
