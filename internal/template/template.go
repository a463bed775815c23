// Package template substitutes values into backend command templates.
package template

import "strings"

// Placeholder is the token replaced by Render and Fill.
const Placeholder = "%%"

// Render replaces every occurrence of Placeholder with value.
func Render(tmpl, value string) string {
	return strings.ReplaceAll(tmpl, Placeholder, value)
}

// RenderToken replaces every occurrence of token with value.
// An empty token leaves the template unchanged.
func RenderToken(tmpl, token, value string) string {
	if token == "" {
		return tmpl
	}
	return strings.ReplaceAll(tmpl, token, value)
}

// Fill replaces the i-th occurrence of Placeholder with values[i] in a single
// left-to-right pass. Inserted values are never rescanned, so a value that
// itself contains Placeholder does not consume a later slot. Occurrences
// beyond len(values) are left as-is; extra values are ignored.
func Fill(tmpl string, values ...string) string {
	var b strings.Builder
	b.Grow(len(tmpl))

	rest := tmpl
	for _, v := range values {
		i := strings.Index(rest, Placeholder)
		if i < 0 {
			break
		}
		b.WriteString(rest[:i])
		b.WriteString(v)
		rest = rest[i+len(Placeholder):]
	}
	b.WriteString(rest)
	return b.String()
}

// Count returns the number of placeholder slots in tmpl.
func Count(tmpl string) int {
	return strings.Count(tmpl, Placeholder)
}
