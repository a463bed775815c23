// Package payload builds the JSON arguments of backend actions.
//
// Action arguments are rendered as canonical JSON (sorted keys, no HTML
// escaping, NFC-normalized strings, no floats) so that the same decision
// always yields byte-identical command lines. Journal entries are keyed by a
// content hash of those command lines.
package payload

import (
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the value types an action argument may hold.
// There is no float variant: token quantities travel as asset strings.
type Value interface {
	payloadValue()
}

// String is a string argument.
type String string

func (String) payloadValue() {}

// Int is an integer argument.
type Int int64

func (Int) payloadValue() {}

// Bool is a boolean argument.
type Bool bool

func (Bool) payloadValue() {}

// Array is an ordered list of arguments.
type Array []Value

func (Array) payloadValue() {}

// Object maps argument names to values.
type Object map[string]Value

func (Object) payloadValue() {}

// Strings converts a string slice to an Array.
func Strings(ss []string) Array {
	arr := make(Array, len(ss))
	for i, s := range ss {
		arr[i] = String(s)
	}
	return arr
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(ua) < len(ub):
		return -1
	case len(ua) > len(ub):
		return 1
	}
	return strings.Compare(a, b)
}
