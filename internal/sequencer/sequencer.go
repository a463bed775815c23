// Package sequencer generates actor names from a bounded base-26 counter.
//
// A suffix is a fixed-length lowercase string read as a base-26 number with
// 'a'=0, least significant character last. Next advances it like an
// odometer. Carrying out of the leftmost position is an error rather than a
// silent wrap back to "aaaaaa".
package sequencer

import (
	"errors"
	"fmt"
)

// SuffixLen is the length of the mutable part of an actor name.
const SuffixLen = 6

// Start is the first suffix of every run.
const Start = "aaaaaa"

// Capacity is the number of distinct six-character suffixes.
const Capacity = 26 * 26 * 26 * 26 * 26 * 26

// ErrExhausted is returned when a suffix has no successor.
var ErrExhausted = errors.New("sequencer: name space exhausted")

// Next returns the successor of pattern. pattern is not modified.
func Next(pattern string) (string, error) {
	if pattern == "" {
		return "", fmt.Errorf("sequencer: empty pattern")
	}
	b := []byte(pattern)
	for i, c := range b {
		if c < 'a' || c > 'z' {
			return "", fmt.Errorf("sequencer: invalid character %q at position %d in %q", c, i, pattern)
		}
	}

	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 'z' {
			b[i]++
			return string(b), nil
		}
		b[i] = 'a'
	}
	return "", fmt.Errorf("%w: %q has no successor", ErrExhausted, pattern)
}

// Names returns n actor names: prefix+start and its n-1 successors.
// Next is called exactly n-1 times.
func Names(prefix, start string, n int) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("sequencer: count must be positive, got %d", n)
	}

	names := make([]string, 0, n)
	suffix := start
	names = append(names, prefix+suffix)
	for i := 1; i < n; i++ {
		next, err := Next(suffix)
		if err != nil {
			return nil, fmt.Errorf("name %d of %d: %w", i+1, n, err)
		}
		suffix = next
		names = append(names, prefix+suffix)
	}
	return names, nil
}
