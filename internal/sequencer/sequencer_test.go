package sequencer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"aaaaaa", "aaaaab"},
		{"aaaaaz", "aaaaba"},
		{"aaaazz", "aaabaa"},
		{"azzzzz", "baaaaa"},
		{"abcdef", "abcdeg"},
		{"zzzzzy", "zzzzzz"},
		{"a", "b"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Next(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNext_DoesNotMutateInput(t *testing.T) {
	in := "aaaaaz"
	_, err := Next(in)
	require.NoError(t, err)
	assert.Equal(t, "aaaaaz", in)
}

func TestNext_Exhausted(t *testing.T) {
	_, err := Next("zzzzzz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExhausted))
}

func TestNext_InvalidInput(t *testing.T) {
	for _, in := range []string{"", "aaAaaa", "aa1aaa", "aaaa a"} {
		_, err := Next(in)
		assert.Error(t, err, "input %q", in)
	}
}

// For every pattern the lowest-order position that changed is incremented by
// one and every position to its right rolled over from 'z' to 'a'.
func TestNext_OdometerLaw(t *testing.T) {
	p := "aaaaxw"
	for step := 0; step < 2000; step++ {
		next, err := Next(p)
		require.NoError(t, err)

		i := len(p) - 1
		for i >= 0 && p[i] == next[i] {
			i--
		}
		require.GreaterOrEqual(t, i, 0)
		assert.Equal(t, p[i]+1, next[i], "step %d: %s -> %s", step, p, next)
		for j := i + 1; j < len(p); j++ {
			assert.Equal(t, byte('z'), p[j])
			assert.Equal(t, byte('a'), next[j])
		}
		assert.Equal(t, p[:i], next[:i])
		p = next
	}
}

func TestNames(t *testing.T) {
	names, err := Names("drill", Start, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"drillaaaaaa", "drillaaaaab", "drillaaaaac"}, names)
}

func TestNames_CarriesAcrossPositions(t *testing.T) {
	names, err := Names("", "aaaaay", 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaaay", "aaaaaz", "aaaaba", "aaaabb"}, names)
}

func TestNames_Exhausted(t *testing.T) {
	_, err := Names("p", "zzzzzy", 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExhausted))
}

func TestNames_RejectsNonPositive(t *testing.T) {
	_, err := Names("p", Start, 0)
	assert.Error(t, err)
}
