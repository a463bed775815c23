// Package decide is the single seeded source of every random choice in a run.
//
// Two runs with the same seed that observe the same backend responses make
// the same decisions, provided callers draw in a deterministic order. Callers
// must therefore iterate actors, roles, and proposal ids in a fixed order and
// never range over a map while drawing.
package decide

import "math/rand"

// Engine draws from one seeded stream. It is not safe for concurrent use;
// a run is single-threaded.
type Engine struct {
	seed  int64
	rng   *rand.Rand
	draws int
}

// New creates an engine seeded once with seed. Seed 0 is an ordinary seed.
func New(seed int64) *Engine {
	return &Engine{seed: seed, rng: rand.New(rand.NewSource(seed))}
}

// Seed returns the seed the engine was created with.
func (e *Engine) Seed() int64 {
	return e.seed
}

// Draws returns how many values have been drawn so far.
func (e *Engine) Draws() int {
	return e.draws
}

// UniformInt returns a uniform integer in [0, bound). It panics if bound <= 0.
func (e *Engine) UniformInt(bound int) int {
	e.draws++
	return e.rng.Intn(bound)
}

// UniformFloat01 returns a uniform float in [0, 1).
func (e *Engine) UniformFloat01() float64 {
	e.draws++
	return e.rng.Float64()
}

// Bernoulli returns true with probability p, consuming one float draw.
func (e *Engine) Bernoulli(p float64) bool {
	return e.UniformFloat01() < p
}

// Range returns a uniform integer in [lo, hi].
func (e *Engine) Range(lo, hi int) int {
	return lo + e.UniformInt(hi-lo+1)
}

// Shuffle permutes s in place with Fisher-Yates, walking from the last index
// down to 1 and swapping each with a uniform index in [0, i].
func Shuffle[T any](e *Engine, s []T) {
	for i := len(s) - 1; i > 0; i-- {
		j := e.UniformInt(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}

// ChooseOne returns a uniformly chosen element of s. Calling it with an
// empty slice is a caller error and panics.
func ChooseOne[T any](e *Engine, s []T) T {
	if len(s) == 0 {
		panic("decide: ChooseOne on empty slice")
	}
	return s[e.UniformInt(len(s))]
}
