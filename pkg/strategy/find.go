package strategy

import (
	"fmt"
	"math/rand/v2"

	"github.com/kuitang/couchgen/internal/errs"
)

type findConfig struct {
	maxExamples int
	maxShrinks  int
	seed        uint64
	seeded      bool
}

// FindOption configures Find.
type FindOption func(*findConfig)

// WithMaxExamples bounds how many values are drawn before giving up.
func WithMaxExamples(n int) FindOption {
	return func(c *findConfig) { c.maxExamples = n }
}

// WithMaxShrinks bounds how many shrink candidates are evaluated.
func WithMaxShrinks(n int) FindOption {
	return func(c *findConfig) { c.maxShrinks = n }
}

// WithSeed makes Find deterministic.
func WithSeed(seed uint64) FindOption {
	return func(c *findConfig) {
		c.seed = seed
		c.seeded = true
	}
}

// Find draws values from s until one satisfies pred, then shrinks it to the
// simplest satisfying value it can reach. It returns an error wrapping
// ErrNoExample when no draw satisfies pred.
func Find[T any](s Strategy[T], pred func(T) bool, opts ...FindOption) (found T, err error) {
	cfg := findConfig{maxExamples: 1000, maxShrinks: 5000}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.seeded {
		cfg.seed = rand.Uint64()
	}
	defer recoverUnsatisfiable(&err)

	r := NewRand(cfg.seed)
	for i := 0; i < cfg.maxExamples; i++ {
		t := s.Draw(r)
		if pred(t.Value) {
			return shrink(t, pred, cfg.maxShrinks).Value, nil
		}
	}
	var zero T
	return zero, errs.Wrap(errs.NotFound,
		fmt.Sprintf("no example satisfied the predicate after %d draws (seed %d)", cfg.maxExamples, cfg.seed),
		ErrNoExample)
}

// shrink greedily replaces t with its first candidate that still satisfies
// pred until no candidate does or the budget runs out.
func shrink[T any](t Tree[T], pred func(T) bool, budget int) Tree[T] {
	for budget > 0 {
		improved := false
		for c := range t.Shrinks() {
			budget--
			if pred(c.Value) {
				t = c
				improved = true
				break
			}
			if budget <= 0 {
				break
			}
		}
		if !improved {
			return t
		}
	}
	return t
}
