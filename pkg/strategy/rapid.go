package strategy

import "pgregory.net/rapid"

// Rapid exposes s as a rapid generator. rapid owns the seed, so its own
// minimisation applies to the seed rather than to the drawn structure; use
// Find when structural shrinking matters.
func Rapid[T any](s Strategy[T]) *rapid.Generator[T] {
	return rapid.Custom(func(t *rapid.T) T {
		seed := rapid.Uint64().Draw(t, "seed")
		return Sample(s, NewRand(seed))
	})
}
