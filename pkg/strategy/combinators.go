package strategy

import (
	"iter"
	"math/rand/v2"
)

type justStrategy[T any] struct {
	value T
}

// Just always draws v.
func Just[T any](v T) Strategy[T] {
	return justStrategy[T]{value: v}
}

func (s justStrategy[T]) Draw(*rand.Rand) Tree[T] {
	return Leaf(s.value)
}

type mapStrategy[T, U any] struct {
	inner Strategy[T]
	fn    func(T) U
}

// Map transforms every drawn value with fn. fn must be pure.
func Map[T, U any](s Strategy[T], fn func(T) U) Strategy[U] {
	return mapStrategy[T, U]{inner: s, fn: fn}
}

// Erase widens a strategy to Strategy[any].
func Erase[T any](s Strategy[T]) Strategy[any] {
	if same, ok := any(s).(Strategy[any]); ok {
		return same
	}
	return Map(s, func(v T) any { return v })
}

func (s mapStrategy[T, U]) Draw(r *rand.Rand) Tree[U] {
	return mapTree(s.inner.Draw(r), s.fn)
}

func mapTree[T, U any](t Tree[T], fn func(T) U) Tree[U] {
	return NewTree(fn(t.Value), func() iter.Seq[Tree[U]] {
		return func(yield func(Tree[U]) bool) {
			for c := range t.Shrinks() {
				if !yield(mapTree(c, fn)) {
					return
				}
			}
		}
	})
}

type bindStrategy[T, U any] struct {
	inner Strategy[T]
	next  func(T) Strategy[U]
}

// Bind draws a value from s and uses it to choose the strategy for the
// result. Shrinking first simplifies the choice, then the dependent value.
func Bind[T, U any](s Strategy[T], next func(T) Strategy[U]) Strategy[U] {
	return bindStrategy[T, U]{inner: s, next: next}
}

func (s bindStrategy[T, U]) Draw(r *rand.Rand) Tree[U] {
	outer := s.inner.Draw(r)
	seed := r.Uint64()
	return bindTree(outer, func(v T) Tree[U] {
		return s.next(v).Draw(NewRand(seed))
	})
}

func bindTree[T, U any](outer Tree[T], fn func(T) Tree[U]) Tree[U] {
	inner := fn(outer.Value)
	return NewTree(inner.Value, func() iter.Seq[Tree[U]] {
		return func(yield func(Tree[U]) bool) {
			for c := range outer.Shrinks() {
				if !yield(bindTree(c, fn)) {
					return
				}
			}
			for c := range inner.Shrinks() {
				if !yield(c) {
					return
				}
			}
		}
	})
}

// filterAttempts bounds how many draws a Filter makes before giving up.
const filterAttempts = 100

type filterStrategy[T any] struct {
	inner Strategy[T]
	pred  func(T) bool
}

// Filter rejects drawn values failing pred. Drawing panics with an error
// wrapping ErrUnsatisfiable when pred rejects too many attempts in a row.
func Filter[T any](s Strategy[T], pred func(T) bool) Strategy[T] {
	return filterStrategy[T]{inner: s, pred: pred}
}

func (s filterStrategy[T]) Draw(r *rand.Rand) Tree[T] {
	for range filterAttempts {
		t := s.inner.Draw(r)
		if s.pred(t.Value) {
			return filterTree(t, s.pred)
		}
	}
	unsatisfiable("filter rejected %d consecutive draws", filterAttempts)
	panic("unreachable")
}

func filterTree[T any](t Tree[T], pred func(T) bool) Tree[T] {
	return NewTree(t.Value, func() iter.Seq[Tree[T]] {
		return func(yield func(Tree[T]) bool) {
			for c := range t.Shrinks() {
				if !pred(c.Value) {
					continue
				}
				if !yield(filterTree(c, pred)) {
					return
				}
			}
		}
	})
}

type oneOfStrategy[T any] struct {
	alts []Strategy[T]
}

// OneOf draws from one of alts chosen uniformly. Values shrink toward
// earlier alternatives, so callers should list the simplest first.
// OneOf panics with an ErrInvalidArgument error when alts is empty.
func OneOf[T any](alts ...Strategy[T]) Strategy[T] {
	if len(alts) == 0 {
		panic(NewInvalidArgument("one_of: no alternatives"))
	}
	if len(alts) == 1 {
		return alts[0]
	}
	return oneOfStrategy[T]{alts: alts}
}

func (s oneOfStrategy[T]) Draw(r *rand.Rand) Tree[T] {
	i := r.IntN(len(s.alts))
	seeds := make([]uint64, i)
	for j := range seeds {
		seeds[j] = r.Uint64()
	}
	return s.tree(i, s.alts[i].Draw(r), seeds)
}

func (s oneOfStrategy[T]) tree(i int, t Tree[T], seeds []uint64) Tree[T] {
	return NewTree(t.Value, func() iter.Seq[Tree[T]] {
		return func(yield func(Tree[T]) bool) {
			for j := 0; j < i; j++ {
				earlier := s.alts[j].Draw(NewRand(seeds[j]))
				if !yield(s.tree(j, earlier, seeds[:j])) {
					return
				}
			}
			for c := range t.Shrinks() {
				if !yield(s.tree(i, c, seeds)) {
					return
				}
			}
		}
	})
}

// SampledFrom draws one of values, shrinking toward the first. It panics
// with an ErrInvalidArgument error when values is empty.
func SampledFrom[T any](values ...T) Strategy[T] {
	if len(values) == 0 {
		panic(NewInvalidArgument("sampled_from: no values"))
	}
	return Map(Must(Integers(0, int64(len(values)-1))), func(i int64) T {
		return values[i]
	})
}

// Booleans draws false or true, shrinking toward false.
func Booleans() Strategy[bool] {
	return SampledFrom(false, true)
}

type recursiveStrategy[T any] struct {
	top Strategy[T]
}

// Recursive builds a strategy for nested values. extend receives a strategy
// for children and returns one for containers of them; nesting is capped at
// maxDepth levels. At every level the base case is listed first so draws
// lean toward it and shrinking collapses containers into leaves.
func Recursive[T any](base Strategy[T], extend func(children Strategy[T]) Strategy[T], maxDepth int) (Strategy[T], error) {
	if maxDepth < 1 {
		return nil, NewInvalidArgument("recursive: maxDepth must be at least 1, got %d", maxDepth)
	}
	level := base
	for range maxDepth {
		level = OneOf(base, extend(level))
	}
	return recursiveStrategy[T]{top: level}, nil
}

func (s recursiveStrategy[T]) Draw(r *rand.Rand) Tree[T] {
	return s.top.Draw(r)
}
