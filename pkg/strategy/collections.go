package strategy

import (
	"iter"
	"maps"
	"math/rand/v2"
	"slices"
)

// Unbounded marks a Sizes.Max without an upper limit.
const Unbounded = -1

// Sizes bounds the length of a drawn collection. Average biases the drawn
// length without bounding it; zero derives a default from Min and Max.
type Sizes struct {
	Min     int
	Average int
	Max     int
}

// AnySize allows collections of any length.
var AnySize = Sizes{Max: Unbounded}

func (sz Sizes) validate(what string) (Sizes, error) {
	if sz.Min < 0 {
		return sz, NewInvalidArgument("%s: min size must not be negative, got %d", what, sz.Min)
	}
	if sz.Max < Unbounded {
		return sz, NewInvalidArgument("%s: max size must be non-negative or Unbounded, got %d", what, sz.Max)
	}
	if sz.Max != Unbounded && sz.Max < sz.Min {
		return sz, NewInvalidArgument("%s: max size %d is less than min size %d", what, sz.Max, sz.Min)
	}
	if sz.Average != 0 {
		if sz.Average < sz.Min || (sz.Max != Unbounded && sz.Average > sz.Max) {
			return sz, NewInvalidArgument("%s: average size %d is outside [%d, %d]", what, sz.Average, sz.Min, sz.Max)
		}
		return sz, nil
	}
	sz.Average = max(sz.Min*2, sz.Min+5)
	if sz.Max != Unbounded {
		sz.Average = max(sz.Min, min(sz.Average, (sz.Min+sz.Max+1)/2))
	}
	return sz, nil
}

// drawLen draws Min plus a geometric number of extra elements whose mean
// is Average-Min.
func (sz Sizes) drawLen(r *rand.Rand) int {
	n := sz.Min
	extra := float64(sz.Average - sz.Min)
	p := extra / (extra + 1)
	for (sz.Max == Unbounded || n < sz.Max) && r.Float64() < p {
		n++
	}
	return n
}

type listStrategy[T any] struct {
	elem     Strategy[T]
	sizes    Sizes
	uniqueBy func(T) any
}

// Lists draws slices of elem. When uniqueBy is non-nil no two elements share
// a key; keys must be comparable.
func Lists[T any](elem Strategy[T], sizes Sizes, uniqueBy func(T) any) (Strategy[[]T], error) {
	if elem == nil {
		return nil, NewInvalidArgument("lists: element strategy is required")
	}
	sz, err := sizes.validate("lists")
	if err != nil {
		return nil, err
	}
	return listStrategy[T]{elem: elem, sizes: sz, uniqueBy: uniqueBy}, nil
}

func (s listStrategy[T]) Draw(r *rand.Rand) Tree[[]T] {
	n := s.sizes.drawLen(r)
	elems := make([]Tree[T], 0, n)
	seen := make(map[any]struct{})
	misses := 0
	for len(elems) < n {
		t := s.elem.Draw(r)
		if s.uniqueBy != nil {
			k := s.uniqueBy(t.Value)
			if _, dup := seen[k]; dup {
				misses++
				if misses <= filterAttempts {
					continue
				}
				if len(elems) >= s.sizes.Min {
					break
				}
				unsatisfiable("lists: could not draw %d unique elements", s.sizes.Min)
			}
			seen[k] = struct{}{}
		}
		elems = append(elems, t)
	}
	return s.tree(elems)
}

func (s listStrategy[T]) unique(elems []Tree[T]) bool {
	seen := make(map[any]struct{}, len(elems))
	for _, e := range elems {
		k := s.uniqueBy(e.Value)
		if _, dup := seen[k]; dup {
			return false
		}
		seen[k] = struct{}{}
	}
	return true
}

func (s listStrategy[T]) tree(elems []Tree[T]) Tree[[]T] {
	values := make([]T, len(elems))
	for i, e := range elems {
		values[i] = e.Value
	}
	return NewTree(values, func() iter.Seq[Tree[[]T]] {
		return func(yield func(Tree[[]T]) bool) {
			n := len(elems)
			for k := n - s.sizes.Min; k > 0; k /= 2 {
				for start := 0; start+k <= n; start += k {
					next := append(slices.Clone(elems[:start]), elems[start+k:]...)
					if !yield(s.tree(next)) {
						return
					}
				}
			}
			for i := range elems {
				for c := range elems[i].Shrinks() {
					next := slices.Clone(elems)
					next[i] = c
					if s.uniqueBy != nil && !s.unique(next) {
						continue
					}
					if !yield(s.tree(next)) {
						return
					}
				}
			}
		}
	})
}

type sequenceStrategy[T any] struct {
	elems []Strategy[T]
}

// Sequence draws one value from each strategy, in order.
func Sequence[T any](elems ...Strategy[T]) Strategy[[]T] {
	return sequenceStrategy[T]{elems: slices.Clone(elems)}
}

func (s sequenceStrategy[T]) Draw(r *rand.Rand) Tree[[]T] {
	trees := make([]Tree[T], len(s.elems))
	for i, e := range s.elems {
		trees[i] = e.Draw(r)
	}
	return sequenceTree(trees)
}

func sequenceTree[T any](trees []Tree[T]) Tree[[]T] {
	values := make([]T, len(trees))
	for i, t := range trees {
		values[i] = t.Value
	}
	return NewTree(values, func() iter.Seq[Tree[[]T]] {
		return func(yield func(Tree[[]T]) bool) {
			for i := range trees {
				for c := range trees[i].Shrinks() {
					next := slices.Clone(trees)
					next[i] = c
					if !yield(sequenceTree(next)) {
						return
					}
				}
			}
		}
	})
}

// Maybe is a value that may be absent.
type Maybe[T any] struct {
	Value   T
	Present bool
}

type optionalStrategy[T any] struct {
	inner Strategy[T]
}

// Optional draws a present value half of the time. Present values shrink to
// absent first.
func Optional[T any](s Strategy[T]) Strategy[Maybe[T]] {
	return optionalStrategy[T]{inner: s}
}

func (s optionalStrategy[T]) Draw(r *rand.Rand) Tree[Maybe[T]] {
	if r.IntN(2) == 0 {
		return Leaf(Maybe[T]{})
	}
	t := s.inner.Draw(r)
	present := mapTree(t, func(v T) Maybe[T] { return Maybe[T]{Value: v, Present: true} })
	return NewTree(present.Value, func() iter.Seq[Tree[Maybe[T]]] {
		return func(yield func(Tree[Maybe[T]]) bool) {
			if !yield(Leaf(Maybe[T]{})) {
				return
			}
			for c := range present.Shrinks() {
				if !yield(c) {
					return
				}
			}
		}
	})
}

// FixedFields draws a map holding every key of fields, each value drawn from
// its own strategy.
func FixedFields[V any](fields map[string]Strategy[V]) Strategy[map[string]V] {
	keys := slices.Sorted(maps.Keys(fields))
	elems := make([]Strategy[V], len(keys))
	for i, k := range keys {
		elems[i] = fields[k]
	}
	return Map(Sequence(elems...), func(vals []V) map[string]V {
		out := make(map[string]V, len(keys))
		for i, k := range keys {
			out[k] = vals[i]
		}
		return out
	})
}

// OptionalFields draws a map holding a random subset of the keys of fields;
// each key is included independently. Maps shrink toward empty.
func OptionalFields[V any](fields map[string]Strategy[V]) Strategy[map[string]V] {
	keys := slices.Sorted(maps.Keys(fields))
	elems := make([]Strategy[Maybe[V]], len(keys))
	for i, k := range keys {
		elems[i] = Optional(fields[k])
	}
	return Map(Sequence(elems...), func(vals []Maybe[V]) map[string]V {
		out := make(map[string]V, len(keys))
		for i, k := range keys {
			if vals[i].Present {
				out[k] = vals[i].Value
			}
		}
		return out
	})
}

// Pair is one key/value entry of a drawn map.
type Pair[K, V any] struct {
	Key   K
	Value V
}

type pairStrategy[K, V any] struct {
	keys   Strategy[K]
	values Strategy[V]
}

func (s pairStrategy[K, V]) Draw(r *rand.Rand) Tree[Pair[K, V]] {
	return pairTree(s.keys.Draw(r), s.values.Draw(r))
}

func pairTree[K, V any](k Tree[K], v Tree[V]) Tree[Pair[K, V]] {
	return NewTree(Pair[K, V]{Key: k.Value, Value: v.Value}, func() iter.Seq[Tree[Pair[K, V]]] {
		return func(yield func(Tree[Pair[K, V]]) bool) {
			for c := range k.Shrinks() {
				if !yield(pairTree(c, v)) {
					return
				}
			}
			for c := range v.Shrinks() {
				if !yield(pairTree(k, c)) {
					return
				}
			}
		}
	})
}

// Dict draws maps with keys and values from the given strategies. Sizes
// count distinct keys.
func Dict[K comparable, V any](keys Strategy[K], values Strategy[V], sizes Sizes) (Strategy[map[K]V], error) {
	if keys == nil || values == nil {
		return nil, NewInvalidArgument("dict: key and value strategies are required")
	}
	pairs, err := Lists[Pair[K, V]](pairStrategy[K, V]{keys: keys, values: values}, sizes, func(p Pair[K, V]) any {
		return p.Key
	})
	if err != nil {
		return nil, err
	}
	return Map(pairs, func(ps []Pair[K, V]) map[K]V {
		out := make(map[K]V, len(ps))
		for _, p := range ps {
			out[p.Key] = p.Value
		}
		return out
	}), nil
}
