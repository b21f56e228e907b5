// Package strategy implements composable random-value strategies with
// integrated shrinking.
//
// A Strategy is an immutable description of a distribution. Drawing from it
// with a *rand.Rand yields a Tree: the drawn value plus a lazily computed
// sequence of simpler candidate trees. Because shrink candidates are trees
// themselves, shrinking composes through Map, Bind and Filter without needing
// to invert user functions.
//
// Strategies never mutate themselves while drawing, so one value may be shared
// by any number of goroutines as long as each uses its own *rand.Rand.
package strategy

import (
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"

	"github.com/kuitang/couchgen/internal/errs"
)

var (
	// ErrInvalidArgument marks strategy construction with invalid parameters.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidType marks field maps whose keys are not strings.
	ErrInvalidType = errors.New("invalid type")
	// ErrNoExample is returned by Find when no drawn value satisfies the predicate.
	ErrNoExample = errors.New("no example found")
	// ErrUnsatisfiable is raised when a filter or uniqueness constraint rejects
	// every attempt.
	ErrUnsatisfiable = errors.New("unsatisfiable")
)

// NewInvalidArgument returns a coded configuration error.
func NewInvalidArgument(format string, args ...any) error {
	return errs.Wrap(errs.InvalidArgument, fmt.Sprintf(format, args...), ErrInvalidArgument)
}

// NewInvalidType returns a coded type error.
func NewInvalidType(format string, args ...any) error {
	return errs.Wrap(errs.InvalidType, fmt.Sprintf(format, args...), ErrInvalidType)
}

func unsatisfiable(format string, args ...any) {
	panic(errs.Wrap(errs.Internal, fmt.Sprintf(format, args...), ErrUnsatisfiable))
}

// Strategy describes how to draw values of type T and how to shrink them.
type Strategy[T any] interface {
	Draw(r *rand.Rand) Tree[T]
}

// Tree is a drawn value together with its shrink candidates, simplest first.
type Tree[T any] struct {
	Value   T
	shrinks func() iter.Seq[Tree[T]]
}

// Leaf returns a tree with no shrink candidates.
func Leaf[T any](v T) Tree[T] {
	return Tree[T]{Value: v}
}

// NewTree returns a tree whose candidates are produced on demand.
func NewTree[T any](v T, shrinks func() iter.Seq[Tree[T]]) Tree[T] {
	return Tree[T]{Value: v, shrinks: shrinks}
}

// Shrinks yields simpler candidates for t.Value.
func (t Tree[T]) Shrinks() iter.Seq[Tree[T]] {
	if t.shrinks == nil {
		return func(func(Tree[T]) bool) {}
	}
	return t.shrinks()
}

// NewRand returns a deterministic generator for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Sample draws a single value.
func Sample[T any](s Strategy[T], r *rand.Rand) T {
	return s.Draw(r).Value
}

// Examples draws n values from a generator seeded with seed.
func Examples[T any](s Strategy[T], n int, seed uint64) (out []T, err error) {
	defer recoverUnsatisfiable(&err)
	r := NewRand(seed)
	out = make([]T, 0, n)
	for range n {
		out = append(out, Sample(s, r))
	}
	return out, nil
}

// Must unwraps a constructor result, panicking on error.
func Must[T any](s Strategy[T], err error) Strategy[T] {
	if err != nil {
		panic(err)
	}
	return s
}

func recoverUnsatisfiable(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(error); ok && errors.Is(e, ErrUnsatisfiable) {
		*err = e
		return
	}
	panic(r)
}
