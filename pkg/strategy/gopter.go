package strategy

import (
	"reflect"
	"sync"

	"github.com/leanovate/gopter"
)

// gopterShrinkBatch caps how many candidates are materialised per step.
const gopterShrinkBatch = 256

// Gopter exposes s as a gopter generator whose shrinker walks the drawn
// value's shrink tree.
func Gopter[T any](s Strategy[T]) gopter.Gen {
	return func(params *gopter.GenParameters) *gopter.GenResult {
		tree := s.Draw(NewRand(params.Rng.Uint64()))
		sh := &gopterShrinker[T]{known: []Tree[T]{tree}}
		result := gopter.NewGenResult(tree.Value, sh.shrink)
		result.ResultType = reflect.TypeFor[T]()
		return result
	}
}

// gopterShrinker maps the values gopter hands back to the trees they came
// from. gopter only passes values, so trees are looked up by deep equality
// among the most recent batch of candidates.
type gopterShrinker[T any] struct {
	mu    sync.Mutex
	known []Tree[T]
}

func (g *gopterShrinker[T]) lookup(value any) Tree[T] {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, t := range g.known {
		if reflect.DeepEqual(any(t.Value), value) {
			return t
		}
	}
	return g.known[0]
}

func (g *gopterShrinker[T]) shrink(value any) gopter.Shrink {
	tree := g.lookup(value)
	batch := make([]Tree[T], 0, gopterShrinkBatch)
	for c := range tree.Shrinks() {
		batch = append(batch, c)
		if len(batch) == gopterShrinkBatch {
			break
		}
	}

	g.mu.Lock()
	g.known = append([]Tree[T]{g.known[0]}, batch...)
	g.mu.Unlock()

	i := 0
	return func() (any, bool) {
		if i >= len(batch) {
			return nil, false
		}
		v := batch[i].Value
		i++
		return v, true
	}
}
