// Package jsonvalue provides strategies for JSON values: null, booleans,
// finite numbers, strings, arrays and objects, and the recursive union of
// all of them.
//
// Drawn values use the Go types produced by encoding/json: nil, bool,
// int64 or float64, string, []any and map[string]any.
package jsonvalue

import (
	"maps"
	"math"
	"sync"

	"github.com/kuitang/couchgen/pkg/strategy"
)

// Nulls always draws nil.
func Nulls() strategy.Strategy[any] {
	return strategy.Just[any](nil)
}

// Booleans draws true or false.
func Booleans() strategy.Strategy[bool] {
	return strategy.Booleans()
}

// Numbers draws integers and finite floats within the Min and Max options.
// Integers are drawn from the whole numbers inside both the bounds and
// ±MaxSafeInteger, so they survive decoders that read numbers as float64.
func Numbers(opts ...Option) (strategy.Strategy[any], error) {
	c := newConfig(opts)
	if math.IsNaN(c.min) || math.IsNaN(c.max) {
		return nil, strategy.NewInvalidArgument("numbers: bounds must not be NaN")
	}
	if c.min > c.max {
		return nil, strategy.NewInvalidArgument("numbers: min %g is greater than max %g", c.min, c.max)
	}

	floats, err := strategy.Floats(c.min, c.max)
	if err != nil {
		return nil, err
	}
	finite := strategy.Erase(strategy.Filter(floats, isFinite))

	lo := max(math.Ceil(c.min), -MaxSafeInteger)
	hi := min(math.Floor(c.max), MaxSafeInteger)
	if lo > hi {
		// No JSON-safe whole number inside the bounds.
		return finite, nil
	}
	ints, err := strategy.Integers(int64(lo), int64(hi))
	if err != nil {
		return nil, err
	}
	return strategy.OneOf(strategy.Erase(ints), finite), nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Strings draws text from the Alphabet option with length bounded by the
// size options.
func Strings(opts ...Option) (strategy.Strategy[string], error) {
	c := newConfig(opts)
	return strategy.Text(strategy.Runes(c.alphabet), c.sizes)
}

// Arrays draws slices of elem bounded by the size options, deduplicated
// when UniqueBy or Unique is given.
func Arrays[T any](elem strategy.Strategy[T], opts ...Option) (strategy.Strategy[[]T], error) {
	c := newConfig(opts)
	var uniqueBy func(T) any
	if c.uniqueBy != nil {
		uniqueBy = func(v T) any { return c.uniqueBy(v) }
	}
	return strategy.Lists(elem, c.sizes, uniqueBy)
}

// Objects draws maps built from up to three sources:
//
//   - Elements: free string keys, bounded by the size options, with values
//     from the given strategy;
//   - Optional: a random subset of the named fields;
//   - Required: every named field.
//
// At least one source must be given. On key collisions required fields win
// over optional ones, which win over free ones.
func Objects(opts ...Option) (strategy.Strategy[map[string]any], error) {
	c := newConfig(opts)
	if !c.elementsSet && len(c.required) == 0 && len(c.optional) == 0 {
		return nil, strategy.NewInvalidArgument("objects: one of elements, required or optional fields must be given")
	}

	empty := strategy.Just(map[string]any{})
	free, optional, required := empty, empty, empty
	if c.elementsSet {
		if c.elements == nil {
			return nil, strategy.NewInvalidArgument("objects: elements strategy is nil")
		}
		keys, err := strategy.Text(strategy.Runes(""), strategy.AnySize)
		if err != nil {
			return nil, err
		}
		if free, err = strategy.Dict(keys, c.elements, c.sizes); err != nil {
			return nil, err
		}
	}
	if len(c.optional) > 0 {
		if err := checkFields("optional", c.optional); err != nil {
			return nil, err
		}
		optional = strategy.OptionalFields(map[string]strategy.Strategy[any](c.optional))
	}
	if len(c.required) > 0 {
		if err := checkFields("required", c.required); err != nil {
			return nil, err
		}
		required = strategy.FixedFields(map[string]strategy.Strategy[any](c.required))
	}

	return strategy.Map(strategy.Sequence(free, optional, required), func(parts []map[string]any) map[string]any {
		return MergeFields(parts[0], parts[1], parts[2])
	}), nil
}

func checkFields(what string, f Fields) error {
	for k, s := range f {
		if s == nil {
			return strategy.NewInvalidArgument("objects: %s field %q has a nil strategy", what, k)
		}
	}
	return nil
}

// MergeFields combines the three field sources of an object. required
// overrides optional, which overrides free.
func MergeFields(free, optional, required map[string]any) map[string]any {
	out := make(map[string]any, len(free)+len(optional)+len(required))
	maps.Copy(out, free)
	maps.Copy(out, optional)
	maps.Copy(out, required)
	return out
}

// FieldsFromMap converts a dynamically keyed field map, failing with an
// error wrapping strategy.ErrInvalidType when a key is not a string.
func FieldsFromMap(m map[any]strategy.Strategy[any]) (Fields, error) {
	out := make(Fields, len(m))
	for k, s := range m {
		name, ok := k.(string)
		if !ok {
			return nil, strategy.NewInvalidType("field names must be strings, got %T (%v)", k, k)
		}
		out[name] = s
	}
	return out, nil
}

// maxNesting caps how deep Values nests arrays and objects.
const maxNesting = 3

// Values draws any JSON value. Simple values are favoured at every level
// so nesting stays shallow.
func Values() strategy.Strategy[any] {
	return values()
}

var values = sync.OnceValue(func() strategy.Strategy[any] {
	simple := strategy.OneOf(
		Nulls(),
		strategy.Erase(Booleans()),
		strategy.Must(Numbers()),
		strategy.Erase(strategy.Must(Strings())),
	)
	return strategy.Must(strategy.Recursive(simple, func(children strategy.Strategy[any]) strategy.Strategy[any] {
		return strategy.OneOf(
			strategy.Erase(strategy.Must(Arrays(children))),
			strategy.Erase(strategy.Must(Objects(Elements(children)))),
		)
	}, maxNesting))
})
