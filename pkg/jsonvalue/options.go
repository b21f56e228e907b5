package jsonvalue

import (
	"math"

	"github.com/kuitang/couchgen/pkg/strategy"
)

// MaxSafeInteger is the largest integer a float64 JSON decoder represents
// exactly. Numbers never draws integers outside ±MaxSafeInteger.
const MaxSafeInteger = 1<<53 - 1

// Fields maps object keys to the strategies drawing their values.
type Fields map[string]strategy.Strategy[any]

type config struct {
	min, max    float64
	alphabet    string
	sizes       strategy.Sizes
	uniqueBy    func(any) any
	elements    strategy.Strategy[any]
	elementsSet bool
	required    Fields
	optional    Fields
}

func newConfig(opts []Option) config {
	c := config{
		min:   math.Inf(-1),
		max:   math.Inf(1),
		sizes: strategy.Sizes{Max: strategy.Unbounded},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Option tunes a value strategy. Options that do not apply to a
// constructor are ignored by it.
type Option func(*config)

// Min sets the inclusive lower bound for Numbers.
func Min(v float64) Option { return func(c *config) { c.min = v } }

// Max sets the inclusive upper bound for Numbers.
func Max(v float64) Option { return func(c *config) { c.max = v } }

// Alphabet restricts the characters Strings draws from. The empty alphabet
// allows any Unicode scalar value.
func Alphabet(chars string) Option { return func(c *config) { c.alphabet = chars } }

// MinSize sets the minimum length of strings, arrays and free object fields.
func MinSize(n int) Option { return func(c *config) { c.sizes.Min = n } }

// AverageSize biases drawn lengths without bounding them.
func AverageSize(n int) Option { return func(c *config) { c.sizes.Average = n } }

// MaxSize sets the maximum length; strategy.Unbounded removes the limit.
func MaxSize(n int) Option { return func(c *config) { c.sizes.Max = n } }

// UniqueBy keeps array elements whose keys differ. fn must return
// comparable keys.
func UniqueBy(fn func(any) any) Option { return func(c *config) { c.uniqueBy = fn } }

// Unique keeps array elements whose JSON encodings differ.
func Unique() Option { return UniqueBy(canonicalKey) }

// Elements sets the strategy for free-form object field values.
func Elements(s strategy.Strategy[any]) Option {
	return func(c *config) {
		c.elements = s
		c.elementsSet = true
	}
}

// NoElements drops the free-form field source set by an earlier Elements.
func NoElements() Option {
	return func(c *config) {
		c.elements = nil
		c.elementsSet = false
	}
}

// SizesOf resolves the size options in opts, unvalidated.
func SizesOf(opts ...Option) strategy.Sizes {
	return newConfig(opts).sizes
}

// Required names fields that are always present in drawn objects.
func Required(f Fields) Option { return func(c *config) { c.required = f } }

// Optional names fields that are each present in drawn objects at random.
func Optional(f Fields) Option { return func(c *config) { c.optional = f } }

func canonicalKey(v any) any {
	b, err := Canonical(v)
	if err != nil {
		return err.Error()
	}
	return string(b)
}
