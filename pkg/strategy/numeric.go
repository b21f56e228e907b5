package strategy

import (
	"iter"
	"math"
	"math/rand/v2"
)

type intStrategy struct {
	min, max int64
	target   int64
}

// Integers draws int64 values in [min, max], shrinking toward the value in
// range closest to zero.
func Integers(min, max int64) (Strategy[int64], error) {
	if min > max {
		return nil, NewInvalidArgument("integers: min %d is greater than max %d", min, max)
	}
	return intStrategy{min: min, max: max, target: clampInt(0, min, max)}, nil
}

func clampInt(v, min, max int64) int64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func (s intStrategy) Draw(r *rand.Rand) Tree[int64] {
	return intTree(s.draw(r), s.target)
}

func (s intStrategy) draw(r *rand.Rand) int64 {
	switch r.IntN(10) {
	case 0:
		return s.min
	case 1:
		return s.max
	case 2, 3, 4:
		// Small offsets around the shrink target find boundary bugs quickly.
		off := int64(r.IntN(33)) - 16
		v := s.target + off
		if (off > 0 && v < s.target) || (off < 0 && v > s.target) {
			return s.target
		}
		return clampInt(v, s.min, s.max)
	case 5, 6:
		bits := r.IntN(62) + 1
		mag := int64(r.Uint64N(uint64(1) << bits))
		if r.IntN(2) == 0 {
			mag = -mag
		}
		v := s.target + mag
		if v >= s.min && v <= s.max && (mag >= 0) == (v >= s.target) {
			return v
		}
	}
	span := uint64(s.max) - uint64(s.min)
	var u uint64
	if span == math.MaxUint64 {
		u = r.Uint64()
	} else {
		u = r.Uint64N(span + 1)
	}
	return int64(uint64(s.min) + u)
}

func intTree(v, target int64) Tree[int64] {
	return NewTree(v, func() iter.Seq[Tree[int64]] {
		return func(yield func(Tree[int64]) bool) {
			for c := range shrinkInt(v, target) {
				if !yield(intTree(c, target)) {
					return
				}
			}
		}
	})
}

// shrinkInt yields target, then values approaching v by halving the distance.
func shrinkInt(v, target int64) iter.Seq[int64] {
	return func(yield func(int64) bool) {
		if v == target {
			return
		}
		if !yield(target) {
			return
		}
		d := v - target
		for h := d / 2; h != 0; h /= 2 {
			if !yield(v - h) {
				return
			}
		}
	}
}

type floatStrategy struct {
	min, max float64
	target   float64
}

// Floats draws float64 values in [min, max]. Pass math.Inf bounds for an
// unbounded side; when both sides are unbounded the strategy also draws
// infinities and NaN.
func Floats(min, max float64) (Strategy[float64], error) {
	if math.IsNaN(min) || math.IsNaN(max) {
		return nil, NewInvalidArgument("floats: bounds must not be NaN")
	}
	if min > max {
		return nil, NewInvalidArgument("floats: min %g is greater than max %g", min, max)
	}
	return floatStrategy{min: min, max: max, target: math.Max(min, math.Min(0, max))}, nil
}

var niceFloats = []float64{0, 0.5, 1, 1.5, 2, 10, 100, 1e-3, 1e6, 1.0 / 3}

func (s floatStrategy) Draw(r *rand.Rand) Tree[float64] {
	return floatTree(s.draw(r), s.target)
}

func (s floatStrategy) draw(r *rand.Rand) float64 {
	unbounded := math.IsInf(s.min, -1) && math.IsInf(s.max, 1)
	switch r.IntN(16) {
	case 0:
		if unbounded {
			return math.NaN()
		}
		return s.min
	case 1:
		if unbounded {
			return math.Inf(1 - 2*r.IntN(2))
		}
		return s.max
	case 2, 3, 4:
		v := niceFloats[r.IntN(len(niceFloats))]
		if r.IntN(2) == 0 {
			v = -v
		}
		if v >= s.min && v <= s.max {
			return v
		}
	}
	lo, hi := s.min, s.max
	if math.IsInf(lo, -1) {
		lo = -math.MaxFloat64
	}
	if math.IsInf(hi, 1) {
		hi = math.MaxFloat64
	}
	if r.IntN(2) == 0 {
		// Log-uniform magnitude keeps most draws at human scale.
		v := math.Exp(r.Float64()*80-40) * float64(1-2*r.IntN(2))
		if v >= lo && v <= hi {
			return v
		}
	}
	var v float64
	if math.IsInf(hi-lo, 0) {
		v = 2 * (lo/2 + r.Float64()*(hi/2-lo/2))
	} else {
		v = lo + r.Float64()*(hi-lo)
	}
	return math.Min(hi, math.Max(lo, v))
}

func floatTree(v, target float64) Tree[float64] {
	return NewTree(v, func() iter.Seq[Tree[float64]] {
		return func(yield func(Tree[float64]) bool) {
			for c := range shrinkFloat(v, target) {
				if !yield(floatTree(c, target)) {
					return
				}
			}
		}
	})
}

// shrinkFloat moves toward target: first target itself, then the truncated
// value, then integral values halfway between. Non-finite values only shrink
// to target.
func shrinkFloat(v, target float64) iter.Seq[float64] {
	return func(yield func(float64) bool) {
		if v == target {
			return
		}
		if !yield(target) {
			return
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return
		}
		if t := math.Trunc(v); t != v {
			if between(t, target, v) {
				yield(t)
			}
			return
		}
		half := math.Trunc(target + (v-target)/2)
		if half != v && half != target && between(half, target, v) {
			yield(half)
		}
	}
}

// between reports whether x lies in the closed interval spanned by a and b.
func between(x, a, b float64) bool {
	return x >= math.Min(a, b) && x <= math.Max(a, b)
}
