package jsonvalue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/go-cmp/cmp"
)

// Decode parses data into v keeping numbers as json.Number, so integers
// beyond float64 precision stay exact.
func Decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// Normalize returns v as it would decode after encoding: slices become
// []any, maps map[string]any, integral numbers that fit int64 become
// int64, other fractional or exponent numbers float64, and larger
// integers json.Number holding their exact digits.
func Normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jsonvalue: encode: %w", err)
	}
	var out any
	if err := Decode(b, &out); err != nil {
		return nil, fmt.Errorf("jsonvalue: decode: %w", err)
	}
	return normalizeNumbers(out), nil
}

func normalizeNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		return normalizeNumber(v)
	case []any:
		for i, e := range v {
			v[i] = normalizeNumbers(e)
		}
		return v
	case map[string]any:
		for k, e := range v {
			v[k] = normalizeNumbers(e)
		}
		return v
	default:
		return v
	}
}

func normalizeNumber(n json.Number) any {
	s := n.String()
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if !strings.ContainsAny(s, ".eE") {
		// An integer outside int64.
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return n
	}
	if f >= -(1<<63) && f < 1<<63 && f == float64(int64(f)) {
		return int64(f)
	}
	return f
}

// Canonical returns the encoding of v with object keys sorted.
func Canonical(v any) ([]byte, error) {
	n, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(n)
}

// Equal reports whether a and b are the same JSON value. Array order
// matters; object key order does not. Numbers compare exactly. Values that
// cannot be encoded are never equal.
func Equal(a, b any) bool {
	na, err := Normalize(a)
	if err != nil {
		return false
	}
	nb, err := Normalize(b)
	if err != nil {
		return false
	}
	return cmp.Equal(na, nb)
}

// Diff reports the differences between a and b as JSON values, or "" when
// they are equal.
func Diff(a, b any) string {
	na, errA := Normalize(a)
	nb, errB := Normalize(b)
	if errA != nil || errB != nil {
		return fmt.Sprintf("unencodable value: %v / %v", errA, errB)
	}
	return cmp.Diff(na, nb)
}
