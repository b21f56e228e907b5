package jsonvalue

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqual(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		a, b any
		want bool
	}{
		{"int and float", []any{int64(1), 2, 3}, []any{1.0, 2.0, 3.0}, true},
		{"key order", map[string]any{"a": 1, "b": 2}, map[string]any{"b": 2.0, "a": 1.0}, true},
		{"array order", []any{1, 2}, []any{2, 1}, false},
		{"null vs missing", map[string]any{"a": nil}, map[string]any{}, false},
		{"nested", map[string]any{"x": []any{map[string]any{"y": "z"}}}, map[string]any{"x": []any{map[string]any{"y": "z"}}}, true},
		{"nan", math.NaN(), math.NaN(), false},
		{"string vs number", "1", 1, false},
		{"integers past 2^53", int64(1<<53 + 1), int64(1 << 53), false},
		{"2^53 as int and float", int64(1 << 53), float64(1 << 53), true},
		{"decoded number", json.Number("9007199254740993"), int64(1<<53 + 1), true},
		{"decimal spelling", json.Number("2.0"), int64(2), true},
		{"integers past int64", json.Number("18446744073709551617"), json.Number("18446744073709551616"), false},
		{"fraction", json.Number("0.5"), 0.5, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Equal(tc.a, tc.b))
		})
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Diff([]any{int64(1)}, []any{1.0}))
	assert.NotEmpty(t, Diff([]any{1}, []any{2}))
}

func TestCanonical_SortsKeys(t *testing.T) {
	t.Parallel()
	b, err := Canonical(map[string]any{"b": 1, "a": []any{true, nil}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[true,null],"b":1}`, string(b))
}

func TestNormalize_KeepsIntegersExact(t *testing.T) {
	t.Parallel()
	got, err := Normalize([]any{int64(1<<53 + 1), 1.5, json.Number("18446744073709551617")})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1<<53 + 1), 1.5, json.Number("18446744073709551617")}, got)
}

func TestDecode_UsesNumbers(t *testing.T) {
	t.Parallel()
	var v any
	require.NoError(t, Decode([]byte(`[9007199254740993]`), &v))
	assert.Equal(t, []any{json.Number("9007199254740993")}, v)
	assert.False(t, Equal(v, []any{int64(1 << 53)}))
}
