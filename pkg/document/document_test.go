package document

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/couchgen/internal/errs"
	"github.com/kuitang/couchgen/pkg/jsonvalue"
	"github.com/kuitang/couchgen/pkg/strategy"
)

func always[T any](T) bool { return true }

func testRev_Shape(t *rapid.T) {
	rev := strategy.Rapid(Rev()).Draw(t, "rev")
	if strings.Count(rev, "-") != 1 {
		t.Fatalf("rev %q must contain exactly one dash", rev)
	}
	pos, hash, ok := ParseRev(rev)
	if !ok {
		t.Fatalf("rev %q does not parse", rev)
	}
	if pos < 0 {
		t.Fatalf("rev %q has negative position", rev)
	}
	if len(hash) != 32 || strings.ToLower(hash) != hash {
		t.Fatalf("rev %q has malformed hash", rev)
	}
}

func TestRev_Shape(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testRev_Shape)
}

func TestParseRev(t *testing.T) {
	t.Parallel()
	hash := strings.Repeat("a1", 16)
	cases := []struct {
		rev string
		ok  bool
		pos int64
	}{
		{"0-" + hash, true, 0},
		{"42-" + hash, true, 42},
		{"-1-" + hash, false, 0},
		{"1-" + strings.ToUpper(hash), false, 0},
		{"1-" + hash[:31], false, 0},
		{"x-" + hash, false, 0},
		{hash, false, 0},
		{"1-" + hash + "-2", false, 0},
	}
	for _, tc := range cases {
		pos, _, ok := ParseRev(tc.rev)
		assert.Equal(t, tc.ok, ok, "ParseRev(%q)", tc.rev)
		assert.Equal(t, tc.pos, pos, "ParseRev(%q)", tc.rev)
	}
}

func TestHash_ShrinksToZeros(t *testing.T) {
	t.Parallel()
	got, err := strategy.Find(Hash(), always[string], strategy.WithSeed(1))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("0", 32), got)
}

func testID_NonEmpty(t *rapid.T) {
	id := strategy.Rapid(strategy.Must(ID())).Draw(t, "id")
	if id == "" {
		t.Fatalf("empty id")
	}
}

func TestID_NonEmpty(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testID_NonEmpty)
}

func TestID_RejectsMinSizeBelowOne(t *testing.T) {
	t.Parallel()
	for _, n := range []int{0, -1} {
		_, err := ID(jsonvalue.MinSize(n))
		require.Error(t, err)
		assert.ErrorIs(t, err, strategy.ErrInvalidArgument)
		assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
	}
}

func TestID_Alphabet(t *testing.T) {
	t.Parallel()
	s, err := ID(jsonvalue.Alphabet("xyz"), jsonvalue.MinSize(3), jsonvalue.MaxSize(3))
	require.NoError(t, err)
	got, err := strategy.Find(s, always[string], strategy.WithSeed(2))
	require.NoError(t, err)
	assert.Equal(t, "xxx", got)
}

func testRevisions_Shape(t *rapid.T) {
	lo := rapid.IntRange(0, 20).Draw(t, "min")
	hi := rapid.IntRange(lo, lo+20).Draw(t, "max")
	v := strategy.Rapid(strategy.Must(Revisions(lo, hi))).Draw(t, "revisions")

	start, ok := v["start"].(int64)
	if !ok {
		t.Fatalf("start has type %T", v["start"])
	}
	if start < int64(lo) || start > int64(hi) {
		t.Fatalf("start %d outside [%d, %d]", start, lo, hi)
	}
	ids, ok := v["ids"].([]any)
	if !ok {
		t.Fatalf("ids has type %T", v["ids"])
	}
	if int64(len(ids)) != start {
		t.Fatalf("len(ids) = %d, start = %d", len(ids), start)
	}
	seen := map[string]bool{}
	for _, id := range ids {
		h := id.(string)
		if !isHash(h) {
			t.Fatalf("id %q is not a hash", h)
		}
		if seen[h] {
			t.Fatalf("duplicate id %q", h)
		}
		seen[h] = true
	}
}

func TestRevisions_Shape(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testRevisions_Shape)
}

func TestRevisions_ShrinksToMinimumStart(t *testing.T) {
	t.Parallel()
	got, err := strategy.Find(strategy.Must(Revisions(1, 50)), always[map[string]any], strategy.WithSeed(3))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"start": int64(1), "ids": []any{strings.Repeat("0", 32)}}, got)
}

func TestRevisions_InvalidBounds(t *testing.T) {
	t.Parallel()
	_, err := Revisions(-1, 3)
	assert.ErrorIs(t, err, strategy.ErrInvalidArgument)
	_, err = Revisions(5, 2)
	assert.ErrorIs(t, err, strategy.ErrInvalidArgument)
}

func testRevsInfo_Shape(t *rapid.T) {
	v := strategy.Rapid(strategy.Must(RevsInfo(1, 5))).Draw(t, "revs_info")
	if len(v) < 1 || len(v) > 5 {
		t.Fatalf("length %d outside [1, 5]", len(v))
	}
	for _, e := range v {
		info := e.(map[string]any)
		if _, _, ok := ParseRev(info["rev"].(string)); !ok {
			t.Fatalf("bad rev in %v", info)
		}
		switch info["status"] {
		case "available", "missing", "deleted":
		default:
			t.Fatalf("bad status in %v", info)
		}
	}
}

func TestRevsInfo_Shape(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testRevsInfo_Shape)
}

func TestRevsInfo_RequiresAnEntry(t *testing.T) {
	t.Parallel()
	_, err := RevsInfo(0, 3)
	assert.ErrorIs(t, err, strategy.ErrInvalidArgument)
}

func TestLocalSeq_Positive(t *testing.T) {
	t.Parallel()
	values, err := strategy.Examples(LocalSeq(), 500, 4)
	require.NoError(t, err)
	for _, v := range values {
		assert.GreaterOrEqual(t, v, int64(1))
	}
	got, err := strategy.Find(LocalSeq(), always[int64], strategy.WithSeed(4))
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func testConflicts_Shape(t *rapid.T) {
	for _, mk := range []func(int, int) (strategy.Strategy[[]any], error){Conflicts, DeletedConflicts} {
		v := strategy.Rapid(strategy.Must(mk(0, 4))).Draw(t, "conflicts")
		if len(v) > 4 {
			t.Fatalf("length %d above 4", len(v))
		}
		for _, rev := range v {
			if _, _, ok := ParseRev(rev.(string)); !ok {
				t.Fatalf("bad rev %v", rev)
			}
		}
	}
}

func TestConflicts_Shape(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testConflicts_Shape)
}

func TestConflicts_MayBeEmpty(t *testing.T) {
	t.Parallel()
	got, err := strategy.Find(strategy.Must(Conflicts(0, strategy.Unbounded)), always[[]any], strategy.WithSeed(5))
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = DeletedConflicts(3, 1)
	assert.ErrorIs(t, err, strategy.ErrInvalidArgument)
}

func TestDocuments_RequiredField(t *testing.T) {
	t.Parallel()
	s, err := Documents(jsonvalue.Fields{"test": jsonvalue.Nulls()}, nil)
	require.NoError(t, err)

	values, err := strategy.Examples(s, 100, 6)
	require.NoError(t, err)
	for _, doc := range values {
		v, ok := doc["test"]
		require.True(t, ok, "missing required field in %v", doc)
		assert.Nil(t, v)
	}

	_, err = strategy.Find(s, func(doc map[string]any) bool {
		_, ok := doc["test"]
		return !ok
	}, strategy.WithSeed(6), strategy.WithMaxExamples(300))
	assert.ErrorIs(t, err, strategy.ErrNoExample)
}

func TestDocuments_OptionalField(t *testing.T) {
	t.Parallel()
	s, err := Documents(nil, jsonvalue.Fields{"test": jsonvalue.Nulls()})
	require.NoError(t, err)

	minimal, err := strategy.Find(s, always[map[string]any], strategy.WithSeed(7))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, minimal)

	withTest, err := strategy.Find(s, func(doc map[string]any) bool {
		_, ok := doc["test"]
		return ok
	}, strategy.WithSeed(7))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"test": nil}, withTest)
}

func TestDocuments_NoSources(t *testing.T) {
	t.Parallel()
	_, err := Documents(nil, nil, jsonvalue.NoElements())
	assert.ErrorIs(t, err, strategy.ErrInvalidArgument)

	s, err := Documents(jsonvalue.Fields{"_id": strategy.Erase(strategy.Must(ID()))}, nil, jsonvalue.NoElements())
	require.NoError(t, err)
	values, err := strategy.Examples(s, 50, 8)
	require.NoError(t, err)
	for _, doc := range values {
		assert.Len(t, doc, 1)
		assert.NotEmpty(t, doc["_id"])
	}
}

func testDocuments_ReservedFieldsRoundTrip(t *rapid.T) {
	s := strategy.Must(Documents(nil, ReservedFields(), jsonvalue.MaxSize(3)))
	doc := strategy.Rapid(s).Draw(t, "doc")

	if rev, ok := doc[FieldRev]; ok {
		if _, _, valid := ParseRev(rev.(string)); !valid {
			t.Fatalf("bad _rev %v", rev)
		}
	}
	if seq, ok := doc[FieldLocalSeq]; ok && seq.(int64) < 1 {
		t.Fatalf("bad _local_seq %v", seq)
	}

	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !jsonvalue.Equal(doc, back) {
		t.Fatalf("round trip changed document (-want +got):\n%s", jsonvalue.Diff(doc, back))
	}
}

func TestDocuments_ReservedFieldsRoundTrip(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testDocuments_ReservedFieldsRoundTrip)
}
