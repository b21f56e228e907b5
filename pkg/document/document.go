// Package document provides strategies for CouchDB documents and their
// reserved fields.
package document

import (
	"strconv"
	"strings"

	"github.com/kuitang/couchgen/pkg/jsonvalue"
	"github.com/kuitang/couchgen/pkg/strategy"
)

// Reserved document field names.
const (
	FieldID               = "_id"
	FieldRev              = "_rev"
	FieldDeleted          = "_deleted"
	FieldRevisions        = "_revisions"
	FieldRevsInfo         = "_revs_info"
	FieldLocalSeq         = "_local_seq"
	FieldConflicts        = "_conflicts"
	FieldDeletedConflicts = "_deleted_conflicts"
)

// Revision statuses reported in _revs_info.
var revStatuses = []string{"available", "missing", "deleted"}

const (
	hashLen          = 32
	hexDigits        = "0123456789abcdef"
	defaultRevsLimit = 1000
)

// Documents draws documents holding every required field, a random subset
// of the optional fields, and free fields drawn from jsonvalue.Values.
// Pass jsonvalue.Elements to change the free field values or
// jsonvalue.NoElements to drop them; size options bound the free fields.
func Documents(required, optional jsonvalue.Fields, opts ...jsonvalue.Option) (strategy.Strategy[map[string]any], error) {
	all := make([]jsonvalue.Option, 0, len(opts)+3)
	all = append(all, jsonvalue.Elements(jsonvalue.Values()))
	if len(required) > 0 {
		all = append(all, jsonvalue.Required(required))
	}
	if len(optional) > 0 {
		all = append(all, jsonvalue.Optional(optional))
	}
	all = append(all, opts...)
	return jsonvalue.Objects(all...)
}

// ID draws non-empty document ids. The minimum size defaults to 1 and must
// not be lowered below it.
func ID(opts ...jsonvalue.Option) (strategy.Strategy[string], error) {
	all := append([]jsonvalue.Option{jsonvalue.MinSize(1)}, opts...)
	if sz := jsonvalue.SizesOf(all...); sz.Min < 1 {
		return nil, strategy.NewInvalidArgument("id: min size must be at least 1, got %d", sz.Min)
	}
	return jsonvalue.Strings(all...)
}

// Hash draws 32 lowercase hexadecimal characters.
func Hash() strategy.Strategy[string] {
	return strategy.Must(strategy.Text(strategy.Runes(hexDigits), strategy.Sizes{Min: hashLen, Max: hashLen}))
}

// Rev draws revision tokens of the form "<pos>-<hash>".
func Rev() strategy.Strategy[string] {
	pos := strategy.Map(strategy.Must(strategy.Integers(0, jsonvalue.MaxSafeInteger)), func(n int64) string {
		return strconv.FormatInt(n, 10)
	})
	return strategy.Map(strategy.Sequence(pos, Hash()), func(parts []string) string {
		return strings.Join(parts, "-")
	})
}

// ParseRev splits a revision token into its position and hash. ok is false
// when rev is not "<pos>-<hash>" with a non-negative pos and a 32 character
// lowercase hex hash.
func ParseRev(rev string) (pos int64, hash string, ok bool) {
	p, h, found := strings.Cut(rev, "-")
	if !found || !isHash(h) || p == "" || strings.TrimLeft(p, "0123456789") != "" {
		return 0, "", false
	}
	n, err := strconv.ParseInt(p, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return n, h, true
}

func isHash(s string) bool {
	return len(s) == hashLen && strings.Trim(s, hexDigits) == ""
}

// Deleted draws values for the _deleted flag.
func Deleted() strategy.Strategy[bool] {
	return strategy.Booleans()
}

// Revisions draws _revisions objects {"start": n, "ids": [...]} where n is
// in [minStart, maxStart] and ids holds n distinct hashes. maxStart may be
// strategy.Unbounded, in which case n stays within minStart plus CouchDB's
// default revision limit.
func Revisions(minStart, maxStart int) (strategy.Strategy[map[string]any], error) {
	if minStart < 0 {
		return nil, strategy.NewInvalidArgument("revisions: min must not be negative, got %d", minStart)
	}
	if maxStart == strategy.Unbounded {
		maxStart = minStart + defaultRevsLimit
	}
	if maxStart < minStart {
		return nil, strategy.NewInvalidArgument("revisions: max %d is less than min %d", maxStart, minStart)
	}
	starts, err := strategy.Integers(int64(minStart), int64(maxStart))
	if err != nil {
		return nil, err
	}
	return strategy.Bind(starts, func(n int64) strategy.Strategy[map[string]any] {
		ids := strategy.Must(strategy.Lists(Hash(), strategy.Sizes{Min: int(n), Max: int(n)}, func(h string) any { return h }))
		return strategy.Map(ids, func(hs []string) map[string]any {
			out := make([]any, len(hs))
			for i, h := range hs {
				out[i] = h
			}
			return map[string]any{"start": n, "ids": out}
		})
	}), nil
}

// RevsInfo draws non-empty _revs_info arrays of {"rev", "status"} objects.
func RevsInfo(minSize, maxSize int) (strategy.Strategy[[]any], error) {
	if minSize < 1 {
		return nil, strategy.NewInvalidArgument("revs_info: min size must be at least 1, got %d", minSize)
	}
	info := strategy.FixedFields(map[string]strategy.Strategy[any]{
		"rev":    strategy.Erase(Rev()),
		"status": strategy.Erase(strategy.SampledFrom(revStatuses...)),
	})
	return jsonvalue.Arrays(strategy.Erase(info), jsonvalue.MinSize(minSize), jsonvalue.MaxSize(maxSize))
}

// LocalSeq draws _local_seq values, integers of at least 1.
func LocalSeq() strategy.Strategy[int64] {
	return strategy.Must(strategy.Integers(1, jsonvalue.MaxSafeInteger))
}

// Conflicts draws _conflicts arrays of distinct revision tokens.
func Conflicts(minSize, maxSize int) (strategy.Strategy[[]any], error) {
	return revList("conflicts", minSize, maxSize)
}

// DeletedConflicts draws _deleted_conflicts arrays of distinct revision
// tokens.
func DeletedConflicts(minSize, maxSize int) (strategy.Strategy[[]any], error) {
	return revList("deleted_conflicts", minSize, maxSize)
}

func revList(what string, minSize, maxSize int) (strategy.Strategy[[]any], error) {
	s, err := jsonvalue.Arrays(strategy.Erase(Rev()), jsonvalue.MinSize(minSize), jsonvalue.MaxSize(maxSize), jsonvalue.UniqueBy(func(v any) any { return v }))
	if err != nil {
		return nil, strategy.NewInvalidArgument("%s: %v", what, err)
	}
	return s, nil
}

// ReservedFields returns a strategy for every reserved document field,
// suitable as the optional fields of Documents.
func ReservedFields() jsonvalue.Fields {
	return jsonvalue.Fields{
		FieldID:               strategy.Erase(strategy.Must(ID())),
		FieldRev:              strategy.Erase(Rev()),
		FieldDeleted:          strategy.Erase(Deleted()),
		FieldRevisions:        strategy.Erase(strategy.Must(Revisions(1, strategy.Unbounded))),
		FieldRevsInfo:         strategy.Erase(strategy.Must(RevsInfo(1, strategy.Unbounded))),
		FieldLocalSeq:         strategy.Erase(LocalSeq()),
		FieldConflicts:        strategy.Erase(strategy.Must(Conflicts(0, strategy.Unbounded))),
		FieldDeletedConflicts: strategy.Erase(strategy.Must(DeletedConflicts(0, strategy.Unbounded))),
	}
}
