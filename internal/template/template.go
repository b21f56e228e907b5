// Package template loads YAML document templates and compiles them into
// document strategies.
//
// A template names a strategy for each required and optional field:
//
//	required:
//	  _id: id
//	  _rev: rev
//	optional:
//	  _deleted: deleted
//	random: values   # or "none"
//	max_free_fields: 3
package template

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/kuitang/couchgen/internal/errs"
	"github.com/kuitang/couchgen/pkg/document"
	"github.com/kuitang/couchgen/pkg/jsonvalue"
	"github.com/kuitang/couchgen/pkg/strategy"
)

// Free field modes.
const (
	RandomValues = "values"
	RandomNone   = "none"
)

// Template is the parsed form of a template file.
type Template struct {
	// Required maps field names to strategy names; every field is present.
	// Keys are decoded untyped so that non-string keys are reported.
	Required map[any]string `yaml:"required,omitempty"`

	// Optional fields are each present or absent independently.
	Optional map[any]string `yaml:"optional,omitempty"`

	// Random selects free fields: "values" (default) adds random fields
	// drawn from any JSON value, "none" adds none.
	Random string `yaml:"random,omitempty"`

	// MaxFreeFields bounds the number of free fields when set.
	MaxFreeFields *int `yaml:"max_free_fields,omitempty"`
}

var named = map[string]func() (strategy.Strategy[any], error){
	"nulls":    func() (strategy.Strategy[any], error) { return jsonvalue.Nulls(), nil },
	"booleans": func() (strategy.Strategy[any], error) { return strategy.Erase(jsonvalue.Booleans()), nil },
	"numbers":  func() (strategy.Strategy[any], error) { return jsonvalue.Numbers() },
	"strings":  func() (strategy.Strategy[any], error) { return erase(jsonvalue.Strings()) },
	"values":   func() (strategy.Strategy[any], error) { return jsonvalue.Values(), nil },
	"id":       func() (strategy.Strategy[any], error) { return erase(document.ID()) },
	"rev":      func() (strategy.Strategy[any], error) { return strategy.Erase(document.Rev()), nil },
	"deleted":  func() (strategy.Strategy[any], error) { return strategy.Erase(document.Deleted()), nil },
	"revisions": func() (strategy.Strategy[any], error) {
		return erase(document.Revisions(1, strategy.Unbounded))
	},
	"revs_info": func() (strategy.Strategy[any], error) {
		return erase(document.RevsInfo(1, strategy.Unbounded))
	},
	"local_seq": func() (strategy.Strategy[any], error) { return strategy.Erase(document.LocalSeq()), nil },
	"conflicts": func() (strategy.Strategy[any], error) {
		return erase(document.Conflicts(0, strategy.Unbounded))
	},
	"deleted_conflicts": func() (strategy.Strategy[any], error) {
		return erase(document.DeletedConflicts(0, strategy.Unbounded))
	},
}

func erase[T any](s strategy.Strategy[T], err error) (strategy.Strategy[any], error) {
	if err != nil {
		return nil, err
	}
	return strategy.Erase(s), nil
}

// Names returns the strategy names a template may use, sorted.
func Names() []string {
	out := make([]string, 0, len(named))
	for name := range named {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Lookup returns the strategy registered under name.
func Lookup(name string) (strategy.Strategy[any], error) {
	mk, ok := named[name]
	if !ok {
		return nil, strategy.NewInvalidArgument("unknown strategy %q", name)
	}
	return mk()
}

// Parse decodes a template. Unknown top-level keys are rejected.
func Parse(r io.Reader) (*Template, error) {
	var t Template
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&t); err != nil {
		if errors.Is(err, io.EOF) {
			// An empty template draws free fields only.
			return &Template{}, nil
		}
		return nil, errs.Wrap(errs.InvalidArgument, fmt.Sprintf("parse template: %v", err), strategy.ErrInvalidArgument)
	}
	return &t, nil
}

// Load reads and parses the template file at path.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	t, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Compile builds the document strategy the template describes.
func (t *Template) Compile() (strategy.Strategy[map[string]any], error) {
	required, err := fields("required", t.Required)
	if err != nil {
		return nil, err
	}
	optional, err := fields("optional", t.Optional)
	if err != nil {
		return nil, err
	}

	var opts []jsonvalue.Option
	switch t.Random {
	case "", RandomValues:
	case RandomNone:
		opts = append(opts, jsonvalue.NoElements())
	default:
		return nil, strategy.NewInvalidArgument("random must be %q or %q, got %q", RandomValues, RandomNone, t.Random)
	}
	if t.MaxFreeFields != nil {
		opts = append(opts, jsonvalue.MaxSize(*t.MaxFreeFields))
	}
	return document.Documents(required, optional, opts...)
}

func fields(section string, names map[any]string) (jsonvalue.Fields, error) {
	if len(names) == 0 {
		return nil, nil
	}
	m := make(map[any]strategy.Strategy[any], len(names))
	for key, name := range names {
		s, err := Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("%s field %v: %w", section, key, err)
		}
		m[key] = s
	}
	f, err := jsonvalue.FieldsFromMap(m)
	if err != nil {
		return nil, fmt.Errorf("%s fields: %w", section, err)
	}
	return f, nil
}
