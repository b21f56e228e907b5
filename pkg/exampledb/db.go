// Package exampledb stores generated examples in a CouchDB database so that
// interesting values can be replayed across test runs.
//
// Each (key, value) pair is one document {"key": [...], "value": [...],
// "type": "example"} with a random id. The dotted key is stored split into
// its segments and indexed by the by_key view of the _design/hypothesis
// design document, which the store creates on first use.
package exampledb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/kuitang/couchgen/internal/errs"
	"github.com/kuitang/couchgen/internal/obs"
	"github.com/kuitang/couchgen/internal/ratelimit"
	"github.com/kuitang/couchgen/internal/urlutil"
	"github.com/kuitang/couchgen/pkg/jsonvalue"
)

// DefaultURL is the database used when none is configured.
const DefaultURL = "http://localhost:5984/hypothesis"

// ErrInvalidURL marks a database URL that is not http or https.
var ErrInvalidURL = errors.New("invalid database url")

// Config configures a DB.
type Config struct {
	URL      string
	Username string
	Password string

	// RequestsPerSecond paces requests; zero disables pacing.
	RequestsPerSecond float64
	Burst             int

	// Timeout bounds each request; zero means no timeout.
	Timeout time.Duration

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// DB is an example store backed by one CouchDB database.
//
// The database and design document are checked at most once per DB. The
// flags recording that are plain fields: concurrent first calls may repeat
// the setup requests, which the server tolerates. Setup is not rolled
// back, so a failure after the database was created leaves dbReady set and
// ddocReady unset until a later call succeeds.
type DB struct {
	url    string
	client *resty.Client
	pacer  *ratelimit.Pacer

	dbReady   bool
	ddocReady bool
}

// New returns a store for cfg.URL. No request is made until first use.
func New(cfg Config) (*DB, error) {
	raw := cfg.URL
	if raw == "" {
		raw = DefaultURL
	}
	base, user, err := urlutil.SplitUserinfo(raw)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, fmt.Sprintf("database url: %v", err), ErrInvalidURL)
	}
	if user != nil {
		// Credentials in the URL become basic auth so they never reach logs.
		if cfg.Username == "" {
			cfg.Username = user.Username()
		}
		if p, ok := user.Password(); ok && cfg.Password == "" {
			cfg.Password = p
		}
	}
	return &DB{
		url:    base,
		client: newRestyClient(cfg),
		pacer:  ratelimit.NewPacer(ratelimit.Config{RPS: cfg.RequestsPerSecond, Burst: cfg.Burst}),
	}, nil
}

// URL returns the database URL without credentials.
func (d *DB) URL() string {
	return d.url
}

type exampleDoc struct {
	Key   []string `json:"key"`
	Value []any    `json:"value"`
	Type  string   `json:"type"`
}

// Save stores value under key. Every call creates a new document; equal
// values saved twice are stored twice.
func (d *DB) Save(ctx context.Context, key string, value []any) error {
	ctx = obs.WithExampleKey(ctx, key)
	if err := d.ensureSetup(ctx); err != nil {
		return err
	}
	if value == nil {
		value = []any{}
	}
	doc := exampleDoc{Key: segments(key), Value: value, Type: exampleType}
	if err := d.do(ctx, http.MethodPut, d.endpoint(uuid.NewString()), nil, doc, nil); err != nil {
		return fmt.Errorf("save example %q: %w", key, err)
	}
	obs.Pkg(ctx, pkgName).Debug("example_saved")
	return nil
}

// Fetch returns every value stored under key. Integral numbers come back
// as int64 (or json.Number past int64) and other numbers as float64.
func (d *DB) Fetch(ctx context.Context, key string) ([][]any, error) {
	ctx = obs.WithExampleKey(ctx, key)
	rows, err := d.query(ctx, key, false)
	if err != nil {
		return nil, fmt.Errorf("fetch examples %q: %w", key, err)
	}
	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		v, err := jsonvalue.Normalize(row.Value)
		if err != nil {
			return nil, fmt.Errorf("fetch examples %q: %w", key, err)
		}
		values, _ := v.([]any)
		if values == nil {
			values = []any{}
		}
		out = append(out, values)
	}
	return out, nil
}

// Delete removes every document under key whose value equals value as
// JSON. Deleting a value that is not stored is not an error.
func (d *DB) Delete(ctx context.Context, key string, value []any) error {
	ctx = obs.WithExampleKey(ctx, key)
	rows, err := d.query(ctx, key, true)
	if err != nil {
		return fmt.Errorf("delete example %q: %w", key, err)
	}
	want := value
	if want == nil {
		want = []any{}
	}
	for _, row := range rows {
		if !jsonvalue.Equal(row.Value, want) {
			continue
		}
		q := url.Values{"rev": {row.Doc.Rev}}
		if err := d.do(ctx, http.MethodDelete, d.endpoint(row.ID), q, nil, nil); err != nil {
			return fmt.Errorf("delete example %q: %w", key, err)
		}
		obs.Pkg(ctx, pkgName).Debug("example_deleted", "doc_id", row.ID)
	}
	return nil
}

// KeyCount is one stored key with the number of values under it.
type KeyCount struct {
	Key   string
	Count int
}

// Keys lists every stored key, sorted, with its value count.
func (d *DB) Keys(ctx context.Context) ([]KeyCount, error) {
	if err := d.ensureSetup(ctx); err != nil {
		return nil, err
	}
	var res struct {
		Rows []struct {
			Key   []any `json:"key"`
			Value int   `json:"value"`
		} `json:"rows"`
	}
	q := url.Values{"group": {"true"}}
	if err := d.do(ctx, http.MethodGet, d.viewEndpoint(), q, nil, &res); err != nil {
		return nil, fmt.Errorf("list example keys: %w", err)
	}
	out := make([]KeyCount, 0, len(res.Rows))
	for _, row := range res.Rows {
		parts := make([]string, len(row.Key))
		for i, p := range row.Key {
			parts[i] = fmt.Sprint(p)
		}
		out = append(out, KeyCount{Key: strings.Join(parts, keySeparator), Count: row.Value})
	}
	slices.SortFunc(out, func(a, b KeyCount) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

// Close releases idle connections. The store holds no other state.
func (d *DB) Close() error {
	d.client.GetClient().CloseIdleConnections()
	return nil
}

type viewRow struct {
	ID    string `json:"id"`
	Value []any  `json:"value"`
	Doc   struct {
		Rev string `json:"_rev"`
	} `json:"doc"`
}

// query reads the by_key rows for key with the reduce disabled. Rows are
// filtered by key only; value comparison happens in the caller.
func (d *DB) query(ctx context.Context, key string, includeDocs bool) ([]viewRow, error) {
	if err := d.ensureSetup(ctx); err != nil {
		return nil, err
	}
	k, err := jsonKey(key)
	if err != nil {
		return nil, err
	}
	q := url.Values{"key": {k}, "reduce": {"false"}}
	if includeDocs {
		q.Set("include_docs", "true")
	}
	var res struct {
		Rows []viewRow `json:"rows"`
	}
	if err := d.do(ctx, http.MethodGet, d.viewEndpoint(), q, nil, &res); err != nil {
		return nil, err
	}
	return res.Rows, nil
}

func (d *DB) viewEndpoint() string {
	return d.endpoint(designPrefix, designName, "_view", viewName)
}

const keySeparator = "."

func segments(key string) []string {
	return strings.Split(key, keySeparator)
}

func jsonKey(key string) (string, error) {
	b, err := jsonvalue.Canonical(segments(key))
	if err != nil {
		return "", errs.Wrap(errs.InvalidArgument, "encode example key", err)
	}
	return string(b), nil
}
