// Package testdb provides an in-memory CouchDB stand-in for tests.
package testdb

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kuitang/couchgen/internal/obs"
	"github.com/kuitang/couchgen/internal/ratelimit"
	"github.com/kuitang/couchgen/pkg/jsonvalue"
)

// Couch is a fake CouchDB server holding one database. It implements the
// subset of the HTTP API used by the example store: database and document
// CRUD, design documents, and views keyed on a document's "key" field.
type Couch struct {
	*httptest.Server

	// DBName is the database path segment, without slashes.
	DBName string

	mu       sync.Mutex
	exists   bool
	docs     map[string]map[string]any
	requests []string
	faults   map[string]int
	user     string
	password string
}

// Option configures a Couch.
type Option func(*couchOptions)

type couchOptions struct {
	dbName   string
	user     string
	password string
	limit    ratelimit.Config
}

// WithDBName sets the database name. Defaults to "hypothesis".
func WithDBName(name string) Option { return func(o *couchOptions) { o.dbName = name } }

// WithBasicAuth requires HTTP basic credentials on every request.
func WithBasicAuth(user, password string) Option {
	return func(o *couchOptions) {
		o.user = user
		o.password = password
	}
}

// WithRateLimit answers 429 once requests exceed cfg.
func WithRateLimit(cfg ratelimit.Config) Option { return func(o *couchOptions) { o.limit = cfg } }

// NewCouchInMemory starts a fake CouchDB. Call Close when done.
func NewCouchInMemory(opts ...Option) *Couch {
	o := couchOptions{dbName: "hypothesis"}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Couch{
		DBName:   o.dbName,
		docs:     make(map[string]map[string]any),
		faults:   make(map[string]int),
		user:     o.user,
		password: o.password,
	}
	var h http.Handler = http.HandlerFunc(c.serve)
	h = ratelimit.Middleware(o.limit)(h)
	h = obs.AccessLogMiddleware("testdb", h)
	h = obs.RequestContextMiddleware(h)
	c.Server = httptest.NewServer(h)
	return c
}

// DBURL returns the database URL clients should use.
func (c *Couch) DBURL() string {
	return c.URL + "/" + c.DBName
}

// Requests returns "METHOD /path" for every request served so far.
func (c *Couch) Requests() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.requests)
}

// ResetRequests clears the request log.
func (c *Couch) ResetRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = nil
}

// Fail makes every request with method and escaped path (relative to the
// database, "" for the database itself) answer status. Status 0 clears it.
func (c *Couch) Fail(method, path string, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := method + " " + path
	if status == 0 {
		delete(c.faults, k)
		return
	}
	c.faults[k] = status
}

// Doc returns a copy of the stored document with id.
func (c *Couch) Doc(id string) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.docs[id]
	if !ok {
		return nil, false
	}
	return cloneDoc(d), true
}

// PutDoc stores doc directly, creating the database if needed, and returns
// its new revision.
func (c *Couch) PutDoc(id string, doc map[string]any) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exists = true
	return c.store(id, cloneDoc(doc))
}

// ExampleDocs counts the stored documents tagged as examples.
func (c *Couch) ExampleDocs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, d := range c.docs {
		if d["type"] == "example" {
			n++
		}
	}
	return n
}

type couchError struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, reason string) {
	writeJSON(w, status, couchError{Error: kind, Reason: reason})
}

func (c *Couch) serve(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, r.Method+" "+r.URL.EscapedPath())

	if c.user != "" {
		u, p, ok := r.BasicAuth()
		if !ok || u != c.user || p != c.password {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Name or password is incorrect.")
			return
		}
	}

	prefix := "/" + c.DBName
	escaped := r.URL.EscapedPath()
	if escaped != prefix && !strings.HasPrefix(escaped, prefix+"/") {
		writeError(w, http.StatusNotFound, "not_found", "Database does not exist.")
		return
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(escaped, prefix), "/")
	if status, ok := c.faults[r.Method+" "+rest]; ok {
		writeError(w, status, "injected", http.StatusText(status))
		return
	}

	if rest == "" {
		c.serveDB(w, r)
		return
	}
	if !c.exists {
		writeError(w, http.StatusNotFound, "not_found", "Database does not exist.")
		return
	}

	switch {
	case strings.HasPrefix(rest, "_design/") && strings.Contains(rest, "/_view/"):
		c.serveView(w, r, rest)
	case strings.HasPrefix(rest, "_design/"):
		c.serveDoc(w, r, rest)
	case strings.HasPrefix(rest, "_"):
		writeError(w, http.StatusBadRequest, "illegal_docid", "Only reserved document ids may start with underscore.")
	default:
		id, err := url.PathUnescape(rest)
		if err != nil || strings.Contains(id, "/") {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid document path")
			return
		}
		c.serveDoc(w, r, id)
	}
}

func (c *Couch) serveDB(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !c.exists {
			writeError(w, http.StatusNotFound, "not_found", "Database does not exist.")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"db_name": c.DBName, "doc_count": len(c.docs)})
	case http.MethodPut:
		if c.exists {
			writeError(w, http.StatusPreconditionFailed, "file_exists", "The database could not be created, the file already exists.")
			return
		}
		c.exists = true
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only GET,PUT allowed")
	}
}

func (c *Couch) serveDoc(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		d, ok := c.docs[id]
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", "missing")
			return
		}
		writeJSON(w, http.StatusOK, d)
	case http.MethodPut:
		var doc map[string]any
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid UTF-8 JSON")
			return
		}
		if old, ok := c.docs[id]; ok && old["_rev"] != doc["_rev"] {
			writeError(w, http.StatusConflict, "conflict", "Document update conflict.")
			return
		}
		if _, ok := c.docs[id]; !ok && doc["_rev"] != nil {
			writeError(w, http.StatusConflict, "conflict", "Document update conflict.")
			return
		}
		if reason := c.validate(doc); reason != "" {
			writeError(w, http.StatusForbidden, "forbidden", reason)
			return
		}
		rev := c.store(id, doc)
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": id, "rev": rev})
	case http.MethodDelete:
		old, ok := c.docs[id]
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", "missing")
			return
		}
		if r.URL.Query().Get("rev") != old["_rev"] {
			writeError(w, http.StatusConflict, "conflict", "Document update conflict.")
			return
		}
		delete(c.docs, id)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only GET,PUT,DELETE allowed")
	}
}

// validate mirrors the example store's validate_doc_update function when
// a design document declaring one is installed.
func (c *Couch) validate(doc map[string]any) string {
	hasValidator := false
	for id, d := range c.docs {
		if strings.HasPrefix(id, "_design/") && d["validate_doc_update"] != nil {
			hasValidator = true
		}
	}
	if !hasValidator || doc["_deleted"] == true || doc["type"] != "example" {
		return ""
	}
	if _, ok := doc["key"].([]any); !ok {
		return "bad doc"
	}
	if _, ok := doc["value"].([]any); !ok {
		return "bad doc"
	}
	return ""
}

func (c *Couch) store(id string, doc map[string]any) string {
	pos := 1
	if old, ok := c.docs[id]; ok {
		if rev, ok := old["_rev"].(string); ok {
			fmt.Sscanf(rev, "%d-", &pos)
			pos++
		}
	}
	sum := md5.Sum([]byte(id + uuid.NewString()))
	rev := fmt.Sprintf("%d-%s", pos, hex.EncodeToString(sum[:]))
	doc["_id"] = id
	doc["_rev"] = rev
	c.docs[id] = doc
	return rev
}

type viewRow struct {
	ID    string         `json:"id,omitempty"`
	Key   any            `json:"key"`
	Value any            `json:"value"`
	Doc   map[string]any `json:"doc,omitempty"`
}

func (c *Couch) serveView(w http.ResponseWriter, r *http.Request, rest string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only GET allowed")
		return
	}
	ddocPath, viewName, _ := strings.Cut(rest, "/_view/")
	ddoc, ok := c.docs[ddocPath]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "missing")
		return
	}
	views, _ := ddoc["views"].(map[string]any)
	view, ok := views[viewName].(map[string]any)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "missing_named_view")
		return
	}

	q := r.URL.Query()
	var key any
	hasKey := q.Has("key")
	if hasKey {
		if err := jsonvalue.Decode([]byte(q.Get("key")), &key); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid key")
			return
		}
	}

	ids := make([]string, 0, len(c.docs))
	for id := range c.docs {
		if !strings.HasPrefix(id, "_design/") {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	var rows []viewRow
	for _, id := range ids {
		d := c.docs[id]
		if hasKey && !jsonvalue.Equal(d["key"], key) {
			continue
		}
		row := viewRow{ID: id, Key: d["key"], Value: d["value"]}
		if q.Get("include_docs") == "true" {
			row.Doc = cloneDoc(d)
		}
		rows = append(rows, row)
	}

	reduce := view["reduce"] != nil && q.Get("reduce") != "false"
	if !reduce {
		if rows == nil {
			rows = []viewRow{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"total_rows": len(ids), "offset": 0, "rows": rows})
		return
	}
	if q.Get("include_docs") == "true" {
		writeError(w, http.StatusBadRequest, "query_parse_error", "include_docs is invalid for reduce")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": reduceCount(rows, q.Get("group") == "true")})
}

func reduceCount(rows []viewRow, group bool) []viewRow {
	if !group {
		if len(rows) == 0 {
			return []viewRow{}
		}
		return []viewRow{{Key: nil, Value: len(rows)}}
	}
	out := []viewRow{}
	index := map[string]int{}
	for _, row := range rows {
		k, err := jsonvalue.Canonical(row.Key)
		if err != nil {
			continue
		}
		i, ok := index[string(k)]
		if !ok {
			i = len(out)
			index[string(k)] = i
			out = append(out, viewRow{Key: row.Key, Value: 0})
		}
		out[i].Value = out[i].Value.(int) + 1
	}
	slices.SortFunc(out, func(a, b viewRow) int {
		ka, _ := jsonvalue.Canonical(a.Key)
		kb, _ := jsonvalue.Canonical(b.Key)
		return strings.Compare(string(ka), string(kb))
	})
	return out
}

func cloneDoc(d map[string]any) map[string]any {
	b, err := json.Marshal(d)
	if err != nil {
		panic(fmt.Sprintf("testdb: document is not JSON: %v", err))
	}
	var out map[string]any
	if err := jsonvalue.Decode(b, &out); err != nil {
		panic(fmt.Sprintf("testdb: document is not JSON: %v", err))
	}
	return out
}
