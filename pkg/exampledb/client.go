package exampledb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/kuitang/couchgen/internal/errs"
	"github.com/kuitang/couchgen/internal/logutil"
	"github.com/kuitang/couchgen/internal/obs"
	"github.com/kuitang/couchgen/internal/urlutil"
	"github.com/kuitang/couchgen/pkg/jsonvalue"
)

const (
	pkgName      = "exampledb"
	logBodyBytes = 512
)

// HTTPError is a non-2xx response from the database.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("couchdb: %s %s: %d %s", e.Method, e.URL, e.StatusCode, strings.TrimSpace(e.Body))
}

// IsNotFound reports whether err carries a 404 response.
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

func statusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}

func newRestyClient(cfg Config) *resty.Client {
	client := resty.New()
	if cfg.HTTPClient != nil {
		client = resty.NewWithClient(cfg.HTTPClient)
	}
	// Numbers decode as json.Number so integers past 2^53 stay exact.
	client.JSONUnmarshal = jsonvalue.Decode
	client.SetHeader("Accept", "application/json")
	client.SetHeader("Content-Type", "application/json")
	if cfg.Username != "" || cfg.Password != "" {
		client.SetBasicAuth(cfg.Username, cfg.Password)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	client.OnAfterResponse(logResponse)
	client.OnError(logError)
	return client
}

func logResponse(_ *resty.Client, res *resty.Response) error {
	req := res.Request
	if req.RawRequest == nil {
		return nil
	}
	obs.Pkg(req.Context(), pkgName).Debug(
		"couch_request",
		"method", req.Method,
		"url", logutil.RedactURL(req.RawRequest.URL.String()),
		"status", res.StatusCode(),
		"dur_ms", float64(res.Time().Microseconds())/1000.0,
		"req_headers", logutil.FormatHeadersForLog(req.RawRequest.Header),
		"resp_body", logutil.FormatBodyForLog(res.Body(), logBodyBytes),
	)
	return nil
}

func logError(req *resty.Request, err error) {
	obs.Pkg(req.Context(), pkgName).Warn(
		"couch_request_failed",
		"method", req.Method,
		"url", logutil.RedactURL(req.URL),
		"error", err,
	)
}

// endpoint joins escaped path segments onto the database URL.
func (d *DB) endpoint(segments ...string) string {
	return urlutil.BuildAbsolute(d.url, segments...)
}

// do performs one request. A non-nil body is sent as JSON, and a 2xx
// response body is decoded into out when out is non-nil. Non-2xx responses
// become *HTTPError wrapped in a coded error.
func (d *DB) do(ctx context.Context, method, endpoint string, query url.Values, body, out any) error {
	if err := d.pacer.Wait(ctx); err != nil {
		return errs.Wrap(errs.Unavailable, "couchdb request not sent", err)
	}

	requestID := obs.NewRequestID()
	ctx = obs.WithCorrelation(ctx, obs.Correlation{RequestID: requestID})
	req := d.client.R().
		SetContext(ctx).
		SetHeader(obs.RequestIDHeader, requestID)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	res, err := req.Execute(method, endpoint)
	if err != nil {
		return errs.Wrap(errs.Unavailable, fmt.Sprintf("couchdb %s %s", method, logutil.RedactURL(endpoint)), err)
	}
	if !res.IsSuccess() {
		he := &HTTPError{
			Method:     method,
			URL:        logutil.RedactURL(endpoint),
			StatusCode: res.StatusCode(),
			Body:       string(res.Body()),
		}
		return errs.Wrap(errs.FromHTTPStatus(he.StatusCode), "couchdb request failed", he)
	}
	return nil
}
