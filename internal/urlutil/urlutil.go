// Package urlutil normalizes database URLs and builds request paths.
package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// IsHTTP reports whether raw uses the http or https scheme.
func IsHTTP(raw string) bool {
	raw = strings.TrimSpace(raw)
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}

// SplitUserinfo parses raw and returns it without credentials or a
// trailing slash, together with the credentials it carried (nil if none).
func SplitUserinfo(raw string) (string, *url.Userinfo, error) {
	if !IsHTTP(raw) {
		return "", nil, fmt.Errorf("url %q must start with http:// or https://", raw)
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", nil, err
	}
	user := u.User
	u.User = nil
	return normalizeBaseURL(u.String()), user, nil
}

// BuildAbsolute joins base and path segments, escaping each segment.
func BuildAbsolute(base string, segments ...string) string {
	base = normalizeBaseURL(base)
	if len(segments) == 0 {
		return base
	}
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return base + "/" + strings.Join(escaped, "/")
}

func normalizeBaseURL(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/")
}
