package ratelimit

import (
	"net"
	"net/http"
	"strconv"
)

// DefaultRetryAfterSeconds is the Retry-After value sent with a 429.
const DefaultRetryAfterSeconds = 1

// Middleware answers 429 Too Many Requests once a client address exceeds
// cfg. A disabled cfg passes every request through.
//
// Throttled responses carry:
//   - Retry-After with the recommended wait in seconds
//   - X-RateLimit-Remaining set to 0
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if !cfg.Enabled() {
		return func(next http.Handler) http.Handler { return next }
	}
	limiters := NewKeyed(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := limiters.Limiter(clientKey(r))
			if !l.Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(DefaultRetryAfterSeconds))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"too_many_requests","reason":"rate limit exceeded"}`))
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(int(l.Tokens()), 0)))
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
