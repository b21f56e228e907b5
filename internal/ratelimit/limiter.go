// Package ratelimit paces outbound requests and throttles inbound ones.
package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Config defines a token bucket.
type Config struct {
	RPS   float64 // Requests per second; zero or negative disables limiting
	Burst int     // Bucket size; values below 1 are treated as 1
}

// Enabled reports whether cfg limits anything.
func (c Config) Enabled() bool {
	return c.RPS > 0
}

func (c Config) newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(c.RPS), max(c.Burst, 1))
}

// Pacer delays callers so they stay within a Config. A nil Pacer never
// waits.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a pacer for cfg, or nil when cfg is disabled.
func NewPacer(cfg Config) *Pacer {
	if !cfg.Enabled() {
		return nil
	}
	return &Pacer{limiter: cfg.newLimiter()}
}

// Wait blocks until a request may proceed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Keyed holds one limiter per key, created on first use.
type Keyed struct {
	mu       sync.Mutex
	cfg      Config
	limiters map[string]*rate.Limiter
}

// NewKeyed creates a per-key limiter set.
func NewKeyed(cfg Config) *Keyed {
	return &Keyed{cfg: cfg, limiters: make(map[string]*rate.Limiter)}
}

// Limiter returns the limiter for key, creating one if necessary.
func (k *Keyed) Limiter(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.limiters[key]
	if !ok {
		l = k.cfg.newLimiter()
		k.limiters[key] = l
	}
	return l
}
