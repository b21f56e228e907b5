package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// =============================================================================
// Generators for property-based testing
// =============================================================================

func keyGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`[a-z0-9]{8,32}`)
}

// =============================================================================
// Property: Requests within burst succeed
// =============================================================================

func testKeyed_RequestsWithinBurst(t *rapid.T) {
	cfg := Config{RPS: 100, Burst: rapid.IntRange(1, 200).Draw(t, "burst")}
	k := NewKeyed(cfg)
	key := keyGenerator().Draw(t, "key")

	n := rapid.IntRange(1, cfg.Burst).Draw(t, "n")
	for i := 0; i < n; i++ {
		if !k.Limiter(key).Allow() {
			t.Fatalf("request %d of %d should have been allowed (burst %d)", i+1, n, cfg.Burst)
		}
	}
}

func TestKeyed_RequestsWithinBurst(t *testing.T) {
	rapid.Check(t, testKeyed_RequestsWithinBurst)
}

func FuzzKeyed_RequestsWithinBurst(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testKeyed_RequestsWithinBurst))
}

// =============================================================================
// Property: Requests beyond burst are blocked
// =============================================================================

func testKeyed_ExceedingBurstBlocked(t *rapid.T) {
	cfg := Config{RPS: 0.001, Burst: rapid.IntRange(1, 20).Draw(t, "burst")}
	k := NewKeyed(cfg)
	key := keyGenerator().Draw(t, "key")

	for i := 0; i < cfg.Burst; i++ {
		k.Limiter(key).Allow()
	}
	if k.Limiter(key).Allow() {
		t.Fatalf("request beyond burst %d should have been blocked", cfg.Burst)
	}
}

func TestKeyed_ExceedingBurstBlocked(t *testing.T) {
	rapid.Check(t, testKeyed_ExceedingBurstBlocked)
}

// =============================================================================
// Property: Keys are isolated
// =============================================================================

func testKeyed_KeysIsolated(t *rapid.T) {
	cfg := Config{RPS: 0.001, Burst: 3}
	k := NewKeyed(cfg)
	a := keyGenerator().Draw(t, "a")
	b := keyGenerator().Filter(func(s string) bool { return s != a }).Draw(t, "b")

	for i := 0; i < cfg.Burst; i++ {
		k.Limiter(a).Allow()
	}
	if !k.Limiter(b).Allow() {
		t.Fatalf("exhausting %q must not throttle %q", a, b)
	}
	if k.Limiter(a) == k.Limiter(b) {
		t.Fatalf("keys %q and %q share a limiter", a, b)
	}
	if k.Limiter(a) != k.Limiter(a) {
		t.Fatalf("key %q should reuse its limiter", a)
	}
}

func TestKeyed_KeysIsolated(t *testing.T) {
	rapid.Check(t, testKeyed_KeysIsolated)
}

// =============================================================================
// Concurrency
// =============================================================================

func TestKeyed_ConcurrentAllowRespectsBurst(t *testing.T) {
	k := NewKeyed(Config{RPS: 0.001, Burst: 25})

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if k.Limiter("shared").Allow() {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(25), allowed.Load())
}

// =============================================================================
// Pacer
// =============================================================================

func TestPacer_DisabledNeverWaits(t *testing.T) {
	p := NewPacer(Config{})
	assert.Nil(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, p.Wait(ctx))
}

func TestPacer_WaitHonoursContext(t *testing.T) {
	p := NewPacer(Config{RPS: 0.001, Burst: 1})
	require.NotNil(t, p)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, p.Wait(ctx))
}

func TestPacer_SpacesRequests(t *testing.T) {
	p := NewPacer(Config{RPS: 50, Burst: 1})
	start := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

// =============================================================================
// Middleware
// =============================================================================

func TestMiddleware_ThrottlesBeyondBurst(t *testing.T) {
	handler := Middleware(Config{RPS: 0.001, Burst: 2})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/db", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/db", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "other clients keep their own bucket")
}

func TestMiddleware_DisabledPassesThrough(t *testing.T) {
	var calls int
	handler := Middleware(Config{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	for i := 0; i < 50; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	assert.Equal(t, 50, calls)
}
