package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestIPLimiter(t *testing.T, opts ...IPOption) *IPLimiter {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	defaults := []IPOption{
		WithRate(1, 3),
		WithTTL(100 * time.Millisecond),
	}
	return NewIPLimiter(ctx, append(defaults, opts...)...)
}

func TestIPLimiter_BurstThenDeny(t *testing.T) {
	l := newTestIPLimiter(t)

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d within burst denied", i+1)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("request past burst allowed")
	}
}

func TestIPLimiter_SeparateAddresses(t *testing.T) {
	l := newTestIPLimiter(t)

	for i := 0; i < 4; i++ {
		l.Allow("10.0.0.1")
	}
	if !l.Allow("10.0.0.2") {
		t.Fatal("fresh address denied after another address was exhausted")
	}
}

func TestIPLimiter_FirstDeniedFiresOnce(t *testing.T) {
	firsts := 0
	total := 0
	l := newTestIPLimiter(t,
		WithOnFirstDenied(func(string) { firsts++ }),
		WithOnIPDenied(func(string) { total++ }),
	)

	for i := 0; i < 6; i++ {
		l.Allow("10.0.0.1")
	}
	if firsts != 1 {
		t.Fatalf("OnFirstDenied fired %d times, want 1", firsts)
	}
	if total != 3 {
		t.Fatalf("OnDenied fired %d times, want 3", total)
	}
}

func TestIPLimiter_Middleware(t *testing.T) {
	l := newTestIPLimiter(t)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 3; i++ {
		if rec := do("10.0.0.1:4000"); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d within burst got %d", i+1, rec.Code)
		}
	}
	rec := do("10.0.0.1:4000")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("request past burst got %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("denial carries no Retry-After")
	}
	if rec := do("10.0.0.2:4000"); rec.Code != http.StatusNoContent {
		t.Fatalf("other address got %d", rec.Code)
	}
}

func TestIPLimiter_MiddlewareResolver(t *testing.T) {
	l := newTestIPLimiter(t, WithResolver(func(r *http.Request) string {
		return r.Header.Get("X-Test-IP")
	}))
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Test-IP", "203.0.113.9")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if i < 3 && rec.Code != http.StatusOK {
			t.Fatalf("request %d got %d", i+1, rec.Code)
		}
		if i == 3 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("resolver-keyed bucket not exhausted, got %d", rec.Code)
		}
	}
}

func TestIPLimiter_EvictionResetsBucket(t *testing.T) {
	l := newTestIPLimiter(t, WithTTL(40*time.Millisecond))

	for i := 0; i < 4; i++ {
		l.Allow("10.0.0.1")
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("exhausted bucket allowed")
	}

	// wait out TTL + one eviction cycle
	time.Sleep(120 * time.Millisecond)

	if !l.Allow("10.0.0.1") {
		t.Fatal("bucket not reset after eviction")
	}
}
