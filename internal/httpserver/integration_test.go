package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/promptexify/promptexify/internal/csrf"
	"github.com/promptexify/promptexify/internal/httpmw"
	"github.com/promptexify/promptexify/internal/log"
	"github.com/promptexify/promptexify/internal/metrics"
	"github.com/promptexify/promptexify/internal/probe"
	"github.com/promptexify/promptexify/internal/ratelimit"
	"github.com/promptexify/promptexify/internal/secheaders"
	"github.com/promptexify/promptexify/internal/store"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	mem := store.NewMemory()
	m := metrics.New()

	pipeline := httpmw.NewSecurityPipeline(httpmw.PipelineOptions{
		Headers: secheaders.Policy{CDNOrigin: "https://cdn.example.com"},
		CSRF:    csrf.New(false),
		Limiter: ratelimit.NewCategoryLimiter(mem, []ratelimit.Category{
			{Name: "api", Limit: 5, Window: time.Minute, Policy: ratelimit.FailOpen},
		}),
	})

	return NewHandler(&Options{
		Logger:       log.Nop(),
		UseRecoverMW: true,
		MetricsMW:    m.Middleware,
		Pipeline:     pipeline,
		Probes:       probe.NewAPI(probe.Static(true, ""), probe.Store(mem)),
		Routes: func(r chi.Router) {
			r.Get("/prompts", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("listing"))
			})
			r.Get("/api/prompts", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[]`))
			})
			r.Post("/api/prompts", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
			})
			r.Get("/explode", func(w http.ResponseWriter, r *http.Request) {
				panic("kaboom")
			})
		},
		NotFound: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "not found", http.StatusNotFound)
		}),
	})
}

func TestHandler_PageServedWithFullSecurityHeaders(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/prompts", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	csp := rec.Header().Get("Content-Security-Policy")
	if csp == "" || !strings.Contains(csp, "'nonce-") {
		t.Fatalf("CSP missing or nonce-free: %q", csp)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("no request ID on response")
	}
}

func TestHandler_MutationRequiresCSRF(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/prompts", http.NoBody))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unauthenticated mutation: status = %d, want 403", rec.Code)
	}
}

func TestHandler_APIRateLimitEnforced(t *testing.T) {
	h := newTestHandler(t)

	var last *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		last = httptest.NewRecorder()
		h.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/api/prompts", http.NoBody))
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("6th request status = %d, want 429", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Fatal("429 missing Retry-After")
	}
}

func TestHandler_ProbesServed(t *testing.T) {
	h := newTestHandler(t)

	for _, path := range []string{"/-/ping", "/-/healthy", "/-/ready"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
		if rec.Code != http.StatusOK {
			t.Errorf("%s = %d, want 200", path, rec.Code)
		}
	}
}

func TestHandler_PanicRecovered(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/explode", http.NoBody))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") == "" {
		t.Fatal("500 response missing hardening headers")
	}
	if strings.Contains(rec.Body.String(), "kaboom") {
		t.Fatal("panic detail leaked")
	}
}

func TestHandler_NotFoundHandler(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/no-such-page", http.NoBody))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Fatal("404 response missing security headers")
	}
}

func TestNewServer_Timeouts(t *testing.T) {
	srv := NewServer(":0", http.NotFoundHandler())
	if srv.ReadHeaderTimeout != DefaultReadHeaderTimeout {
		t.Fatalf("ReadHeaderTimeout = %v", srv.ReadHeaderTimeout)
	}
	if srv.MaxHeaderBytes != DefaultMaxHeaderBytes {
		t.Fatalf("MaxHeaderBytes = %d", srv.MaxHeaderBytes)
	}
}
