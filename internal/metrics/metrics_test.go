package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/promptexify/promptexify/internal/version"
)

func TestNew_RegistryPopulated(t *testing.T) {
	m := New()

	// MustRegister in New() would panic if any metric failed to register.
	// Verify the registry is functional by scraping it.
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := rec.Body.String()
	immediateMetrics := []string{
		"http_inflight_requests",
		"http_panic_total",
		"store_degraded",
		"cache_hits_total",
		"cache_misses_total",
		"profiling_active",
	}
	for _, name := range immediateMetrics {
		if !strings.Contains(body, name) {
			t.Errorf("metric %q not found in /metrics output", name)
		}
	}

	if !strings.Contains(body, "go_goroutines") {
		t.Error("go collector metrics missing")
	}
}

func TestSecurityCounters(t *testing.T) {
	m := New()

	m.IncCSRFRejected("mismatch")
	m.IncCSRFRejected("mismatch")
	m.IncCSRFRejected("missing")
	m.IncRateLimitDenied("api")
	m.IncRateLimitDegraded("api")
	m.IncCacheInvalidation("prompts")

	if got := counterValue(t, m.reg, "csrf_rejected_total", "reason", "mismatch"); got != 2 {
		t.Errorf("csrf_rejected_total{reason=mismatch} = %v, want 2", got)
	}
	if got := counterValue(t, m.reg, "csrf_rejected_total", "reason", "missing"); got != 1 {
		t.Errorf("csrf_rejected_total{reason=missing} = %v, want 1", got)
	}
	if got := counterValue(t, m.reg, "ratelimit_denied_total", "category", "api"); got != 1 {
		t.Errorf("ratelimit_denied_total{category=api} = %v, want 1", got)
	}
	if got := counterValue(t, m.reg, "cache_invalidations_total", "tag", "prompts"); got != 1 {
		t.Errorf("cache_invalidations_total{tag=prompts} = %v, want 1", got)
	}
}

func TestStoreDegradedGauge(t *testing.T) {
	m := New()

	m.SetStoreDegraded(true)
	if got := gaugeValue(t, m.reg, "store_degraded"); got != 1 {
		t.Fatalf("store_degraded = %v after degradation", got)
	}
	m.SetStoreDegraded(false)
	if got := gaugeValue(t, m.reg, "store_degraded"); got != 0 {
		t.Fatalf("store_degraded = %v after recovery", got)
	}
}

func TestSetBuildInfoFromVersion(t *testing.T) {
	m := New()
	dirty := false
	m.SetBuildInfoFromVersion("promptexify", "server", &version.Info{
		Version:   "1.2.3",
		Commit:    "abc123",
		GoVersion: "go1.24",
		VCSDirty:  &dirty,
	})

	fam := gatherMetric(t, m.reg, "build_info")
	if fam == nil || len(fam.Metric) != 1 {
		t.Fatal("build_info not exported")
	}
	labels := map[string]string{}
	for _, lp := range fam.Metric[0].GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	if labels["version"] != "1.2.3" || labels["vcs_dirty"] != "false" {
		t.Fatalf("build_info labels = %v", labels)
	}
}

func TestMiddleware_CountsRequests(t *testing.T) {
	m := New()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/prompts", nil))

	fam := gatherMetric(t, m.reg, "http_requests_total")
	if fam == nil || len(fam.Metric) == 0 {
		t.Fatal("http_requests_total not recorded")
	}
	labels := map[string]string{}
	for _, lp := range fam.Metric[0].GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	if labels["status"] != "418" || labels["method"] != "GET" {
		t.Fatalf("labels = %v", labels)
	}
}

func TestMiddleware_CountsServerErrors(t *testing.T) {
	m := New()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/boom", nil))

	fam := gatherMetric(t, m.reg, "http_errors_total")
	if fam == nil || len(fam.Metric) == 0 {
		t.Fatal("http_errors_total not recorded for 5xx")
	}
}

// helpers

func gatherMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, labelName, labelValue string) float64 {
	t.Helper()
	fam := gatherMetric(t, reg, name)
	if fam == nil {
		t.Fatalf("metric %s not found", name)
	}
	for _, m := range fam.Metric {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == labelName && lp.GetValue() == labelValue {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s{%s=%s} not found", name, labelName, labelValue)
	return 0
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	fam := gatherMetric(t, reg, name)
	if fam == nil || len(fam.Metric) == 0 {
		t.Fatalf("metric %s not found", name)
	}
	return fam.Metric[0].GetGauge().GetValue()
}
