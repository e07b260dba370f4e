package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promptexify/promptexify/internal/version"
)

type ServerMetrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	inflight       prometheus.Gauge
	reqTotal       *prometheus.CounterVec
	reqDur         *prometheus.HistogramVec
	respBytes      *prometheus.HistogramVec
	httpPanicTotal prometheus.Counter
	buildInfo      *prometheus.GaugeVec
	errorsTotal    *prometheus.CounterVec

	csrfRejectedTotal      *prometheus.CounterVec
	ratelimitDeniedTotal   *prometheus.CounterVec
	ratelimitDegradedTotal *prometheus.CounterVec
	storeDegraded          prometheus.Gauge

	cacheHitsTotal          prometheus.Counter
	cacheMissesTotal        prometheus.Counter
	cacheInvalidationsTotal *prometheus.CounterVec

	profilingActive prometheus.Gauge
}

// New returns a fresh registry + standard collectors + HTTP metrics.
// Safe labels only (method, route, code, reason, category, tag) to avoid
// path/cardinality explosions.
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304},
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered httpserver panics",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route (SLI)",
		}, []string{"method", "route"}),
		csrfRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "csrf_rejected_total",
			Help: "Total CSRF validations failed, by rejection reason",
		}, []string{"reason"}),
		ratelimitDeniedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimit_denied_total",
			Help: "Total requests rejected by the rate limiter, by category",
		}, []string{"category"}),
		ratelimitDegradedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimit_degraded_total",
			Help: "Total quota checks served by the in-process fallback, by category",
		}, []string{"category"}),
		storeDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "store_degraded",
			Help: "Whether the distributed store is unreachable (1) or healthy (0)",
		}),
		cacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cached reads served from the store",
		}),
		cacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cached reads that fell through to compute",
		}),
		cacheInvalidationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_invalidations_total",
			Help: "Total tag invalidations, by tag",
		}, []string{"tag"}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.httpPanicTotal,
		m.buildInfo,
		m.errorsTotal,
		m.csrfRejectedTotal,
		m.ratelimitDeniedTotal,
		m.ratelimitDegradedTotal,
		m.storeDegraded,
		m.cacheHitsTotal,
		m.cacheMissesTotal,
		m.cacheInvalidationsTotal,
		m.profilingActive,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

func (m *ServerMetrics) IncHttpPanic() {
	m.httpPanicTotal.Inc()
}

// set once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(app, component string, vi *version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":         app,
		"component":   component,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildId,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

func (m *ServerMetrics) IncCSRFRejected(reason string) {
	m.csrfRejectedTotal.WithLabelValues(reason).Inc()
}

func (m *ServerMetrics) IncRateLimitDenied(category string) {
	m.ratelimitDeniedTotal.WithLabelValues(category).Inc()
}

func (m *ServerMetrics) IncRateLimitDegraded(category string) {
	m.ratelimitDegradedTotal.WithLabelValues(category).Inc()
}

func (m *ServerMetrics) SetStoreDegraded(degraded bool) {
	if degraded {
		m.storeDegraded.Set(1)
	} else {
		m.storeDegraded.Set(0)
	}
}

func (m *ServerMetrics) IncCacheHit()  { m.cacheHitsTotal.Inc() }
func (m *ServerMetrics) IncCacheMiss() { m.cacheMissesTotal.Inc() }

func (m *ServerMetrics) IncCacheInvalidation(tag string) {
	m.cacheInvalidationsTotal.WithLabelValues(tag).Inc()
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}
