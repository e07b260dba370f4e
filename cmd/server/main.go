package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/promptexify/promptexify/internal/cfg"
	"github.com/promptexify/promptexify/internal/csrf"
	"github.com/promptexify/promptexify/internal/httpmw"
	"github.com/promptexify/promptexify/internal/httpserver"
	"github.com/promptexify/promptexify/internal/log"
	"github.com/promptexify/promptexify/internal/metrics"
	"github.com/promptexify/promptexify/internal/otelx"
	"github.com/promptexify/promptexify/internal/probe"
	"github.com/promptexify/promptexify/internal/prof"
	"github.com/promptexify/promptexify/internal/ratelimit"
	"github.com/promptexify/promptexify/internal/secheaders"
	"github.com/promptexify/promptexify/internal/session"
	"github.com/promptexify/promptexify/internal/store"
	v "github.com/promptexify/promptexify/internal/version"
)

const appName = "promptexify"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf(
			"%s %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			appName, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	cfg.FillFromEnv(flag.CommandLine, "PXF_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	stackLvl, err := log.ParseLevel(conf.StacktraceLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid stacktrace level %s: %v\n", conf.StacktraceLevel, err)
		os.Exit(1)
	}
	lg, err := log.New(log.Options{
		App:             appName,
		Version:         vi.Version,
		Commit:          vi.Commit,
		Level:           lvl,
		StacktraceLevel: stackLvl,
		JSONFormat:      conf.LogJSON,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"env", conf.Env,
		"http_port", conf.HTTPPort,
		"redis_addr", conf.RedisAddr,
		"trusted_hops", conf.TrustedHops,
		"api_rate_limit", conf.APIRateLimit,
		"api_rate_window", conf.APIRateWindow.String(),
		"enable_tracing", conf.EnableTracing,
		"enable_pyroscope", conf.EnablePyroscope,
	)

	stopProf, profErr := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       appName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       appName,
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
			"source":    "go-agent",
		},
	})
	if profErr != nil {
		L.Error(ctx, profErr, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer func() { stopProf() }()

	// Insecure is fine: the exporter talks to a collector on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   appName,
		Component: "server",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	m := metrics.New()
	m.SetBuildInfoFromVersion(appName, "server", &vi)
	m.SetProfilingActive(conf.EnablePyroscope && profErr == nil)

	// shared backing store for rate limiting and the cache layer
	st := store.New(ctx, store.Options{
		RedisAddr: conf.RedisAddr,
		RedisDB:   conf.RedisDB,
		Timeout:   conf.StoreTimeout,
		Logger:    L,
	})

	guard := csrf.New(conf.IsProduction(), csrf.WithOnRejected(func(r csrf.Reason) {
		m.IncCSRFRejected(string(r))
	}))

	limiter := ratelimit.NewCategoryLimiter(st,
		[]ratelimit.Category{
			{
				Name:   "api",
				Limit:  int64(conf.APIRateLimit),
				Window: conf.APIRateWindow,
				Policy: ratelimit.FailOpen,
			},
			{
				Name:   "mutation",
				Limit:  int64(conf.APIRateLimit),
				Window: conf.APIRateWindow,
				Policy: ratelimit.FailClosed,
			},
		},
		ratelimit.WithOnDenied(func(category string) {
			m.IncRateLimitDenied(category)
		}),
		ratelimit.WithOnDegraded(func(category string) {
			m.IncRateLimitDegraded(category)
			m.SetStoreDegraded(true)
		}),
	)

	// per-instance flood guard, keyed on the resolved client address
	flood := ratelimit.NewIPLimiter(ctx,
		ratelimit.WithResolver(func(r *http.Request) string {
			if ip := httpmw.ClientIPFromContext(r.Context()); ip != "" {
				return ip
			}
			return r.RemoteAddr
		}),
		ratelimit.WithOnFirstDenied(func(ip string) {
			L.Warn(ctx, "client flooding, throttled", "client_ip", ip)
		}),
		ratelimit.WithOnIPDenied(func(string) {
			m.IncRateLimitDenied("flood")
		}),
	)

	pipeline := httpmw.NewSecurityPipeline(httpmw.PipelineOptions{
		Production: conf.IsProduction(),
		Headers: secheaders.Policy{
			IdentityOrigin:  conf.IdentityOrigin,
			PaymentOrigin:   conf.PaymentOrigin,
			CDNOrigin:       conf.CDNOrigin,
			AnalyticsOrigin: conf.AnalyticsOrigin,
		},
		CSRF:             guard,
		Sessions:         session.None,
		Limiter:          limiter,
		MutationCategory: "mutation",
	})

	var gate probe.ShutdownGate
	probes := probe.NewAPI(
		probe.Static(true, ""),
		probe.Multi(gate.Probe(), probe.Store(st)),
	)

	httpStop, err := httpserver.Start(ctx, &httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		Pipeline:     pipeline,
		FloodMW:      flood.Middleware,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedHops},
		Probes:       probes,
		Routes: func(r chi.Router) {
			r.Method(http.MethodGet, "/-/metrics", m.Handler())
			r.Post("/api/csp-report", cspReportHandler(L))
		},
	})
	if err != nil {
		L.Error(ctx, err, "failed to start http listener")
		os.Exit(1)
	}
	defer func() { _ = httpStop(context.Background()) }()

	if err := notifySystemd(); err != nil {
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	sigCtx, stopSig := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSig()
	<-sigCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	L.Info(context.Background(), "shutdown signal received")

	// fail readiness so the load balancer drains us before the listener closes
	gate.Set("draining")
	L.Info(context.Background(), "shutdown gate closed, draining in-flight requests")

	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(15 * time.Second):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	if err := httpStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}
	stopProf()

	L.Info(context.Background(), "shutdown complete")
	os.Exit(0)
}

// cspReportHandler logs browser CSP violation reports so operators can feed
// them through the cspreport tool. Browsers post without a CSRF token, so the
// path sits on the guard's exempt list.
func cspReportHandler(lg log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Report struct {
				DocumentURI        string `json:"document-uri"`
				ViolatedDirective  string `json:"violated-directive"`
				EffectiveDirective string `json:"effective-directive"`
				BlockedURI         string `json:"blocked-uri"`
				SourceFile         string `json:"source-file"`
				LineNumber         int    `json:"line-number"`
			} `json:"csp-report"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		directive := body.Report.EffectiveDirective
		if directive == "" {
			directive = body.Report.ViolatedDirective
		}
		lg.Warn(r.Context(), "csp violation reported",
			"directive", directive,
			"blocked_uri", body.Report.BlockedURI,
			"document_uri", body.Report.DocumentURI,
			"source_file", body.Report.SourceFile,
			"line", body.Report.LineNumber,
		)
		w.WriteHeader(http.StatusNoContent)
	}
}

func notifySystemd() error {
	// systemd sets NOTIFY_SOCKET when started with Type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	conn.Write([]byte("READY=1"))
	if err := conn.Close(); err != nil {
		return fmt.Errorf("systemd notify failed: close failed: %w", err)
	}
	return nil
}
