// Package cfg holds server configuration sourced from flags and environment
// variables, with precedence cli flag > env var > default.
package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/promptexify/promptexify/internal/log"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type App struct {
	Env      string
	LogJSON  bool
	LogLevel string
	HTTPPort int

	EnableTracing   bool
	EnablePyroscope bool
	OTLPEndpoint    string
	TraceSample     float64
	PyroServer      string
	PyroTenantID    string
	StacktraceLevel string

	// RedisAddr empty selects the in-memory store at startup.
	RedisAddr    string
	RedisDB      int
	StoreTimeout time.Duration

	TrustedHops int

	// API rate limit: requests per window per client.
	APIRateLimit  int
	APIRateWindow time.Duration

	// CSP allow-list origins grouped by purpose. Empty values are omitted
	// from the policy, never replaced with a wildcard.
	IdentityOrigin  string
	PaymentOrigin   string
	CDNOrigin       string
	AnalyticsOrigin string
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.StringVar(&c.Env, "env", EnvDevelopment, "development|production")
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.IntVar(&c.HTTPPort, "http-port", 8080, "listen TCP port (1..65535)")

	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")

	fs.StringVar(&c.RedisAddr, "redis-addr", "", "redis address (host:port); empty falls back to the in-process store")
	fs.IntVar(&c.RedisDB, "redis-db", 0, "redis logical database")
	fs.DurationVar(&c.StoreTimeout, "store-timeout", 2*time.Second, "per-command timeout for the backing store")

	fs.IntVar(&c.TrustedHops, "trusted-hops", 0, "number of trusted reverse proxies for client IP resolution")

	fs.IntVar(&c.APIRateLimit, "api-rate-limit", 30, "API requests allowed per client per window")
	fs.DurationVar(&c.APIRateWindow, "api-rate-window", time.Minute, "API rate limit window size")

	fs.StringVar(&c.IdentityOrigin, "csp-identity-origin", "", "identity provider origin for the CSP allow-list")
	fs.StringVar(&c.PaymentOrigin, "csp-payment-origin", "", "payment provider origin for the CSP allow-list")
	fs.StringVar(&c.CDNOrigin, "csp-cdn-origin", "", "CDN origin for the CSP allow-list")
	fs.StringVar(&c.AnalyticsOrigin, "csp-analytics-origin", "", "analytics origin for the CSP allow-list")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		errs = append(errs, fmt.Errorf("invalid ENV %q (must be %s or %s)", c.Env, EnvDevelopment, EnvProduction))
	}

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}

	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}
	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
	}

	if c.RedisAddr != "" {
		if _, _, err := net.SplitHostPort(c.RedisAddr); err != nil {
			errs = append(errs, fmt.Errorf("REDIS_ADDR must be host:port (got %q): %v", c.RedisAddr, err))
		}
	}
	if c.StoreTimeout < 100*time.Millisecond || c.StoreTimeout > 10*time.Second {
		errs = append(errs, fmt.Errorf("STORE_TIMEOUT %s out of range (100ms..10s)", c.StoreTimeout))
	}

	if c.TrustedHops < 0 || c.TrustedHops > 10 {
		errs = append(errs, fmt.Errorf("TRUSTED_HOPS %d out of range (0..10)", c.TrustedHops))
	}

	if c.APIRateLimit < 1 {
		errs = append(errs, fmt.Errorf("API_RATE_LIMIT must be >= 1 (got %d)", c.APIRateLimit))
	}
	if c.APIRateWindow < time.Second {
		errs = append(errs, fmt.Errorf("API_RATE_WINDOW must be >= 1s (got %s)", c.APIRateWindow))
	}

	for name, origin := range map[string]string{
		"CSP_IDENTITY_ORIGIN":  c.IdentityOrigin,
		"CSP_PAYMENT_ORIGIN":   c.PaymentOrigin,
		"CSP_CDN_ORIGIN":       c.CDNOrigin,
		"CSP_ANALYTICS_ORIGIN": c.AnalyticsOrigin,
	} {
		if origin == "" {
			continue
		}
		if strings.ContainsAny(origin, " ;") || origin == "*" {
			errs = append(errs, fmt.Errorf("%s %q is not a valid CSP origin", name, origin))
		}
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the app runs with production hardening.
func (c App) IsProduction() bool { return c.Env == EnvProduction }
