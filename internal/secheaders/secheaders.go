// Package secheaders composes the response security header set from a
// declarative allow-list model. Composition is a pure function of
// (policy, environment, nonce): identical inputs always yield an identical
// bundle, so tests can assert exact header values.
package secheaders

import (
	"net/http"
	"strings"
)

// Bundle maps header name to value. Apply it to a response with Apply.
type Bundle map[string]string

// Apply sets every header in the bundle.
func (b Bundle) Apply(h http.Header) {
	for name, value := range b {
		h.Set(name, value)
	}
}

// Policy holds the origin allow-lists, grouped by the purpose each third
// party serves. An empty origin is omitted from the relevant directives,
// never replaced with a wildcard.
type Policy struct {
	// IdentityOrigin is the external identity provider (auth widgets,
	// token endpoints, callback frames).
	IdentityOrigin string
	// PaymentOrigin is the payment provider (checkout script and frames).
	PaymentOrigin string
	// CDNOrigin serves static assets and user-uploaded images.
	CDNOrigin string
	// AnalyticsOrigin receives usage beacons.
	AnalyticsOrigin string

	// ScriptHashes allow-lists specific known inline scripts by digest
	// ('sha256-...' source expressions, see secutil.InlineHash). This is
	// the only sanctioned way to permit inline script in production.
	ScriptHashes []string
}

// Compose builds the full header set for one response. A non-empty nonce
// switches script-src to nonce+strict-dynamic; an empty nonce in development
// falls back to 'unsafe-inline' so local tooling still renders.
func (p Policy) Compose(production bool, nonce string) Bundle {
	b := Bundle{
		"X-Content-Type-Options":  "nosniff",
		"X-XSS-Protection":        "1; mode=block",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Permissions-Policy":      "accelerometer=(), camera=(), geolocation=(), gyroscope=(), magnetometer=(), microphone=(), payment=(), usb=()",
		"Content-Security-Policy": p.csp(production, nonce),
	}
	if production {
		b["X-Frame-Options"] = "DENY"
		b["Strict-Transport-Security"] = "max-age=31536000; includeSubDomains; preload"
		b["X-DNS-Prefetch-Control"] = "off"
	} else {
		b["X-Frame-Options"] = "SAMEORIGIN"
	}
	return b
}

// Minimal returns the bare headers safe to attach to an error response when
// the full pipeline failed partway. Never empty: an internal error must not
// strip hardening entirely.
func Minimal() Bundle {
	return Bundle{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"X-XSS-Protection":       "1; mode=block",
	}
}

// csp assembles the Content-Security-Policy value directive by directive.
func (p Policy) csp(production bool, nonce string) string {
	directives := []string{
		"default-src 'self'",
		p.scriptSrc(production, nonce),
		directive("style-src", "'self'", "'unsafe-inline'", p.CDNOrigin),
		directive("img-src", "'self'", "data:", "blob:", p.CDNOrigin, p.AnalyticsOrigin),
		directive("font-src", "'self'", "data:", p.CDNOrigin),
		p.connectSrc(production),
		p.frameSrc(),
		"object-src 'none'",
		"base-uri 'self'",
		"form-action 'self'",
		"frame-ancestors 'none'",
	}
	if production {
		directives = append(directives, "upgrade-insecure-requests")
	}
	return strings.Join(directives, "; ")
}

func (p Policy) scriptSrc(production bool, nonce string) string {
	sources := []string{"'self'", p.PaymentOrigin, p.IdentityOrigin, p.AnalyticsOrigin, p.CDNOrigin}
	sources = append(sources, p.ScriptHashes...)

	switch {
	case nonce != "":
		// strict-dynamic lets nonce-tagged scripts load their own
		// dependencies, superseding the host allow-list in modern browsers
		sources = append(sources, "'nonce-"+nonce+"'", "'strict-dynamic'")
	case !production:
		sources = append(sources, "'unsafe-inline'")
	}
	if !production {
		// hot-reload tooling needs eval locally
		sources = append(sources, "'unsafe-eval'")
	}
	return directive("script-src", sources...)
}

func (p Policy) connectSrc(production bool) string {
	sources := []string{"'self'", p.IdentityOrigin, p.PaymentOrigin, p.AnalyticsOrigin}
	if !production {
		// dev-server websocket for live reload
		sources = append(sources, "ws:")
	}
	return directive("connect-src", sources...)
}

func (p Policy) frameSrc() string {
	d := directive("frame-src", p.IdentityOrigin, p.PaymentOrigin)
	if d == "frame-src" {
		return "frame-src 'none'"
	}
	return d
}

// directive joins non-empty sources after the directive name.
func directive(name string, sources ...string) string {
	parts := []string{name}
	for _, s := range sources {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
