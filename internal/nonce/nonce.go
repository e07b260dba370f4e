// Package nonce produces the per-request CSP nonce and its two delivery
// channels: a request header for the render layer and a client-readable
// cookie for scripts that inject trusted content at runtime.
package nonce

import (
	"net/http"
	"time"

	"github.com/promptexify/promptexify/internal/secutil"
)

// HeaderName carries the nonce from the middleware to the render layer.
const HeaderName = "x-nonce"

// CookieName exposes the nonce to client-side code. Deliberately not
// HTTP-only; its value is useless to an attacker without the ability to run
// script, at which point CSP has already lost.
const CookieName = "pxf-nonce"

// cookieLifetime is short: a nonce is request-scoped, the cookie exists only
// so the page's own scripts can read the current value.
const cookieLifetime = time.Hour

// New returns a fresh nonce. Called exactly once per request; the same value
// must reach every channel.
func New() (string, error) {
	return secutil.Nonce()
}

// Channels derives both output channels from one nonce value. Pure function:
// using it is what guarantees the header and the cookie can never disagree
// within a request.
func Channels(value string, secure bool) (headerValue string, cookie *http.Cookie) {
	return value, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(cookieLifetime.Seconds()),
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// FromRequest reads the nonce threaded onto the request, or "" when no
// request context carries one (static generation, internal calls). Callers
// treat "" as "omit nonce, use the environment's fallback policy".
func FromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.Header.Get(HeaderName)
}
