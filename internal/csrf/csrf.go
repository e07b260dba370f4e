// Package csrf manages the anti-forgery token lifecycle: issue, persist,
// retrieve, validate, recover, clear.
//
// The token lives in a primary secure cookie plus a backup cookie under a
// different name, so partial cookie loss (overzealous cleanup extensions,
// per-name size eviction) doesn't lock a session out. When validation finds
// no stored token at all, the guard issues a fresh one for future requests
// but still fails the current request — the submitted value cannot match a
// token that didn't exist, and silently passing would defeat the check. A
// legitimate client recovers by retrying with the newly issued token.
package csrf

import (
	"context"
	"net/http"
	"time"

	"github.com/promptexify/promptexify/internal/log"
	"github.com/promptexify/promptexify/internal/secutil"
)

// Reason classifies a validation failure. The empty reason means valid.
type Reason string

const (
	// ReasonMissing: the request carried no token at all.
	ReasonMissing Reason = "missing"
	// ReasonNoStoredToken: a token was submitted but no cookie holds one to
	// compare against; a recovery token was issued for future requests.
	ReasonNoStoredToken Reason = "no-stored-token"
	// ReasonMismatch: the submitted token does not equal the stored one.
	ReasonMismatch Reason = "mismatch"
	// ReasonIssueFailed: recovery issuance itself failed (entropy source).
	ReasonIssueFailed Reason = "issue-failed"
)

// Cookie lifetimes. The debug cookie tracks the primary.
const tokenLifetime = 24 * time.Hour

// Guard owns the CSRF cookies for one environment.
type Guard struct {
	production bool

	// OnRejected is a metrics hook fired once per failed validation.
	OnRejected func(reason Reason)
}

type Option func(*Guard)

func WithOnRejected(fn func(Reason)) Option {
	return func(g *Guard) { g.OnRejected = fn }
}

func New(production bool, opts ...Option) *Guard {
	g := &Guard{production: production}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Cookie names vary by environment so a dev server on localhost never
// collides with production cookies on a shared parent domain.
func (g *Guard) primaryName() string {
	if g.production {
		return "__Host-pxf-csrf"
	}
	return "pxf-csrf-dev"
}

func (g *Guard) backupName() string {
	if g.production {
		return "__Host-pxf-csrf-bk"
	}
	return "pxf-csrf-bk-dev"
}

const debugName = "pxf-csrf-debug"

// Issue generates a fresh token and persists it in the primary and backup
// cookies (plus a client-readable debug cookie in development). Returns the
// token so the render layer can embed it.
func (g *Guard) Issue(w http.ResponseWriter) (string, error) {
	token, err := secutil.Token(secutil.MinTokenBytes)
	if err != nil {
		return "", err
	}

	http.SetCookie(w, g.tokenCookie(g.primaryName(), token, true))
	http.SetCookie(w, g.tokenCookie(g.backupName(), token, true))
	if !g.production {
		// readable from devtools/scripts for local debugging only
		http.SetCookie(w, g.tokenCookie(debugName, token, false))
	}
	return token, nil
}

// Retrieve reads the stored token: primary cookie first, backup on miss.
// Returns "" when neither is present.
func (g *Guard) Retrieve(r *http.Request) string {
	if c, err := r.Cookie(g.primaryName()); err == nil && c.Value != "" {
		return c.Value
	}
	if c, err := r.Cookie(g.backupName()); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

// Validate checks a submitted token against the stored one, failing closed
// on every ambiguous condition. The boolean is the decision; the Reason
// explains a false result.
//
// Token values are never logged.
func (g *Guard) Validate(ctx context.Context, w http.ResponseWriter, r *http.Request, submitted string) (bool, Reason) {
	if submitted == "" {
		return g.reject(ReasonMissing)
	}

	stored := g.Retrieve(r)
	if stored == "" {
		// one-shot recovery: arm future requests, deny this one
		if _, err := g.Issue(w); err != nil {
			log.FromContext(ctx).Error(ctx, err, "csrf recovery issuance failed")
			return g.reject(ReasonIssueFailed)
		}
		return g.reject(ReasonNoStoredToken)
	}

	if !secutil.Equal(stored, submitted) {
		return g.reject(ReasonMismatch)
	}
	return true, ""
}

// Clear deletes all CSRF cookies. Used on logout and session termination.
func (g *Guard) Clear(w http.ResponseWriter) {
	for _, name := range []string{g.primaryName(), g.backupName()} {
		c := g.tokenCookie(name, "", true)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
	if !g.production {
		c := g.tokenCookie(debugName, "", false)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (g *Guard) reject(reason Reason) (bool, Reason) {
	if g.OnRejected != nil {
		g.OnRejected(reason)
	}
	return false, reason
}

func (g *Guard) tokenCookie(name, value string, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(tokenLifetime.Seconds()),
		HttpOnly: httpOnly,
		Secure:   g.production,
		SameSite: http.SameSiteStrictMode,
	}
}
