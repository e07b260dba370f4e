package httpmw

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/promptexify/promptexify/internal/csrf"
	"github.com/promptexify/promptexify/internal/log"
	"github.com/promptexify/promptexify/internal/nonce"
	"github.com/promptexify/promptexify/internal/ratelimit"
	"github.com/promptexify/promptexify/internal/secheaders"
	"github.com/promptexify/promptexify/internal/session"
	"github.com/promptexify/promptexify/internal/xerrors"
)

// CSRFHeader is the request header carrying the submitted token for
// state-changing calls.
const CSRFHeader = "x-csrf-token"

// Machine-readable error codes for short-circuit rejections.
const (
	codeCSRFMissing = "csrf_token_missing"
	codeCSRFInvalid = "csrf_token_invalid"
	codeRateLimited = "rate_limited"
)

// defaultExemptPaths skip CSRF validation: webhook receivers authenticate by
// signature, uploads and the resolve endpoint are called without custom
// headers, the identity namespace is the provider's own surface, and
// browsers do not attach custom headers to CSP violation reports.
var defaultExemptPaths = []string{
	"/api/webhooks/",
	"/api/upload",
	"/api/resolve/",
	"/api/auth/",
	"/api/csp-report",
}

// PipelineOptions configures a SecurityPipeline. CSRF, Headers and Sessions
// are required; a nil Limiter disables stage 7 (used by tests and tooling).
type PipelineOptions struct {
	Production bool
	Headers    secheaders.Policy
	CSRF       *csrf.Guard
	Sessions   session.Refresher
	Limiter    *ratelimit.CategoryLimiter

	// APIPrefix marks the namespace subject to rate limiting. Default "/api/".
	APIPrefix string
	// APICategory is the limiter category consulted for API traffic.
	// Default "api".
	APICategory string
	// MutationCategory, when set, is consulted instead of APICategory for
	// state-changing API requests. Mutation categories typically carry a
	// fail-closed outage policy where reads fail open.
	MutationCategory string
	// ExemptPaths overrides the default CSRF exemption list. A trailing
	// slash matches the whole subtree; any other entry matches exactly.
	ExemptPaths []string
}

// SecurityPipeline is the single composition point for per-request security:
// nonce, session refresh, header bundle, CSRF, audit, API rate limit. The
// stages run strictly in order and any stage may short-circuit with a
// rejection; downstream handlers may assume every check already ran.
type SecurityPipeline struct {
	production  bool
	headers     secheaders.Policy
	csrf        *csrf.Guard
	sessions    session.Refresher
	limiter     *ratelimit.CategoryLimiter
	apiPrefix   string
	apiCategory string
	mutCategory string
	exempt      []string
}

func NewSecurityPipeline(opts PipelineOptions) *SecurityPipeline {
	p := &SecurityPipeline{
		production:  opts.Production,
		headers:     opts.Headers,
		csrf:        opts.CSRF,
		sessions:    opts.Sessions,
		limiter:     opts.Limiter,
		apiPrefix:   opts.APIPrefix,
		apiCategory: opts.APICategory,
		mutCategory: opts.MutationCategory,
		exempt:      opts.ExemptPaths,
	}
	if p.sessions == nil {
		p.sessions = session.None
	}
	if p.apiPrefix == "" {
		p.apiPrefix = "/api/"
	}
	if p.apiCategory == "" {
		p.apiCategory = "api"
	}
	if p.exempt == nil {
		p.exempt = defaultExemptPaths
	}
	return p
}

// Wrap returns the pipeline as middleware around next.
func (p *SecurityPipeline) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		L := log.FromContext(ctx)

		// A failure inside the pipeline must neither bypass security
		// headers nor leak internal detail.
		defer func() {
			if rec := recover(); rec != nil {
				L.Error(ctx, xerrors.Newf("panic: %v", rec), "security pipeline panic")
				p.fail(w)
			}
		}()

		// stage 1: one nonce per request, threaded through every later stage
		n, err := nonce.New()
		if err != nil {
			L.Error(ctx, err, "nonce generation failed")
			p.fail(w)
			return
		}

		// stage 2: identity session refresh; its redirects take precedence
		// over everything below, and its transient failures degrade to an
		// anonymous request rather than an outage
		outcome, err := p.sessions.Refresh(w, r)
		if err != nil {
			L.Warn(ctx, "session refresh failed, continuing unauthenticated", "error", err.Error())
		}
		if outcome == session.Redirected {
			return
		}

		// stage 3: both nonce channels, atomically within this pass
		headerVal, cookie := nonce.Channels(n, p.production)
		r.Header.Set(nonce.HeaderName, headerVal)
		http.SetCookie(w, cookie)

		// stage 4: full header bundle
		p.headers.Compose(p.production, n).Apply(w.Header())

		// stage 5: CSRF for state-changing methods outside the exemption list
		if !safeMethod(r.Method) && !p.exemptPath(r.URL.Path) {
			token := r.Header.Get(CSRFHeader)
			if token == "" {
				p.csrfRejected(ctx, w, csrf.ReasonMissing)
				return
			}
			if ok, reason := p.csrf.Validate(ctx, w, r, token); !ok {
				p.csrfRejected(ctx, w, reason)
				return
			}
		}

		// stage 6: audit trail for mutations; loopback noise suppressed
		// outside production
		if !safeMethod(r.Method) {
			ip := ClientIPFromContext(ctx)
			if p.production || !IsLoopback(ip) {
				auditID := RequestIDFromContext(ctx)
				if auditID == "" {
					auditID = uuid.NewString()
				}
				L.Info(ctx, "state-changing request",
					"audit_id", auditID,
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
					"client.address", ip,
				)
			}
		}

		// stage 7: API quota; introspection headers attach on every outcome
		if p.limiter != nil && strings.HasPrefix(r.URL.Path, p.apiPrefix) {
			clientID := ClientIPFromContext(ctx)
			if clientID == "" {
				clientID = r.RemoteAddr
			}
			category := p.apiCategory
			if p.mutCategory != "" && !safeMethod(r.Method) {
				category = p.mutCategory
			}
			res, err := p.limiter.Allow(ctx, clientID, category)
			if err != nil {
				// unknown category is a wiring bug, not a client problem
				L.Error(ctx, err, "rate limit check misconfigured", "category", category)
			} else {
				h := w.Header()
				h.Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
				h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
				h.Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))
				if !res.Allowed {
					h.Set("Retry-After", strconv.Itoa(res.RetryAfter(time.Now())))
					writeJSONError(w, http.StatusTooManyRequests, codeRateLimited, "rate limit exceeded")
					return
				}
			}
		}

		// stage 8: all checks passed
		next.ServeHTTP(w, r)
	})
}

func (p *SecurityPipeline) csrfRejected(ctx context.Context, w http.ResponseWriter, reason csrf.Reason) {
	code := codeCSRFInvalid
	msg := "csrf token invalid"
	if reason == csrf.ReasonMissing {
		code = codeCSRFMissing
		msg = "csrf token required"
	}
	log.FromContext(ctx).Warn(ctx, "csrf validation failed", "reason", string(reason))
	writeJSONError(w, http.StatusForbidden, code, msg)
}

// fail writes a 500 carrying only the minimal safe headers.
func (p *SecurityPipeline) fail(w http.ResponseWriter) {
	secheaders.Minimal().Apply(w.Header())
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (p *SecurityPipeline) exemptPath(path string) bool {
	for _, entry := range p.exempt {
		// trailing slash exempts the subtree; anything else must match
		// exactly so "/api/upload" never covers "/api/upload-admin"
		if strings.HasSuffix(entry, "/") {
			if strings.HasPrefix(path, entry) {
				return true
			}
			continue
		}
		if path == entry {
			return true
		}
	}
	return false
}

func safeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
