package httpmw

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type clientIPKey struct{}

// ClientIPOptions configures client IP extraction.
type ClientIPOptions struct {
	// TrustedHops is the number of trusted reverse proxies between the
	// client and this server. 0 = directly exposed (X-Forwarded-For is
	// ignored), 1 = one load balancer (rightmost XFF entry), 2 = CDN in
	// front of a load balancer, and so on.
	TrustedHops int
}

// ClientIP extracts the client IP with default options (no trusted proxies).
func ClientIP(next http.Handler) http.Handler {
	return ClientIPWithOptions(ClientIPOptions{})(next)
}

// ClientIPWithOptions returns middleware that resolves the real client
// address and stores it in the request context. The resolved address is the
// client identity used by rate limiting and audit logging, so the rules here
// err toward distrust: a spoofable header is never preferred over the
// connection-level peer address.
func ClientIPWithOptions(opts ClientIPOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolveClientAddr(r, opts.TrustedHops)
			ctx := WithClientIP(r.Context(), ip)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveClientAddr picks the client address for this request.
//
// Forwarded headers are honored only when the connection peer is a private
// address (our own infrastructure) AND trusted hops are configured; in every
// other case the headers are stripped so no downstream code accidentally
// trusts them. With N trusted hops the Nth-from-end X-Forwarded-For entry is
// the first one appended by a proxy we control; fewer entries than expected
// means misconfiguration or manipulation, and we fail closed to the peer
// address.
func resolveClientAddr(r *http.Request, trustedHops int) string {
	if r.RemoteAddr == "" {
		return "0.0.0.0"
	}

	clientAddr, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	peer := net.ParseIP(clientAddr)
	if peer == nil {
		return "0.0.0.0"
	}

	if trustedHops <= 0 || !(peer.IsPrivate() || peer.IsLoopback()) {
		stripForwardHeaders(r)
		return clientAddr
	}

	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		idx := len(parts) - trustedHops
		if idx < 0 {
			stripForwardHeaders(r)
			return clientAddr
		}
		if candidate := strings.TrimSpace(parts[idx]); net.ParseIP(candidate) != nil {
			clientAddr = candidate
		}
	}
	return clientAddr
}

func stripForwardHeaders(r *http.Request) {
	r.Header.Del("X-Forwarded-For")
	r.Header.Del("X-Forwarded-Proto")
}

// IsLoopback reports whether the given address string is a loopback IP.
// Loopback traffic is excluded from audit noise and denial metrics in
// non-production so local development doesn't pollute them.
func IsLoopback(addr string) bool {
	ip := net.ParseIP(addr)
	return ip != nil && ip.IsLoopback()
}

func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey{}, ip)
}
