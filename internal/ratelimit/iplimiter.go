package ratelimit

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// client tracks one address's token bucket and last activity.
type client struct {
	bucket   *rate.Limiter
	lastSeen time.Time
	// logged marks whether the first denial was already reported;
	// resets when the entry is evicted and re-created
	logged bool
}

// IPLimiter holds per-address token buckets with background eviction.
type IPLimiter struct {
	mu      sync.Mutex
	clients map[string]*client

	perSecond rate.Limit
	burst     int
	ttl       time.Duration
	resolve   func(*http.Request) string

	// OnFirstDenied fires once per client per residency in the map.
	OnFirstDenied func(ip string)
	// OnDenied fires on every denial, for counters.
	OnDenied func(ip string)
}

type IPOption func(*IPLimiter)

// WithRate sets the bucket refill rate and capacity. WithRate(10, 50) allows
// a burst of 50, refilling 10 tokens per second.
func WithRate(perSecond float64, burst int) IPOption {
	return func(l *IPLimiter) {
		l.perSecond = rate.Limit(perSecond)
		l.burst = burst
	}
}

// WithTTL controls how long an idle address stays tracked before eviction.
func WithTTL(d time.Duration) IPOption {
	return func(l *IPLimiter) { l.ttl = d }
}

func WithOnFirstDenied(fn func(ip string)) IPOption {
	return func(l *IPLimiter) { l.OnFirstDenied = fn }
}

func WithOnIPDenied(fn func(ip string)) IPOption {
	return func(l *IPLimiter) { l.OnDenied = fn }
}

// WithResolver overrides how Middleware derives the client address from a
// request. The default uses the connection peer; servers behind a proxy
// should pass a resolver that reads the already-resolved client IP.
func WithResolver(fn func(*http.Request) string) IPOption {
	return func(l *IPLimiter) { l.resolve = fn }
}

// NewIPLimiter creates the flood guard and starts its eviction goroutine,
// which stops when ctx is cancelled.
func NewIPLimiter(ctx context.Context, opts ...IPOption) *IPLimiter {
	l := &IPLimiter{
		clients:   make(map[string]*client),
		perSecond: 20,
		burst:     60,
		ttl:       5 * time.Minute,
		resolve:   peerAddr,
	}
	for _, o := range opts {
		o(l)
	}
	go l.evict(ctx)
	return l
}

// Allow reports whether the address is within its bucket. Creates the bucket
// on first sight.
func (l *IPLimiter) Allow(ip string) bool {
	l.mu.Lock()
	c, ok := l.clients[ip]
	if !ok {
		c = &client{bucket: rate.NewLimiter(l.perSecond, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = time.Now()
	allowed := c.bucket.Allow()

	first := !allowed && !c.logged
	if first {
		c.logged = true
	}
	// hooks run outside the lock; they may log or touch metrics
	l.mu.Unlock()

	if !allowed {
		if first && l.OnFirstDenied != nil {
			l.OnFirstDenied(ip)
		}
		if l.OnDenied != nil {
			l.OnDenied(ip)
		}
	}
	return allowed
}

// Middleware rejects flooding addresses with 429 before any further work
// happens. This is a blunt per-instance guard against a single hot peer,
// distinct from the category quotas the security pipeline enforces through
// the shared store.
func (l *IPLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(l.resolve(r)) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// peerAddr is the default resolver: the connection peer with the port
// stripped.
func peerAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// evict drops addresses idle longer than the TTL. Runs every TTL/2 so stale
// entries don't outlive their window by much.
func (l *IPLimiter) evict(ctx context.Context) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for ip, c := range l.clients {
				if now.Sub(c.lastSeen) > l.ttl {
					delete(l.clients, ip)
				}
			}
			l.mu.Unlock()
		}
	}
}
