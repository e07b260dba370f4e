package ratelimit

import (
	"context"
	"time"

	"github.com/promptexify/promptexify/internal/log"
	"github.com/promptexify/promptexify/internal/store"
	"github.com/promptexify/promptexify/internal/xerrors"
)

// Policy decides what happens when both the backing store and the in-process
// fallback fail. Read-style categories should fail open; state-changing
// categories should fail closed.
type Policy int

const (
	FailOpen Policy = iota
	FailClosed
)

// Category is a named limit: at most Limit requests per Window per client.
type Category struct {
	Name   string
	Limit  int64
	Window time.Duration
	Policy Policy
}

// Result is the outcome of one quota check.
type Result struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	Reset     time.Time
}

// RetryAfter returns the whole seconds until the window rolls over, at
// least 1. Only meaningful when Allowed is false.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.Reset.Sub(now).Seconds()) + 1
	if secs < 1 {
		secs = 1
	}
	return secs
}

// CategoryLimiter counts requests per (category, client) in the shared store.
type CategoryLimiter struct {
	primary    store.Store
	fallback   *store.Memory
	categories map[string]Category

	// OnDenied is called on every denied request, for metrics.
	OnDenied func(category string)
	// OnDegraded is called each time the primary store fails and the
	// in-process fallback is used instead.
	OnDegraded func(category string)

	now func() time.Time
}

type Option func(*CategoryLimiter)

func WithOnDenied(fn func(category string)) Option {
	return func(l *CategoryLimiter) { l.OnDenied = fn }
}

func WithOnDegraded(fn func(category string)) Option {
	return func(l *CategoryLimiter) { l.OnDegraded = fn }
}

// NewCategoryLimiter builds a limiter over the given store handle. The store
// is injected, never a package singleton, so tests swap in a Memory store.
func NewCategoryLimiter(s store.Store, categories []Category, opts ...Option) *CategoryLimiter {
	l := &CategoryLimiter{
		primary:    s,
		fallback:   store.NewMemory(),
		categories: make(map[string]Category, len(categories)),
		now:        time.Now,
	}
	for _, c := range categories {
		l.categories[c.Name] = c
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Allow atomically increments the (category, clientID) bucket for the current
// window and reports whether the request is within quota.
//
// The returned error is non-nil only for unknown categories; store failures
// are absorbed into the category's degraded-mode policy.
func (l *CategoryLimiter) Allow(ctx context.Context, clientID, category string) (Result, error) {
	cat, ok := l.categories[category]
	if !ok {
		return Result{}, xerrors.Newf("unknown rate limit category %q", category)
	}

	key := "rl:" + cat.Name + ":" + clientID

	count, remaining, err := l.primary.IncrWindow(ctx, key, cat.Window)
	if err != nil {
		// degraded mode: per-instance counting, must stay observable
		log.FromContext(ctx).Warn(ctx, "rate limit store unavailable, counting in-process",
			"category", cat.Name, "store", l.primary.Name(), "error", err.Error())
		if l.OnDegraded != nil {
			l.OnDegraded(cat.Name)
		}
		count, remaining, err = l.fallback.IncrWindow(ctx, key, cat.Window)
		if err != nil {
			return l.resolvePolicy(cat), nil
		}
	}

	res := Result{
		Allowed:   count <= cat.Limit,
		Limit:     cat.Limit,
		Remaining: cat.Limit - count,
		Reset:     l.now().Add(remaining),
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed && l.OnDenied != nil {
		l.OnDenied(cat.Name)
	}
	return res, nil
}

func (l *CategoryLimiter) resolvePolicy(cat Category) Result {
	res := Result{
		Limit: cat.Limit,
		Reset: l.now().Add(cat.Window),
	}
	switch cat.Policy {
	case FailClosed:
		res.Allowed = false
		if l.OnDenied != nil {
			l.OnDenied(cat.Name)
		}
	default:
		res.Allowed = true
		res.Remaining = cat.Limit
	}
	return res
}
