package store

import (
	"context"
	"time"

	"github.com/promptexify/promptexify/internal/log"
)

type Options struct {
	// RedisAddr empty selects the in-process Memory variant.
	RedisAddr string
	RedisDB   int
	Timeout   time.Duration
	Logger    log.Logger
}

// New selects the Store variant once at startup based on configuration
// presence. The handle is passed explicitly into the limiter and cache;
// there is no package-level singleton.
//
// A configured but unreachable Redis is still returned (the outage may be
// transient); callers own per-operation fallback behavior.
func New(ctx context.Context, opts Options) Store {
	L := opts.Logger
	if L == nil {
		L = log.Nop()
	}

	if opts.RedisAddr == "" {
		m := NewMemory()
		go m.Sweep(ctx, time.Minute)
		L.Warn(ctx, "no redis configured, using in-process store; rate limits and cache are per-instance")
		return m
	}

	r := NewRedis(RedisOptions{Addr: opts.RedisAddr, DB: opts.RedisDB, Timeout: opts.Timeout})
	if err := r.Ping(ctx); err != nil {
		L.Warn(ctx, "redis unreachable at startup, continuing with degraded-mode fallbacks",
			"addr", opts.RedisAddr, "error", err.Error())
	} else {
		L.Info(ctx, "connected to redis store", "addr", opts.RedisAddr)
	}
	return r
}
