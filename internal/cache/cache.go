package cache

import (
	"context"
	"time"

	"github.com/promptexify/promptexify/internal/log"
	"github.com/promptexify/promptexify/internal/store"
)

// Cache is a tagged read-through cache over an injected store handle.
type Cache struct {
	s store.Store

	// OnHit and OnMiss are metrics hooks keyed by operation name.
	OnHit  func(op string)
	OnMiss func(op string)
}

type Option func(*Cache)

func WithOnHit(fn func(op string)) Option  { return func(c *Cache) { c.OnHit = fn } }
func WithOnMiss(fn func(op string)) Option { return func(c *Cache) { c.OnMiss = fn } }

func New(s store.Store, opts ...Option) *Cache {
	c := &Cache{s: s}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ComputeFunc produces the value on a cache miss. Values are opaque strings;
// callers own serialization.
type ComputeFunc func(ctx context.Context) (string, error)

// GetOrCompute returns the cached value for key, or computes, stores, and
// tags it. A store outage never fails the read: the value is computed
// directly and the outage is logged (latency regression, not an error).
//
// This is the anonymous/shared read path. Reads whose result depends on the
// authenticated caller (ownership, draft visibility, premium gating) must not
// go through here — caching a personalized result under a shared key leaks
// data across users. Use Direct for those.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, tags []Tag, ttl time.Duration, compute ComputeFunc) (string, error) {
	storageKey := key.String()

	val, found, err := c.s.Get(ctx, storageKey)
	if err != nil {
		log.FromContext(ctx).Warn(ctx, "cache store read failed, computing directly",
			"key", storageKey, "store", c.s.Name(), "error", err.Error())
		return compute(ctx)
	}
	if found {
		if c.OnHit != nil {
			c.OnHit(key.op)
		}
		return val, nil
	}

	if c.OnMiss != nil {
		c.OnMiss(key.op)
	}
	val, err = compute(ctx)
	if err != nil {
		return "", err
	}

	// Failures past this point only cost freshness tracking, never the read.
	// An entry that was stored but not tagged would dodge invalidation, so
	// tag first and store second: the failure modes are then either
	// "tagged but absent" (harmless) or "neither" (plain miss).
	if tagErr := c.tagAll(ctx, storageKey, tags); tagErr != nil {
		log.FromContext(ctx).Warn(ctx, "cache tag registration failed, entry not stored",
			"key", storageKey, "error", tagErr.Error())
		return val, nil
	}
	if setErr := c.s.Set(ctx, storageKey, val, ttl); setErr != nil {
		log.FromContext(ctx).Warn(ctx, "cache store write failed",
			"key", storageKey, "error", setErr.Error())
	}
	return val, nil
}

// Direct is the personalized read path: always computes live, never touches
// the shared cache.
func (c *Cache) Direct(ctx context.Context, compute ComputeFunc) (string, error) {
	return compute(ctx)
}

func (c *Cache) tagAll(ctx context.Context, storageKey string, tags []Tag) error {
	for _, t := range tags {
		if err := c.s.AddTag(ctx, string(t), storageKey); err != nil {
			return err
		}
	}
	return nil
}
