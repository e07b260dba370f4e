package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/promptexify/promptexify/internal/xerrors"
)

// Redis is the distributed Store variant. Commands run with short timeouts
// and a bounded retry count so a degraded Redis degrades request latency
// predictably instead of hanging.
type Redis struct {
	rdb *redis.Client
}

type RedisOptions struct {
	Addr    string
	DB      int
	Timeout time.Duration
}

func NewRedis(opts RedisOptions) *Redis {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Redis{
		rdb: redis.NewClient(&redis.Options{
			Addr:         opts.Addr,
			DB:           opts.DB,
			DialTimeout:  timeout,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
			MaxRetries:   2,
		}),
	}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return xerrors.Wrap(err, "redis ping")
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, xerrors.Wrapf(err, "redis get %s", key)
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return xerrors.Wrapf(err, "redis set %s", key)
	}
	return nil
}

func (r *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return xerrors.Wrap(err, "redis del")
	}
	return nil
}

func (r *Redis) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	// INCR + EXPIRE NX + TTL in one round trip; EXPIRE NX only arms the
	// window on the first increment so later hits don't extend it.
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.ExpireNX(ctx, key, window)
		ttl = p.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, xerrors.Wrapf(err, "redis incr window %s", key)
	}
	remaining := ttl.Val()
	if remaining < 0 {
		remaining = window
	}
	return incr.Val(), remaining, nil
}

func (r *Redis) AddTag(ctx context.Context, tag string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	members := make([]any, len(keys))
	for i, k := range keys {
		members[i] = k
	}
	if err := r.rdb.SAdd(ctx, tagKey(tag), members...).Err(); err != nil {
		return xerrors.Wrapf(err, "redis sadd tag %s", tag)
	}
	return nil
}

func (r *Redis) InvalidateTag(ctx context.Context, tag string) error {
	members, err := r.rdb.SMembers(ctx, tagKey(tag)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return xerrors.Wrapf(err, "redis smembers tag %s", tag)
	}
	keys := append(members, tagKey(tag))
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return xerrors.Wrapf(err, "redis invalidate tag %s", tag)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error { return r.rdb.Close() }

func tagKey(tag string) string { return "tag:" + tag }
