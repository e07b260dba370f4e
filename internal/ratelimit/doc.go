// Package ratelimit bounds request rates at two layers.
//
// CategoryLimiter enforces named per-client quotas (fixed window) against the
// shared backing store, so limits hold across application instances. When the
// store is unreachable it falls back to in-process counting — explicitly a
// degraded mode where limits become per-instance — and, if even that fails,
// applies the category's fail-open/fail-closed policy.
//
// IPLimiter is an instance-local token-bucket flood guard in front of
// everything else: cheap overload protection against a single address
// hammering this process. It does not protect against distributed attacks;
// that belongs to upstream infrastructure.
package ratelimit
