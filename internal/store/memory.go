package store

import (
	"context"
	"sync"
	"time"
)

// Memory is the in-process Store variant: the documented degraded mode when
// Redis is not configured or unreachable. Consistency is per-instance only.
type Memory struct {
	mu       sync.Mutex
	values   map[string]memEntry
	counters map[string]*memCounter
	tags     map[string]map[string]struct{}

	// now is swappable for window-rollover tests
	now func() time.Time
}

type memEntry struct {
	value     string
	expiresAt time.Time // zero = no expiry
}

type memCounter struct {
	count     int64
	windowEnd time.Time
}

func NewMemory() *Memory {
	return &Memory{
		values:   make(map[string]memEntry),
		counters: make(map[string]*memCounter),
		tags:     make(map[string]map[string]struct{}),
		now:      time.Now,
	}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.values[key]
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		delete(m.values, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.values[key] = e
	return nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *Memory) IncrWindow(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	c, ok := m.counters[key]
	if !ok || now.After(c.windowEnd) {
		// first hit, or rollover: counter resets with a fresh window
		c = &memCounter{windowEnd: now.Add(window)}
		m.counters[key] = c
	}
	c.count++
	return c.count, c.windowEnd.Sub(now), nil
}

func (m *Memory) AddTag(_ context.Context, tag string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.tags[tag]
	if !ok {
		set = make(map[string]struct{})
		m.tags[tag] = set
	}
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return nil
}

func (m *Memory) InvalidateTag(_ context.Context, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.tags[tag] {
		delete(m.values, k)
	}
	delete(m.tags, tag)
	return nil
}

// Sweep evicts expired values and stale counters until ctx is cancelled.
// Expiry is already enforced lazily on access; this bounds memory for keys
// that are never touched again.
func (m *Memory) Sweep(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			now := m.now()
			for k, e := range m.values {
				if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
					delete(m.values, k)
				}
			}
			for k, c := range m.counters {
				if now.After(c.windowEnd) {
					delete(m.counters, k)
				}
			}
			m.mu.Unlock()
		}
	}
}
