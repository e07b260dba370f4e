package store

import (
	"context"
	"testing"
	"time"
)

func newClockedMemory(start time.Time) (*Memory, *time.Time) {
	m := NewMemory()
	now := start
	m.now = func() time.Time { return now }
	return m, &now
}

func TestMemory_GetSetDel(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, found, _ := m.Get(ctx, "missing"); found {
		t.Fatal("found a key that was never set")
	}

	if err := m.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	val, found, _ := m.Get(ctx, "k")
	if !found || val != "v" {
		t.Fatalf("Get = %q, %v", val, found)
	}

	_ = m.Del(ctx, "k")
	if _, found, _ := m.Get(ctx, "k"); found {
		t.Fatal("key survived Del")
	}
}

func TestMemory_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	m, now := newClockedMemory(time.Unix(1000, 0))

	_ = m.Set(ctx, "k", "v", time.Minute)
	if _, found, _ := m.Get(ctx, "k"); !found {
		t.Fatal("fresh key not found")
	}

	*now = now.Add(2 * time.Minute)
	if _, found, _ := m.Get(ctx, "k"); found {
		t.Fatal("expired key still readable")
	}
}

func TestMemory_IncrWindow_CountsAndRollsOver(t *testing.T) {
	ctx := context.Background()
	m, now := newClockedMemory(time.Unix(1000, 0))

	for i := int64(1); i <= 3; i++ {
		count, remaining, err := m.IncrWindow(ctx, "c", time.Minute)
		if err != nil {
			t.Fatalf("IncrWindow: %v", err)
		}
		if count != i {
			t.Fatalf("count = %d, want %d", count, i)
		}
		if remaining <= 0 || remaining > time.Minute {
			t.Fatalf("remaining = %s", remaining)
		}
	}

	// counter never decreases within the window
	*now = now.Add(30 * time.Second)
	count, _, _ := m.IncrWindow(ctx, "c", time.Minute)
	if count != 4 {
		t.Fatalf("count after 30s = %d, want 4", count)
	}

	// rollover resets
	*now = now.Add(time.Hour)
	count, _, _ = m.IncrWindow(ctx, "c", time.Minute)
	if count != 1 {
		t.Fatalf("count after rollover = %d, want 1", count)
	}
}

func TestMemory_IncrWindow_IsolatedKeys(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for i := 0; i < 5; i++ {
		m.IncrWindow(ctx, "a", time.Minute)
	}
	count, _, _ := m.IncrWindow(ctx, "b", time.Minute)
	if count != 1 {
		t.Fatalf("key b count = %d, want 1 (buckets shared?)", count)
	}
}

func TestMemory_TagInvalidation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_ = m.Set(ctx, "k1", "v1", 0)
	_ = m.Set(ctx, "k2", "v2", 0)
	_ = m.Set(ctx, "other", "v3", 0)
	_ = m.AddTag(ctx, "listing", "k1", "k2")

	if err := m.InvalidateTag(ctx, "listing"); err != nil {
		t.Fatalf("InvalidateTag: %v", err)
	}

	for _, k := range []string{"k1", "k2"} {
		if _, found, _ := m.Get(ctx, k); found {
			t.Errorf("tagged key %s survived invalidation", k)
		}
	}
	if _, found, _ := m.Get(ctx, "other"); !found {
		t.Error("untagged key was invalidated")
	}

	// invalidating an unknown tag is a no-op
	if err := m.InvalidateTag(ctx, "nope"); err != nil {
		t.Fatalf("InvalidateTag unknown tag: %v", err)
	}
}
