package cache

import (
	"context"
	"testing"
	"time"
)

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := New[string, int](0)
	defer c.Close()

	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	c.Set(ctx, "a", 1, time.Minute)
	c.Set(ctx, "forever", 2, 0)

	if v, ok := c.Get(ctx, "a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d,%v want 1,true", v, ok)
	}

	now = now.Add(2 * time.Minute)

	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("expected a to be expired")
	}
	if v, ok := c.Get(ctx, "forever"); !ok || v != 2 {
		t.Errorf("Get(forever) = %d,%v want 2,true", v, ok)
	}

	c.sweep()
	if c.Len() != 1 {
		t.Errorf("Len after sweep = %d, want 1", c.Len())
	}
}

func TestCache_SetIfAbsent(t *testing.T) {
	ctx := context.Background()
	c := New[string, struct{}](0)
	defer c.Close()

	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	if !c.SetIfAbsent(ctx, "k", struct{}{}, 10*time.Second) {
		t.Fatal("first SetIfAbsent should store")
	}
	if c.SetIfAbsent(ctx, "k", struct{}{}, 10*time.Second) {
		t.Error("second SetIfAbsent within ttl should not store")
	}

	now = now.Add(11 * time.Second)
	if !c.SetIfAbsent(ctx, "k", struct{}{}, 10*time.Second) {
		t.Error("SetIfAbsent after expiry should store")
	}
}
