package cache

import (
	"testing"
	"time"
)

func TestCacheGetSet(t *testing.T) {
	c := New[string](5 * time.Minute)

	if _, ok := c.Get("w1"); ok {
		t.Error("expected cache miss")
	}

	c.Set("w1", "workspace one")
	v, ok := c.Get("w1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if v != "workspace one" {
		t.Errorf("value = %v, want workspace one", v)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := New[int](time.Minute).(*ttlCache[int])
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("k", 1)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected cache hit immediately after set")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("expected cache miss after TTL")
	}

	c.Set("other", 2)
	if _, present := c.entries["k"]; present {
		t.Error("expected expired entry to be evicted on write")
	}
}

func TestCacheInvalidate(t *testing.T) {
	c := New[int](time.Minute)
	c.Set("k", 1)
	c.Invalidate("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected cache miss after invalidate")
	}
}

func TestCacheDisabled(t *testing.T) {
	c := New[int](0)
	c.Set("k", 1)
	if _, ok := c.Get("k"); ok {
		t.Error("expected zero TTL to disable caching")
	}
}
