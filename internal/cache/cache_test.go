package cache

import (
	"testing"
	"time"
)

func TestCache_ExpiresEntries(t *testing.T) {
	c := New(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	c.SetWithTTL("b", 2, 10*time.Second)

	if v, ok := c.Get("b"); !ok || v.(int) != 2 {
		t.Fatalf("expected b=2, got %v %v", v, ok)
	}

	now = now.Add(11 * time.Second)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to expire after its own ttl")
	}

	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a to survive until default ttl")
	}

	now = now.Add(time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a to expire")
	}
}

func TestCache_Delete(t *testing.T) {
	c := New(0)
	c.Set("k", "v")
	c.Delete("k")

	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected deleted key to be gone")
	}
}
