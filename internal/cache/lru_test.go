package cache

import (
	"testing"
	"time"
)

func TestLRUEvictsOldest(t *testing.T) {
	var evicted []string
	c := NewLRUCache[int](2, time.Hour).OnEvict(func(k string, _ int) { evicted = append(evicted, k) })

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("evicted = %v", evicted)
	}
	if got := c.Keys(); len(got) != 2 || got[0] != "c" || got[1] != "a" {
		t.Fatalf("keys = %v", got)
	}
}

func TestLRUExpiry(t *testing.T) {
	now := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute).WithClock(func() time.Time { return now })
	c.Set("k", "v")
	c.Set("j", "w")

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected k to expire")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUDeleteSkipsEvictHook(t *testing.T) {
	called := false
	c := NewLRUCache[int](0, 0).OnEvict(func(string, int) { called = true })
	c.Set("a", 1)
	c.Delete("a")
	if called {
		t.Fatal("delete must not trigger the eviction hook")
	}
}

func TestManagerSweep(t *testing.T) {
	now := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Second).WithClock(func() time.Time { return now })
	c.Set("a", 1)

	m := NewManager(nil)
	m.Register("test", c)
	if got := m.Sizes()["test"]; got != 1 {
		t.Fatalf("Sizes() = %d before sweep", got)
	}
	now = now.Add(time.Minute)
	if got := m.Sweep()["test"]; got != 1 {
		t.Fatalf("sweep removed %d", got)
	}
	if got := m.Sizes()["test"]; got != 0 {
		t.Fatalf("Sizes() = %d after sweep", got)
	}
	m.Stop()
}
