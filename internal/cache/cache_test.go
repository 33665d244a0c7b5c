package cache

import (
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := New(time.Hour)

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for absent key")
	}

	c.Set("k", []string{"a", "b"})
	v, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit after set")
	}
	if got := v.([]string); len(got) != 2 || got[0] != "a" {
		t.Errorf("unexpected value: %v", got)
	}
}

func TestExpiry(t *testing.T) {
	c := New(10 * time.Millisecond)
	c.Set("k", 1)

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	c := New(10 * time.Millisecond)
	c.Set("old", 1)

	time.Sleep(20 * time.Millisecond)
	c.Set("fresh", 2)

	if removed := c.Sweep(); removed != 1 {
		t.Errorf("expected 1 entry swept, got %d", removed)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry remaining, got %d", c.Len())
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry should survive sweep")
	}
}
