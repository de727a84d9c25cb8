// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"sync"
	"testing"
	"time"
)

// fakeClock steps time manually so TTL expiry is deterministic.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newTestCache(capacity int, ttl time.Duration) (*TTL[string, int], *fakeClock) {
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	c := New[string, int](capacity, ttl)
	c.now = clk.Now
	return c, clk
}

func TestGetSet(t *testing.T) {
	c, _ := newTestCache(4, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss on empty cache")
	}

	c.Set("k", 42)
	got, ok := c.Get("k")
	if !ok || got != 42 {
		t.Errorf("Get(k) = %d, %v; want 42, true", got, ok)
	}
}

func TestTTLExpiry(t *testing.T) {
	c, clk := newTestCache(4, 10*time.Minute)
	c.Set("k", 1)

	clk.Advance(9 * time.Minute)
	if _, ok := c.Get("k"); !ok {
		t.Error("entry expired before its TTL")
	}

	clk.Advance(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("entry outlived its TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not removed on access, Len = %d", c.Len())
	}
}

func TestSetResetsTTL(t *testing.T) {
	c, clk := newTestCache(4, 10*time.Minute)
	c.Set("k", 1)

	clk.Advance(8 * time.Minute)
	c.Set("k", 2)

	clk.Advance(8 * time.Minute)
	got, ok := c.Get("k")
	if !ok || got != 2 {
		t.Errorf("Get(k) = %d, %v; want 2, true after TTL reset", got, ok)
	}
}

func TestLRUEviction(t *testing.T) {
	c, _ := newTestCache(2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)

	// Touch "a" so "b" becomes least recently used.
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b evicted as least recently used")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("recently used entry a was evicted")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("newest entry c was evicted")
	}
}

func TestPurge(t *testing.T) {
	c, _ := newTestCache(4, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len after Purge = %d, want 0", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("purged entry still readable")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(64, time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.Set("k", n)
				c.Get("k")
			}
		}(i)
	}
	wg.Wait()
	if _, ok := c.Get("k"); !ok {
		t.Error("expected k present after concurrent writes")
	}
}
