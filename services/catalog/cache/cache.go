// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache provides the bounded in-memory TTL cache used by the catalog
// engine for keyword expansions and per-keyword catalog responses.
//
// The engine deliberately keeps no state across process restarts, so this is
// a plain in-process structure: a map plus an LRU list under one mutex. The
// lock covers whole check-then-insert sequences at call sites via Get/Set
// pairs; exact single-flight de-duplication is not attempted: two concurrent
// misses for the same key may both perform the external call, and the second
// write simply overwrites the first. That is acceptable by design for a cold
// cache and costs far less than a per-key wait channel.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// =============================================================================
// TTL Cache
// =============================================================================

// entry is one cached value with its expiry deadline.
type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// TTL is a bounded time-to-live cache with least-recently-used eviction.
//
// Description:
//
//	Entries expire after the configured TTL regardless of use, and the
//	least-recently-used entry is evicted when the cache is at capacity.
//	Expired entries are removed lazily on access; a full sweep only happens
//	via Purge. Reads count as use for LRU ordering.
//
// Thread Safety: Safe for concurrent use via an internal mutex.
type TTL[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[K]*list.Element
	order    *list.List // front = most recently used

	// now is the clock; replaced in tests to step time deterministically.
	now func() time.Time
}

// New creates a TTL cache with the given capacity and entry lifetime.
//
// Inputs:
//   - capacity: Maximum number of entries. Values below 1 are treated as 1.
//   - ttl: Lifetime of each entry. Values below 1ns are treated as 1ns,
//     which effectively disables caching rather than caching forever,
//     the safer failure mode for a misconfigured TTL.
//
// Outputs:
//   - *TTL[K, V]: Ready-to-use cache. Never nil.
func New[K comparable, V any](capacity int, ttl time.Duration) *TTL[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	if ttl < 1 {
		ttl = 1
	}
	return &TTL[K, V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[K]*list.Element, capacity),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get returns the cached value for key.
//
// Outputs:
//   - V: The cached value, or the zero value on miss.
//   - bool: False when the key is absent or its entry has expired. An
//     expired entry is removed as a side effect, never returned.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	ent := el.Value.(*entry[K, V])
	if !c.now().Before(ent.expiresAt) {
		c.removeLocked(el)
		return zero, false
	}
	c.order.MoveToFront(el)
	return ent.value, true
}

// Set stores value under key, resetting its TTL, and evicts the
// least-recently-used entry if the cache is over capacity.
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		ent := el.Value.(*entry[K, V])
		ent.value = value
		ent.expiresAt = expires
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry[K, V]{key: key, value: value, expiresAt: expires})
	c.items[key] = el

	for c.order.Len() > c.capacity {
		c.removeLocked(c.order.Back())
	}
}

// Len returns the number of entries currently held, including any that have
// expired but not yet been swept.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Purge removes every entry.
func (c *TTL[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*list.Element, c.capacity)
	c.order.Init()
}

// removeLocked unlinks el from both the list and the index. Caller holds mu.
func (c *TTL[K, V]) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	ent := el.Value.(*entry[K, V])
	delete(c.items, ent.key)
	c.order.Remove(el)
}
