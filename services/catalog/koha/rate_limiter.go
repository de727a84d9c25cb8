// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package koha

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements a sliding window rate limiter for catalog requests.
//
// Description:
//
//	Limits the number of requests per minute using a sliding window of
//	timestamps. When the limit is exceeded, Allow returns the duration
//	until the next request can be made; Wait sleeps it off.
//
//	A zero limit disables limiting entirely.
//
// Thread Safety: Safe for concurrent use via sync.Mutex.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window []int64 // timestamps in Unix milliseconds

	now func() time.Time // injectable for tests
}

// NewRateLimiter creates a rate limiter allowing limitPerMin requests per
// minute. Zero or negative disables limiting.
func NewRateLimiter(limitPerMin int) *RateLimiter {
	return &RateLimiter{
		limit: limitPerMin,
		now:   time.Now,
	}
}

// Allow checks whether a request is within the rate limit.
//
// Description:
//
//	If the request is allowed, records the timestamp.
//
// Outputs:
//   - bool: True if the request is allowed.
//   - time.Duration: If rate-limited, how long to wait before retrying.
//     Zero if allowed.
func (r *RateLimiter) Allow() (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.limit <= 0 {
		return true, 0 // no limit configured
	}

	now := r.now().UnixMilli()
	windowStart := now - 60_000 // 1 minute ago

	// Prune expired entries
	pruned := make([]int64, 0, len(r.window))
	for _, ts := range r.window {
		if ts > windowStart {
			pruned = append(pruned, ts)
		}
	}

	if len(pruned) >= r.limit {
		oldestInWindow := pruned[0]
		retryAfter := time.Duration(oldestInWindow+60_000-now) * time.Millisecond
		r.window = pruned
		return false, retryAfter
	}

	pruned = append(pruned, now)
	r.window = pruned
	return true, 0
}

// Wait blocks until a request slot is available or ctx is done.
//
// Description:
//
//	Loops on Allow, sleeping the advised retry-after between attempts.
//	Returns ctx.Err() if the context expires first, so a fan-out deadline
//	is never extended by queued catalog requests.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		ok, retryAfter := r.Allow()
		if ok {
			return nil
		}
		if retryAfter < time.Millisecond {
			retryAfter = time.Millisecond
		}
		timer := time.NewTimer(retryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
