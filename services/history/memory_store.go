// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"context"
	"sync"
)

// MemoryStore implements Store in process memory. Used by tests and by
// deployments that do not configure a retention directory; history then
// lives only as long as the process.
//
// Thread Safety: Safe for concurrent use via sync.Mutex.
type MemoryStore struct {
	mu    sync.Mutex
	turns map[string][]Turn
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{turns: make(map[string][]Turn)}
}

// SaveTurn appends a query/reply pair, trimming to RetentionLimit.
func (s *MemoryStore) SaveTurn(_ context.Context, cardNumber, userQuery, aiReply string) error {
	if cardNumber == "" || userQuery == "" || aiReply == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.turns[cardNumber],
		Turn{Role: RoleUser, Content: userQuery},
		Turn{Role: RoleAssistant, Content: aiReply},
	)
	if len(turns) > RetentionLimit {
		turns = turns[len(turns)-RetentionLimit:]
	}
	s.turns[cardNumber] = turns
	return nil
}

// History returns the retained messages for cardNumber, oldest first.
func (s *MemoryStore) History(_ context.Context, cardNumber string) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.turns[cardNumber]
	out := make([]Turn, len(stored))
	copy(out, stored)
	return out, nil
}
