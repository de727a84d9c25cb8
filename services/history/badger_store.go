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
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	badgerstore "github.com/AleutianAI/librarian/services/storage/badger"
)

// historyKeyPrefix is versioned to allow future format changes without
// collision.
const historyKeyPrefix = "history/v1/"

// defaultRetentionTTL is how long an idle patron's history survives. TTL is
// enforced by BadgerDB's native GC; an expired key reads as empty history.
const defaultRetentionTTL = 30 * 24 * time.Hour

// BadgerStore implements Store backed by a BadgerDB instance.
//
// Description:
//
//	One key per patron, history/v1/{cardNumber}, holding a gob-encoded
//	[]Turn capped at RetentionLimit. Each write rewrites the whole slice;
//	conversations are short enough (15 messages) that read-modify-write
//	beats a key-per-message layout.
//
// Thread Safety: Safe for concurrent use. Concurrent writes for the same
// patron serialize through Badger's transaction conflict detection upstream
// of this type; last write wins.
type BadgerStore struct {
	db     *badgerstore.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewBadgerStore creates a BadgerStore.
//
// Inputs:
//   - db: Opened BadgerDB wrapper. Must not be nil. The caller owns the DB
//     lifecycle; this store does not close it.
//   - ttl: Idle retention period. Pass 0 for the default (30 days).
//   - logger: Logger. May be nil.
func NewBadgerStore(db *badgerstore.DB, ttl time.Duration, logger *slog.Logger) *BadgerStore {
	if db == nil {
		panic("NewBadgerStore: db must not be nil")
	}
	if ttl <= 0 {
		ttl = defaultRetentionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerStore{db: db, ttl: ttl, logger: logger}
}

// SaveTurn appends a query/reply pair, trimming to RetentionLimit.
func (s *BadgerStore) SaveTurn(ctx context.Context, cardNumber, userQuery, aiReply string) error {
	if cardNumber == "" || userQuery == "" || aiReply == "" {
		s.logger.Warn("history save skipped, missing data",
			slog.Bool("have_card", cardNumber != ""),
		)
		return nil
	}

	key := historyKey(cardNumber)
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		turns, err := readTurns(txn, key)
		if err != nil {
			return err
		}

		turns = append(turns,
			Turn{Role: RoleUser, Content: userQuery},
			Turn{Role: RoleAssistant, Content: aiReply},
		)
		if len(turns) > RetentionLimit {
			turns = turns[len(turns)-RetentionLimit:]
		}

		raw, err := gobEncode(turns)
		if err != nil {
			return err
		}
		entry := badger.NewEntry(key, raw).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
}

// History returns the retained messages for cardNumber, oldest first.
func (s *BadgerStore) History(ctx context.Context, cardNumber string) ([]Turn, error) {
	if cardNumber == "" {
		return nil, nil
	}

	var turns []Turn
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		turns, err = readTurns(txn, historyKey(cardNumber))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return turns, nil
}

func historyKey(cardNumber string) []byte {
	return []byte(historyKeyPrefix + cardNumber)
}

// readTurns loads and decodes the turn slice at key; an absent key reads
// as empty history.
func readTurns(txn *badger.Txn, key []byte) ([]Turn, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get history key: %w", err)
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("copy history value: %w", err)
	}
	return gobDecode(raw)
}

func gobEncode(turns []Turn) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(turns); err != nil {
		return nil, fmt.Errorf("gob encode history: %w", err)
	}
	return buf.Bytes(), nil
}

func gobDecode(data []byte) ([]Turn, error) {
	var turns []Turn
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&turns); err != nil {
		return nil, fmt.Errorf("gob decode history: %w", err)
	}
	return turns, nil
}
