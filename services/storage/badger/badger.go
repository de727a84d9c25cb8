// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badgerstore wraps BadgerDB with context-aware transaction helpers.
//
// BadgerDB is embedded: no network call, no availability dependency. The
// wrapper exists so callers never juggle raw transactions or forget to
// discard them, and so tests can run against an in-memory instance.
package badgerstore

import (
	"context"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
)

// Options configures an Open call.
type Options struct {
	// Path is the on-disk directory. Ignored when InMemory is set.
	Path string

	// InMemory runs the DB without touching disk. For tests.
	InMemory bool

	// Logger receives open/close diagnostics. May be nil.
	Logger *slog.Logger
}

// DB is an opened BadgerDB handle.
//
// Thread Safety: Safe for concurrent use. Transactions are per-goroutine.
type DB struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens a BadgerDB instance.
//
// Description:
//
//	Badger's own chatty logger is silenced; lifecycle events are logged
//	through the provided slog logger instead.
//
// Outputs:
//   - *DB: The opened handle. Caller owns the lifecycle and must Close.
//   - error: Non-nil when the directory cannot be opened.
func Open(opts Options) (*DB, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bopts := badger.DefaultOptions(opts.Path).WithLogger(nil)
	if opts.InMemory {
		bopts = bopts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", opts.Path, err)
	}

	logger.Info("badger store opened",
		slog.String("path", opts.Path),
		slog.Bool("in_memory", opts.InMemory),
	)
	return &DB{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	d.logger.Info("badger store closing")
	return d.db.Close()
}

// WithTxn runs fn inside a read-write transaction.
//
// Description:
//
//	Checks ctx before starting; a canceled context never opens a
//	transaction. fn's error aborts and is returned; otherwise the
//	transaction commits.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(fn)
}

// WithReadTxn runs fn inside a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(fn)
}
