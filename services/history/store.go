// Copyright (C) 2026 Kestrel Works (eng@kestrelworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history persists a journal of completed agentic edit sessions
// in BadgerDB.
//
// BadgerDB gives low-latency embedded storage (~100µs) with per-key TTL,
// which fits the journal's role: a short-lived audit trail the UI reads
// for "recent edits", not a system of record. Records carry a small
// thumbnail instead of the full raster to keep the value log compact.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	// DefaultTTL is how long a session record is retained.
	DefaultTTL = 7 * 24 * time.Hour

	// DefaultRecentLimit caps Recent when the caller passes no limit.
	DefaultRecentLimit = 50

	recordPrefix = "edit:"
	indexPrefix  = "id:"
)

// ErrNotFound is returned when no record exists for an ID (including
// records that have expired).
var ErrNotFound = errors.New("history: record not found")

// Record is one completed edit session.
type Record struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	Prompt      string    `json:"prompt"`
	FinalPrompt string    `json:"final_prompt"`
	Iterations  int       `json:"iterations"`
	Outcome     string    `json:"outcome"`
	Reasoning   string    `json:"reasoning,omitempty"`
	// ThumbnailDataURL is a small PNG preview of the result, encoded as
	// a data URL. Full rasters are never journaled.
	ThumbnailDataURL string `json:"thumbnail_data_url,omitempty"`
	DurationMS       int64  `json:"duration_ms"`
}

// Config holds configuration for the journal's BadgerDB instance.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required for persistent databases.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	// Default: true for production, false for testing.
	SyncWrites bool

	// Logger is the logger for BadgerDB operations.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger

	// TTL is the retention period per record. Zero uses DefaultTTL;
	// negative disables expiry.
	TTL time.Duration

	// GCInterval is how often to run value log garbage collection.
	// Default: 5 minutes. Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	// Default: 0.5 (GC when 50% of value log is garbage).
	GCDiscardRatio float64
}

// DefaultConfig returns sensible defaults for production use.
//
// Description:
//
//	Returns a Config with:
//	- SyncWrites enabled for durability
//	- 7-day record retention
//	- 5-minute GC interval
//	- 50% discard ratio threshold
//
// Outputs:
//
//	Config - Ready-to-use production configuration
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		TTL:            DefaultTTL,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration optimized for testing.
//
// Description:
//
//	Returns a Config with:
//	- InMemory mode enabled (no disk I/O)
//	- SyncWrites disabled (faster tests)
//	- GC disabled
//
// Outputs:
//
//	Config - Ready-to-use test configuration
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
		TTL:        DefaultTTL,
		GCInterval: 0, // disabled
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is the edit-session journal. Safe for concurrent use.
type Store struct {
	db     *badger.DB
	ttl    time.Duration
	stopGC chan struct{}
	doneGC chan struct{}
	logger *slog.Logger
}

// Open creates and opens the journal with the given configuration.
//
// Description:
//
//	Opens a BadgerDB database at the configured path, or in memory if
//	InMemory is true. Creates the directory if it doesn't exist, and
//	starts periodic value log GC when GCInterval is positive.
//
// Inputs:
//
//	cfg - Journal configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*Store - The opened journal. Caller must call Close() when done.
//	error - Non-nil if path is invalid or the database cannot be opened.
//
// Thread Safety: The returned *Store is safe for concurrent use.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent journal")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create journal directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil) // Disable BadgerDB's internal logging
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	s := &Store{
		db:     db,
		ttl:    ttl,
		logger: cfg.Logger,
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		ratio := cfg.GCDiscardRatio
		if ratio <= 0 || ratio > 1 {
			ratio = 0.5
		}
		s.stopGC = make(chan struct{})
		s.doneGC = make(chan struct{})
		go s.runGC(cfg.GCInterval, ratio)
	}

	return s, nil
}

// Put journals one completed session.
//
// Description:
//
//	Assigns an ID and start time when missing, then writes the record
//	and its ID index in one transaction. Both keys expire together
//	after the configured TTL.
//
// Inputs:
//
//	ctx - Context for cancellation (checked before the transaction).
//	rec - Record to journal. Mutated in place when ID/StartedAt are set.
//
// Outputs:
//
//	error - Non-nil if the record cannot be serialized or written.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) Put(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("record must not be nil")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal history record: %w", err)
	}
	key := recordKey(rec.StartedAt, rec.ID)

	return s.withTxn(ctx, func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, payload)
		index := badger.NewEntry(indexKey(rec.ID), key)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
			index = index.WithTTL(s.ttl)
		}
		if err := txn.SetEntry(entry); err != nil {
			return err
		}
		return txn.SetEntry(index)
	})
}

// Get looks up one session by ID.
//
// Outputs:
//
//	*Record - The journaled session.
//	error - ErrNotFound when the ID is unknown or expired.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	var rec *Record
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		primary, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		item, err = txn.Get(primary)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rec = &Record{}
			return json.Unmarshal(val, rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Recent returns up to limit sessions, newest first.
//
// Inputs:
//
//	ctx - Context for cancellation (checked before the transaction).
//	limit - Maximum records to return. Values < 1 use DefaultRecentLimit.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Record, error) {
	if limit < 1 {
		limit = DefaultRecentLimit
	}

	records := make([]*Record, 0, limit)
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(recordPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration must seek past the last key in the prefix range.
		seek := append([]byte(recordPrefix), 0xff)
		for it.Seek(seek); it.Valid() && len(records) < limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				rec := &Record{}
				if err := json.Unmarshal(val, rec); err != nil {
					return err
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Close stops garbage collection and closes the database.
//
// Thread Safety: Not safe to call concurrently with itself.
func (s *Store) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.doneGC
		s.stopGC = nil
	}
	return s.db.Close()
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.doneGC)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			// RunValueLogGC returns ErrNoRewrite when no GC was needed.
			err := s.db.RunValueLogGC(ratio)
			if err == nil {
				if s.logger != nil {
					s.logger.Debug("history value log GC completed")
				}
			} else if !errors.Is(err, badger.ErrNoRewrite) {
				if s.logger != nil {
					s.logger.Warn("history value log GC error", slog.String("error", err.Error()))
				}
			}
		}
	}
}

func (s *Store) withTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

func (s *Store) withReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	return fn(txn)
}

// recordKey orders records chronologically: zero-padded nanosecond
// timestamps sort lexicographically.
func recordKey(t time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", recordPrefix, t.UnixNano(), id))
}

func indexKey(id string) []byte {
	return []byte(indexPrefix + id)
}
