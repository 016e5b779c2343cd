// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sqlite provides the default durable queue.Store on top of the
// pure Go SQLite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/brainbox/internal/model"
	"github.com/jeranaias/brainbox/internal/queue"
)

var _ queue.Store = (*Store)(nil)

// ErrSchemaTooNew is returned when the database was created by a newer build.
var ErrSchemaTooNew = errors.New("queue database schema is newer than this build")

// Store is a queue.Store backed by a single SQLite file.
type Store struct {
	db   *sql.DB
	ns   string
	path string

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the database at path and prepares the schema.
// Use ":memory:" for a throwaway database.
func Open(path string, ns queue.Namespace) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite: database path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL", // queue writes must survive power loss
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{db: db, ns: ns.WithDefaults().String(), path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return err
	}
	if _, err := s.db.Exec(InitMetadata); err != nil {
		return err
	}

	var raw string
	if err := s.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&raw); err != nil {
		return err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("bad schema_version %q: %w", raw, err)
	}
	if v > SchemaVersion {
		return fmt.Errorf("%w: %d > %d", ErrSchemaTooNew, v, SchemaVersion)
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return queue.ErrStoreClosed
	}
	return nil
}

// Put implements queue.Store.
func (s *Store) Put(ctx context.Context, item *model.QueuedItem) error {
	if err := queue.ValidateItem(item); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}
	data, err := model.MarshalRecord(item)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO queue_items (namespace, id, record, retries, next_attempt, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(namespace, id) DO UPDATE SET
  record = excluded.record,
  retries = excluded.retries,
  next_attempt = excluded.next_attempt,
  updated_at = excluded.updated_at
`, s.ns, item.ID(), data, item.Retries, item.NextAttempt, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("sqlite: put %s: %w", item.ID(), err)
	}
	return nil
}

// Get implements queue.Store.
func (s *Store) Get(ctx context.Context, id string) (*model.QueuedItem, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM queue_items WHERE namespace = ? AND id = ?`, s.ns, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, queue.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %s: %w", id, err)
	}
	return queue.Decode(id, data)
}

// Delete implements queue.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM queue_items WHERE namespace = ? AND id = ?`, s.ns, id); err != nil {
		return fmt.Errorf("sqlite: delete %s: %w", id, err)
	}
	return nil
}

// List implements queue.Store.
func (s *Store) List(ctx context.Context) ([]*model.QueuedItem, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, record FROM queue_items WHERE namespace = ? ORDER BY next_attempt`, s.ns)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	defer rows.Close()

	var l queue.Lister
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("sqlite: list: %w", err)
		}
		l.Add(id, data)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	return l.Result()
}

// Close implements queue.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
