// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package file provides a queue.Store that keeps one JSON file per item.
//
// Files live in <dir>/<db>/<store>/ and are replaced atomically (write to a
// temp file, fsync, rename), so a crash leaves either the old or the new
// record on disk, never a torn one.
package file

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jeranaias/brainbox/internal/model"
	"github.com/jeranaias/brainbox/internal/queue"
	"github.com/jeranaias/brainbox/internal/util"
)

const recordExt = ".json"

var _ queue.Store = (*Store)(nil)

// Store is a directory-backed queue.Store.
type Store struct {
	dir string

	// mu serializes writers inside this process; the rename keeps readers
	// in other processes consistent.
	mu     sync.RWMutex
	closed bool
}

// Open prepares the namespace directory below baseDir.
func Open(baseDir string, ns queue.Namespace) (*Store, error) {
	if baseDir == "" {
		return nil, errors.New("file: base directory is required")
	}
	ns = ns.WithDefaults()
	dir := filepath.Join(baseDir, ns.DB, ns.Store)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("file: create queue directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory holding the item files.
func (s *Store) Dir() string {
	return s.dir
}

// fileName encodes the id so any message id maps to a safe file name.
func fileName(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id)) + recordExt
}

// idFromFileName reverses fileName; ok is false for foreign files.
func idFromFileName(name string) (string, bool) {
	if util.IsTempFile(name) || !strings.HasSuffix(name, recordExt) || strings.HasPrefix(name, ".") {
		return "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(name, recordExt))
	if err != nil || len(raw) == 0 {
		return "", false
	}
	return string(raw), true
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, fileName(id))
}

// Put implements queue.Store.
func (s *Store) Put(_ context.Context, item *model.QueuedItem) error {
	if err := queue.ValidateItem(item); err != nil {
		return err
	}
	data, err := model.MarshalRecord(item)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return queue.ErrStoreClosed
	}
	if err := util.AtomicWriteFile(s.path(item.ID()), data, 0600); err != nil {
		return fmt.Errorf("file: put %s: %w", item.ID(), err)
	}
	return nil
}

// Get implements queue.Store.
func (s *Store) Get(_ context.Context, id string) (*model.QueuedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, queue.ErrStoreClosed
	}
	data, err := s.readRaw(id)
	if err != nil {
		return nil, err
	}
	return queue.Decode(id, data)
}

func (s *Store) readRaw(id string) ([]byte, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, queue.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("file: read %s: %w", id, err)
	}
	return data, nil
}

// Delete implements queue.Store.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return queue.ErrStoreClosed
	}
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("file: delete %s: %w", id, err)
	}
	return nil
}

// List implements queue.Store.
func (s *Store) List(_ context.Context) ([]*model.QueuedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, queue.ErrStoreClosed
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("file: list: %w", err)
	}
	var l queue.Lister
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, ok := idFromFileName(entry.Name())
		if !ok {
			continue
		}
		data, err := s.readRaw(id)
		if errors.Is(err, queue.ErrNotFound) {
			continue // removed between ReadDir and ReadFile
		}
		if err != nil {
			return nil, err
		}
		l.Add(id, data)
	}
	return l.Result()
}

// Close implements queue.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
