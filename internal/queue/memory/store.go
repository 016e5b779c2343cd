// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package memory provides a volatile queue.Store for tests and ephemeral runs.
package memory

import (
	"context"
	"sync"

	"github.com/jeranaias/brainbox/internal/model"
	"github.com/jeranaias/brainbox/internal/queue"
)

var _ queue.Store = (*Store)(nil)

// Store keeps encoded records in a map so callers never share item memory
// with the store.
type Store struct {
	mu      sync.RWMutex
	records map[string][]byte
	closed  bool
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{records: make(map[string][]byte)}
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
	s.records[item.ID()] = data
	return nil
}

// Get implements queue.Store.
func (s *Store) Get(_ context.Context, id string) (*model.QueuedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, queue.ErrStoreClosed
	}
	data, ok := s.records[id]
	if !ok {
		return nil, queue.ErrNotFound
	}
	return queue.Decode(id, data)
}

// Delete implements queue.Store.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return queue.ErrStoreClosed
	}
	delete(s.records, id)
	return nil
}

// List implements queue.Store.
func (s *Store) List(_ context.Context) ([]*model.QueuedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, queue.ErrStoreClosed
	}
	var l queue.Lister
	for id, data := range s.records {
		l.Add(id, data)
	}
	return l.Result()
}

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close implements queue.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
