// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package redis provides a queue.Store on a Redis hash.
//
// All items of a namespace live in one hash (key "brainbox:retry_queue"),
// one field per message id, so Put, Get and Delete are single atomic
// commands and List is one HGETALL.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jeranaias/brainbox/internal/model"
	"github.com/jeranaias/brainbox/internal/queue"
)

var _ queue.Store = (*Store)(nil)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// Store is a Redis-backed queue.Store.
type Store struct {
	client *goredis.Client
	key    string
	owned  bool
}

// Open connects to Redis and verifies the connection with PING.
func Open(ctx context.Context, opts Options, ns queue.Namespace) (*Store, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis: missing addr")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.Timeout,
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}
	s := New(client, ns)
	s.owned = true
	return s, nil
}

// New wraps an existing client. Close does not close a client passed here.
func New(client *goredis.Client, ns queue.Namespace) *Store {
	return &Store{client: client, key: ns.WithDefaults().String()}
}

// Key returns the hash key holding the namespace.
func (s *Store) Key() string {
	return s.key
}

// Put implements queue.Store.
func (s *Store) Put(ctx context.Context, item *model.QueuedItem) error {
	if err := queue.ValidateItem(item); err != nil {
		return err
	}
	data, err := model.MarshalRecord(item)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.key, item.ID(), data).Err(); err != nil {
		return fmt.Errorf("redis: put %s: %w", item.ID(), err)
	}
	return nil
}

// Get implements queue.Store.
func (s *Store) Get(ctx context.Context, id string) (*model.QueuedItem, error) {
	data, err := s.client.HGet(ctx, s.key, id).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, queue.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get %s: %w", id, err)
	}
	return queue.Decode(id, data)
}

// Delete implements queue.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.HDel(ctx, s.key, id).Err(); err != nil {
		return fmt.Errorf("redis: delete %s: %w", id, err)
	}
	return nil
}

// List implements queue.Store.
func (s *Store) List(ctx context.Context) ([]*model.QueuedItem, error) {
	vals, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list: %w", err)
	}
	var l queue.Lister
	for id, raw := range vals {
		l.Add(id, []byte(raw))
	}
	return l.Result()
}

// Close implements queue.Store.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
