// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package queuetest holds the behaviour every queue.Store backend must share.
package queuetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/brainbox/internal/model"
	"github.com/jeranaias/brainbox/internal/queue"
)

// Factory opens a fresh, empty store for one subtest.
type Factory func(t *testing.T) queue.Store

// Item builds a queued item with a text part.
func Item(id string, retries int, nextAttempt int64) *model.QueuedItem {
	return &model.QueuedItem{
		Message: model.Message{
			ID:        id,
			ChatID:    "chat-" + id,
			Role:      model.RoleAssistant,
			Parts:     json.RawMessage(`[{"type":"text","text":"payload ` + id + `"}]`),
			CreatedAt: "2025-06-01T12:00:00Z",
		},
		Retries:     retries,
		NextAttempt: nextAttempt,
	}
}

// RawWriter stores data under id without encoding it, bypassing Put.
type RawWriter func(t *testing.T, s queue.Store, id string, data []byte)

// Run exercises the Store contract against a backend.
func Run(t *testing.T, open Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGet", func(t *testing.T) {
		s := open(t)
		want := Item("a", 2, 1000)
		require.NoError(t, s.Put(ctx, want))

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, want.ID(), got.ID())
		assert.Equal(t, want.Retries, got.Retries)
		assert.Equal(t, want.NextAttempt, got.NextAttempt)
		assert.Equal(t, want.Message.ChatID, got.Message.ChatID)
		assert.Equal(t, want.Message.Role, got.Message.Role)
		assert.JSONEq(t, string(want.Message.Parts), string(got.Message.Parts))
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := open(t)
		_, err := s.Get(ctx, "nope")
		assert.ErrorIs(t, err, queue.ErrNotFound)
	})

	t.Run("PutOverwrites", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Put(ctx, Item("a", 0, 1)))
		require.NoError(t, s.Put(ctx, Item("a", 5, 99)))

		items, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, 5, items[0].Retries)
		assert.Equal(t, int64(99), items[0].NextAttempt)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Put(ctx, Item("a", 0, 1)))
		require.NoError(t, s.Delete(ctx, "a"))
		require.NoError(t, s.Delete(ctx, "a"))
		require.NoError(t, s.Delete(ctx, "never-existed"))

		_, err := s.Get(ctx, "a")
		assert.ErrorIs(t, err, queue.ErrNotFound)
	})

	t.Run("ListAll", func(t *testing.T) {
		s := open(t)
		items, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, items)

		for i := 0; i < 5; i++ {
			require.NoError(t, s.Put(ctx, Item(fmt.Sprintf("m%d", i), i, int64(i))))
		}
		items, err = s.List(ctx)
		require.NoError(t, err)

		ids := make([]string, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.ID())
		}
		assert.ElementsMatch(t, []string{"m0", "m1", "m2", "m3", "m4"}, ids)
	})

	t.Run("RejectsEmptyID", func(t *testing.T) {
		s := open(t)
		err := s.Put(ctx, Item("", 0, 0))
		assert.ErrorIs(t, err, queue.ErrInvalidItem)
	})

	t.Run("ConcurrentPuts", func(t *testing.T) {
		s := open(t)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				assert.NoError(t, s.Put(ctx, Item(fmt.Sprintf("c%d", n%4), n, int64(n))))
			}(i)
		}
		wg.Wait()

		items, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, items, 4)
	})
}

// RunCorrupt checks that undecodable records never hide the valid ones.
func RunCorrupt(t *testing.T, open Factory, write RawWriter) {
	t.Helper()
	ctx := context.Background()

	t.Run("ListSkipsUndecodable", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Put(ctx, Item("good", 1, 10)))
		write(t, s, "truncated", []byte(`{not json`))
		write(t, s, "newer", []byte(`{"v":2,"item":{}}`))

		items, err := s.List(ctx)
		require.Len(t, items, 1)
		assert.Equal(t, "good", items[0].ID())

		var lerr *queue.ListError
		require.ErrorAs(t, err, &lerr)
		assert.ErrorIs(t, err, queue.ErrCorruptRecord)
		ids := make([]string, 0, len(lerr.Records))
		for _, r := range lerr.Records {
			ids = append(ids, r.ID)
		}
		assert.ElementsMatch(t, []string{"truncated", "newer"}, ids)
	})

	t.Run("GetAndDeleteUndecodable", func(t *testing.T) {
		s := open(t)
		write(t, s, "truncated", []byte(`{not json`))

		_, err := s.Get(ctx, "truncated")
		assert.ErrorIs(t, err, queue.ErrCorruptRecord)
		assert.NotErrorIs(t, err, queue.ErrNotFound)

		require.NoError(t, s.Delete(ctx, "truncated"))
		items, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}
