// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package persist saves chat messages to the server and falls back to the
// retry queue when the save fails.
package persist

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jeranaias/brainbox/internal/model"
	"github.com/jeranaias/brainbox/internal/replay"
	"github.com/jeranaias/brainbox/internal/retry"
)

// Remote performs the immediate save.
type Remote interface {
	Persist(ctx context.Context, msg *model.Message) error
}

// Queue accepts messages whose save failed.
type Queue interface {
	Enqueue(ctx context.Context, msg *model.Message, opts ...retry.EnqueueOption) error
	Eligible(role model.Role) bool
}

// ErrChatGone is returned by Save when the chat was deleted server-side.
var ErrChatGone = replay.ErrChatGone

// Sender is the producer side of the retry queue.
type Sender struct {
	remote Remote
	queue  Queue
	log    *zap.Logger
}

// NewSender creates a Sender. A nil logger discards output.
func NewSender(remote Remote, queue Queue, log *zap.Logger) *Sender {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sender{remote: remote, queue: queue, log: log}
}

// Save persists msg. When the server cannot be reached or refuses the save,
// the message is queued for retry and queued is true. A deleted chat is
// reported as ErrChatGone and nothing is queued. If queueing fails too, the
// storage error is returned.
func (s *Sender) Save(ctx context.Context, msg *model.Message) (queued bool, err error) {
	if err := msg.Validate(); err != nil {
		return false, fmt.Errorf("save: %w", err)
	}

	perr := s.remote.Persist(ctx, msg)
	if perr == nil {
		return false, nil
	}
	if errors.Is(perr, replay.ErrChatGone) {
		s.log.Info("chat deleted before message was saved",
			zap.String("id", msg.ID),
			zap.String("chat_id", msg.ChatID),
		)
		return false, perr
	}
	if !s.queue.Eligible(msg.Role) {
		return false, fmt.Errorf("save %s: %w", msg.ID, perr)
	}

	if qerr := s.queue.Enqueue(ctx, msg); qerr != nil {
		s.log.Error("message lost: save and enqueue both failed",
			zap.String("id", msg.ID),
			zap.String("chat_id", msg.ChatID),
			zap.NamedError("persist_error", perr),
			zap.Error(qerr),
		)
		return false, fmt.Errorf("save %s failed (%v), enqueue: %w", msg.ID, perr, qerr)
	}

	s.log.Warn("save failed, message queued for retry",
		zap.String("id", msg.ID),
		zap.String("chat_id", msg.ChatID),
		zap.String("role", msg.Role.String()),
		zap.Error(perr),
	)
	return true, nil
}

// SaveAll saves the messages of one exchange in order (typically the user
// prompt then the assistant answer). It stops at the first error and
// reports how many were queued.
func (s *Sender) SaveAll(ctx context.Context, msgs ...*model.Message) (queued int, err error) {
	for _, m := range msgs {
		q, err := s.Save(ctx, m)
		if err != nil {
			return queued, err
		}
		if q {
			queued++
		}
	}
	return queued, nil
}
