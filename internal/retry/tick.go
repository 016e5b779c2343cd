// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/brainbox/internal/model"
	"github.com/jeranaias/brainbox/internal/queue"
	"github.com/jeranaias/brainbox/internal/replay"
)

// =============================================================================
// TICK REPORT
// =============================================================================

// Report summarizes one pass over the queue.
type Report struct {
	Scanned   int  `json:"scanned"`
	Due       int  `json:"due"`
	Delivered int  `json:"delivered"`
	Gone      int  `json:"gone"`
	Failed    int  `json:"failed"`
	Skipped   int  `json:"skipped"`
	Errors    int  `json:"errors"`
	Corrupt   int  `json:"corrupt"`
	Stopped   bool `json:"stopped"`
}

// itemResult is what happened to a single due item.
type itemResult int

const (
	itemSkipped itemResult = iota
	itemDelivered
	itemGone
	itemFailed
	itemError
)

func (r *Report) add(res itemResult) {
	switch res {
	case itemDelivered:
		r.Delivered++
	case itemGone:
		r.Gone++
	case itemFailed:
		r.Failed++
	case itemError:
		r.Errors++
	default:
		r.Skipped++
	}
}

// =============================================================================
// TICK
// =============================================================================

// Tick makes one pass over the queue: every due item gets one replay
// attempt. An empty queue stops the background driver. Only a failure to
// list the queue is returned; per-item problems, undecodable records
// included, are logged and counted.
func (s *Scheduler) Tick(ctx context.Context) (Report, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.metrics.Ticks.Inc()
	seq := s.enqueueSeq.Load()

	items, corrupt, err := s.list(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list queue: %w", err)
	}
	s.metrics.Depth.Set(float64(len(items)))

	rep := Report{Scanned: len(items), Corrupt: corrupt}
	if len(items) == 0 {
		rep.Stopped = s.stopIfIdle(seq)
		return rep, nil
	}

	now := s.now()
	due := make([]string, 0, len(items))
	for _, it := range items {
		if it.Due(now) {
			due = append(due, it.ID())
		}
	}
	rep.Due = len(due)
	if len(due) == 0 {
		return rep, nil
	}

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(s.concurrency)
	for _, id := range due {
		g.Go(func() error {
			res := s.process(ctx, id)
			mu.Lock()
			rep.add(res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.log.Debug("retry tick complete",
		zap.Int("scanned", rep.Scanned),
		zap.Int("due", rep.Due),
		zap.Int("delivered", rep.Delivered),
		zap.Int("gone", rep.Gone),
		zap.Int("failed", rep.Failed),
	)
	return rep, nil
}

// process replays one item while holding its id lock, so an Enqueue for the
// same id lands either before the re-read or after the outcome is written.
func (s *Scheduler) process(ctx context.Context, id string) itemResult {
	unlock := s.locks.Lock(id)
	defer unlock()

	item, err := s.store.Get(ctx, id)
	if errors.Is(err, queue.ErrNotFound) {
		return itemSkipped
	}
	if err != nil {
		s.metrics.StorageErrors.Inc()
		s.log.Warn("retry read failed", zap.String("id", id), zap.Error(err))
		return itemError
	}
	if !item.Due(s.now()) {
		return itemSkipped
	}

	res := s.replay(ctx, &item.Message)
	s.metrics.ReplayLatency.Observe(res.Duration.Seconds())

	if res.Outcome.Terminal() {
		if err := s.store.Delete(ctx, id); err != nil {
			s.metrics.StorageErrors.Inc()
			s.log.Warn("retry delete failed",
				zap.String("id", id),
				zap.String("outcome", res.Outcome.String()),
				zap.Error(err),
			)
			return itemError
		}
		if res.Outcome == replay.Gone {
			s.metrics.Gone.Inc()
			s.log.Info("dropped message for deleted chat",
				zap.String("id", id),
				zap.String("chat_id", item.Message.ChatID),
				zap.String("code", res.Code),
			)
			return itemGone
		}
		s.metrics.Delivered.Inc()
		s.log.Info("queued message delivered",
			zap.String("id", id),
			zap.String("chat_id", item.Message.ChatID),
			zap.Int("retries", item.Retries),
		)
		return itemDelivered
	}

	return s.reschedule(ctx, item, res)
}

// reschedule applies the backoff after a failed attempt. NextAttempt never
// moves backwards.
func (s *Scheduler) reschedule(ctx context.Context, item *model.QueuedItem, res replay.Result) itemResult {
	delay := s.strategy.Delay(item.Retries)
	next := s.now().Add(delay).UnixMilli()
	if next < item.NextAttempt {
		next = item.NextAttempt
	}
	item.Retries++
	item.NextAttempt = next

	s.metrics.Failed.Inc()
	if err := s.store.Put(ctx, item); err != nil {
		s.metrics.StorageErrors.Inc()
		s.log.Warn("retry reschedule failed", zap.String("id", item.ID()), zap.Error(err))
		return itemError
	}

	fields := []zap.Field{
		zap.String("id", item.ID()),
		zap.String("chat_id", item.Message.ChatID),
		zap.Int("retries", item.Retries),
		zap.Time("next_attempt", item.NextAttemptTime()),
		zap.Duration("backoff", delay),
		zap.Int("status", res.Status),
		zap.Error(res.Err),
	}
	if item.Retries == 1 || item.Retries%10 == 0 {
		s.log.Warn("replay failed, rescheduled", fields...)
	} else {
		s.log.Debug("replay failed, rescheduled", fields...)
	}
	return itemFailed
}

// replay calls the replayer and turns a panic into a failed attempt.
func (s *Scheduler) replay(ctx context.Context, msg *model.Message) (res replay.Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("replay panicked", zap.String("id", msg.ID), zap.Any("panic", r))
			res = replay.Result{
				Outcome:  replay.Failed,
				Err:      fmt.Errorf("replay panic: %v", r),
				Duration: time.Since(start),
			}
		}
	}()
	res = s.replayer.Replay(ctx, msg)
	if res.Duration == 0 {
		res.Duration = time.Since(start)
	}
	return res
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot describes the queue at a point in time.
type Snapshot struct {
	State      string              `json:"state"`
	Total      int                 `json:"total"`
	Due        int                 `json:"due"`
	MaxRetries int                 `json:"max_retries"`
	Corrupt    int                 `json:"corrupt"`
	NextDue    *time.Time          `json:"next_due,omitempty"`
	Items      []*model.QueuedItem `json:"-"`
}

// Snapshot lists the queue and summarizes it.
func (s *Scheduler) Snapshot(ctx context.Context) (Snapshot, error) {
	items, corrupt, err := s.list(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}

	now := s.now()
	snap := Snapshot{State: s.State().String(), Total: len(items), Corrupt: corrupt, Items: items}
	for _, it := range items {
		if it.Retries > snap.MaxRetries {
			snap.MaxRetries = it.Retries
		}
		if it.Due(now) {
			snap.Due++
			continue
		}
		if t := it.NextAttemptTime(); snap.NextDue == nil || t.Before(*snap.NextDue) {
			snap.NextDue = &t
		}
	}
	return snap, nil
}
