// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/brainbox/internal/backoff"
	"github.com/jeranaias/brainbox/internal/model"
	"github.com/jeranaias/brainbox/internal/queue"
	"github.com/jeranaias/brainbox/internal/replay"
)

// =============================================================================
// CONSTANTS AND ERRORS
// =============================================================================

const (
	// DefaultInterval is the time between background passes.
	DefaultInterval = 5 * time.Second

	// DefaultConcurrency is the number of due items replayed at once.
	DefaultConcurrency = 4
)

var (
	// ErrNotEligible is returned by Enqueue for roles the queue does not carry.
	ErrNotEligible = errors.New("message role is not eligible for retry")

	// ErrNoStore is returned by New without a queue store.
	ErrNoStore = errors.New("retry scheduler requires a queue store")

	// ErrNoReplayer is returned by New without a replayer.
	ErrNoReplayer = errors.New("retry scheduler requires a replayer")
)

// DefaultEligibleRoles are the roles queued when no policy is configured.
var DefaultEligibleRoles = []model.Role{model.RoleUser, model.RoleAssistant}

// =============================================================================
// STATE
// =============================================================================

// State is the lifecycle state of the background driver.
type State int

const (
	Stopped State = iota
	Running
)

// String returns the state name.
func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// =============================================================================
// SCHEDULER
// =============================================================================

// Replayer re-submits a queued message to the server.
type Replayer interface {
	Replay(ctx context.Context, msg *model.Message) replay.Result
}

// Options configures a Scheduler. Store and Replayer are required.
type Options struct {
	Store         queue.Store
	Replayer      Replayer
	Strategy      backoff.Strategy
	Interval      time.Duration
	Concurrency   int
	EligibleRoles []model.Role
	Clock         func() time.Time
	Logger        *zap.Logger
	Metrics       *Metrics
}

// Scheduler replays queued messages until the server stores them. It owns
// its timer; construct one per process and share it.
type Scheduler struct {
	store       queue.Store
	replayer    Replayer
	strategy    backoff.Strategy
	interval    time.Duration
	concurrency int
	eligible    map[model.Role]bool
	now         func() time.Time
	log         *zap.Logger
	metrics     *Metrics

	mu      sync.Mutex // guards running, stopCh, done
	running bool
	stopCh  chan struct{}
	done    chan struct{}

	tickMu     sync.Mutex
	locks      *keyLock
	enqueueSeq atomic.Uint64
	reported   sync.Map // ids of undecodable records already logged
}

// New creates a stopped scheduler.
func New(opts Options) (*Scheduler, error) {
	if opts.Store == nil {
		return nil, ErrNoStore
	}
	if opts.Replayer == nil {
		return nil, ErrNoReplayer
	}
	if opts.Strategy == nil {
		opts.Strategy = backoff.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if len(opts.EligibleRoles) == 0 {
		opts.EligibleRoles = DefaultEligibleRoles
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}

	eligible := make(map[model.Role]bool, len(opts.EligibleRoles))
	for _, r := range opts.EligibleRoles {
		eligible[r] = true
	}

	return &Scheduler{
		store:       opts.Store,
		replayer:    opts.Replayer,
		strategy:    opts.Strategy,
		interval:    opts.Interval,
		concurrency: opts.Concurrency,
		eligible:    eligible,
		now:         opts.Clock,
		log:         opts.Logger,
		metrics:     opts.Metrics,
		locks:       newKeyLock(),
	}, nil
}

// Store returns the queue store the scheduler drains.
func (s *Scheduler) Store() queue.Store {
	return s.store
}

// Eligible reports whether messages with role r may be queued.
func (s *Scheduler) Eligible(r model.Role) bool {
	return s.eligible[r]
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// State returns Running while the background driver is active.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return Running
	}
	return Stopped
}

// Start begins periodic ticks. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	prev := s.done
	s.running = true
	s.stopCh = stop
	s.done = done

	go s.loop(stop, done, prev)
	s.log.Debug("retry scheduler started", zap.Duration("interval", s.interval))
}

// Stop cancels future ticks. A tick already in progress runs to completion;
// use Wait to block until it has. Calling Stop on a stopped scheduler is a
// no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	s.log.Debug("retry scheduler stopped")
}

// stopIfIdle stops the driver unless an enqueue happened after seq was read.
func (s *Scheduler) stopIfIdle(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enqueueSeq.Load() != seq {
		return false
	}
	s.stopLocked()
	return true
}

// Wait blocks until every driver goroutine started so far has exited.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Resume starts the driver when the store already holds items, so work
// queued by an earlier process is picked up after a restart.
func (s *Scheduler) Resume(ctx context.Context) (int, error) {
	items, _, err := s.list(ctx)
	if err != nil {
		return 0, fmt.Errorf("resume: %w", err)
	}
	s.metrics.Depth.Set(float64(len(items)))
	if len(items) > 0 {
		s.log.Info("resuming retry queue", zap.Int("items", len(items)))
		s.Start()
	}
	return len(items), nil
}

// list returns the decodable items and the number of records skipped. A
// skipped record is counted as a storage error and logged once; it stays in
// the store until dropped.
func (s *Scheduler) list(ctx context.Context) ([]*model.QueuedItem, int, error) {
	items, err := s.store.List(ctx)
	var lerr *queue.ListError
	if errors.As(err, &lerr) {
		for _, rec := range lerr.Records {
			s.metrics.StorageErrors.Inc()
			if _, seen := s.reported.LoadOrStore(rec.ID, struct{}{}); !seen {
				s.log.Error("skipping undecodable queue record", zap.String("id", rec.ID), zap.Error(rec.Err))
			}
		}
		return items, len(lerr.Records), nil
	}
	if err != nil {
		s.metrics.StorageErrors.Inc()
		return nil, 0, err
	}
	return items, 0, nil
}

func (s *Scheduler) loop(stop, done, prev chan struct{}) {
	defer func() {
		if prev != nil {
			<-prev
		}
		close(done)
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		// Stop may have won the race with the ticker.
		select {
		case <-stop:
			return
		default:
		}

		// The tick is not tied to stop: an in-flight pass always finishes.
		if _, err := s.Tick(context.Background()); err != nil {
			s.log.Warn("retry tick failed", zap.Error(err))
		}
	}
}

// =============================================================================
// ENQUEUE
// =============================================================================

// EnqueueOption adjusts the retry metadata of an enqueued item.
type EnqueueOption func(*enqueueConfig)

type enqueueConfig struct {
	retries     int
	nextAttempt time.Time
}

// WithRetries sets the starting retry count.
func WithRetries(n int) EnqueueOption {
	return func(c *enqueueConfig) { c.retries = n }
}

// WithNextAttempt sets the earliest replay time.
func WithNextAttempt(t time.Time) EnqueueOption {
	return func(c *enqueueConfig) { c.nextAttempt = t }
}

// Enqueue writes msg to the durable queue, replacing any item with the same
// id, and makes sure the driver is running. Storage errors are returned.
//
// If a tick is replaying the same id, Enqueue waits for that attempt to
// finish and be written back. The wait is bounded by the replayer: with
// replay.Client that is the rate limiter wait plus the request timeout
// (replay.DefaultTimeout unless configured). When ctx ends first, Enqueue
// returns ctx.Err() and nothing is written.
func (s *Scheduler) Enqueue(ctx context.Context, msg *model.Message, opts ...EnqueueOption) error {
	if msg == nil {
		return fmt.Errorf("enqueue: %w", model.ErrMissingID)
	}
	m := msg.Clone()
	m.Normalize(s.now())
	if err := m.Validate(); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	if !s.eligible[m.Role] {
		return fmt.Errorf("enqueue %s: %w: %s", m.ID, ErrNotEligible, m.Role)
	}

	cfg := enqueueConfig{nextAttempt: s.now()}
	for _, opt := range opts {
		opt(&cfg)
	}
	item := model.NewQueuedItem(*m, cfg.retries, cfg.nextAttempt)

	unlock, err := s.locks.LockContext(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", m.ID, err)
	}
	err = s.store.Put(ctx, item)
	unlock()
	if err != nil {
		s.metrics.StorageErrors.Inc()
		return fmt.Errorf("enqueue %s: %w", m.ID, err)
	}

	s.enqueueSeq.Add(1)
	s.metrics.Enqueued.Inc()
	s.log.Info("message queued for retry",
		zap.String("id", m.ID),
		zap.String("chat_id", m.ChatID),
		zap.Int("retries", item.Retries),
	)

	s.Start()
	return nil
}

// Drop removes an item without replaying it.
func (s *Scheduler) Drop(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	if err := s.store.Delete(ctx, id); err != nil {
		s.metrics.StorageErrors.Inc()
		return fmt.Errorf("drop %s: %w", id, err)
	}
	s.reported.Delete(id)
	return nil
}
