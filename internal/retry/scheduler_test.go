// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package retry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jeranaias/brainbox/internal/backoff"
	"github.com/jeranaias/brainbox/internal/model"
	"github.com/jeranaias/brainbox/internal/queue"
	"github.com/jeranaias/brainbox/internal/queue/memory"
	"github.com/jeranaias/brainbox/internal/replay"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var t0 = time.UnixMilli(1_700_000_000_000)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeReplayer struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(msg *model.Message) replay.Result
}

func newReplayer(fn func(msg *model.Message) replay.Result) *fakeReplayer {
	return &fakeReplayer{calls: make(map[string]int), fn: fn}
}

func always(o replay.Outcome) *fakeReplayer {
	return newReplayer(func(*model.Message) replay.Result {
		res := replay.Result{Outcome: o}
		if o == replay.Failed {
			res.Err = errors.New("server unavailable")
		}
		return res
	})
}

func (f *fakeReplayer) Replay(_ context.Context, msg *model.Message) replay.Result {
	f.mu.Lock()
	f.calls[msg.ID]++
	fn := f.fn
	f.mu.Unlock()
	return fn(msg)
}

func (f *fakeReplayer) Calls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

// flakyStore injects storage errors in front of a real store.
type flakyStore struct {
	queue.Store
	mu      sync.Mutex
	putErr  error
	getErr  map[string]error
	listErr error
	corrupt []string // ids List reports as undecodable
}

func (f *flakyStore) Put(ctx context.Context, item *model.QueuedItem) error {
	f.mu.Lock()
	err := f.putErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.Put(ctx, item)
}

func (f *flakyStore) Get(ctx context.Context, id string) (*model.QueuedItem, error) {
	f.mu.Lock()
	err := f.getErr[id]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, id)
}

func (f *flakyStore) List(ctx context.Context) ([]*model.QueuedItem, error) {
	f.mu.Lock()
	err := f.listErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	items, err := f.Store.List(ctx)
	if err != nil || len(f.corrupt) == 0 {
		return items, err
	}
	lerr := &queue.ListError{}
	for _, id := range f.corrupt {
		lerr.Records = append(lerr.Records, &queue.RecordError{ID: id, Err: errors.New("unexpected end of JSON input")})
	}
	return items, lerr
}

func testMsg(id string) *model.Message {
	return &model.Message{
		ID:        id,
		ChatID:    "chat-1",
		Role:      model.RoleUser,
		Parts:     json.RawMessage(`[{"type":"text","text":"hi"}]`),
		CreatedAt: "2025-06-01T12:00:00Z",
	}
}

// newTestScheduler builds a scheduler on a memory store and a fake clock.
// The background interval is long so only explicit Tick calls do work.
func newTestScheduler(t *testing.T, rp Replayer, mutate ...func(*Options)) (*Scheduler, queue.Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: t0}
	opts := Options{
		Store:    memory.New(),
		Replayer: rp,
		Interval: time.Hour,
		Clock:    clock.Now,
	}
	for _, m := range mutate {
		m(&opts)
	}
	s, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Stop()
		s.Wait()
	})
	return s, opts.Store, clock
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenario_AlwaysFailingBacksOffToCap(t *testing.T) {
	ctx := context.Background()
	rp := always(replay.Failed)
	s, store, clock := newTestScheduler(t, rp)

	require.NoError(t, s.Enqueue(ctx, testMsg("a"), WithNextAttempt(t0)))

	rep, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)

	item, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, item.Retries)
	assert.Equal(t, t0.UnixMilli()+1000, item.NextAttempt)

	clock.Set(item.NextAttemptTime())
	_, err = s.Tick(ctx)
	require.NoError(t, err)

	prev := item.NextAttempt
	item, err = store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, item.Retries)
	assert.Equal(t, prev+2000, item.NextAttempt)

	for retries := 2; retries < 15; retries++ {
		clock.Set(item.NextAttemptTime())
		_, err = s.Tick(ctx)
		require.NoError(t, err)

		prev = item.NextAttempt
		item, err = store.Get(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, retries+1, item.Retries)

		want := int64(1000) << retries
		if want > 3_600_000 {
			want = 3_600_000
		}
		require.Equal(t, want, item.NextAttempt-prev, "retries=%d", retries)
	}
	assert.Equal(t, 15, rp.Calls("a"))
}

func TestScenario_SuccessRemovesAfterOneTick(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newTestScheduler(t, always(replay.Delivered))

	require.NoError(t, s.Enqueue(ctx, testMsg("b")))
	rep, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Delivered)

	_, err = store.Get(ctx, "b")
	assert.ErrorIs(t, err, queue.ErrNotFound)
}

func TestScenario_EmptyTickStops(t *testing.T) {
	ctx := context.Background()
	rp := always(replay.Delivered)
	s, _, _ := newTestScheduler(t, rp)

	s.Start()
	require.Equal(t, Running, s.State())

	rep, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.True(t, rep.Stopped)
	assert.Equal(t, Stopped, s.State())

	s.Wait()
	assert.Equal(t, Stopped, s.State())

	require.NoError(t, s.Enqueue(ctx, testMsg("c")))
	assert.Equal(t, Running, s.State())
}

// =============================================================================
// ENQUEUE
// =============================================================================

func TestEnqueue_IdempotentOverwrite(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newTestScheduler(t, always(replay.Failed))

	require.NoError(t, s.Enqueue(ctx, testMsg("a"), WithRetries(3)))
	require.NoError(t, s.Enqueue(ctx, testMsg("a")))

	items, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 0, items[0].Retries)
	assert.Equal(t, t0.UnixMilli(), items[0].NextAttempt)
}

func TestEnqueue_StorageErrorIsReturned(t *testing.T) {
	boom := errors.New("disk full")
	flaky := &flakyStore{Store: memory.New(), putErr: boom}
	s, _, _ := newTestScheduler(t, always(replay.Delivered), func(o *Options) { o.Store = flaky })

	err := s.Enqueue(context.Background(), testMsg("a"))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Stopped, s.State())
}

func TestEnqueue_Rejects(t *testing.T) {
	s, store, _ := newTestScheduler(t, always(replay.Delivered))
	ctx := context.Background()

	sys := testMsg("sys")
	sys.Role = model.RoleSystem
	assert.ErrorIs(t, s.Enqueue(ctx, sys), ErrNotEligible)

	noChat := testMsg("x")
	noChat.ChatID = ""
	assert.ErrorIs(t, s.Enqueue(ctx, noChat), model.ErrMissingChatID)

	assert.ErrorIs(t, s.Enqueue(ctx, nil), model.ErrMissingID)

	items, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, Stopped, s.State())
}

func TestEnqueue_CustomEligibleRoles(t *testing.T) {
	s, _, _ := newTestScheduler(t, always(replay.Delivered), func(o *Options) {
		o.EligibleRoles = []model.Role{model.RoleAssistant}
	})

	assert.ErrorIs(t, s.Enqueue(context.Background(), testMsg("u")), ErrNotEligible)

	ai := testMsg("ai")
	ai.Role = model.RoleAssistant
	assert.NoError(t, s.Enqueue(context.Background(), ai))
	assert.True(t, s.Eligible(model.RoleAssistant))
	assert.False(t, s.Eligible(model.RoleUser))
}

func TestEnqueue_FillsCreatedAt(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newTestScheduler(t, always(replay.Failed))

	msg := testMsg("a")
	msg.CreatedAt = ""
	require.NoError(t, s.Enqueue(ctx, msg))
	assert.Empty(t, msg.CreatedAt, "caller's message must not be modified")

	item, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, t0.UTC().Format(time.RFC3339Nano), item.Message.CreatedAt)
}

// =============================================================================
// TICK
// =============================================================================

func TestTick_SkipsItemsNotDue(t *testing.T) {
	ctx := context.Background()
	rp := always(replay.Delivered)
	s, store, _ := newTestScheduler(t, rp)

	require.NoError(t, s.Enqueue(ctx, testMsg("later"), WithNextAttempt(t0.Add(time.Minute)), WithRetries(2)))
	require.NoError(t, s.Enqueue(ctx, testMsg("now")))

	rep, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Scanned)
	assert.Equal(t, 1, rep.Due)
	assert.Equal(t, 1, rep.Delivered)
	assert.Zero(t, rp.Calls("later"))

	item, err := store.Get(ctx, "later")
	require.NoError(t, err)
	assert.Equal(t, 2, item.Retries)
	assert.Equal(t, t0.Add(time.Minute).UnixMilli(), item.NextAttempt)
}

func TestTick_ChatGoneRemovesItem(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newTestScheduler(t, always(replay.Gone))

	require.NoError(t, s.Enqueue(ctx, testMsg("orphan")))
	rep, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Gone)

	_, err = store.Get(ctx, "orphan")
	assert.ErrorIs(t, err, queue.ErrNotFound)
}

func TestTick_WrongRouteKeepsItemQueued(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)

	client, err := replay.NewClient(server.URL+"/wrong-prefix", replay.WithRateLimit(0, 0))
	require.NoError(t, err)
	s, store, _ := newTestScheduler(t, client)

	require.NoError(t, s.Enqueue(ctx, testMsg("a")))
	rep, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.Zero(t, rep.Gone)

	item, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, item.Retries)
	assert.Equal(t, t0.Add(time.Second).UnixMilli(), item.NextAttempt)
}

func TestTick_NextAttemptNeverMovesBack(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: t0}
	rp := newReplayer(func(*model.Message) replay.Result {
		// Wall clock stepped back while the request was in flight.
		clock.Advance(-time.Hour)
		return replay.Result{Outcome: replay.Failed}
	})
	s, store, _ := newTestScheduler(t, rp, func(o *Options) {
		o.Clock = clock.Now
		o.Strategy = backoff.Constant{Interval: time.Second}
	})

	item := model.NewQueuedItem(*testMsg("a"), 5, t0)
	require.NoError(t, store.Put(ctx, item))

	_, err := s.Tick(ctx)
	require.NoError(t, err)

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 6, got.Retries)
	assert.Equal(t, t0.UnixMilli(), got.NextAttempt)
}

func TestTick_ListErrorIsReturned(t *testing.T) {
	boom := errors.New("database locked")
	flaky := &flakyStore{Store: memory.New(), listErr: boom}
	s, _, _ := newTestScheduler(t, always(replay.Delivered), func(o *Options) { o.Store = flaky })

	s.Start()
	_, err := s.Tick(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Running, s.State(), "a failed scan must not stop the driver")
}

func TestTick_ItemErrorDoesNotAffectOthers(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyStore{
		Store:  memory.New(),
		getErr: map[string]error{"bad": errors.New("corrupt record")},
	}
	rp := always(replay.Delivered)
	s, _, _ := newTestScheduler(t, rp, func(o *Options) { o.Store = flaky })

	require.NoError(t, s.Enqueue(ctx, testMsg("bad")))
	require.NoError(t, s.Enqueue(ctx, testMsg("good")))

	rep, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Errors)
	assert.Equal(t, 1, rep.Delivered)
	assert.Zero(t, rp.Calls("bad"))
	assert.Equal(t, 1, rp.Calls("good"))
}

func TestTick_UndecodableRecordDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.ErrorLevel)
	m := NewMetrics(prometheus.NewRegistry())
	flaky := &flakyStore{Store: memory.New(), corrupt: []string{"poison"}}
	rp := always(replay.Delivered)
	s, _, _ := newTestScheduler(t, rp, func(o *Options) {
		o.Store = flaky
		o.Logger = zap.New(core)
		o.Metrics = m
	})

	require.NoError(t, s.Enqueue(ctx, testMsg("good")))
	s.Stop()
	s.Wait()

	n, err := s.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, Running, s.State())

	rep, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Scanned)
	assert.Equal(t, 1, rep.Corrupt)
	assert.Equal(t, 1, rep.Delivered)
	assert.Equal(t, 1, rp.Calls("good"))

	rep, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Scanned)
	assert.Equal(t, 1, rep.Corrupt)
	assert.True(t, rep.Stopped)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Corrupt)
	assert.Nil(t, snap.NextDue)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.StorageErrors))
	assert.Equal(t, 1, logs.FilterMessage("skipping undecodable queue record").Len())
}

func TestTick_PanicIsFailedAttempt(t *testing.T) {
	ctx := context.Background()
	rp := newReplayer(func(*model.Message) replay.Result { panic("boom") })
	s, store, _ := newTestScheduler(t, rp)

	require.NoError(t, s.Enqueue(ctx, testMsg("a")))
	rep, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)

	item, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, item.Retries)
}

func TestTick_BoundedConcurrency(t *testing.T) {
	ctx := context.Background()
	var inFlight, peak atomic.Int32
	rp := newReplayer(func(*model.Message) replay.Result {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return replay.Result{Outcome: replay.Delivered}
	})
	s, store, _ := newTestScheduler(t, rp, func(o *Options) { o.Concurrency = 2 })

	for i := 0; i < 6; i++ {
		require.NoError(t, s.Enqueue(ctx, testMsg(fmt.Sprintf("m%d", i))))
	}

	rep, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, rep.Delivered)
	assert.LessOrEqual(t, peak.Load(), int32(2))

	items, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestTick_EnqueueWaitsForInFlightReplay(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	rp := newReplayer(func(*model.Message) replay.Result {
		close(started)
		<-release
		return replay.Result{Outcome: replay.Failed, Err: errors.New("timeout")}
	})
	s, store, _ := newTestScheduler(t, rp)
	require.NoError(t, s.Enqueue(ctx, testMsg("a")))

	tickDone := make(chan struct{})
	go func() {
		defer close(tickDone)
		_, _ = s.Tick(ctx)
	}()
	<-started

	enqueueDone := make(chan error, 1)
	go func() { enqueueDone <- s.Enqueue(ctx, testMsg("a")) }()

	select {
	case <-enqueueDone:
		t.Fatal("enqueue completed while the same id was being replayed")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-tickDone
	require.NoError(t, <-enqueueDone)

	// The enqueue landed after the failure was written and reset the item.
	item, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 0, item.Retries)
	assert.Zero(t, s.locks.Len())
}

func TestEnqueue_GivesUpWhileIdIsReplaying(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	rp := newReplayer(func(*model.Message) replay.Result {
		close(started)
		<-release
		return replay.Result{Outcome: replay.Failed, Err: errors.New("timeout")}
	})
	s, store, _ := newTestScheduler(t, rp)
	require.NoError(t, s.Enqueue(ctx, testMsg("a")))

	tickDone := make(chan struct{})
	go func() {
		defer close(tickDone)
		_, _ = s.Tick(ctx)
	}()
	<-started

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := s.Enqueue(short, testMsg("a"), WithRetries(9))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	<-tickDone

	item, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, item.Retries)
	assert.Zero(t, s.locks.Len())
}

func TestStopIfIdle_RespectsLaterEnqueue(t *testing.T) {
	s, _, _ := newTestScheduler(t, always(replay.Failed))

	seq := s.enqueueSeq.Load()
	require.NoError(t, s.Enqueue(context.Background(), testMsg("a")))
	assert.False(t, s.stopIfIdle(seq))
	assert.Equal(t, Running, s.State())

	assert.True(t, s.stopIfIdle(s.enqueueSeq.Load()))
	assert.Equal(t, Stopped, s.State())
}

// =============================================================================
// BACKGROUND DRIVER
// =============================================================================

func TestDriver_DrainsAndStopsItself(t *testing.T) {
	rp := always(replay.Delivered)
	s, err := New(Options{Store: memory.New(), Replayer: rp, Interval: 10 * time.Millisecond})
	require.NoError(t, err)
	defer s.Wait()

	require.NoError(t, s.Enqueue(context.Background(), testMsg("a")))
	require.NoError(t, s.Enqueue(context.Background(), testMsg("b")))

	require.Eventually(t, func() bool {
		return s.State() == Stopped
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, rp.Calls("a"))
	assert.Equal(t, 1, rp.Calls("b"))
}

func TestDriver_StopLetsInFlightTickFinish(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	rp := newReplayer(func(*model.Message) replay.Result {
		once.Do(func() { close(started) })
		<-release
		return replay.Result{Outcome: replay.Delivered}
	})
	store := memory.New()
	s, err := New(Options{Store: store, Replayer: rp, Interval: 10 * time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, s.Enqueue(context.Background(), testMsg("a")))
	<-started

	s.Stop()
	s.Stop()
	assert.Equal(t, Stopped, s.State())

	close(release)
	s.Wait()
	assert.Zero(t, store.Len())
	assert.Equal(t, 1, rp.Calls("a"))
}

func TestStartStop_Idempotent(t *testing.T) {
	s, _, _ := newTestScheduler(t, always(replay.Delivered))

	s.Stop()
	assert.Equal(t, Stopped, s.State())
	s.Start()
	s.Start()
	assert.Equal(t, Running, s.State())
	s.Stop()
	s.Wait()
	assert.Equal(t, Stopped, s.State())
}

func TestResume(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newTestScheduler(t, always(replay.Delivered))

	n, err := s.Resume(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, Stopped, s.State())

	require.NoError(t, store.Put(ctx, model.NewQueuedItem(*testMsg("left-over"), 4, t0)))
	n, err = s.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, Running, s.State())
}

// =============================================================================
// SNAPSHOT AND METRICS
// =============================================================================

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestScheduler(t, always(replay.Failed))

	require.NoError(t, s.Enqueue(ctx, testMsg("due"), WithRetries(1)))
	require.NoError(t, s.Enqueue(ctx, testMsg("soon"), WithRetries(7), WithNextAttempt(t0.Add(time.Minute))))
	require.NoError(t, s.Enqueue(ctx, testMsg("later"), WithNextAttempt(t0.Add(time.Hour))))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "running", snap.State)
	assert.Equal(t, 3, snap.Total)
	assert.Equal(t, 1, snap.Due)
	assert.Equal(t, 7, snap.MaxRetries)
	require.NotNil(t, snap.NextDue)
	assert.Equal(t, t0.Add(time.Minute).UnixMilli(), snap.NextDue.UnixMilli())
	assert.Len(t, snap.Items, 3)
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	outcomes := map[string]replay.Outcome{"ok": replay.Delivered, "gone": replay.Gone, "bad": replay.Failed}
	rp := newReplayer(func(msg *model.Message) replay.Result {
		return replay.Result{Outcome: outcomes[msg.ID]}
	})
	s, _, _ := newTestScheduler(t, rp, func(o *Options) { o.Metrics = m })

	for id := range outcomes {
		require.NoError(t, s.Enqueue(ctx, testMsg(id)))
	}
	_, err := s.Tick(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Enqueued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Delivered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Gone))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Ticks))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Depth))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 8)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{Replayer: always(replay.Delivered)})
	assert.ErrorIs(t, err, ErrNoStore)

	_, err = New(Options{Store: memory.New()})
	assert.ErrorIs(t, err, ErrNoReplayer)
}

func TestDrop(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newTestScheduler(t, always(replay.Failed))

	require.NoError(t, s.Enqueue(ctx, testMsg("a")))
	require.NoError(t, s.Drop(ctx, "a"))
	require.NoError(t, s.Drop(ctx, "a"))

	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, queue.ErrNotFound)
}
