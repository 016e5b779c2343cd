// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package bootstrap

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jeranaias/brainbox/internal/config"
	"github.com/jeranaias/brainbox/internal/model"
	"github.com/jeranaias/brainbox/internal/queue/file"
	"github.com/jeranaias/brainbox/internal/queue/memory"
	"github.com/jeranaias/brainbox/internal/queue/redis"
	"github.com/jeranaias/brainbox/internal/queue/sqlite"
	"github.com/jeranaias/brainbox/internal/retry"
)

// chatServer answers every request with status and counts retry calls.
func chatServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var retries atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/chats/retry" {
			retries.Add(1)
		}
		w.WriteHeader(status)
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(ts.Close)
	return ts, &retries
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Queue.Backend = config.BackendMemory
	cfg.Queue.Path = filepath.Join(t.TempDir(), "queue.db")
	cfg.Scheduler.Interval = config.D(100 * time.Millisecond)
	cfg.Remote.BaseURL = baseURL
	cfg.Remote.RatePerSec = 0
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := New(context.Background(), cfg, WithLogger(zap.NewNop()), WithVersion("test"))
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

// runApp starts Run and returns a func that cancels it and returns its error.
func runApp(t *testing.T, app *App) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- app.Run(ctx) }()
	return func() error {
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(10 * time.Second):
			t.Fatal("Run did not return after cancel")
			return nil
		}
	}
}

func queued(id string) *model.QueuedItem {
	return model.NewQueuedItem(model.Message{
		ID:     id,
		ChatID: "chat-1",
		Role:   model.RoleUser,
		Parts:  []byte(`[{"type":"text","text":"hi"}]`),
	}, 0, time.Time{})
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		backend string
		check   func(t *testing.T, v any)
	}{
		{"memory", config.BackendMemory, func(t *testing.T, v any) { assert.IsType(t, &memory.Store{}, v) }},
		{"sqlite", config.BackendSQLite, func(t *testing.T, v any) { assert.IsType(t, &sqlite.Store{}, v) }},
		{"file", config.BackendFile, func(t *testing.T, v any) { assert.IsType(t, &file.Store{}, v) }},
		{"redis", config.BackendRedis, func(t *testing.T, v any) { assert.IsType(t, &redis.Store{}, v) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Queue.Backend = tt.backend
			cfg.Queue.Path = filepath.Join(t.TempDir(), "q")
			cfg.Queue.RedisAddr = mr.Addr()

			store, err := OpenStore(ctx, cfg)
			require.NoError(t, err)
			defer store.Close()
			tt.check(t, store)

			require.NoError(t, store.Put(ctx, queued("m1")))
			items, err := store.List(ctx)
			require.NoError(t, err)
			assert.Len(t, items, 1)
		})
	}
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Queue.Backend = "etcd"
	_, err := OpenStore(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown queue backend")
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Remote.BaseURL = "ftp://nope"
	_, err := New(context.Background(), cfg, WithLogger(zap.NewNop()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote.base_url")
}

func TestNew_WiresComponents(t *testing.T) {
	ts, _ := chatServer(t, http.StatusOK)
	app := newApp(t, testConfig(t, ts.URL))

	assert.IsType(t, &memory.Store{}, app.Store)
	assert.Equal(t, ts.URL, app.Client.BaseURL())
	assert.Equal(t, retry.Stopped, app.Scheduler.State())
	assert.True(t, app.Scheduler.Eligible(model.RoleAssistant))
	assert.False(t, app.Scheduler.Eligible(model.RoleSystem))

	families, err := app.Registry.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "brainbox_retry_queue_depth")
	assert.Contains(t, names, "go_goroutines")
}

func TestSender_QueuesOnServerError(t *testing.T) {
	ts, _ := chatServer(t, http.StatusServiceUnavailable)
	cfg := testConfig(t, ts.URL)
	cfg.Scheduler.Interval = config.D(time.Hour)
	app := newApp(t, cfg)
	ctx := context.Background()

	msg := model.NewTextMessage("chat-1", model.RoleUser, "hello")
	isQueued, err := app.Sender.Save(ctx, msg)
	require.NoError(t, err)
	assert.True(t, isQueued)

	item, err := app.Store.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, item.Retries)
	assert.Equal(t, retry.Running, app.Scheduler.State())

	app.Scheduler.Stop()
	app.Scheduler.Wait()
}

func TestRun_ResumesLeftoverQueue(t *testing.T) {
	ctx := context.Background()
	ts, retries := chatServer(t, http.StatusOK)
	cfg := testConfig(t, ts.URL)
	cfg.Queue.Backend = config.BackendSQLite

	// A previous process left two messages behind.
	prev, err := OpenStore(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, prev.Put(ctx, queued("m1")))
	require.NoError(t, prev.Put(ctx, queued("m2")))
	require.NoError(t, prev.Close())

	app := newApp(t, cfg)
	stop := runApp(t, app)

	require.Eventually(t, func() bool {
		items, err := app.Store.List(ctx)
		return err == nil && len(items) == 0
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(2), retries.Load())

	require.Eventually(t, func() bool {
		return app.Scheduler.State() == retry.Stopped
	}, 5*time.Second, 20*time.Millisecond)

	assert.NoError(t, stop())
}

func TestRun_EmptyQueueStaysStopped(t *testing.T) {
	ts, retries := chatServer(t, http.StatusOK)
	app := newApp(t, testConfig(t, ts.URL))
	stop := runApp(t, app)

	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, retry.Stopped, app.Scheduler.State())
	assert.NoError(t, stop())
	assert.Zero(t, retries.Load())
}

func TestRun_FileWatchWakesScheduler(t *testing.T) {
	ctx := context.Background()
	ts, retries := chatServer(t, http.StatusOK)
	cfg := testConfig(t, ts.URL)
	cfg.Queue.Backend = config.BackendFile
	cfg.Queue.Path = t.TempDir()

	app := newApp(t, cfg)
	stop := runApp(t, app)

	// Another process writing into the shared directory.
	other, err := file.Open(cfg.Queue.Path, cfg.Namespace())
	require.NoError(t, err)
	defer other.Close()

	require.Eventually(t, func() bool {
		if retries.Load() > 0 {
			return true
		}
		_ = other.Put(ctx, queued("from-other"))
		return false
	}, 5*time.Second, 200*time.Millisecond)

	assert.NoError(t, stop())
}

func TestRun_StatusServerShutsDown(t *testing.T) {
	ts, _ := chatServer(t, http.StatusOK)
	cfg := testConfig(t, ts.URL)
	cfg.Server.Enabled = true
	cfg.Server.Addr = "127.0.0.1:0"

	app := newApp(t, cfg)
	stop := runApp(t, app)
	time.Sleep(100 * time.Millisecond)
	assert.NoError(t, stop())
}

func TestRun_StatusServerAddrInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ts, _ := chatServer(t, http.StatusOK)
	cfg := testConfig(t, ts.URL)
	cfg.Server.Enabled = true
	cfg.Server.Addr = ln.Addr().String()

	app := newApp(t, cfg)
	err = app.Run(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "address already in use") || strings.Contains(err.Error(), "bind"))
}
