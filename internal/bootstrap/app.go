// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package bootstrap assembles the retry daemon from configuration: store,
// replay client, scheduler, metrics and the optional status server.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/brainbox/internal/config"
	"github.com/jeranaias/brainbox/internal/logging"
	"github.com/jeranaias/brainbox/internal/persist"
	"github.com/jeranaias/brainbox/internal/queue"
	"github.com/jeranaias/brainbox/internal/queue/file"
	"github.com/jeranaias/brainbox/internal/queue/memory"
	"github.com/jeranaias/brainbox/internal/queue/redis"
	"github.com/jeranaias/brainbox/internal/queue/sqlite"
	"github.com/jeranaias/brainbox/internal/replay"
	"github.com/jeranaias/brainbox/internal/retry"
	"github.com/jeranaias/brainbox/internal/server"
)

// ShutdownTimeout bounds the status server's graceful shutdown.
const ShutdownTimeout = 5 * time.Second

// App is a fully wired retry daemon.
type App struct {
	Config    *config.Config
	Log       *zap.Logger
	Store     queue.Store
	Client    *replay.Client
	Scheduler *retry.Scheduler
	Sender    *persist.Sender
	Registry  *prometheus.Registry

	version string
}

// Option customizes New.
type Option func(*App)

// WithLogger uses log instead of building one from the config.
func WithLogger(log *zap.Logger) Option {
	return func(a *App) { a.Log = log }
}

// WithStore uses an already opened store instead of the configured backend.
func WithStore(s queue.Store) Option {
	return func(a *App) { a.Store = s }
}

// WithVersion sets the version reported by the status server.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// OpenStore opens the backend named by cfg.Queue.Backend.
func OpenStore(ctx context.Context, cfg *config.Config) (queue.Store, error) {
	ns := cfg.Namespace()
	switch cfg.Queue.Backend {
	case config.BackendMemory:
		return memory.New(), nil

	case config.BackendSQLite, "":
		path, err := cfg.QueuePath()
		if err != nil {
			return nil, err
		}
		return sqlite.Open(path, ns)

	case config.BackendFile:
		path, err := cfg.QueuePath()
		if err != nil {
			return nil, err
		}
		return file.Open(path, ns)

	case config.BackendRedis:
		return redis.Open(ctx, redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
			Timeout:  cfg.Queue.RedisTimeout.Duration,
		}, ns)

	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}

// New builds an App. The caller must Close it.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.Log == nil {
		log, err := logging.New(cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		a.Log = log
	}

	if a.Store == nil {
		store, err := OpenStore(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open %s queue: %w", cfg.Queue.Backend, err)
		}
		a.Store = store
	}

	client, err := replay.NewClient(cfg.Remote.BaseURL,
		replay.WithToken(cfg.Remote.Token),
		replay.WithCookie(cfg.Remote.Cookie),
		replay.WithTimeout(cfg.Remote.Timeout.Duration),
		replay.WithRateLimit(cfg.Remote.RatePerSec, cfg.Remote.Burst),
	)
	if err != nil {
		a.Store.Close()
		return nil, err
	}
	a.Client = client

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sched, err := retry.New(retry.Options{
		Store:         a.Store,
		Replayer:      client,
		Strategy:      cfg.Strategy(),
		Interval:      cfg.Scheduler.Interval.Duration,
		Concurrency:   cfg.Scheduler.Concurrency,
		EligibleRoles: cfg.Roles(),
		Logger:        a.Log,
		Metrics:       retry.NewMetrics(a.Registry),
	})
	if err != nil {
		a.Store.Close()
		return nil, err
	}
	a.Scheduler = sched
	a.Sender = persist.NewSender(client, sched, a.Log)
	return a, nil
}

// Run resumes the queue left by a previous process and keeps the scheduler
// and status server running until ctx is done. An in-flight tick is allowed
// to finish before Run returns.
func (a *App) Run(ctx context.Context) error {
	n, err := a.Scheduler.Resume(ctx)
	if err != nil {
		return fmt.Errorf("resume queue: %w", err)
	}
	a.Log.Info("retry daemon started",
		zap.String("backend", a.Config.Queue.Backend),
		zap.String("remote", a.Client.BaseURL()),
		zap.Int("queued", n),
	)

	g, gctx := errgroup.WithContext(ctx)

	if fs, ok := a.Store.(*file.Store); ok {
		g.Go(func() error {
			return fs.Watch(gctx, a.Log, func(id string) {
				a.Log.Debug("queue item written", zap.String("id", id))
				a.Scheduler.Start()
			})
		})
	}

	if a.Config.Server.Enabled {
		srv := server.New(a.Config.Server.Addr, a.Scheduler,
			server.WithToken(a.Config.Server.Token),
			server.WithGatherer(a.Registry),
			server.WithLogger(a.Log),
			server.WithVersion(a.version),
		)
		g.Go(srv.ListenAndServe)
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err = g.Wait()
	a.Scheduler.Stop()
	a.Scheduler.Wait()
	a.Log.Info("retry daemon stopped")

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close releases the store and flushes the logger.
func (a *App) Close() error {
	err := a.Store.Close()
	_ = a.Log.Sync()
	return err
}
