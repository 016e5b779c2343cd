// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package retry replays queued chat messages until the server stores them.
//
// Messages whose immediate save failed are written to a queue.Store. The
// Scheduler wakes every Interval, replays each due item once, deletes it
// when the server has it (or when its chat is gone) and otherwise pushes
// NextAttempt out with exponential backoff. When a pass finds the queue
// empty the driver stops itself; the next Enqueue starts it again.
//
// # Key Types
//
//   - Scheduler: owns the timer and the Stopped/Running lifecycle
//   - Replayer: the server call, usually *replay.Client
//   - Report: counters for one pass
//   - Metrics: Prometheus collectors
//
// # Usage
//
//	sched, err := retry.New(retry.Options{
//	    Store:    store,
//	    Replayer: client,
//	    Logger:   log,
//	})
//	if err != nil {
//	    return err
//	}
//	if _, err := sched.Resume(ctx); err != nil {
//	    return err
//	}
//	...
//	sched.Stop()
//	sched.Wait()
//
// Work for one message id is serialized: an Enqueue never interleaves with
// the re-read, replay and write-back of the same id.
package retry
