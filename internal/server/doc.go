// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the retry queue on a local HTTP port.
//
// # Endpoints
//
//   - GET    /health       - liveness and scheduler state
//   - GET    /queue        - queued items and a summary
//   - POST   /queue        - enqueue {"message": {...}}
//   - POST   /queue/flush  - run one pass now
//   - DELETE /queue/{id}   - drop an item without replaying it
//   - GET    /metrics      - Prometheus metrics
//
// Errors use the chat server's shape: {statusCode, statusMessage, message}.
//
// # Usage
//
//	srv := server.New(cfg.Server.Addr, sched,
//		server.WithToken(cfg.Server.Token),
//		server.WithGatherer(registry),
//		server.WithLogger(log),
//	)
//	go srv.ListenAndServe()
//	defer srv.Shutdown(ctx)
package server
