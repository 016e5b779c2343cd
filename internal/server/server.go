// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jeranaias/brainbox/internal/model"
	"github.com/jeranaias/brainbox/internal/retry"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr binds to loopback only.
	DefaultAddr = "127.0.0.1:9464"

	// MaxRequestBodySize caps POST /queue bodies.
	MaxRequestBodySize = 1 << 20
)

// Queue is the part of the scheduler the server drives.
type Queue interface {
	Enqueue(ctx context.Context, msg *model.Message, opts ...retry.EnqueueOption) error
	Tick(ctx context.Context) (retry.Report, error)
	Drop(ctx context.Context, id string) error
	Snapshot(ctx context.Context) (retry.Snapshot, error)
	State() retry.State
}

// ============================================================================
// SERVER
// ============================================================================

// Server exposes the retry queue over local HTTP.
type Server struct {
	addr     string
	token    string
	version  string
	queue    Queue
	gatherer prometheus.Gatherer
	log      *zap.Logger
	started  time.Time

	mux    *http.ServeMux
	mu     sync.Mutex
	server *http.Server
	closed bool
}

// Option configures a Server.
type Option func(*Server)

// WithToken requires a bearer token on every route except /health.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithGatherer serves metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New creates a server for q listening on addr.
func New(addr string, q Queue, opts ...Option) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	s := &Server{
		addr:     addr,
		version:  "dev",
		queue:    q,
		gatherer: prometheus.DefaultGatherer,
		log:      zap.NewNop(),
		started:  time.Now(),
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /queue", s.handleList)
	s.mux.HandleFunc("POST /queue", s.handleEnqueue)
	s.mux.HandleFunc("POST /queue/flush", s.handleFlush)
	s.mux.HandleFunc("DELETE /queue/{id}", s.handleDrop)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(s.log),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.log),
		AuthMiddleware(s.token, s.log, "/health"),
	)(s.mux)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Scheduler string `json:"scheduler"`
	Uptime    string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Version:   s.version,
		Scheduler: s.queue.State().String(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	})
}

// QueueItem is one entry of GET /queue.
type QueueItem struct {
	ID          string     `json:"id"`
	ChatID      string     `json:"chat_id"`
	Role        model.Role `json:"role"`
	Retries     int        `json:"retries"`
	NextAttempt time.Time  `json:"next_attempt"`
	Preview     string     `json:"preview,omitempty"`
}

// QueueResponse is the body of GET /queue.
type QueueResponse struct {
	retry.Snapshot
	Items []QueueItem `json:"items"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	snap, err := s.queue.Snapshot(r.Context())
	if err != nil {
		s.log.Warn("queue snapshot failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "queue store unavailable")
		return
	}
	resp := QueueResponse{Snapshot: snap, Items: make([]QueueItem, 0, len(snap.Items))}
	for _, it := range snap.Items {
		resp.Items = append(resp.Items, QueueItem{
			ID:          it.ID(),
			ChatID:      it.Message.ChatID,
			Role:        it.Message.Role,
			Retries:     it.Retries,
			NextAttempt: it.NextAttemptTime().UTC(),
			Preview:     it.Message.Preview(60),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// enqueueRequest mirrors the chat server's retry body.
type enqueueRequest struct {
	Message *model.Message `json:"message"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	if req.Message == nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "message is required")
		return
	}

	err := s.queue.Enqueue(r.Context(), req.Message)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "id": req.Message.ID})
	case errors.Is(err, retry.ErrNotEligible),
		errors.Is(err, model.ErrMissingID),
		errors.Is(err, model.ErrMissingChatID),
		errors.Is(err, model.ErrInvalidRole),
		errors.Is(err, model.ErrInvalidParts):
		writeError(w, http.StatusUnprocessableEntity, "INVALID_MESSAGE", err.Error())
	default:
		s.log.Error("enqueue via status server failed", zap.String("id", req.Message.ID), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "queue store unavailable")
	}
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	rep, err := s.queue.Tick(r.Context())
	if err != nil {
		s.log.Warn("manual flush failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "queue store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.queue.Drop(r.Context(), id); err != nil {
		s.log.Warn("drop failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "queue store unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe serves until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.server = srv
	s.mu.Unlock()

	s.log.Info("status server listening", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// errorBody matches the chat server's error shape.
type errorBody struct {
	StatusCode    int    `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
	Message       string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{StatusCode: status, StatusMessage: code, Message: message})
}
