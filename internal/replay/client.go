// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package replay

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/brainbox/internal/model"
)

// Configuration constants for the chat server API.
const (
	// DefaultTimeout bounds a single persistence request.
	DefaultTimeout = 30 * time.Second

	// DefaultRatePerSec is the sustained replay request rate.
	DefaultRatePerSec = 5.0

	// DefaultBurst is the number of requests allowed back to back.
	DefaultBurst = 10

	// MaxResponseSize caps how much of a response body is read.
	MaxResponseSize = 1 << 20

	retryPath = "/api/chats/retry"
)

// newHTTPClient returns a pooled client. TLS verification stays on.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
		Timeout: timeout,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client sends messages to the chat server.
type Client struct {
	baseURL   string
	token     string
	cookie    string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends "Authorization: Bearer <token>".
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithCookie sends a raw Cookie header (the server's session cookie).
func WithCookie(cookie string) Option {
	return func(c *Client) { c.cookie = cookie }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit limits requests to perSec with the given burst. A
// non-positive perSec disables limiting.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *Client) {
		if perSec <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithHTTPClient replaces the underlying HTTP client (tests, proxies).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	c := &Client{
		baseURL:   strings.TrimRight(u.String(), "/"),
		userAgent: "brainbox-retry/1",
		http:      newHTTPClient(DefaultTimeout),
		limiter:   rate.NewLimiter(rate.Limit(DefaultRatePerSec), DefaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// payload is the request body shape shared by both endpoints.
type payload struct {
	Message *model.Message `json:"message"`
}

// Replay re-submits a queued message. The message id is the idempotency key.
func (c *Client) Replay(ctx context.Context, msg *model.Message) Result {
	start := time.Now()
	status, body, err := c.post(ctx, retryPath, msg)
	res := Result{Status: status, Duration: time.Since(start)}
	if err != nil {
		res.Outcome = Failed
		res.Err = err
		return res
	}

	outcome, herr := classify(status, body)
	res.Outcome = outcome
	if herr != nil {
		res.Code = herr.Code
		if outcome == Failed {
			res.Err = herr
		}
	}
	return res
}

// Persist performs the first, immediate save of a message. It returns
// ErrChatGone when the chat was deleted and *HTTPError for other refusals.
func (c *Client) Persist(ctx context.Context, msg *model.Message) error {
	path := "/api/chats/" + url.PathEscape(msg.ChatID) + "/persist"
	status, body, err := c.post(ctx, path, msg)
	if err != nil {
		return err
	}
	switch outcome, herr := classify(status, body); outcome {
	case Delivered:
		return nil
	case Gone:
		return fmt.Errorf("%w: %v", ErrChatGone, herr)
	default:
		return herr
	}
}

// post sends {"message": msg} and returns the status and a size-capped body.
func (c *Client) post(ctx context.Context, path string, msg *model.Message) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	data, err := json.Marshal(payload{Message: msg})
	if err != nil {
		return 0, nil, fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Idempotency-Key", msg.ID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}
