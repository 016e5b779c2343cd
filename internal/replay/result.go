// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// =============================================================================
// OUTCOME
// =============================================================================

// Outcome is the classified result of a replay attempt.
type Outcome int

const (
	// Failed means the message was not stored; retry later.
	Failed Outcome = iota
	// Delivered means the server holds the message.
	Delivered
	// Gone means the owning chat was deleted; the message can never be stored.
	Gone
)

// String returns the outcome name used in logs and metrics labels.
func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Gone:
		return "gone"
	default:
		return "failed"
	}
}

// Terminal reports whether the item should leave the queue.
func (o Outcome) Terminal() bool {
	return o == Delivered || o == Gone
}

// Result describes one replay attempt.
type Result struct {
	Outcome  Outcome
	Status   int    // HTTP status, 0 on transport errors
	Code     string // server statusMessage (e.g. "NOT_FOUND", "23505")
	Err      error  // set when Outcome is Failed
	Duration time.Duration
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrChatGone is returned by Persist when the chat no longer exists.
	ErrChatGone = errors.New("chat no longer exists")

	// ErrInvalidBaseURL is returned by NewClient for unusable URLs.
	ErrInvalidBaseURL = errors.New("invalid server base URL")
)

// Codes surfaced by the server as statusMessage.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	// codeNotFound comes with a 404 when the server looked the chat up
	// and found nothing.
	codeNotFound = "NOT_FOUND"
)

// HTTPError is a non-2xx answer from the server. The server wraps failures
// as {statusCode, statusMessage, message}.
type HTTPError struct {
	Status  int    `json:"statusCode"`
	Code    string `json:"statusMessage"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("server error (HTTP %d): %s", e.Status, e.Message)
}

// parseHTTPError decodes the server's error body, tolerating non-JSON bodies.
func parseHTTPError(status int, body []byte) *HTTPError {
	e := &HTTPError{}
	if err := json.Unmarshal(body, e); err != nil || (e.Code == "" && e.Message == "") {
		e.Message = strings.TrimSpace(string(body))
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
	}
	e.Status = status
	return e
}

// classify maps an HTTP answer to an outcome. Only the server's own answers
// are terminal; a bare 404 from a wrong route or a proxy is Failed.
func classify(status int, body []byte) (Outcome, *HTTPError) {
	if status >= 200 && status < 300 {
		return Delivered, nil
	}
	herr := parseHTTPError(status, body)
	switch {
	case herr.Code == codeUniqueViolation:
		// Stored by an earlier attempt whose answer we never saw.
		return Delivered, herr
	case herr.Code == codeForeignKeyViolation:
		return Gone, herr
	case status == http.StatusNotFound && herr.Code == codeNotFound:
		return Gone, herr
	default:
		return Failed, herr
	}
}
