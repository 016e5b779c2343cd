// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/brainbox/internal/model"
)

// MaxMessageSize caps a message read by enqueue.
const MaxMessageSize = 1 << 20

// formatDurationShort formats a duration for tables.
func formatDurationShort(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// formatNextAttempt describes when an item is due relative to now.
func formatNextAttempt(next, now time.Time) string {
	if !next.After(now) {
		return "due"
	}
	return "in " + formatDurationShort(next.Sub(now))
}

// truncate shortens s to n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// readMessage decodes a message from path, or from stdin when path is ""
// or "-". Both the bare message and the {"message": {...}} envelope are
// accepted. A missing id is generated.
func readMessage(path string, stdin io.Reader) (*model.Message, error) {
	var (
		data []byte
		err  error
	)
	switch path {
	case "", "-":
		if stdin == nil {
			return nil, ErrMissingArgument("--file", "brainbox enqueue --file message.json")
		}
		data, err = io.ReadAll(io.LimitReader(stdin, MaxMessageSize+1))
	default:
		var f *os.File
		f, err = os.Open(path)
		if err == nil {
			defer f.Close()
			data, err = io.ReadAll(io.LimitReader(f, MaxMessageSize+1))
		}
	}
	if err != nil {
		return nil, err
	}
	if len(data) > MaxMessageSize {
		return nil, NewValidationError("message", "", fmt.Sprintf("larger than %d bytes", MaxMessageSize))
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, NewValidationError("message", "", "empty input")
	}

	var env struct {
		Message *model.Message `json:"message"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, NewValidationError("message", "", "not valid JSON: "+err.Error())
	}
	msg := env.Message
	if msg == nil {
		msg = &model.Message{}
		if err := json.Unmarshal(data, msg); err != nil {
			return nil, NewValidationError("message", "", "not valid JSON: "+err.Error())
		}
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// isNotExist reports whether err is a missing-file error.
func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
