// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// QUEUED ITEM
// =============================================================================

// QueuedItem is a message waiting to be persisted server-side, together with
// its retry bookkeeping.
type QueuedItem struct {
	Message Message

	// Retries counts failed replay attempts so far.
	Retries int

	// NextAttempt is the epoch time in milliseconds before which the item
	// must not be replayed.
	NextAttempt int64
}

// NewQueuedItem wraps a message for the retry queue.
func NewQueuedItem(msg Message, retries int, nextAttempt time.Time) *QueuedItem {
	if retries < 0 {
		retries = 0
	}
	return &QueuedItem{
		Message:     msg,
		Retries:     retries,
		NextAttempt: nextAttempt.UnixMilli(),
	}
}

// ID returns the message id, which doubles as the storage key.
func (q *QueuedItem) ID() string {
	return q.Message.ID
}

// Due reports whether the item may be replayed at now. An item without a
// schedule is always due.
func (q *QueuedItem) Due(now time.Time) bool {
	return q.NextAttempt <= 0 || q.NextAttempt <= now.UnixMilli()
}

// NextAttemptTime returns NextAttempt as a time.Time.
func (q *QueuedItem) NextAttemptTime() time.Time {
	return time.UnixMilli(q.NextAttempt)
}

// Clone returns a deep copy of the item.
func (q *QueuedItem) Clone() *QueuedItem {
	if q == nil {
		return nil
	}
	c := *q
	c.Message = *q.Message.Clone()
	return &c
}

// =============================================================================
// STORED RECORD
// =============================================================================

// RecordVersion is the current version of the durable record layout.
const RecordVersion = 1

// ErrUnsupportedVersion is returned when a record was written by a newer
// layout than this build understands.
var ErrUnsupportedVersion = errors.New("unsupported queue record version")

// The stored item is flat, as the browser queue kept it: the message fields
// plus these two bookkeeping keys.
const (
	keyRetries     = "retries"
	keyNextAttempt = "nextAttempt"
)

type bookkeeping struct {
	Retries     int   `json:"retries"`
	NextAttempt int64 `json:"nextAttempt"`
}

type envelope struct {
	Version int             `json:"v"`
	Item    json.RawMessage `json:"item"`
}

// MarshalRecord encodes an item in the versioned durable format.
func MarshalRecord(q *QueuedItem) ([]byte, error) {
	msg, err := json.Marshal(q.Message)
	if err != nil {
		return nil, err
	}
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(msg, &flat); err != nil {
		return nil, err
	}
	flat[keyRetries] = json.RawMessage(fmt.Sprint(q.Retries))
	flat[keyNextAttempt] = json.RawMessage(fmt.Sprint(q.NextAttempt))

	item, err := json.Marshal(flat)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Version: RecordVersion, Item: item})
}

// UnmarshalRecord decodes a durable record. Unversioned records from the
// original browser queue are read as version 1.
func UnmarshalRecord(data []byte) (*QueuedItem, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode queue record: %w", err)
	}

	raw := env.Item
	switch {
	case env.Version == 0 && len(env.Item) == 0:
		raw = data
	case env.Version > RecordVersion:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}

	var (
		msg Message
		bk  bookkeeping
	)
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decode queue record: %w", err)
	}
	if err := json.Unmarshal(raw, &bk); err != nil {
		return nil, fmt.Errorf("decode queue record: %w", err)
	}
	delete(msg.Extra, keyRetries)
	delete(msg.Extra, keyNextAttempt)
	if len(msg.Extra) == 0 {
		msg.Extra = nil
	}
	if bk.Retries < 0 {
		bk.Retries = 0
	}
	return &QueuedItem{
		Message:     msg,
		Retries:     bk.Retries,
		NextAttempt: bk.NextAttempt,
	}, nil
}
