// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/brainbox/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned by Get when no item exists for the id.
	ErrNotFound = errors.New("queue item not found")

	// ErrInvalidItem is returned by Put for items without an id.
	ErrInvalidItem = errors.New("invalid queue item")

	// ErrStoreClosed is returned after Close.
	ErrStoreClosed = errors.New("queue store closed")

	// ErrCorruptRecord matches a stored record that cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt queue record")
)

// RecordError is a stored record that could not be decoded. It matches
// ErrCorruptRecord.
type RecordError struct {
	ID  string
	Err error
}

// Error implements the error interface.
func (e *RecordError) Error() string {
	return fmt.Sprintf("queue record %q: %v", e.ID, e.Err)
}

// Unwrap returns the decode error.
func (e *RecordError) Unwrap() error { return e.Err }

// Is reports whether target is ErrCorruptRecord.
func (e *RecordError) Is(target error) bool { return target == ErrCorruptRecord }

// ListError is returned by List together with the decodable items when some
// records could not be decoded. The bad records stay in the store.
type ListError struct {
	Records []*RecordError
}

// Error implements the error interface.
func (e *ListError) Error() string {
	if len(e.Records) == 1 {
		return "list queue: skipped " + e.Records[0].Error()
	}
	return fmt.Sprintf("list queue: skipped %d undecodable records", len(e.Records))
}

// Unwrap exposes every record error to errors.Is and errors.As.
func (e *ListError) Unwrap() []error {
	errs := make([]error, len(e.Records))
	for i, r := range e.Records {
		errs[i] = r
	}
	return errs
}

// Decode decodes one stored record, wrapping failures in a *RecordError.
func Decode(id string, data []byte) (*model.QueuedItem, error) {
	item, err := model.UnmarshalRecord(data)
	if err != nil {
		return nil, &RecordError{ID: id, Err: err}
	}
	return item, nil
}

// Lister collects the records of a List call so one bad record does not
// hide the others.
type Lister struct {
	items []*model.QueuedItem
	bad   []*RecordError
}

// Add decodes one record.
func (l *Lister) Add(id string, data []byte) {
	item, err := model.UnmarshalRecord(data)
	if err != nil {
		l.bad = append(l.bad, &RecordError{ID: id, Err: err})
		return
	}
	l.items = append(l.items, item)
}

// Result returns the decoded items and a *ListError when records were
// skipped.
func (l *Lister) Result() ([]*model.QueuedItem, error) {
	if l.items == nil {
		l.items = []*model.QueuedItem{}
	}
	if len(l.bad) > 0 {
		return l.items, &ListError{Records: l.bad}
	}
	return l.items, nil
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is a durable key-value store of queued items keyed by message id.
// Single-key operations are atomic; no cross-key transactions are offered.
type Store interface {
	// Put inserts or replaces the full item.
	Put(ctx context.Context, item *model.QueuedItem) error

	// Get returns the item or ErrNotFound. An undecodable record yields an
	// error matching ErrCorruptRecord.
	Get(ctx context.Context, id string) (*model.QueuedItem, error)

	// Delete removes the item. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// List returns every stored item in no particular order. Records that
	// cannot be decoded are skipped; the decodable items are then returned
	// together with a *ListError.
	List(ctx context.Context) ([]*model.QueuedItem, error)

	// Close releases the underlying resources.
	Close() error
}

// ValidateItem checks the parts of an item every backend relies on.
func ValidateItem(item *model.QueuedItem) error {
	if item == nil || strings.TrimSpace(item.ID()) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidItem)
	}
	return nil
}

// =============================================================================
// NAMESPACE
// =============================================================================

const (
	// DefaultDBName groups all client-side stores of the application.
	DefaultDBName = "brainbox"

	// DefaultStoreName is the logical store holding retryable messages.
	DefaultStoreName = "retry_queue"
)

// Namespace maps message ids to physical keys for a named store. Backends
// call Key and ID; callers never see the prefix.
type Namespace struct {
	DB    string
	Store string
}

// DefaultNamespace returns the namespace used by the chat client.
func DefaultNamespace() Namespace {
	return Namespace{DB: DefaultDBName, Store: DefaultStoreName}
}

// WithDefaults fills empty fields with the defaults.
func (n Namespace) WithDefaults() Namespace {
	if n.DB == "" {
		n.DB = DefaultDBName
	}
	if n.Store == "" {
		n.Store = DefaultStoreName
	}
	return n
}

// Prefix returns the key prefix shared by every item, e.g. "brainbox:retry_queue:".
func (n Namespace) Prefix() string {
	n = n.WithDefaults()
	return n.DB + ":" + n.Store + ":"
}

// String returns the namespace name without the trailing separator.
func (n Namespace) String() string {
	return strings.TrimSuffix(n.Prefix(), ":")
}

// Key returns the physical key for a message id.
func (n Namespace) Key(id string) string {
	return n.Prefix() + id
}

// ID strips the namespace from a physical key. ok is false for keys that
// belong to another namespace.
func (n Namespace) ID(key string) (id string, ok bool) {
	prefix := n.Prefix()
	if !strings.HasPrefix(key, prefix) || len(key) == len(prefix) {
		return "", false
	}
	return key[len(prefix):], true
}

// Contains reports whether key belongs to this namespace.
func (n Namespace) Contains(key string) bool {
	_, ok := n.ID(key)
	return ok
}
