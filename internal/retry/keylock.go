// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package retry

import (
	"context"
	"sync"
)

// keyLock hands out one lock per message id. Entries are dropped when the
// last holder or waiter releases them.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*keyEntry
}

type keyEntry struct {
	sem  chan struct{} // capacity 1; full while held
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*keyEntry)}
}

// Lock blocks until id is free and returns the matching unlock func.
func (k *keyLock) Lock(id string) func() {
	unlock, _ := k.LockContext(context.Background(), id)
	return unlock
}

// LockContext is Lock that gives up when ctx is done.
func (k *keyLock) LockContext(ctx context.Context, id string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[id]
	if !ok {
		e = &keyEntry{sem: make(chan struct{}, 1)}
		k.locks[id] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		k.release(id, e)
		return nil, ctx.Err()
	}
	return func() {
		<-e.sem
		k.release(id, e)
	}, nil
}

func (k *keyLock) release(id string, e *keyEntry) {
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, id)
	}
	k.mu.Unlock()
}

// Len returns the number of ids currently held or waited on.
func (k *keyLock) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
