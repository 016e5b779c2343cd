// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package queue defines the durable store behind the message retry queue.
//
// A Store keeps one QueuedItem per message id. Backends live in
// subpackages:
//
//   - sqlite: default durable store (pure Go SQLite)
//   - file:   one JSON file per item, atomic writes, fsnotify watching
//   - redis:  one hash per namespace, one field per item
//   - memory: volatile, for tests and ephemeral runs
//
// Every backend encodes items with model.MarshalRecord so the on-disk layout
// is versioned and identical across backends. Keys are namespaced by the
// Namespace type; callers only ever pass message ids.
package queue
