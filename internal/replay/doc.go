// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package replay talks to the chat server's message persistence endpoints.
//
// Two calls are offered:
//
//   - Persist: the immediate save of a freshly produced message
//     (POST /api/chats/{chat_id}/persist)
//   - Replay: the idempotent re-submission of a queued message
//     (POST /api/chats/retry)
//
// Replay never returns a bare error. Every response is classified into a
// Result with one of three outcomes:
//
//   - Delivered: 2xx, or the server reports the id is already stored
//   - Gone:      the owning chat no longer exists (FK violation, or a 404
//     carrying the server's NOT_FOUND code)
//   - Failed:    anything else; the caller reschedules. A plain 404 is
//     Failed, so a wrong base URL never empties the queue.
//
// A client-side rate limit keeps a large backlog from flooding the server.
package replay
