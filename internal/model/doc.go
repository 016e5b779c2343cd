// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat messages and the
// retry queue.
//
// # Key Types
//
//   - Message: a chat message in the server's wire shape (parts kept as raw JSON)
//   - QueuedItem: a message awaiting persistence plus its retry metadata
//   - Role: message role enumeration (user, assistant, system, tool)
//
// # Usage
//
// Create a message and wrap it for the retry queue:
//
//	msg := model.NewTextMessage(chatID, model.RoleAssistant, "Hello!")
//	item := model.NewQueuedItem(*msg, 0, time.Now())
//
// Durable stores use MarshalRecord / UnmarshalRecord so every backend writes
// the same versioned layout.
package model
