// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	default:
		return false
	}
}

// ParseRole converts a string to a Role, case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrMissingID     = errors.New("message id is required")
	ErrMissingChatID = errors.New("message chat_id is required")
	ErrInvalidRole   = errors.New("invalid message role")
	ErrInvalidParts  = errors.New("message parts must be valid JSON")
)

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a chat message as persisted by the server. Parts and Metadata
// are carried as raw JSON and never reinterpreted on the client.
type Message struct {
	ID        string          `json:"id"`
	ChatID    string          `json:"chat_id"`
	Role      Role            `json:"role"`
	Parts     json.RawMessage `json:"parts,omitempty"`
	CreatedAt string          `json:"created_at"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`

	// Extra holds top-level fields this build does not model. They are
	// stored and sent to the server untouched.
	Extra map[string]json.RawMessage `json:"-"`
}

// messageFields are the JSON keys owned by the typed fields of Message.
var messageFields = map[string]bool{
	"id": true, "chat_id": true, "role": true,
	"parts": true, "created_at": true, "metadata": true,
}

// MarshalJSON writes the typed fields followed by Extra. Typed fields win
// over an Extra entry with the same key.
func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	base, err := json.Marshal(plain(m))
	if err != nil || len(m.Extra) == 0 {
		return base, err
	}
	all := make(map[string]json.RawMessage, len(m.Extra)+len(messageFields))
	if err := json.Unmarshal(base, &all); err != nil {
		return nil, err
	}
	for k, v := range m.Extra {
		if !messageFields[k] {
			all[k] = v
		}
	}
	return json.Marshal(all)
}

// UnmarshalJSON reads the typed fields and keeps every other key in Extra.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k := range messageFields {
		delete(all, k)
	}
	p.Extra = nil
	if len(all) > 0 {
		p.Extra = all
	}
	*m = Message(p)
	return nil
}

// NewMessage creates a message with a generated ID and the current time.
func NewMessage(chatID string, role Role, parts json.RawMessage) *Message {
	return &Message{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		Role:      role,
		Parts:     parts,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// NewTextMessage creates a message with a single text part.
func NewTextMessage(chatID string, role Role, text string) *Message {
	part, _ := json.Marshal([]map[string]string{{"type": "text", "text": text}})
	return NewMessage(chatID, role, part)
}

// Validate checks that the message can be persisted.
func (m *Message) Validate() error {
	if m == nil {
		return ErrMissingID
	}
	if strings.TrimSpace(m.ID) == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(m.ChatID) == "" {
		return ErrMissingChatID
	}
	if !m.Role.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, m.Role)
	}
	if len(m.Parts) > 0 && !json.Valid(m.Parts) {
		return ErrInvalidParts
	}
	if len(m.Metadata) > 0 && !json.Valid(m.Metadata) {
		return fmt.Errorf("message metadata must be valid JSON")
	}
	return nil
}

// Normalize fills in CreatedAt when the producer left it empty.
func (m *Message) Normalize(now time.Time) {
	if m.CreatedAt == "" {
		m.CreatedAt = now.UTC().Format(time.RFC3339Nano)
	}
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	if m.Parts != nil {
		c.Parts = append(json.RawMessage(nil), m.Parts...)
	}
	if m.Metadata != nil {
		c.Metadata = append(json.RawMessage(nil), m.Metadata...)
	}
	if m.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(m.Extra))
		for k, v := range m.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}

// Preview returns a short rune-safe preview of the first text part.
func (m *Message) Preview(maxLen int) string {
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(m.Parts, &parts); err != nil {
		return ""
	}
	for _, p := range parts {
		if p.Type != "text" || p.Text == "" {
			continue
		}
		text := strings.ReplaceAll(p.Text, "\n", " ")
		runes := []rune(text)
		if maxLen > 3 && len(runes) > maxLen {
			return string(runes[:maxLen-3]) + "..."
		}
		return text
	}
	return ""
}
