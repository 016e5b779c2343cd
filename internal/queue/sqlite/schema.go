// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sqlite

const (
	// SchemaVersion tracks the database schema version for migrations
	SchemaVersion = 1
)

// Schema holds every namespace in one table; (namespace, id) is the key.
const Schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS queue_items (
    namespace    TEXT NOT NULL,
    id           TEXT NOT NULL,
    record       BLOB NOT NULL,   -- model.MarshalRecord output
    retries      INTEGER NOT NULL,
    next_attempt INTEGER NOT NULL, -- epoch milliseconds
    updated_at   INTEGER NOT NULL, -- epoch milliseconds
    PRIMARY KEY (namespace, id)
) WITHOUT ROWID;

CREATE INDEX IF NOT EXISTS idx_queue_items_next_attempt
    ON queue_items(namespace, next_attempt);
`

// InitMetadata seeds the metadata table.
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('created_at', strftime('%s', 'now'));
`
