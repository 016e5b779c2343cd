// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides crash-safe file helpers.
//
// # Key Functions
//
//   - AtomicWriteFile: write temp, fsync, rename, fsync directory
//   - SyncDir: flush directory entries to disk
//   - IsTempFile: recognize in-progress writes when scanning a directory
//
// # Usage
//
//	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
//	    return err
//	}
package util
