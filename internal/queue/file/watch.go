// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package file

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reports ids of items written into the queue directory, including
// writes made by other processes sharing the directory. It blocks until ctx
// is done. onPut runs on the watcher goroutine and must not block for long.
func (s *Store) Watch(ctx context.Context, log *zap.Logger, onPut func(id string)) error {
	if log == nil {
		log = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("file: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("file: watch %s: %w", s.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Atomic writes show up as Create (rename target) or Write.
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			id, ok := idFromFileName(filepath.Base(event.Name))
			if !ok {
				continue
			}
			onPut(id)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("queue directory watch error", zap.String("dir", s.dir), zap.Error(err))
		}
	}
}
