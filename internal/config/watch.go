// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"log"

	"github.com/fsnotify/fsnotify"
)

// WatchBackends watches path for writes and calls onChange with the
// reloaded backend table whenever it changes. It does not itself re-install
// already-running backends — that decision belongs to the caller, which
// sees only the new table.
func WatchBackends(ctx context.Context, path string, onChange func(map[string]BackendConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return err
	}

	loader := NewLoader()
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := loader.LoadWithDefaults(ctx, path)
				if err != nil {
					log.Printf("config: reload %s failed: %v", path, err)
					continue
				}
				onChange(cfg.Backends)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("config: watch error: %v", err)
			}
		}
	}()
	return nil
}
