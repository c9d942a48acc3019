// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for gyankosh.
package config

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// CONFIG FILE WATCHER
// =============================================================================

// Watcher reloads the global configuration when the config file changes on
// disk and notifies subscribers. Editors often replace files via rename, so
// the parent directory is watched rather than the file itself.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration

	mu       sync.Mutex
	lastDirt time.Time
	dirty    bool
	onReload []func(*Config)

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWatcher creates a watcher for the default config file.
func NewWatcher(debounce time.Duration) (*Watcher, error) {
	path, err := ConfigPathTOML()
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		watcher:  fw,
		path:     path,
		debounce: debounce,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// OnReload registers a callback invoked with the fresh config after a
// successful reload. Must be called before Watch.
func (w *Watcher) OnReload(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = append(w.onReload, fn)
}

// Watch starts watching for config file changes.
func (w *Watcher) Watch() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	go w.processEvents()
	go w.processPending()
	return nil
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.dirty = true
				w.lastDirt = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("config watcher: %v", err)
		}
	}
}

// processPending applies the reload once changes settle past the debounce
// window, collapsing editor write bursts into one reload.
func (w *Watcher) processPending() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			w.mu.Lock()
			ready := w.dirty && time.Since(w.lastDirt) >= w.debounce
			if ready {
				w.dirty = false
			}
			callbacks := w.onReload
			w.mu.Unlock()

			if !ready {
				continue
			}

			if err := ReloadGlobal(); err != nil {
				log.Printf("config reload failed: %v", err)
				continue
			}

			cfg := Global()
			for _, fn := range callbacks {
				fn(cfg)
			}
		}
	}
}
