// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package liveconfig

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher loads a configuration file once, then watches it for
// changes and keeps its Bindings current.
//
// The containing directory is watched rather than the file itself —
// editors and config-management tools commonly replace a file by
// renaming a temporary file over it, which on some platforms drops an
// inotify watch held on the file's original inode. Watching the
// directory and filtering events by filename survives that.
type Watcher struct {
	path   string
	logger *slog.Logger
	fsw    *fsnotify.Watcher

	collectorBinaryPath *Binding[string]
	storageDir          *Binding[string]
	kvStorePath         string
	shardCount          int
}

// Watch loads the config at path and starts watching it for changes.
// The returned Watcher must be stopped by cancelling ctx. Fields that
// are not live-bound (KVStorePath, ShardCount) are captured once at
// load time.
func Watch(ctx context.Context, path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("liveconfig: resolving %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("liveconfig: creating watcher: %w", err)
	}

	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("liveconfig: watching %s: %w", filepath.Dir(absPath), err)
	}

	w := &Watcher{
		path:                absPath,
		logger:              logger,
		fsw:                 fsw,
		collectorBinaryPath: newBinding(cfg.CollectorBinaryPath),
		storageDir:          newBinding(cfg.EffectiveStorageDir()),
		kvStorePath:         cfg.KVStorePath,
		shardCount:          cfg.ShardCount,
	}

	go w.run(ctx)

	return w, nil
}

// CollectorBinaryPath is the live-bound path to the collector binary.
func (w *Watcher) CollectorBinaryPath() *Binding[string] { return w.collectorBinaryPath }

// StorageDir is the live-bound effective bundle storage directory —
// the configured storage_dir, or data_dir/debug-bundle if unset.
func (w *Watcher) StorageDir() *Binding[string] { return w.storageDir }

// KVStorePath is the metadata store's database path, fixed at load
// time.
func (w *Watcher) KVStorePath() string { return w.kvStorePath }

// ShardCount is the configured number of shard goroutines, fixed at
// load time.
func (w *Watcher) ShardCount() int { return w.shardCount }

func (w *Watcher) run(ctx context.Context) {
	defer w.fsw.Close()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("liveconfig: watch error", "error", err)

		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("liveconfig: reload failed, keeping previous values",
			"path", w.path, "error", err)
		return
	}

	w.collectorBinaryPath.set(cfg.CollectorBinaryPath)
	w.storageDir.set(cfg.EffectiveStorageDir())
	w.logger.Info("liveconfig: reloaded", "path", w.path)
}
