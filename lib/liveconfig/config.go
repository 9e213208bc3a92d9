// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package liveconfig loads a YAML configuration file and keeps a set
// of Binding values current as the file changes on disk, notifying
// subscribers on each reload. There are no fallbacks or automatic
// discovery beyond the single file path the caller supplies — callers
// decide how that path is found (flag, environment variable), this
// package only loads and watches it.
package liveconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// debugBundleDirName is the directory name appended to DataDir when
// StorageDir is left unset, matching the original service's
// "<data_dir>/debug-bundle" default.
const debugBundleDirName = "debug-bundle"

// Config is the on-disk shape of the debug-bundle service's
// configuration file.
type Config struct {
	// CollectorBinaryPath is the filesystem path to the external
	// diagnostic-collector binary. Live-bound: operators can update
	// this value and have it take effect on the next run without
	// restarting the service.
	CollectorBinaryPath string `yaml:"collector_binary_path"`

	// StorageDir is the directory under which bundle and process
	// output files are written. Optional: when unset, it defaults to
	// DataDir/debug-bundle. Live-bound for the same reason as
	// CollectorBinaryPath — changing either triggers recomputation of
	// the effective directory.
	StorageDir string `yaml:"storage_dir"`

	// DataDir is the node's base data directory, used to derive the
	// default StorageDir when one is not configured explicitly.
	DataDir string `yaml:"data_dir"`

	// KVStorePath is the SQLite database file backing the metadata
	// store. Not live-bound — changing it requires a restart, since
	// the store is opened once at startup.
	KVStorePath string `yaml:"kv_store_path"`

	// ShardCount is the number of shard goroutines to run. Not
	// live-bound. Defaults to 1 if zero.
	ShardCount int `yaml:"shard_count"`
}

// EffectiveStorageDir returns StorageDir if set, otherwise
// DataDir/debug-bundle.
func (c *Config) EffectiveStorageDir() string {
	if c.StorageDir != "" {
		return c.StorageDir
	}
	return filepath.Join(c.DataDir, debugBundleDirName)
}

// Load reads and parses the configuration file at path. Unlike the
// daemon-wide static config this module's teacher carries, there are
// few built-in defaults here — the debug-bundle service config is
// small enough that most fields are explicit in the file. The
// exceptions: ShardCount defaults to 1 when zero or negative, and
// StorageDir falls back to DataDir/debug-bundle when unset (one of the
// two must be set).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("liveconfig: reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("liveconfig: parsing %s: %w", path, err)
	}

	if cfg.StorageDir == "" && cfg.DataDir == "" {
		return nil, fmt.Errorf("liveconfig: %s: storage_dir or data_dir must be set", path)
	}

	if cfg.ShardCount <= 0 {
		cfg.ShardCount = 1
	}

	return &cfg, nil
}
