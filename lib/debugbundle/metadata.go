// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugbundle

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/streamkit/debugbundle/lib/codec"
	"github.com/streamkit/debugbundle/lib/kvstore"
)

// kvSpace and kvKey are the well-known location of the one metadata
// entry this service owns.
const (
	kvSpace = "debug_bundle"
	kvKey   = "debug_bundle_metadata"
)

// MetadataStore persists RunMetadata to the KV store and the paired
// captured-output sidecar file. Serialization is CBOR, chosen for the
// same reason the rest of this codebase uses it for durable records:
// a compact, self-describing binary format with deterministic
// encoding, so two writes of equal data produce identical bytes.
type MetadataStore struct {
	kv     *kvstore.Store
	logger *slog.Logger
}

// NewMetadataStore returns a MetadataStore backed by kv. If logger is
// nil, a discarding logger is used.
func NewMetadataStore(kv *kvstore.Store, logger *slog.Logger) *MetadataStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MetadataStore{kv: kv, logger: logger}
}

// Write persists the metadata for a run that has reached a terminal
// state, plus its captured-output sidecar.
//
// The checksum is computed only when the run succeeded and the bundle
// file exists; otherwise it is recorded empty. If the sidecar write
// fails after the KV entry has already been written, a best-effort
// background task removes the KV entry so metadata and sidecar stay
// consistent — callers may observe the KV entry briefly during that
// window, which is accepted rather than guarded against (see the
// written-out design notes on this race).
func (m *MetadataStore) Write(ctx context.Context, handle *ProcessHandle) error {
	waitStatus, present := handle.WaitStatus()

	var checksum []byte
	if present && waitStatus.Success() {
		if _, err := os.Stat(handle.BundleFilePath()); err == nil {
			sum, sumErr := sha256File(handle.BundleFilePath())
			if sumErr != nil {
				return fmt.Errorf("debugbundle: hashing bundle file: %w", sumErr)
			}
			checksum = sum
		}
	}

	metadata := RunMetadata{
		CreatedAt:             handle.CreatedAt(),
		JobID:                 handle.JobID(),
		BundleFilePath:        handle.BundleFilePath(),
		ProcessOutputFilePath: handle.ProcessOutputFilePath(),
		SHA256OfBundle:        checksum,
		WaitStatus:            waitStatus,
		WaitStatusPresent:     present,
	}

	encodedMetadata, err := codec.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("debugbundle: encoding metadata: %w", err)
	}

	if err := m.kv.Put(ctx, kvSpace, kvKey, encodedMetadata); err != nil {
		return fmt.Errorf("debugbundle: writing metadata: %w", err)
	}

	output := ProcessOutput{
		StdoutLines: handle.StdoutLines(),
		StderrLines: handle.StderrLines(),
	}
	encodedOutput, err := codec.Marshal(output)
	if err != nil {
		m.scheduleRollback()
		return fmt.Errorf("debugbundle: encoding process output: %w", err)
	}

	if err := os.WriteFile(handle.ProcessOutputFilePath(), encodedOutput, 0o644); err != nil {
		m.scheduleRollback()
		return fmt.Errorf("debugbundle: writing process output sidecar: %w", err)
	}

	return nil
}

// scheduleRollback best-effort removes the KV entry written in Write
// when the paired sidecar write failed. It runs detached from the
// caller's context — the caller is already on its way out with an
// error, and the rollback should not be cut short by that context's
// cancellation.
func (m *MetadataStore) scheduleRollback() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.kv.Remove(ctx, kvSpace, kvKey); err != nil {
			m.logger.Error("debugbundle: metadata rollback failed", "error", err)
		}
	}()
}

// Remove deletes the KV metadata entry. Removing an already-absent
// entry is not an error.
func (m *MetadataStore) Remove(ctx context.Context) error {
	if err := m.kv.Remove(ctx, kvSpace, kvKey); err != nil {
		return fmt.Errorf("debugbundle: removing metadata: %w", err)
	}
	return nil
}

// Read returns the persisted metadata, if any entry exists.
func (m *MetadataStore) Read(ctx context.Context) (RunMetadata, bool, error) {
	raw, found, err := m.kv.Get(ctx, kvSpace, kvKey)
	if err != nil {
		return RunMetadata{}, false, fmt.Errorf("debugbundle: reading metadata: %w", err)
	}
	if !found {
		return RunMetadata{}, false, nil
	}

	var metadata RunMetadata
	if err := codec.Unmarshal(raw, &metadata); err != nil {
		return RunMetadata{}, false, fmt.Errorf("debugbundle: decoding metadata: %w", err)
	}
	return metadata, true, nil
}

func sha256File(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return nil, err
	}
	return hasher.Sum(nil), nil
}
