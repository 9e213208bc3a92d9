// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugbundle

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/streamkit/debugbundle/lib/kvstore"
	"github.com/streamkit/debugbundle/lib/process"
)

func openTestMetadataStore(t *testing.T) *MetadataStore {
	t.Helper()
	kv, err := kvstore.Open(context.Background(), filepath.Join(t.TempDir(), "kv.sqlite"))
	if err != nil {
		t.Fatalf("kvstore.Open: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	return NewMetadataStore(kv, nil)
}

func TestMetadataWriteSuccessComputesChecksum(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	bundlePath := filepath.Join(dir, "J1.zip")
	if err := os.WriteFile(bundlePath, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	spawner := &process.FakeSpawner{Scripts: []process.FakeScript{{WaitStatus: process.WaitStatus{ExitCode: 0}}}}
	jobID := NewJobId()
	handle, err := newProcessHandle(spawner, jobID, []string{"/usr/bin/rpk"}, bundlePath, filepath.Join(dir, "J1.out"), time.Now())
	if err != nil {
		t.Fatalf("newProcessHandle: %v", err)
	}
	handle.Wait()

	store := openTestMetadataStore(t)
	if err := store.Write(ctx, handle); err != nil {
		t.Fatalf("Write: %v", err)
	}

	metadata, found, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !found {
		t.Fatalf("expected metadata entry")
	}
	if len(metadata.SHA256OfBundle) != 32 {
		t.Fatalf("SHA256OfBundle length = %d, want 32", len(metadata.SHA256OfBundle))
	}
	if !metadata.JobID.Equal(jobID) {
		t.Fatalf("JobID = %v, want %v", metadata.JobID, jobID)
	}

	if _, err := os.Stat(filepath.Join(dir, "J1.out")); err != nil {
		t.Fatalf("expected process output sidecar to exist: %v", err)
	}
}

func TestMetadataWriteFailureRecordsEmptyChecksum(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	spawner := &process.FakeSpawner{Scripts: []process.FakeScript{{WaitStatus: process.WaitStatus{ExitCode: 2}}}}
	handle, err := newProcessHandle(spawner, NewJobId(), []string{"/usr/bin/rpk"}, filepath.Join(dir, "J1.zip"), filepath.Join(dir, "J1.out"), time.Now())
	if err != nil {
		t.Fatalf("newProcessHandle: %v", err)
	}
	handle.Wait()

	store := openTestMetadataStore(t)
	if err := store.Write(ctx, handle); err != nil {
		t.Fatalf("Write: %v", err)
	}

	metadata, found, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !found {
		t.Fatalf("expected metadata entry")
	}
	if len(metadata.SHA256OfBundle) != 0 {
		t.Fatalf("expected empty checksum for failed run, got %d bytes", len(metadata.SHA256OfBundle))
	}
}

func TestMetadataWriteRollsBackOnSidecarFailure(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	bundlePath := filepath.Join(dir, "J1.zip")
	if err := os.WriteFile(bundlePath, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// A sidecar path under a directory that doesn't exist makes the
	// os.WriteFile inside Write fail after the KV entry has already
	// been put, exercising the rollback path.
	outputPath := filepath.Join(dir, "missing", "J1.out")

	spawner := &process.FakeSpawner{Scripts: []process.FakeScript{{WaitStatus: process.WaitStatus{ExitCode: 0}}}}
	handle, err := newProcessHandle(spawner, NewJobId(), []string{"/usr/bin/rpk"}, bundlePath, outputPath, time.Now())
	if err != nil {
		t.Fatalf("newProcessHandle: %v", err)
	}
	handle.Wait()

	store := openTestMetadataStore(t)
	if err := store.Write(ctx, handle); err == nil {
		t.Fatal("Write() = nil error, want error from sidecar write failure")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, found, err := store.Read(ctx)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if !found {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for scheduleRollback to remove the KV entry")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMetadataRemove(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	spawner := &process.FakeSpawner{Scripts: []process.FakeScript{{WaitStatus: process.WaitStatus{ExitCode: 0}}}}
	handle, err := newProcessHandle(spawner, NewJobId(), []string{"/usr/bin/rpk"}, filepath.Join(dir, "J1.zip"), filepath.Join(dir, "J1.out"), time.Now())
	if err != nil {
		t.Fatalf("newProcessHandle: %v", err)
	}
	handle.Wait()

	store := openTestMetadataStore(t)
	if err := store.Write(ctx, handle); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := store.Remove(ctx); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, found, err := store.Read(ctx); err != nil {
		t.Fatalf("Read: %v", err)
	} else if found {
		t.Fatalf("expected no metadata entry after Remove")
	}
}
