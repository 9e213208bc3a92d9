// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugbundle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/streamkit/debugbundle/lib/clock"
	"github.com/streamkit/debugbundle/lib/gate"
	"github.com/streamkit/debugbundle/lib/liveconfig"
	"github.com/streamkit/debugbundle/lib/process"
	"github.com/streamkit/debugbundle/lib/shard"
)

// cancelGrace is the fixed SIGTERM-to-SIGKILL grace period used by
// Cancel and Shutdown. It is not configurable — the spec pins it.
const cancelGrace = 1 * time.Second

// Service is the Lifecycle Controller: the single authoritative
// mutator of debug-bundle process state on its designated shard. All
// five public operations route through the shard pool before touching
// any state, so the mutex below only ever contends with itself, never
// with a different shard's goroutine.
type Service struct {
	pool    *shard.Pool
	shardID shard.ID
	gate    *gate.Gate
	spawner process.Spawner
	clock   clock.Clock
	logger  *slog.Logger

	collectorBinaryPath *liveconfig.Binding[string]
	storageDir          *liveconfig.Binding[string]
	metadata            *MetadataStore

	mu     sync.Mutex
	handle *ProcessHandle
}

// NewService constructs a Service bound to shardID within pool.
// Shutdown closes the gate g; the caller must not Close it separately,
// since a second Close panics.
func NewService(
	pool *shard.Pool,
	shardID shard.ID,
	g *gate.Gate,
	spawner process.Spawner,
	collectorBinaryPath *liveconfig.Binding[string],
	storageDir *liveconfig.Binding[string],
	metadata *MetadataStore,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		pool:                pool,
		shardID:             shardID,
		gate:                g,
		spawner:             spawner,
		clock:               clock.Real(),
		collectorBinaryPath: collectorBinaryPath,
		storageDir:          storageDir,
		metadata:            metadata,
		logger:              logger,
	}
}

// Initiate starts a new collector run for jobID with params. See
// spec §4.E for the exact step sequence this mirrors.
func (s *Service) Initiate(ctx context.Context, jobID JobId, params Parameters) error {
	release, err := s.gate.Enter()
	if err != nil {
		return err
	}
	defer release()

	return s.pool.Invoke(ctx, s.shardID, func(ctx context.Context) error {
		return s.initiateLocked(ctx, jobID, params)
	})
}

func (s *Service) initiateLocked(ctx context.Context, jobID JobId, params Parameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	collectorPath := s.collectorBinaryPath.Get()
	if _, err := os.Stat(collectorPath); err != nil {
		return ErrBinaryNotPresent
	}

	if s.handle != nil && s.handle.Status() == StatusRunning {
		return ErrProcessRunning
	}

	if s.handle != nil {
		if err := s.cleanupPreviousRun(ctx, s.handle); err != nil {
			return fmt.Errorf("debugbundle: cleaning up previous run: %w", err)
		}
	}

	dir := s.storageDir.Get()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("debugbundle: creating storage dir %s: %w", dir, err)
	}

	bundleFilePath := filepath.Join(dir, jobID.String()+".zip")
	processOutputFilePath := filepath.Join(dir, jobID.String()+".out")

	argv, err := BuildArgv(collectorPath, bundleFilePath, params)
	if err != nil {
		return err
	}

	handle, err := newProcessHandle(s.spawner, jobID, argv, bundleFilePath, processOutputFilePath, s.clock.Now())
	if err != nil {
		s.handle = nil
		return fmt.Errorf("debugbundle: spawning collector: %w", err)
	}

	s.handle = handle
	s.scheduleWait(handle)

	return nil
}

// cleanupPreviousRun removes the previous run's artifacts: bundle
// file, process-output file, and KV metadata entry. Absence of any of
// these is not an error — only a genuine removal failure is.
func (s *Service) cleanupPreviousRun(ctx context.Context, handle *ProcessHandle) error {
	if err := removeIfExists(handle.BundleFilePath()); err != nil {
		return err
	}
	if err := removeIfExists(handle.ProcessOutputFilePath()); err != nil {
		return err
	}
	if err := s.metadata.Remove(ctx); err != nil {
		return err
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// scheduleWait launches the background task that awaits the child's
// exit and persists its terminal metadata. It holds its own gate
// ticket, independent of the Initiate call's ticket, so Shutdown waits
// for it even after Initiate itself has returned.
func (s *Service) scheduleWait(handle *ProcessHandle) {
	release, err := s.gate.Enter()
	if err != nil {
		// The gate is already closing; the process keeps running
		// detached and Shutdown's own terminate-and-drain handles it.
		return
	}

	go func() {
		defer release()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("debugbundle: background wait task panicked", "job_id", handle.JobID(), "panic", r)
			}
		}()

		handle.Wait()

		err := s.pool.Invoke(context.Background(), s.shardID, func(ctx context.Context) error {
			return s.writeMetadataLocked(ctx, handle)
		})
		if err != nil {
			s.logger.Error("debugbundle: recording run metadata failed", "job_id", handle.JobID(), "error", err)
		}
	}()
}

func (s *Service) writeMetadataLocked(ctx context.Context, handle *ProcessHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A newer run may have replaced this handle (e.g. after a cancel
	// that raced with a fresh Initiate); only the still-current handle
	// gets its metadata written.
	if s.handle != handle {
		return nil
	}

	if err := s.metadata.Write(ctx, handle); err != nil {
		return fmt.Errorf("debugbundle: writing metadata: %w", err)
	}
	return nil
}

// Cancel terminates the running collector for jobID.
func (s *Service) Cancel(ctx context.Context, jobID JobId) error {
	release, err := s.gate.Enter()
	if err != nil {
		return err
	}
	defer release()

	return s.pool.Invoke(ctx, s.shardID, func(ctx context.Context) error {
		return s.cancelLocked(jobID)
	})
}

func (s *Service) cancelLocked(jobID JobId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return ErrNeverStarted
	}
	if s.handle.Status() != StatusRunning {
		return ErrProcessNotRunning
	}
	if !s.handle.JobID().Equal(jobID) {
		return ErrJobIDNotRecognized
	}

	if err := s.handle.Terminate(cancelGrace); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return ErrProcessNotRunning
		}
		return fmt.Errorf("debugbundle: terminating process: %w", err)
	}
	return nil
}

// Status returns a snapshot of the current run, if one has ever
// started. Unlike the other operations it does not take the control
// mutex beyond what routing to the service shard already serializes —
// it is a read of monotonic state.
func (s *Service) Status(ctx context.Context) (StatusSnapshot, error) {
	release, err := s.gate.Enter()
	if err != nil {
		return StatusSnapshot{}, err
	}
	defer release()

	var snapshot StatusSnapshot
	err = s.pool.Invoke(ctx, s.shardID, func(ctx context.Context) error {
		result, statusErr := s.statusLocked()
		snapshot = result
		return statusErr
	})
	return snapshot, err
}

func (s *Service) statusLocked() (StatusSnapshot, error) {
	if s.handle == nil {
		return StatusSnapshot{}, ErrNeverStarted
	}

	status := s.handle.Status()
	snapshot := StatusSnapshot{
		JobID:       s.handle.JobID(),
		Status:      status,
		CreatedAt:   s.handle.CreatedAt(),
		FileName:    filepath.Base(s.handle.BundleFilePath()),
		StdoutLines: s.handle.StdoutLines(),
		StderrLines: s.handle.StderrLines(),
	}

	if status == StatusSuccess {
		info, err := os.Stat(s.handle.BundleFilePath())
		if err != nil {
			return StatusSnapshot{}, fmt.Errorf("debugbundle: stat bundle file: %w", err)
		}
		size := info.Size()
		snapshot.FileSize = &size
	}

	return snapshot, nil
}

// Path returns the absolute path to the bundle file for jobID, once
// the run has succeeded.
func (s *Service) Path(ctx context.Context, jobID JobId) (string, error) {
	release, err := s.gate.Enter()
	if err != nil {
		return "", err
	}
	defer release()

	var result string
	err = s.pool.Invoke(ctx, s.shardID, func(ctx context.Context) error {
		path, pathErr := s.pathLocked(jobID)
		result = path
		return pathErr
	})
	return result, err
}

func (s *Service) pathLocked(jobID JobId) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return "", ErrNeverStarted
	}

	switch s.handle.Status() {
	case StatusRunning:
		return "", ErrProcessRunning
	case StatusError:
		return "", ErrProcessFailed
	}

	if !s.handle.JobID().Equal(jobID) {
		return "", ErrJobIDNotRecognized
	}

	if _, err := os.Stat(s.handle.BundleFilePath()); err != nil {
		return "", fmt.Errorf("debugbundle: bundle file missing: %w", err)
	}

	absPath, err := filepath.Abs(s.handle.BundleFilePath())
	if err != nil {
		return "", fmt.Errorf("debugbundle: resolving bundle path: %w", err)
	}
	return absPath, nil
}

// Delete removes the bundle file for jobID. The process-output file
// and KV metadata entry are left in place until the next Initiate's
// cleanup step, matching spec §4.E.
func (s *Service) Delete(ctx context.Context, jobID JobId) error {
	release, err := s.gate.Enter()
	if err != nil {
		return err
	}
	defer release()

	return s.pool.Invoke(ctx, s.shardID, func(ctx context.Context) error {
		return s.deleteLocked(jobID)
	})
}

func (s *Service) deleteLocked(jobID JobId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return ErrNeverStarted
	}
	if s.handle.Status() == StatusRunning {
		return ErrProcessRunning
	}
	if !s.handle.JobID().Equal(jobID) {
		return ErrJobIDNotRecognized
	}

	if err := removeIfExists(s.handle.BundleFilePath()); err != nil {
		return fmt.Errorf("debugbundle: removing bundle file: %w", err)
	}
	return nil
}

// Shutdown terminates any running process on this service's shard,
// then drains the gate: it blocks until every admitted operation
// (including background wait/metadata tasks) has released, or ctx is
// done first.
func (s *Service) Shutdown(ctx context.Context) error {
	err := s.pool.Invoke(ctx, s.shardID, func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.handle != nil && s.handle.Status() == StatusRunning {
			if err := s.handle.Terminate(cancelGrace); err != nil {
				s.logger.Warn("debugbundle: terminate during shutdown failed", "error", err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("debugbundle: shutdown routing to service shard failed", "error", err)
	}

	return s.gate.Close(ctx)
}
