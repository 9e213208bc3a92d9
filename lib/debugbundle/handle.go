// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugbundle

import (
	"sync"
	"time"

	"github.com/streamkit/debugbundle/lib/process"
)

// ProcessHandle owns one in-flight (or terminated) collector run: the
// spawned child, its captured output, its paths, and its terminal
// status once known.
//
// ProcessHandle is safe for concurrent use. Snapshot methods
// (JobID, Paths, CreatedAt, Status, StdoutLines, StderrLines) may be
// called from any goroutine while the process is still running.
type ProcessHandle struct {
	jobID                 JobId
	bundleFilePath        string
	processOutputFilePath string
	createdAt             time.Time
	proc                  process.Process

	mu          sync.Mutex
	stdoutLines []string
	stderrLines []string
	waitStatus  process.WaitStatus
	waitPresent bool

	waitOnce sync.Once
}

// newProcessHandle spawns the collector binary described by argv and
// returns a handle that captures its stdout/stderr as they arrive.
func newProcessHandle(spawner process.Spawner, jobID JobId, argv []string, bundleFilePath, processOutputFilePath string, createdAt time.Time) (*ProcessHandle, error) {
	h := &ProcessHandle{
		jobID:                 jobID,
		bundleFilePath:        bundleFilePath,
		processOutputFilePath: processOutputFilePath,
		createdAt:             createdAt,
	}

	proc, err := spawner.Spawn(process.Options{
		Path:         argv[0],
		Args:         argv[1:],
		OnStdoutLine: h.appendStdout,
		OnStderrLine: h.appendStderr,
	})
	if err != nil {
		return nil, err
	}
	h.proc = proc
	return h, nil
}

func (h *ProcessHandle) appendStdout(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.waitPresent {
		return
	}
	h.stdoutLines = append(h.stdoutLines, line)
}

func (h *ProcessHandle) appendStderr(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.waitPresent {
		return
	}
	h.stderrLines = append(h.stderrLines, line)
}

// JobID returns the job id this handle was created for.
func (h *ProcessHandle) JobID() JobId { return h.jobID }

// BundleFilePath returns the path the collector was told to write its
// bundle to.
func (h *ProcessHandle) BundleFilePath() string { return h.bundleFilePath }

// ProcessOutputFilePath returns the path the captured output sidecar
// is written to.
func (h *ProcessHandle) ProcessOutputFilePath() string { return h.processOutputFilePath }

// CreatedAt returns when the handle was constructed (i.e. when the
// child was spawned).
func (h *ProcessHandle) CreatedAt() time.Time { return h.createdAt }

// WaitStatus returns the terminal status if one has been observed.
func (h *ProcessHandle) WaitStatus() (process.WaitStatus, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waitStatus, h.waitPresent
}

// Status derives the Status enum from the current terminal state.
func (h *ProcessHandle) Status() Status {
	status, present := h.WaitStatus()
	return DeriveStatus(status, present)
}

// StdoutLines returns a copy of the captured stdout lines so far.
func (h *ProcessHandle) StdoutLines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.stdoutLines...)
}

// StderrLines returns a copy of the captured stderr lines so far.
func (h *ProcessHandle) StderrLines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.stderrLines...)
}

// Terminate forwards to the underlying process's termination
// facility with the given grace period.
func (h *ProcessHandle) Terminate(grace time.Duration) error {
	return h.proc.Terminate(grace)
}

// Wait blocks until the child exits and records its terminal status.
// Safe to call more than once — only the first call actually waits;
// later calls return the already-recorded status. If the underlying
// wait itself fails abnormally, the recorded status is a synthetic
// exit code 1 carrying the error, matching the "exited{code=1}, then
// re-raise" behavior the host runtime's wait primitive exhibits —
// here there is nothing to re-raise across, so the error is both
// stored and returned.
func (h *ProcessHandle) Wait() process.WaitStatus {
	h.waitOnce.Do(func() {
		status := h.proc.Wait()
		if status.Err != nil {
			status = process.WaitStatus{ExitCode: 1, Err: status.Err}
		}
		h.mu.Lock()
		h.waitStatus = status
		h.waitPresent = true
		h.mu.Unlock()
	})
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waitStatus
}

// Close asserts that the process has reached a terminal state.
// Destroying a handle whose process is still running is a programming
// error in the lifecycle controller, not a recoverable condition.
func (h *ProcessHandle) Close() {
	h.mu.Lock()
	present := h.waitPresent
	h.mu.Unlock()
	if !present {
		panic("debugbundle: ProcessHandle destroyed while process is still running")
	}
}
