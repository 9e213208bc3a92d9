// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugbundle

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/streamkit/debugbundle/lib/process"
)

// JobId is an externally supplied opaque identifier naming one
// collector invocation. The zero value is not valid; use ParseJobId
// or NewJobId.
type JobId struct {
	id uuid.UUID
}

// NewJobId generates a fresh random JobId.
func NewJobId() JobId {
	return JobId{id: uuid.New()}
}

// ParseJobId validates and wraps a raw UUID string.
func ParseJobId(raw string) (JobId, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return JobId{}, fmt.Errorf("debugbundle: invalid job id %q: %w", raw, err)
	}
	return JobId{id: id}, nil
}

// String returns the canonical UUID text form.
func (j JobId) String() string { return j.id.String() }

// IsZero reports whether j is the zero value.
func (j JobId) IsZero() bool { return j.id == uuid.Nil }

// Equal reports whether two job ids name the same invocation.
func (j JobId) Equal(other JobId) bool { return j.id == other.id }

// MarshalText implements encoding.TextMarshaler.
func (j JobId) MarshalText() ([]byte, error) {
	if j.IsZero() {
		return nil, nil
	}
	return []byte(j.id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (j *JobId) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*j = JobId{}
		return nil
	}
	parsed, err := ParseJobId(string(data))
	if err != nil {
		return err
	}
	*j = parsed
	return nil
}

// SCRAMCredentials carries SASL/SCRAM authentication for the
// collector binary's connection to the node being inspected.
type SCRAMCredentials struct {
	Username  string
	Password  string
	Mechanism string
}

// Parameters is the structured record describing one debug-bundle
// run. Every field is optional; an unset field contributes no
// argument to the collector's argv.
type Parameters struct {
	Authn                        *SCRAMCredentials
	ControllerLogsSizeLimitBytes *uint64
	CPUProfilerWaitSeconds       *uint64
	LogsSince                    *string
	LogsSizeLimitBytes           *uint64
	LogsUntil                    *string
	MetricsIntervalSeconds       *uint64
	Partition                    []string
	TLSEnabled                   *bool
	TLSInsecureSkipVerify        *bool
	K8sNamespace                 *string
}

// Status is the derived lifecycle state of a run.
type Status int

const (
	// StatusRunning is the status while wait_status has not yet been
	// observed.
	StatusRunning Status = iota
	// StatusSuccess is the status once the process exited with code 0.
	StatusSuccess
	// StatusError is the status once the process exited non-zero, was
	// killed, or failed to run at all.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// DeriveStatus computes the Status enum from a process.WaitStatus.
// present reports whether the process has reached a terminal state at
// all.
func DeriveStatus(status process.WaitStatus, present bool) Status {
	if !present {
		return StatusRunning
	}
	if status.Success() {
		return StatusSuccess
	}
	return StatusError
}

// RunMetadata is the durable record persisted to the KV store after a
// run reaches a terminal state.
type RunMetadata struct {
	CreatedAt             time.Time
	JobID                 JobId
	BundleFilePath        string
	ProcessOutputFilePath string
	SHA256OfBundle        []byte
	WaitStatus            process.WaitStatus
	WaitStatusPresent     bool
}

// ProcessOutput is the sidecar file content written next to the
// bundle: the captured stdout/stderr lines.
type ProcessOutput struct {
	StdoutLines []string
	StderrLines []string
}

// StatusSnapshot is the read-only view returned by Service.Status.
type StatusSnapshot struct {
	JobID       JobId
	Status      Status
	CreatedAt   time.Time
	FileName    string
	FileSize    *int64
	StdoutLines []string
	StderrLines []string
}
