// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugbundle

import "errors"

// Error taxonomy. Expected control-flow outcomes are one of these
// sentinels; anything else returned from Service methods is the
// internal_error case — wrap with fmt.Errorf and check with
// !errors.Is against the sentinels below.
var (
	// ErrBinaryNotPresent is returned by Initiate when the collector
	// binary does not exist on disk.
	ErrBinaryNotPresent = errors.New("debugbundle: collector binary not present")

	// ErrProcessRunning is returned by Initiate and Delete when a
	// handle exists and is currently running.
	ErrProcessRunning = errors.New("debugbundle: process already running")

	// ErrProcessNotRunning is returned by Cancel when the handle
	// exists but has already reached a terminal state.
	ErrProcessNotRunning = errors.New("debugbundle: process not running")

	// ErrNeverStarted is returned by Cancel, Status, Path, and Delete
	// when no handle has ever existed.
	ErrNeverStarted = errors.New("debugbundle: process never started")

	// ErrJobIDNotRecognized is returned by Cancel, Path, and Delete
	// when the supplied job id does not match the live handle.
	ErrJobIDNotRecognized = errors.New("debugbundle: job id not recognized")

	// ErrProcessFailed is returned by Path when the run's terminal
	// status is error.
	ErrProcessFailed = errors.New("debugbundle: process failed")

	// ErrInvalidParameters is returned by the argument builder when
	// parameters fail validation (currently: k8s_namespace).
	ErrInvalidParameters = errors.New("debugbundle: invalid parameters")
)
