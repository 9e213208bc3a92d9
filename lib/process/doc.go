// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides two things: a raw entrypoint error helper
// (Fatal) for use before or after a structured logger is available,
// and an external-process facility for supervising a child process
// whose stdout/stderr must be captured line by line and whose
// termination needs a SIGTERM-then-SIGKILL escalation.
//
// The external-process facility (Spawner, Process, CommandSpawner) is
// what the debug-bundle Lifecycle Controller uses to run the
// collector binary: line-buffered output capture via a consumer
// callback, and process-group termination so a single signal reaches
// every descendant the collector spawns.
package process
