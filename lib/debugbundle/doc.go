// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package debugbundle supervises one external diagnostic-collector
// run at a time on behalf of a node: it builds the collector's
// argument vector, owns the spawned child process and its captured
// output, persists run metadata, and exposes start/cancel/status/
// path/delete to callers that may be running on any shard.
//
// Everything that mutates run state does so on a single designated
// shard behind one control mutex (see lib/shard, lib/gate); callers
// on other shards are transparently routed there and back.
package debugbundle
