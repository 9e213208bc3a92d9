// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package kvstore provides a namespaced byte-blob key/value store
// backed by SQLite, built on lib/sqlitepool. Namespaces ("spaces")
// let unrelated subsystems share one database file without key
// collisions; each value is an opaque []byte — callers own
// serialization.
package kvstore
