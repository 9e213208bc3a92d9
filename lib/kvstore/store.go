// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kvstore

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/streamkit/debugbundle/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	space TEXT NOT NULL,
	key   TEXT NOT NULL,
	value BLOB NOT NULL,
	PRIMARY KEY (space, key)
);
`

// Store is a namespaced byte-blob key/value store. Store is safe for
// concurrent use; each operation borrows a connection from the
// underlying pool for the duration of the call.
type Store struct {
	pool *sqlitepool.Pool
}

// Open opens (creating if necessary) a kvstore at path, applying the
// schema if it is not already present.
func Open(ctx context.Context, path string) (*Store, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path: path,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", path, err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Put stores value under (space, key), overwriting any existing
// entry.
func (s *Store) Put(ctx context.Context, space, key string, value []byte) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("kvstore: put: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"INSERT INTO kv (space, key, value) VALUES (?, ?, ?) "+
			"ON CONFLICT (space, key) DO UPDATE SET value = excluded.value",
		&sqlitex.ExecOptions{Args: []any{space, key, value}},
	)
	if err != nil {
		return fmt.Errorf("kvstore: put %s/%s: %w", space, key, err)
	}
	return nil
}

// Get returns the value stored under (space, key). The second return
// value reports whether an entry was found.
func (s *Store) Get(ctx context.Context, space, key string) ([]byte, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("kvstore: get: %w", err)
	}
	defer s.pool.Put(conn)

	var value []byte
	found := false
	err = sqlitex.Execute(conn,
		"SELECT value FROM kv WHERE space = ? AND key = ?",
		&sqlitex.ExecOptions{
			Args: []any{space, key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				length := stmt.ColumnLen(0)
				value = make([]byte, length)
				stmt.ColumnBytes(0, value)
				return nil
			},
		},
	)
	if err != nil {
		return nil, false, fmt.Errorf("kvstore: get %s/%s: %w", space, key, err)
	}
	return value, found, nil
}

// Remove deletes the entry at (space, key), if present. Removing a
// missing key is not an error.
func (s *Store) Remove(ctx context.Context, space, key string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("kvstore: remove: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"DELETE FROM kv WHERE space = ? AND key = ?",
		&sqlitex.ExecOptions{Args: []any{space, key}},
	)
	if err != nil {
		return fmt.Errorf("kvstore: remove %s/%s: %w", space, key, err)
	}
	return nil
}
