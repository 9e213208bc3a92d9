// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package gate provides an admission-counting barrier: background
// work registers itself with Enter before running and releases with
// the returned function when done, while Close waits for every
// currently-admitted holder to finish before returning and refuses
// all further admission. This is the Go shape of the hold-a-gate
// pattern used to keep a shutdown from racing ahead of in-flight
// background tasks.
package gate

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Enter once the gate has been closed.
var ErrClosed = errors.New("gate: closed")

// Gate is safe for concurrent use.
type Gate struct {
	mu      sync.Mutex
	count   int
	closing bool
	drained chan struct{}
}

// New returns an open Gate.
func New() *Gate {
	return &Gate{drained: make(chan struct{})}
}

// Enter admits one holder. It returns ErrClosed if Close has already
// been called. On success, the caller must invoke the returned
// release function exactly once when its work is done.
func (g *Gate) Enter() (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closing {
		return nil, ErrClosed
	}
	g.count++

	var released bool
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if released {
			return
		}
		released = true
		g.count--
		if g.closing && g.count == 0 {
			close(g.drained)
		}
	}, nil
}

// Close stops admitting new holders and blocks until every
// currently-admitted holder has released, or ctx is done first. Close
// is not idempotent: it must be called at most once, and calling it a
// second time panics, matching the single-use shutdown barrier idiom
// used elsewhere in this codebase.
func (g *Gate) Close(ctx context.Context) error {
	g.mu.Lock()
	if g.closing {
		g.mu.Unlock()
		panic("gate: Close called twice")
	}
	g.closing = true
	remaining := g.count
	if remaining == 0 {
		close(g.drained)
	}
	g.mu.Unlock()

	select {
	case <-g.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
