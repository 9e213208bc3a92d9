// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/streamkit/debugbundle/lib/testutil"
)

func TestInvokeRunsOnTargetShard(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := NewPool(ctx, 4)

	var observed ID
	err := pool.Invoke(ctx, ID(2), func(shardCtx context.Context) error {
		id, ok := CurrentShard(shardCtx)
		if !ok {
			t.Fatalf("CurrentShard not set inside dispatched task")
		}
		observed = id
		return nil
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if observed != ID(2) {
		t.Fatalf("observed shard = %d, want 2", observed)
	}
}

func TestInvokePropagatesError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := NewPool(ctx, 1)
	sentinel := errors.New("boom")

	err := pool.Invoke(ctx, ID(0), func(context.Context) error {
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("Invoke error = %v, want %v", err, sentinel)
	}
}

func TestNestedInvokeOnSameShardDoesNotDeadlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := NewPool(ctx, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		err := pool.Invoke(ctx, ID(0), func(shardCtx context.Context) error {
			// A nested call to the same shard must run inline rather
			// than sending to the shard's own inbox, which no one is
			// draining right now.
			return pool.Invoke(shardCtx, ID(0), func(context.Context) error {
				return nil
			})
		})
		if err != nil {
			t.Errorf("nested Invoke: %v", err)
		}
	}()

	testutil.RequireClosed(t, done, 2*time.Second, "nested same-shard Invoke deadlocked")
}

func TestInvokeRespectsContextCancellation(t *testing.T) {
	poolCtx, cancelPool := context.WithCancel(context.Background())
	pool := NewPool(poolCtx, 1)
	cancelPool()

	callCtx, cancelCall := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancelCall()

	err := pool.Invoke(callCtx, ID(0), func(context.Context) error { return nil })
	if err == nil {
		t.Fatalf("expected error after pool context cancellation")
	}
}
