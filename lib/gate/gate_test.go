// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gate

import (
	"context"
	"testing"
	"time"
)

func TestEnterAfterCloseFails(t *testing.T) {
	g := New()
	if err := g.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := g.Enter(); err != ErrClosed {
		t.Fatalf("Enter after Close: got %v, want ErrClosed", err)
	}
}

func TestCloseWaitsForHolders(t *testing.T) {
	g := New()
	release, err := g.Enter()
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}

	closed := make(chan struct{})
	go func() {
		_ = g.Close(context.Background())
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatalf("Close returned before holder released")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("Close did not return after release")
	}
}

func TestCloseContextTimeout(t *testing.T) {
	g := New()
	release, err := g.Enter()
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := g.Close(ctx); err != context.DeadlineExceeded {
		t.Fatalf("Close: got %v, want context.DeadlineExceeded", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	g := New()
	release, err := g.Enter()
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	release()
	release()

	if err := g.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
