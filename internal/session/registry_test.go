package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestValidateAndConsumeSingleUse(t *testing.T) {
	r := NewMemoryRegistry(time.Minute, 0)
	ctx := context.Background()

	sess, err := r.Create(ctx, "room-1", 42)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if !r.ValidateAndConsume(ctx, sess.SessionId, "room-1", 42) {
		t.Fatalf("first validation should succeed")
	}
	if r.ValidateAndConsume(ctx, sess.SessionId, "room-1", 42) {
		t.Fatalf("second validation with the same session must fail")
	}
}

func TestExpiredSessionFails(t *testing.T) {
	r := NewMemoryRegistry(10*time.Millisecond, 0)
	ctx := context.Background()

	sess, err := r.Create(ctx, "room-1", 42)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if r.ValidateAndConsume(ctx, sess.SessionId, "room-1", 42) {
		t.Fatalf("expired session must fail even when otherwise matched")
	}
	if got := r.Size(); got != 0 {
		t.Fatalf("expired entry should be purged on lookup, size=%d", got)
	}
}

func TestMismatchedSessionSurvives(t *testing.T) {
	r := NewMemoryRegistry(time.Minute, 0)
	ctx := context.Background()

	sess, err := r.Create(ctx, "room-1", 42)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if r.ValidateAndConsume(ctx, sess.SessionId, "room-2", 42) {
		t.Fatalf("wrong room must fail")
	}
	if r.ValidateAndConsume(ctx, sess.SessionId, "room-1", 43) {
		t.Fatalf("wrong user must fail")
	}

	// the rightful owner can still consume it
	if !r.ValidateAndConsume(ctx, sess.SessionId, "room-1", 42) {
		t.Fatalf("mismatched attempts must not consume the session")
	}
}

func TestConcurrentConsumeSingleWinner(t *testing.T) {
	r := NewMemoryRegistry(time.Minute, 0)
	ctx := context.Background()

	sess, err := r.Create(ctx, "room-1", 42)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.ValidateAndConsume(ctx, sess.SessionId, "room-1", 42) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}
}

func TestSweepPurgesExpired(t *testing.T) {
	r := NewMemoryRegistry(5*time.Millisecond, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := r.Create(ctx, "room-1", int64(i+1)); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	time.Sleep(10 * time.Millisecond)

	if purged := r.Sweep(); purged != 3 {
		t.Fatalf("expected 3 purged, got %d", purged)
	}
	if got := r.Size(); got != 0 {
		t.Fatalf("expected empty registry after sweep, size=%d", got)
	}
}

func TestCreateFailsWhenFull(t *testing.T) {
	r := NewMemoryRegistry(time.Minute, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := r.Create(ctx, "room-1", int64(i+1)); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	if _, err := r.Create(ctx, "room-1", 3); err != ErrRegistryFull {
		t.Fatalf("expected ErrRegistryFull, got %v", err)
	}
}
