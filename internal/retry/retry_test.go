package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPolicy_SucceedsFirstTry(t *testing.T) {
	calls := 0
	p := New(3, time.Millisecond)
	err := p.Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestPolicy_ExhaustsAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	p := New(4, time.Millisecond)
	err := p.Do(context.Background(), func() error {
		calls++
		return boom
	})
	if err == nil {
		t.Fatal("expected error after exhaustion")
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}
}

func TestPolicy_RecoversMidway(t *testing.T) {
	calls := 0
	p := New(5, time.Millisecond)
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestPolicy_CancelDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(10, time.Hour) // sleep would block forever without cancellation

	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func() error { return errors.New("always fails") })
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestPolicy_InvalidAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 0, Delay: time.Millisecond}
	if err := p.Do(context.Background(), func() error { return nil }); err == nil {
		t.Fatal("expected error for zero attempts")
	}
}
