package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func TestDoStopsAtAttemptBound(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Policy{
		MaxAttempts: 3,
		Retryable:   func(error) bool { return true },
	}, func(context.Context) error {
		attempts++
		return errTransient
	})

	if !errors.Is(err, errTransient) {
		t.Fatalf("expected last error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
}

func TestDoSucceedsMidway(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Policy{
		MaxAttempts: 5,
		Retryable:   func(error) bool { return true },
	}, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTransient
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoAbortsOnNonRetryable(t *testing.T) {
	permanent := errors.New("permanent")
	attempts := 0
	err := Do(context.Background(), Policy{
		MaxAttempts: 5,
		Retryable:   func(err error) bool { return errors.Is(err, errTransient) },
	}, func(context.Context) error {
		attempts++
		return permanent
	})

	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestDoHonorsContextDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, Policy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(time.Hour),
		Retryable:   func(error) bool { return true },
	}, func(context.Context) error {
		return errTransient
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLinearBackoff(t *testing.T) {
	b := LinearBackoff(100 * time.Millisecond)
	if b(1) != 100*time.Millisecond || b(3) != 300*time.Millisecond {
		t.Fatalf("unexpected backoff values: %v %v", b(1), b(3))
	}
}
