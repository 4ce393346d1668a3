package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"clmmgate/internal/model"
)

func TestDoSucceedsAfterFailures(t *testing.T) {
	policy := Policy{MaxAttempts: 3, BaseDelay: 250 * time.Millisecond}

	calls := 0
	var gaps []time.Duration
	last := time.Now()

	start := time.Now()
	got, err := Value(context.Background(), policy, func(context.Context) (string, error) {
		now := time.Now()
		gaps = append(gaps, now.Sub(last))
		last = now
		calls++
		if calls < 3 {
			return "", fmt.Errorf("transient %d", calls)
		}
		return "ok", nil
	})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Fatalf("got %q, want ok", got)
	}
	if calls != 3 {
		t.Fatalf("operation issued %d times, want 3", calls)
	}
	// Delays are 250ms then 500ms.
	if elapsed < 750*time.Millisecond {
		t.Fatalf("backoff too short: %v", elapsed)
	}
	if gaps[1] < 250*time.Millisecond || gaps[2] < 500*time.Millisecond {
		t.Fatalf("unexpected gaps: %v", gaps)
	}
}

func TestDoExhaustion(t *testing.T) {
	policy := Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}

	calls := 0
	cause := errors.New("boom")
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return cause
	})

	if calls != 2 {
		t.Fatalf("operation issued %d times, want 2", calls)
	}
	if !model.IsKind(err, model.KindRetryExhausted) {
		t.Fatalf("expected retry_exhausted, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("last error not preserved: %v", err)
	}
}

func TestDoContextCancelDuringBackoff(t *testing.T) {
	policy := Policy{MaxAttempts: 3, BaseDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := policy.Do(ctx, func(context.Context) error {
		return errors.New("always fails")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDefaultsApplied(t *testing.T) {
	calls := 0
	err := Policy{}.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("once")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("operation issued %d times, want 2", calls)
	}
}
