// Package retry provides bounded retry with exponential backoff for single
// fallible reads against an RPC backend.
package retry

import (
	"context"
	"time"

	"clmmgate/internal/model"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 250 * time.Millisecond
)

// Policy bounds how often an operation is reissued. Delays double after
// each failed attempt: baseDelay, 2*baseDelay, ... No jitter.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Default returns the gateway-wide policy: 3 attempts, 250ms base delay.
func Default() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	return p
}

// Do runs fn until it succeeds or attempts are exhausted. The last error
// is wrapped as RetryExhausted. Context cancellation interrupts the
// backoff wait and propagates ctx.Err unwrapped.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	p = p.normalized()

	delay := p.BaseDelay
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}

		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
	}
	return model.Errorf(model.KindRetryExhausted, "after %d attempts: %w", p.MaxAttempts, lastErr)
}

// Value runs fn under the policy and returns its result.
func Value[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}
