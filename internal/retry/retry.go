// Package retry wraps a single fallible operation with bounded,
// backoff-based retry. It deliberately knows nothing about circuit breakers;
// the reliable client composes the two.
package retry

import (
	"context"
	"log/slog"
	"time"
)

// Policy describes how an operation is retried. The zero value is not
// usable; construct policies through the config defaults or set every field.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Delay is the sleep before the second attempt; each further attempt
	// multiplies it by Multiplier (exponential backoff).
	Delay      time.Duration
	Multiplier float64

	// Retryable decides whether an error is worth another attempt.
	// Nil means every error is retryable.
	Retryable func(error) bool
}

// Do runs op under the policy. The dependency name is only used for logging.
// The last attempt's error is returned unwrapped so callers can still
// classify it. A cancelled context stops the backoff sleep immediately.
func (p Policy) Do(ctx context.Context, dependency string, op func(context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := p.Delay
	var err error
	for attempt := 1; ; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}

		if attempt >= maxAttempts || !p.retryable(err) {
			return err
		}

		slog.DebugContext(ctx, "retrying operation",
			"dependency", dependency,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"delay", delay,
			"error", err)

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
		delay = time.Duration(float64(delay) * multiplier)
	}
}

func (p Policy) retryable(err error) bool {
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
