package retry

import (
	"context"
	"log/slog"
	"time"
)

// Config parameterizes the retry combinator: attempt cap, exponential backoff
// schedule, and a predicate deciding which errors are worth retrying.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultConfig matches the bounded-backoff policy applied to all external
// calls (document store, spreadsheet, AI service).
var DefaultConfig = Config{
	MaxAttempts: 3,
	BaseDelay:   2 * time.Second,
	MaxDelay:    10 * time.Second,
}

// Retryable decides whether an error is transient. Returning false stops the
// retry loop immediately and surfaces the error.
type Retryable func(ctx context.Context, err error) bool

// Do runs fn up to cfg.MaxAttempts times with exponential backoff between
// attempts. Context cancellation always stops the loop.
func Do(ctx context.Context, cfg Config, retryable Retryable, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var err error
	delay := cfg.BaseDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt == cfg.MaxAttempts || !retryable(ctx, err) {
			return err
		}

		slog.WarnContext(ctx, "retrying after transient error",
			"error", err,
			"attempt", attempt,
			"delay_ms", delay.Milliseconds())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return err
}

// Always treats every error as transient. Use it only where the callee
// already filters permanent failures.
func Always(context.Context, error) bool { return true }
