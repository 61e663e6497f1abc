package pipeline

import (
	"context"
	"fmt"
	"time"

	"listforge/internal/engine/marketplace"
	"listforge/pkg/logger"
)

// retryPolicy retries transient marketplace failures with exponential backoff:
// the base delay doubles per attempt up to a cap, and exhausting the attempt
// budget surfaces as an ordinary error for the caller to treat as a stage
// failure.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

func (p retryPolicy) do(ctx context.Context, log *logger.Logger, op string, fn func() error) error {
	delay := p.baseDelay
	var err error

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !marketplace.IsRetryable(err) {
			return err
		}
		if attempt == p.maxAttempts {
			break
		}

		log.Warn("transient failure, backing off",
			"operation", op, "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > p.maxDelay {
			delay = p.maxDelay
		}
	}

	return fmt.Errorf("%s: retries exhausted after %d attempts: %w", op, p.maxAttempts, err)
}
