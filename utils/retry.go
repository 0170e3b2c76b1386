package utils

import (
	"context"
	"fmt"
	"time"
)

// Retry runs fn up to maxAttempts times, sleeping delay × attempt between
// failures (linear backoff: delay, 2×delay, 3×delay, ...). The first nil
// result stops the loop. After the last failure it returns the last error;
// a context cancellation during a wait returns the context error instead.
func Retry(ctx context.Context, maxAttempts int, delay time.Duration, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt < maxAttempts {
			if err := Sleep(ctx, delay*time.Duration(attempt)); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", maxAttempts, lastErr)
}
