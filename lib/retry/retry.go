package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrCancelled = errors.New("cancelled while waiting to retry")
)

// Do invokes fn up to attempts times, sleeping interval between attempts.
// An error for which fatal returns true stops retrying immediately and is
// returned as-is. Cancellation of ctx during the inter-attempt wait stops
// retrying and returns an error wrapping ErrCancelled. Once attempts are
// exhausted the last error is returned.
func Do(ctx context.Context, attempts int, interval time.Duration, fatal func(error) bool, fn func() error) error {
	var lastErr error

	for i := 0; i < attempts; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		if fatal != nil && fatal(err) {
			return err
		}

		lastErr = err
		if i == attempts-1 {
			break
		}

		if err := wait(ctx, interval); err != nil {
			return err
		}
	}

	return lastErr
}

func wait(ctx context.Context, interval time.Duration) error {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
}
