package sink

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/datajobs/core"
)

// RetryWithBackoff retries an operation with exponential backoff.
// maxAttempts: maximum number of attempts (must be > 0)
// baseDelay: base delay between retries (doubles on each retry)
// retryable: reports whether an error is worth another attempt; nil retries everything
// Returns the error from the last attempt if all attempts fail.
func RetryWithBackoff(ctx context.Context, operation func() error, maxAttempts int, baseDelay time.Duration, retryable func(error) bool) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}

		slog.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", maxAttempts, "err", lastErr)

		if attempt == maxAttempts {
			break
		}

		// baseDelay * 2^(attempt-1)
		delay := baseDelay << (attempt - 1)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// Retryable reports whether a sink error may succeed on another attempt.
// User and configuration errors are permanent.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch core.Classify(err) {
	case core.CategoryUser, core.CategoryConfig:
		return false
	default:
		return true
	}
}

type retrySink struct {
	next        Sink
	maxAttempts int
	baseDelay   time.Duration
}

// WithRetry wraps s so that retryable failures are attempted up to maxAttempts
// times with exponential backoff starting at baseDelay.
// maxAttempts below 2 returns s unchanged.
func WithRetry(s Sink, maxAttempts int, baseDelay time.Duration) Sink {
	if maxAttempts < 2 {
		return s
	}
	return &retrySink{next: s, maxAttempts: maxAttempts, baseDelay: baseDelay}
}

func (r *retrySink) Ingest(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata) (core.Metadata, error) {
	var out core.Metadata
	err := RetryWithBackoff(ctx, func() error {
		var err error
		out, err = r.next.Ingest(ctx, payloads, dest, md)
		return err
	}, r.maxAttempts, r.baseDelay, Retryable)
	if err != nil {
		return md, err
	}
	return out, nil
}

// Close closes the wrapped sink if it is closable.
func (r *retrySink) Close() error {
	if c, ok := r.next.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
