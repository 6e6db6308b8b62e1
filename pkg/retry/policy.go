package retry

import (
	"errors"
	"net"
	"os"
	"time"

	errs "ttharvest/pkg/errors"
	"ttharvest/pkg/logger"
)

// The three request paths carry distinct budgets: page fetches are cheap
// and frequent, visibility checks are slow page loads, and media downloads
// tie up a browser session for tens of seconds.

// PagePolicy returns the retrier for paginated metadata queries.
// Fixed delay, small bounded attempt count.
func PagePolicy(attempts int, delay time.Duration, log logger.Logger) *Retrier {
	return NewRetrier(&Config{
		MaxAttempts: attempts,
		Backoff:     &ConstantBackoff{Delay: delay},
		RetryIf:     DefaultRetryIf,
		Logger:      log,
	})
}

// VisibilityPolicy returns the retrier for post-detail visibility checks.
// Generous attempt count with a long fixed cooldown; only timeouts and
// transient network faults retry.
func VisibilityPolicy(attempts int, cooldown time.Duration, log logger.Logger) *Retrier {
	return NewRetrier(&Config{
		MaxAttempts: attempts,
		Backoff:     &ConstantBackoff{Delay: cooldown},
		RetryIf:     RetryIfTransient,
		Logger:      log,
	})
}

// DownloadPolicy returns the retrier for media downloads. Any failure
// retries until the budget is spent; the caller converts exhaustion into
// an invalid-media result rather than an abort.
func DownloadPolicy(attempts int, cooldown time.Duration, log logger.Logger) *Retrier {
	return NewRetrier(&Config{
		MaxAttempts: attempts,
		Backoff:     &ConstantBackoff{Delay: cooldown},
		RetryIf: func(err error) bool {
			var apiErr *errs.Error
			if errors.As(err, &apiErr) && apiErr.Type == errs.ErrorTypeNotFound {
				return false
			}
			return err != nil
		},
		Logger: log,
	})
}

// RetryIfTransient retries timeouts and typed transient errors only.
func RetryIfTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}

	return false
}
