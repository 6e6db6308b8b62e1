package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "ttharvest/pkg/errors"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.0, // No jitter for predictable testing
	}

	tests := []struct {
		attempt     int
		expected    time.Duration
		description string
	}{
		{1, 100 * time.Millisecond, "First attempt"},
		{2, 200 * time.Millisecond, "Second attempt"},
		{3, 400 * time.Millisecond, "Third attempt"},
		{4, 800 * time.Millisecond, "Fourth attempt"},
		{5, 1 * time.Second, "Fifth attempt (capped at max)"},
		{6, 1 * time.Second, "Sixth attempt (still capped)"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			delay := backoff.NextDelay(test.attempt)
			if delay != test.expected {
				t.Errorf("Expected delay %v, got %v", test.expected, delay)
			}
		})
	}
}

func TestConstantBackoff(t *testing.T) {
	backoff := &ConstantBackoff{Delay: 50 * time.Millisecond}

	for attempt := 1; attempt <= 3; attempt++ {
		if delay := backoff.NextDelay(attempt); delay != 50*time.Millisecond {
			t.Errorf("Expected constant delay, got %v on attempt %d", delay, attempt)
		}
	}

	if delay := backoff.NextDelay(0); delay != 0 {
		t.Errorf("Expected zero delay for attempt 0, got %v", delay)
	}
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 10 * time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Context:     context.Background(),
	}

	err := Do(op, cfg)
	if err != nil {
		t.Errorf("Expected success after retries, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		return errors.New("persistent error")
	}

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: 10 * time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Context:     context.Background(),
	}

	err := Do(op, cfg)
	if err == nil {
		t.Error("Expected error when max attempts exceeded")
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithNonRetryableError(t *testing.T) {
	attempts := 0
	authError := &errs.Error{
		Type:    errs.ErrorTypeAuth,
		Message: "authentication required",
		Code:    401,
	}
	op := func() error {
		attempts++
		return authError
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 10 * time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
	}

	err := Do(op, cfg)
	if !errors.Is(err, authError) {
		t.Errorf("Expected the auth error back, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for non-retryable error, got %d", attempts)
	}
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	op := func() error {
		attempts++
		if attempts == 1 {
			cancel()
		}
		return errors.New("keep retrying")
	}

	cfg := &Config{
		MaxAttempts: 10,
		Backoff:     &ConstantBackoff{Delay: 100 * time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Context:     ctx,
	}

	err := Do(op, cfg)
	if err == nil {
		t.Fatal("Expected error after cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled in chain, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt before cancellation took effect, got %d", attempts)
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	op := func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("not yet")
		}
		return "done", nil
	}

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Context:     context.Background(),
	}

	result, err := DoWithResult(op, cfg)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if result != "done" {
		t.Errorf("Expected result 'done', got %q", result)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"network error", &errs.Error{Type: errs.ErrorTypeNetwork}, true},
		{"rate limit error", &errs.Error{Type: errs.ErrorTypeRateLimit}, true},
		{"server error", &errs.Error{Type: errs.ErrorTypeServerError}, true},
		{"auth error", &errs.Error{Type: errs.ErrorTypeAuth}, false},
		{"not found error", &errs.Error{Type: errs.ErrorTypeNotFound}, false},
		{"context canceled", context.Canceled, false},
		{"unknown plain error", errors.New("something"), true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := DefaultRetryIf(test.err); got != test.expected {
				t.Errorf("DefaultRetryIf(%v) = %v, want %v", test.err, got, test.expected)
			}
		})
	}
}

func TestVisibilityPolicyDoesNotRetryRemovedPosts(t *testing.T) {
	attempts := 0
	removed := &errs.Error{Type: errs.ErrorTypeNotFound, Message: "post removed"}

	retrier := VisibilityPolicy(10, time.Millisecond, nil)
	err := retrier.Do(func() error {
		attempts++
		return removed
	})

	if !errors.Is(err, removed) {
		t.Errorf("Expected the removed error back, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for a removed post, got %d", attempts)
	}
}

func TestVisibilityPolicyRetriesTransientErrors(t *testing.T) {
	attempts := 0
	retrier := VisibilityPolicy(3, time.Millisecond, nil)

	err := retrier.Do(func() error {
		attempts++
		return &errs.Error{Type: errs.ErrorTypeNetwork, Message: "connection reset"}
	})

	if err == nil {
		t.Fatal("Expected exhaustion error")
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestDownloadPolicyRetriesEverythingExceptNotFound(t *testing.T) {
	attempts := 0
	retrier := DownloadPolicy(5, time.Millisecond, nil)

	err := retrier.Do(func() error {
		attempts++
		return &errs.Error{Type: errs.ErrorTypeMedia, Message: "invalid container"}
	})
	if err == nil {
		t.Fatal("Expected exhaustion error")
	}
	if attempts != 5 {
		t.Errorf("Expected 5 attempts, got %d", attempts)
	}

	attempts = 0
	err = retrier.Do(func() error {
		attempts++
		return &errs.Error{Type: errs.ErrorTypeNotFound, Message: "gone"}
	})
	if err == nil {
		t.Fatal("Expected error for removed media")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for removed media, got %d", attempts)
	}
}

func TestRetryIfTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"typed network error", &errs.Error{Type: errs.ErrorTypeNetwork}, true},
		{"typed server error", &errs.Error{Type: errs.ErrorTypeServerError}, true},
		{"typed not found", &errs.Error{Type: errs.ErrorTypeNotFound}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := RetryIfTransient(test.err); got != test.expected {
				t.Errorf("RetryIfTransient(%v) = %v, want %v", test.err, got, test.expected)
			}
		})
	}
}
