package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/aezzeldin/storefront-api/pkg/errors"
	"github.com/aezzeldin/storefront-api/pkg/logger"
)

func testConfig(maxAttempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     maxAttempts,
		BackoffStrategy: &ConstantBackoff{Interval: time.Millisecond},
		Logger:          logger.NewLogger("error"),
		RetryableErrors: []error{apperrors.ErrTemporaryFailure, apperrors.ErrTimeout},
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0

	err := Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return apperrors.NewTemporaryError("not yet")
		}
		return nil
	}, testConfig(5))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	fatal := apperrors.NewValidationError("bad input")

	err := Retry(context.Background(), func() error {
		attempts++
		return fatal
	}, testConfig(5))

	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("non-retryable error should not be retried, got %d attempts", attempts)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	attempts := 0

	err := Retry(context.Background(), func() error {
		attempts++
		return apperrors.NewTemporaryError("always failing")
	}, testConfig(3))

	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithDiscard(t *testing.T) {
	discarded := false

	err := RetryWithDiscard(context.Background(), func() error {
		return apperrors.NewTemporaryError("always failing")
	}, testConfig(2), func(cause error) error {
		discarded = true
		return errors.New("discarded")
	})

	if err == nil || err.Error() != "discarded" {
		t.Fatalf("expected discard error, got %v", err)
	}
	if !discarded {
		t.Fatal("discard function was not called")
	}
}

func TestExponentialBackoffGrowsAndCaps(t *testing.T) {
	backoff := &ExponentialBackoff{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
		JitterFactor:    0, // deterministic
	}

	first := backoff.NextBackoff(1)
	second := backoff.NextBackoff(2)
	far := backoff.NextBackoff(10)

	if first != 100*time.Millisecond {
		t.Fatalf("expected 100ms for attempt 1, got %v", first)
	}
	if second != 200*time.Millisecond {
		t.Fatalf("expected 200ms for attempt 2, got %v", second)
	}
	if far != time.Second {
		t.Fatalf("expected cap at 1s, got %v", far)
	}
}
