package circuitbreaker

import (
	"testing"
	"time"
)

func newTestBreaker() *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     50 * time.Millisecond,
		HalfOpenMaxCalls: 1,
	})
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := newTestBreaker()

	for i := 0; i < 3; i++ {
		if !cb.Allow() {
			t.Fatalf("call %d should be allowed while closed", i+1)
		}
		cb.Failure()
	}

	if cb.GetState() != StateOpen {
		t.Fatalf("expected open state, got %v", cb.GetState())
	}
	if cb.Allow() {
		t.Fatal("open breaker must reject calls")
	}
}

func TestBreakerHalfOpensAfterTimeout(t *testing.T) {
	cb := newTestBreaker()

	for i := 0; i < 3; i++ {
		cb.Allow()
		cb.Failure()
	}

	time.Sleep(60 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("breaker should allow a probe call after the reset timeout")
	}

	cb.Success()

	if cb.GetState() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %v", cb.GetState())
	}
}

func TestBreakerReset(t *testing.T) {
	cb := newTestBreaker()

	for i := 0; i < 3; i++ {
		cb.Allow()
		cb.Failure()
	}

	cb.Reset()

	if cb.GetState() != StateClosed {
		t.Fatalf("expected closed after reset, got %v", cb.GetState())
	}
	if !cb.Allow() {
		t.Fatal("reset breaker must allow calls")
	}
}

func TestFailureWhileClosedStaysClosedBelowThreshold(t *testing.T) {
	cb := newTestBreaker()

	cb.Allow()
	cb.Failure()
	cb.Allow()
	cb.Failure()

	if cb.GetState() != StateClosed {
		t.Fatalf("expected closed below threshold, got %v", cb.GetState())
	}
}
