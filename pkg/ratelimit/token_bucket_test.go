package ratelimit

import (
	"testing"
)

func TestTokenBucketAllowsUpToCapacity(t *testing.T) {
	// refill rate of zero keeps the test deterministic
	bucket := NewTokenBucket(3, 0)

	for i := 0; i < 3; i++ {
		if !bucket.Allow() {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	if bucket.Allow() {
		t.Fatal("request beyond capacity should be denied")
	}
}

func TestTokenBucketAllowN(t *testing.T) {
	bucket := NewTokenBucket(10, 0)

	if !bucket.AllowN(7) {
		t.Fatal("expected 7 tokens to be available")
	}
	if bucket.AllowN(5) {
		t.Fatal("only 3 tokens left, AllowN(5) should fail")
	}
	if !bucket.AllowN(3) {
		t.Fatal("expected remaining 3 tokens to be available")
	}
}

func TestTokenBucketReset(t *testing.T) {
	bucket := NewTokenBucket(2, 0)

	bucket.Allow()
	bucket.Allow()

	if bucket.Allow() {
		t.Fatal("bucket should be empty")
	}

	bucket.Reset()

	if !bucket.Allow() {
		t.Fatal("bucket should be full after reset")
	}
}

func TestIPRateLimiterIsolatesClients(t *testing.T) {
	limiter := NewIPRateLimiter(1, 0)
	defer limiter.Stop()

	if !limiter.Allow("10.0.0.1") {
		t.Fatal("first request from first IP should pass")
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatal("second request from first IP should be limited")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Fatal("request from a different IP should pass")
	}
}
