package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWaitURL_SameHost_EnforcesRate(t *testing.T) {
	limiter := NewHostLimiter(10, 1) // one every 100ms
	ctx := context.Background()

	// First call should return immediately.
	if err := limiter.WaitURL(ctx, "https://acme.wd1.myworkdayjobs.com/job/1"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := limiter.WaitURL(ctx, "https://acme.wd1.myworkdayjobs.com/job/2"); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	elapsed := time.Since(start)

	// Should have waited close to 100ms (allow 80ms for timer jitter).
	if elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait, got %v", elapsed)
	}
}

func TestWaitURL_DifferentHosts_NoCrossBlocking(t *testing.T) {
	limiter := NewHostLimiter(5, 1)
	ctx := context.Background()

	if err := limiter.WaitURL(ctx, "https://a.example.com/job/1"); err != nil {
		t.Fatalf("host a wait: %v", err)
	}

	// Another host must not block.
	start := time.Now()
	if err := limiter.WaitURL(ctx, "https://b.example.com/job/1"); err != nil {
		t.Fatalf("host b wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected host b wait to be near-instant, got %v", elapsed)
	}
}

func TestWaitURL_ContextCancellation(t *testing.T) {
	limiter := NewHostLimiter(0.1, 1) // one every 10s
	if err := limiter.WaitURL(context.Background(), "https://a.example.com/"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := limiter.WaitURL(ctx, "https://a.example.com/"); err == nil {
		t.Fatal("expected error when the context expires before a token is available")
	}
}

func TestWaitURL_DisabledNeverBlocks(t *testing.T) {
	limiter := NewHostLimiter(0, 0)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 50; i++ {
		if err := limiter.WaitURL(ctx, "https://a.example.com/"); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected unlimited waits to be instant, got %v", elapsed)
	}
}

func TestWaitURL_UnparseableURLSharesFallbackBucket(t *testing.T) {
	limiter := NewHostLimiter(10, 1)
	ctx := context.Background()
	if err := limiter.WaitURL(ctx, "::not a url"); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	start := time.Now()
	if err := limiter.WaitURL(ctx, "relative/path"); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected hostless URLs to share a bucket, waited only %v", elapsed)
	}
}
