package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amishk599/boardfeed/internal/retry/retrytest"
)

var errTransient = errors.New("element not present")

func newClock() *retrytest.Clock {
	return retrytest.NewClock(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))
}

func TestDo_SucceedsOnFirstAttempt(t *testing.T) {
	clock := newClock()
	calls := 0
	err := Fixed(3, time.Second).WithClock(clock).Do(context.Background(), func(_ context.Context, _ int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if len(clock.Sleeps()) != 0 {
		t.Fatalf("expected no sleeps, got %v", clock.Sleeps())
	}
}

func TestDo_RetriesTransient_SucceedsOnThirdAttempt(t *testing.T) {
	clock := newClock()
	calls := 0
	err := Fixed(5, time.Second).WithClock(clock).Do(context.Background(), func(_ context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if got := clock.Elapsed(); got != 2*time.Second {
		t.Fatalf("expected 2s of backoff, got %v", got)
	}
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	clock := newClock()
	calls := 0
	err := Fixed(10, time.Second).WithClock(clock).Do(context.Background(), func(_ context.Context, _ int) error {
		calls++
		return errTransient
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected last error to be wrapped, got %v", err)
	}
	if calls != 10 {
		t.Fatalf("expected 10 calls, got %d", calls)
	}
	if len(clock.Sleeps()) != 9 {
		t.Fatalf("expected 9 sleeps, got %d", len(clock.Sleeps()))
	}
}

func TestDo_DoesNotRetryPermanent(t *testing.T) {
	calls := 0
	err := Fixed(3, time.Second).WithClock(newClock()).Do(context.Background(), func(_ context.Context, _ int) error {
		calls++
		return Permanent(errTransient)
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected the permanent cause, got %v", err)
	}
	if errors.Is(err, ErrExhausted) {
		t.Fatal("permanent errors must not report exhaustion")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call (no retry), got %d", calls)
	}
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Fixed(3, time.Second).WithClock(newClock()).Do(ctx, func(_ context.Context, _ int) error {
		calls++
		cancel()
		return errTransient
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestUntil_PollsUntilConditionHolds(t *testing.T) {
	clock := newClock()
	polls := 0
	err := Fixed(40, 250*time.Millisecond).WithClock(clock).Until(context.Background(), func(_ context.Context) (bool, error) {
		polls++
		return polls == 4, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if polls != 4 {
		t.Fatalf("expected 4 polls, got %d", polls)
	}
	if got := clock.Elapsed(); got != 750*time.Millisecond {
		t.Fatalf("expected 750ms virtual wait, got %v", got)
	}
}

func TestUntil_TimesOut(t *testing.T) {
	err := Fixed(3, time.Millisecond).WithClock(newClock()).Until(context.Background(), func(_ context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestDelay_Exponential(t *testing.T) {
	p := Policy{MaxAttempts: 4, Backoff: time.Second, Multiplier: 2}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestDelay_JitterStaysInBounds(t *testing.T) {
	p := Exponential(3, 10*time.Second)
	for i := 0; i < 100; i++ {
		d := p.Delay(1)
		if d < 7*time.Second || d > 13*time.Second {
			t.Fatalf("Delay(1) = %v, want within ±30%% of 10s", d)
		}
	}
}

func TestZeroPolicy_SingleAttempt(t *testing.T) {
	calls := 0
	err := Policy{}.Do(context.Background(), func(_ context.Context, _ int) error {
		calls++
		return errTransient
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
