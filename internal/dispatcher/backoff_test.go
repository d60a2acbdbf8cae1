package dispatcher

import (
	"testing"
	"time"
)

func TestRetryBackoffSchedule(t *testing.T) {
	t.Parallel()

	// Delivery retries follow 100ms, 200ms, 400ms within the default
	// retry budget, capped at 5s for anything beyond it.
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: 100 * time.Millisecond},
		{attempt: 2, want: 200 * time.Millisecond},
		{attempt: 3, want: 400 * time.Millisecond},
		{attempt: 4, want: 800 * time.Millisecond},
		{attempt: 7, want: 5 * time.Second},
		{attempt: 20, want: 5 * time.Second},
	}

	for _, tt := range tests {
		if got := retryBackoff(tt.attempt); got != tt.want {
			t.Errorf("retryBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryBackoffFirstAttempt(t *testing.T) {
	t.Parallel()

	// Attempt numbers below 1 never happen in the delivery loop, but
	// should still yield the initial delay rather than zero.
	for _, attempt := range []int{0, -1} {
		if got := retryBackoff(attempt); got != defaultInitialBackoff {
			t.Errorf("retryBackoff(%d) = %v, want %v", attempt, got, defaultInitialBackoff)
		}
	}
}

func TestRetryBackoffNeverExceedsMax(t *testing.T) {
	t.Parallel()

	for attempt := 1; attempt <= 30; attempt++ {
		if got := retryBackoff(attempt); got > defaultMaxBackoff {
			t.Fatalf("retryBackoff(%d) = %v exceeds max %v", attempt, got, defaultMaxBackoff)
		}
	}
}
