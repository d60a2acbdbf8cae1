package dispatcher

import "time"

// retryBackoff returns the delay before the given delivery attempt.
// The first retry waits the initial backoff, each further retry doubles
// it, capped at defaultMaxBackoff.
func retryBackoff(attempt int) time.Duration {
	d := defaultInitialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= defaultMaxBackoff {
			return defaultMaxBackoff
		}
	}
	return d
}
