// Package testutil provides helpers for asynchronous test assertions.
package testutil

import (
	"testing"
	"time"
)

// Poll reports whether condition became true within timeout, checking
// every interval.
func Poll(timeout, interval time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if condition() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(interval)
	}
}

// Eventually fails the test when condition does not become true within
// timeout. Dispatcher and container tests use it to wait for deliveries
// and job completions without fixed sleeps.
func Eventually(tb testing.TB, timeout, interval time.Duration, condition func() bool) {
	tb.Helper()
	if !Poll(timeout, interval, condition) {
		tb.Fatalf("condition not met within %v", timeout)
	}
}
