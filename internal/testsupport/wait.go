package testsupport

import (
	"testing"
	"time"
)

// Eventually polls condition until it returns true or the deadline passes.
func Eventually(t testing.TB, timeout time.Duration, condition func() bool, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, message)
}
