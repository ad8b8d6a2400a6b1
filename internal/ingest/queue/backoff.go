package queue

import "time"

// DefaultBackoff is the retry delay schedule indexed by attempt number.
// Monotonically non-decreasing and capped at the final value, so retry
// storms stay bounded while brief blips recover fast.
var DefaultBackoff = []time.Duration{
	0,                // attempt 0: immediate
	1 * time.Second,  // after 1 failure
	5 * time.Second,  // after 2 failures
	30 * time.Second, // after 3+ failures
}

// backoffDelay returns the delay before the next attempt given the number of
// failed attempts so far. Attempts beyond the schedule use its last entry.
func backoffDelay(schedule []time.Duration, attempts int) time.Duration {
	if len(schedule) == 0 {
		return 0
	}
	if attempts < 0 {
		attempts = 0
	}
	if attempts >= len(schedule) {
		attempts = len(schedule) - 1
	}
	return schedule[attempts]
}
