package sync

import "time"

// nextDelay computes the reschedule delay for a job that has already failed
// `attempts` times: min(cap, base * 2^attempts), unless the partner supplied
// a Retry-After hint, which wins (still capped).
func nextDelay(attempts int, base, cap, hint time.Duration) time.Duration {
	if hint > 0 {
		if hint > cap {
			return cap
		}
		return hint
	}
	if attempts < 0 {
		attempts = 0
	}
	delay := base
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= cap || delay <= 0 { // <= 0 catches overflow
			return cap
		}
	}
	if delay > cap {
		return cap
	}
	return delay
}
