package link

import "time"

// calculateBackoff returns the delay before the next dial: base doubled once per
// consecutive failure, capped at ceiling.
func calculateBackoff(failures int, base, ceiling time.Duration) time.Duration {
	if failures < 0 {
		failures = 0
	}
	delay := base
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay >= ceiling {
			return ceiling
		}
	}
	if delay > ceiling {
		return ceiling
	}
	return delay
}
