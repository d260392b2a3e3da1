package aggregator

import "time"

// MustFlush reports whether a flush should be forced. It is a
// pure function of current state and must not suspend.
func (a *Aggregator) MustFlush() bool {
	if a.outstandingLength >= a.config.FlushThresholdBytes {
		return true
	}
	if time.Since(a.lastFlushAt) >= a.config.FlushThresholdTime {
		return true
	}
	if a.hasSealPending {
		return true
	}
	if a.mergeBatchCount > 0 {
		return true
	}
	return false
}
