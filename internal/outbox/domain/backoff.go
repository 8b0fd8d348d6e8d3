package domain

import (
	"math"
	"time"
)

const maxBackoffShift = 62

// BackoffPolicy computes capped exponential retry delays.
type BackoffPolicy struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns Base * 2^attempt capped at Max. Attempts below zero count as zero.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if p.Base <= 0 {
		return 0
	}

	if attempt < 0 {
		attempt = 0
	} else if attempt > maxBackoffShift {
		attempt = maxBackoffShift
	}

	multiplier := int64(1) << attempt

	var delay time.Duration
	if int64(p.Base) > math.MaxInt64/multiplier {
		delay = time.Duration(math.MaxInt64)
	} else {
		delay = time.Duration(int64(p.Base) * multiplier)
	}

	if p.Max > 0 && delay > p.Max {
		return p.Max
	}
	return delay
}

// NextRetryAt returns now plus the delay for the given attempt, in UTC.
func (p BackoffPolicy) NextRetryAt(now time.Time, attempt int) time.Time {
	return now.Add(p.Delay(attempt)).UTC()
}
