package scheduler

import (
	"math/rand/v2"
	"time"
)

// Spread returns a uniform random duration in [0, period). Used as the
// initial delay before a job's first tick so that thousands of jobs
// scheduled simultaneously (at startup or reload) do not all fire in the
// same instant.
func Spread(period time.Duration) time.Duration {
	if period <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(period)))
}

// computeSpreadStartDate returns now()+Spread(period).
func computeSpreadStartDate(now time.Time, period time.Duration) time.Time {
	return now.Add(Spread(period))
}
