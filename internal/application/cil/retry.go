package cil

import (
	"math"
	"math/rand"
	"time"
)

// BackoffPolicy is a jittered exponential backoff schedule for LLM-dependent
// jobs, grounded in the same
// shape as a conventional retry-with-backoff executor: initial delay,
// multiplier, cap, optional jitter.
type BackoffPolicy struct {
	MaxAttempts int
	InitialDelay time.Duration
	MaxDelay time.Duration
	Multiplier float64
	Jitter bool
}

// DefaultBackoffPolicy returns the braiding-job retry schedule: a handful of
// attempts with exponential backoff, capped, before the job is parked.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		MaxAttempts: 5,
		InitialDelay: 2 * time.Second,
		MaxDelay: 2 * time.Minute,
		Multiplier: 2.0,
		Jitter: true,
	}
}

// Delay computes the backoff delay before attempt (1-indexed).
func (p BackoffPolicy) Delay(attempt int, rnd *rand.Rand) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter {
		if rnd == nil {
			rnd = rand.New(rand.NewSource(int64(attempt)))
		}
		d = d * (0.5 + rnd.Float64()*0.5)
	}
	return time.Duration(d)
}

// Exhausted reports whether attempt has used up the policy's budget.
func (p BackoffPolicy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
