package genai

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy describes the bounded retry schedule for gateway calls. It is
// a pure value object so retry behavior can be unit tested without network.
type RetryPolicy struct {
	MaxAttempts   int           // total attempts, including the first
	InitialDelay  time.Duration // delay before the second attempt
	BackoffFactor float64       // multiplier applied per subsequent attempt
	MaxDelay      time.Duration // cap on any single delay
	Jitter        bool          // randomize delays to avoid thundering herd
}

// DefaultRetryPolicy matches the interview gateway requirements: three
// attempts, exponential backoff from one second, capped at eight.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		BackoffFactor: 2.0,
		MaxDelay:      8 * time.Second,
		Jitter:        true,
	}
}

// Delay computes the backoff before the given attempt (1-based). The first
// attempt has no delay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	delay := time.Duration(float64(p.InitialDelay) * math.Pow(p.BackoffFactor, float64(attempt-2)))
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter && delay > 0 {
		// +/-10% jitter
		jitter := time.Duration(rand.Int63n(int64(delay)/5+1)) - delay/10
		delay += jitter
		if delay < 0 {
			delay = p.InitialDelay
		}
	}
	return delay
}
