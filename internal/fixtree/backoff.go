package fixtree

import (
	"math"
	"math/rand"
	"time"
)

// jitterFraction is the maximum relative deviation applied to a computed
// delay: the final wait is uniform in [0.8d, 1.2d].
const jitterFraction = 0.2

// BaseDelay returns the pre-jitter wait before attempt n (1-indexed) of a
// strategy: min(base * multiplier^(n-1), max).
func BaseDelay(s Strategy, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if s.BaseDelay <= 0 {
		return 0
	}
	mult := s.BackoffMultiplier
	if mult <= 0 {
		mult = 1
	}
	d := float64(s.BaseDelay) * math.Pow(mult, float64(attempt-1))
	if s.MaxDelay > 0 {
		d = math.Min(d, float64(s.MaxDelay))
	}
	return time.Duration(d)
}

// Jittered applies +-jitterFraction uniform jitter to a delay. rnd must
// yield values in [0,1); sessions seed one rand.Rand each so concurrent
// sessions never contend on a shared source.
func Jittered(d time.Duration, rnd *rand.Rand) time.Duration {
	if d <= 0 {
		return 0
	}
	// factor in [1-jitterFraction, 1+jitterFraction]
	factor := 1 + jitterFraction*(2*rnd.Float64()-1)
	return time.Duration(float64(d) * factor)
}

// delayForAttempt combines the capped exponential base with jitter.
func delayForAttempt(s Strategy, attempt int, rnd *rand.Rand) time.Duration {
	return Jittered(BaseDelay(s, attempt), rnd)
}
