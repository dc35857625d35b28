package fixtree

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBaseDelayExponentialWithCap(t *testing.T) {
	s := Strategy{
		Type:              StrategyRetry,
		MaxAttempts:       6,
		BaseDelay:         time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2,
	}

	assert.Equal(t, time.Second, BaseDelay(s, 1))
	assert.Equal(t, 2*time.Second, BaseDelay(s, 2))
	assert.Equal(t, 4*time.Second, BaseDelay(s, 3))
	assert.Equal(t, 8*time.Second, BaseDelay(s, 4))
	// Capped from 16s and 32s.
	assert.Equal(t, 10*time.Second, BaseDelay(s, 5))
	assert.Equal(t, 10*time.Second, BaseDelay(s, 6))
}

func TestBaseDelayEdgeCases(t *testing.T) {
	assert.Equal(t, time.Duration(0), BaseDelay(Strategy{}, 3), "zero base means no wait")

	s := Strategy{BaseDelay: time.Second, MaxDelay: time.Minute}
	assert.Equal(t, time.Second, BaseDelay(s, 4), "zero multiplier treated as 1")

	s = Strategy{BaseDelay: time.Second, MaxDelay: time.Minute, BackoffMultiplier: 2}
	assert.Equal(t, time.Second, BaseDelay(s, 0), "attempt below 1 clamps to 1")
}

func TestJitterWithinTwentyPercent(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	d := 10 * time.Second
	lo := time.Duration(float64(d) * 0.8)
	hi := time.Duration(float64(d) * 1.2)

	for i := 0; i < 1000; i++ {
		j := Jittered(d, rnd)
		assert.GreaterOrEqual(t, j, lo)
		assert.LessOrEqual(t, j, hi)
	}
}

func TestJitterZeroDelay(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	assert.Equal(t, time.Duration(0), Jittered(0, rnd))
}
