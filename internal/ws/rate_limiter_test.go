package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	req := require.New(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(3, 300*time.Millisecond)
	rl.now = func() time.Time { return now }
	rl.lastCheck = now

	req.True(rl.allow())
	req.True(rl.allow())
	req.True(rl.allow())
	req.False(rl.allow(), "bucket empty")

	now = now.Add(150 * time.Millisecond)
	req.True(rl.allow(), "one token refilled")
	req.False(rl.allow())

	now = now.Add(time.Hour)
	for i := 0; i < 3; i++ {
		req.True(rl.allow())
	}
	req.False(rl.allow(), "refill is capped at capacity")
}

func TestRateLimiter_SanitisesArguments(t *testing.T) {
	req := require.New(t)
	rl := newRateLimiter(0, 0)
	req.Equal(1.0, rl.capacity)
	req.Equal(1.0, rl.rate)
}
