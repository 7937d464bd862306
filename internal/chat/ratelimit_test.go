package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsBurstThenRefills(t *testing.T) {
	rl := NewRateLimiter(3)
	defer rl.Close()

	now := time.Now()
	for i := 0; i < 3; i++ {
		assert.True(t, rl.allowAt("user-1", now), "message %d should pass", i)
	}
	assert.False(t, rl.allowAt("user-1", now))
	assert.True(t, rl.allowAt("user-2", now), "users have separate budgets")

	assert.True(t, rl.allowAt("user-1", now.Add(20*time.Second)))
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0)
	assert.Nil(t, rl)
	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("user-1"))
	}
	rl.Close()
}

func TestRateLimiterEvictsIdleUsers(t *testing.T) {
	rl := NewRateLimiter(10)
	defer rl.Close()

	now := time.Now()
	rl.allowAt("idle", now.Add(-2*limiterIdleTTL))
	rl.allowAt("active", now)

	rl.evictIdle(now)
	assert.Equal(t, 1, rl.size())
}
