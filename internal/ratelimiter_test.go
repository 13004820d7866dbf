package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)

	assert.True(t, limiter.Allow("ip-1"))
	assert.True(t, limiter.Allow("ip-1"))
	assert.True(t, limiter.Allow("ip-1"))
	assert.False(t, limiter.Allow("ip-1"))
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)

	assert.True(t, limiter.Allow("ip-1"))
	assert.False(t, limiter.Allow("ip-1"))
	assert.True(t, limiter.Allow("ip-2"))
}

func TestRateLimiterWindowSlides(t *testing.T) {
	limiter := NewRateLimiter(2, 20*time.Millisecond)

	assert.True(t, limiter.Allow("ip-1"))
	assert.True(t, limiter.Allow("ip-1"))
	assert.False(t, limiter.Allow("ip-1"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, limiter.Allow("ip-1"))
}
