package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_PerClientBuckets(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(1, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("ip:10.0.0.1"))
	assert.True(t, l.Allow("ip:10.0.0.1"))
	assert.False(t, l.Allow("ip:10.0.0.1"))
	assert.True(t, l.Allow("user:7"), "other clients have their own budget")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("ip:10.0.0.1"))
	assert.False(t, l.Allow("ip:10.0.0.1"))
}

func TestRateLimiter_ForgetsIdleClients(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(1, 1)
	l.now = func() time.Time { return now }

	l.Allow("ip:10.0.0.1")
	now = now.Add(limiterIdleTTL + limiterSweepEvery + time.Second)
	l.Allow("ip:10.0.0.2")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.clients, "ip:10.0.0.1")
	assert.Contains(t, l.clients, "ip:10.0.0.2")
}
