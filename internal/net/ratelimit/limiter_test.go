package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_BurstIsExhausted(t *testing.T) {
	limiter := NewLimiter(2.0, 2)

	assert.True(t, limiter.allow("query2.finance.yahoo.com"))
	assert.True(t, limiter.allow("query2.finance.yahoo.com"))
	assert.False(t, limiter.allow("query2.finance.yahoo.com"), "burst exhausted")
}

func TestLimiter_HostsAreIndependent(t *testing.T) {
	limiter := NewLimiter(1.0, 1)

	assert.True(t, limiter.allow("fc.yahoo.com"))
	assert.True(t, limiter.allow("query2.finance.yahoo.com"))
	assert.False(t, limiter.allow("fc.yahoo.com"))
	assert.Equal(t, 2, limiter.hosts())
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	limiter := NewLimiter(0.1, 1)
	require.NoError(t, limiter.Wait(context.Background(), "h"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.Wait(ctx, "h"))
}

func TestNewLimiter_ClampsBurst(t *testing.T) {
	limiter := NewLimiter(10, 0)
	assert.True(t, limiter.allow("h"))
}
