package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
)

func TestMemoryLimiter(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(core.RateLimitConfig{Requests: 2, Window: time.Minute}).(*memoryLimiter)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i, want := range []bool{true, true, false} {
		ok, err := l.Allow(ctx, "login:1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "hit %d", i+1)
	}

	ok, err := l.Allow(ctx, "login:5.6.7.8")
	require.NoError(t, err)
	assert.True(t, ok, "keys are counted separately")

	now = now.Add(time.Minute)
	ok, err = l.Allow(ctx, "login:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok, "window reset")
}
