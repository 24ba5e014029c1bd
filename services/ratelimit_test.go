package services_test

import (
	"context"
	"os"
	"testing"
	"time"

	"outfitapi/services"
	"outfitapi/test"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRateLimitStoreFixedWindow(t *testing.T) {
	clock := test.NewClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	store := services.NewMemoryRateLimitStore(services.MemoryRateLimitOptions{Limit: 3, Window: time.Minute, Now: clock.Now})
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := store.Hit(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 2-i, result.Remaining)
		assert.Equal(t, 3, result.Limit)
	}

	clock.Advance(20 * time.Second)
	blocked, err := store.Hit(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)
	assert.Equal(t, 0, blocked.Remaining)
	assert.Equal(t, 40, blocked.RetryAfterSeconds(clock.Now()))

	other, err := store.Hit(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	clock.Advance(40 * time.Second)
	reset, err := store.Hit(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, reset.Allowed)
	assert.Equal(t, 2, reset.Remaining)
}

func TestMemoryRateLimitStoreSweep(t *testing.T) {
	clock := test.NewClock(time.Now())
	store := services.NewMemoryRateLimitStore(services.MemoryRateLimitOptions{Limit: 1, Window: time.Minute, Now: clock.Now})
	defer store.Close()

	_, _ = store.Hit(context.Background(), "a")
	clock.Advance(30 * time.Second)
	_, _ = store.Hit(context.Background(), "b")
	assert.Equal(t, 2, store.Len())

	clock.Advance(31 * time.Second)
	store.Sweep()
	assert.Equal(t, 1, store.Len())

	// closing twice is safe
	store.Close()
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	now := time.Now()
	result := services.RateLimitResult{ResetAt: now.Add(1500 * time.Millisecond)}
	assert.Equal(t, 2, result.RetryAfterSeconds(now))
	assert.Equal(t, 0, result.RetryAfterSeconds(now.Add(time.Hour)))
}

func TestRedisRateLimitStore(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}
	client, err := services.NewRedisClient(context.Background(), redisURL)
	require.NoError(t, err)
	defer client.Close()

	prefix := "test:" + uuid.NewString() + ":"
	store := services.NewRedisRateLimitStore(client, prefix, 2, time.Minute)
	ctx := context.Background()

	first, err := store.Hit(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, first.Allowed)
	assert.Equal(t, 1, first.Remaining)

	_, err = store.Hit(ctx, "ip")
	require.NoError(t, err)
	third, err := store.Hit(ctx, "ip")
	require.NoError(t, err)
	assert.False(t, third.Allowed)
	assert.LessOrEqual(t, third.RetryAfterSeconds(time.Now()), 60)

	ttl, err := client.PTTL(ctx, prefix+"ip").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := services.NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}
