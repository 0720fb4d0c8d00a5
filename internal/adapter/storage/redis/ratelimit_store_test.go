package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitStore_AllowWithinLimit(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewRateLimitStore(client)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		result, err := store.Allow(ctx, "user-1:money", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should be allowed", i)
		assert.Equal(t, int64(5), result.Limit)
		assert.Equal(t, 5-i, result.Remaining)
	}
}

func TestRateLimitStore_DenyOverLimit(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewRateLimitStore(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Allow(ctx, "user-2:login", 3, time.Minute)
		require.NoError(t, err)
	}

	result, err := store.Allow(ctx, "user-2:login", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, int64(0), result.Remaining)
	assert.Greater(t, result.ResetAt, time.Now().Unix()-1)
}

func TestRateLimitStore_KeysAreIndependent(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewRateLimitStore(client)
	ctx := context.Background()

	_, err := store.Allow(ctx, "user-3:money", 1, time.Minute)
	require.NoError(t, err)
	denied, err := store.Allow(ctx, "user-3:money", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, denied.Allowed)

	other, err := store.Allow(ctx, "user-4:money", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, other.Allowed, "other identifier has its own counter")
}

func TestRateLimitStore_WindowExpires(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewRateLimitStore(client)
	ctx := context.Background()

	_, err := store.Allow(ctx, "user-5:login", 1, time.Second)
	require.NoError(t, err)

	// Expire the window key; the next check starts a fresh counter.
	s.FastForward(3 * time.Second)

	result, err := store.Allow(ctx, "user-5:login", 1, time.Second)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}
