package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLocker(t *testing.T) (*RedisCloseLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCloseLockerWithClient(client, ""), mr
}

func TestRedisCloseLocker_LockUnlock(t *testing.T) {
	locker, mr := newTestRedisLocker(t)
	ctx := context.Background()
	key := "icl:close:g:h:2025-03"

	token, ok, err := locker.Lock(ctx, key, 10*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists(defaultLockPrefix+key))
	assert.Equal(t, 10*time.Minute, mr.TTL(defaultLockPrefix+key))

	t.Run("second holder is refused", func(t *testing.T) {
		_, ok, err := locker.Lock(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("wrong token leaves the key", func(t *testing.T) {
		require.NoError(t, locker.Unlock(ctx, key, "not-mine"))
		assert.True(t, mr.Exists(defaultLockPrefix+key))
	})

	t.Run("owner releases", func(t *testing.T) {
		require.NoError(t, locker.Unlock(ctx, key, token))
		assert.False(t, mr.Exists(defaultLockPrefix+key))
	})
}

func TestRedisCloseLocker_Expiry(t *testing.T) {
	locker, mr := newTestRedisLocker(t)
	ctx := context.Background()

	_, ok, err := locker.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	_, ok, err = locker.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisCloseLocker_ConnectionError(t *testing.T) {
	locker, mr := newTestRedisLocker(t)
	mr.Close()

	_, ok, err := locker.Lock(context.Background(), "k", time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
}
