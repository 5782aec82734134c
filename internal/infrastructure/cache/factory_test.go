package cache

import (
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/erp/icledger/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockerFactory_CreateLocker(t *testing.T) {
	t.Run("redis disabled uses in-memory", func(t *testing.T) {
		locker, err := NewLockerFactory(config.RedisConfig{}).CreateLocker()
		require.NoError(t, err)
		defer locker.Close()
		assert.IsType(t, &InMemoryCloseLocker{}, locker)
	})

	t.Run("reachable redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		port, err := strconv.Atoi(mr.Port())
		require.NoError(t, err)
		locker, err := NewLockerFactory(config.RedisConfig{
			Enabled: true,
			Host:    mr.Host(),
			Port:    port,
		}).CreateLocker()
		require.NoError(t, err)
		defer locker.Close()
		assert.IsType(t, &RedisCloseLocker{}, locker)
	})

	unreachable := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}

	t.Run("unreachable redis falls back", func(t *testing.T) {
		locker, err := NewLockerFactory(unreachable).CreateLocker()
		require.NoError(t, err)
		defer locker.Close()
		assert.IsType(t, &InMemoryCloseLocker{}, locker)
	})

	t.Run("unreachable redis without fallback fails", func(t *testing.T) {
		_, err := NewLockerFactory(unreachable, WithInMemoryFallback(false)).CreateLocker()
		assert.Error(t, err)
	})
}
