package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/icledger/internal/application/finance"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockPrefix = "icl:lock:"

// unlockScript deletes the key only while it still holds the caller's token,
// so an expired holder cannot release a lock re-acquired by someone else.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCloseLocker implements finance.CloseLocker on a shared Redis.
// Suitable for deployments where several API or worker processes may try
// to close the same period.
type RedisCloseLocker struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisCloseLocker connects to Redis and verifies the connection
func NewRedisCloseLocker(cfg RedisConfig) (*RedisCloseLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCloseLocker{
		client:    client,
		keyPrefix: defaultLockPrefix,
	}, nil
}

// NewRedisCloseLockerWithClient wraps an existing client
func NewRedisCloseLockerWithClient(client *redis.Client, keyPrefix string) *RedisCloseLocker {
	if keyPrefix == "" {
		keyPrefix = defaultLockPrefix
	}
	return &RedisCloseLocker{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Lock takes key for ttl with SET NX. ok is false when the key is held.
func (l *RedisCloseLocker) Lock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, l.keyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !acquired {
		return "", false, nil
	}
	return token, true, nil
}

// Unlock releases key if it is still held with token
func (l *RedisCloseLocker) Unlock(ctx context.Context, key, token string) error {
	if err := unlockScript.Run(ctx, l.client, []string{l.keyPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}

// Ping reports whether Redis answers
func (l *RedisCloseLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (l *RedisCloseLocker) Close() error {
	return l.client.Close()
}

var _ finance.CloseLocker = (*RedisCloseLocker)(nil)
