package cache

import (
	"context"
	"fmt"

	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/infrastructure/config"
	"go.uber.org/zap"
)

// LockerFactory builds the month-close locker from configuration
type LockerFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// LockerFactoryOption is a functional option for configuring the factory
type LockerFactoryOption func(*LockerFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) LockerFactoryOption {
	return func(f *LockerFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to a
// process-local locker. Default is true.
func WithInMemoryFallback(allow bool) LockerFactoryOption {
	return func(f *LockerFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewLockerFactory creates a new factory
func NewLockerFactory(cfg config.RedisConfig, opts ...LockerFactoryOption) *LockerFactory {
	f := &LockerFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// LockerCloser is a CloseLocker that owns resources
type LockerCloser interface {
	finance.CloseLocker
	Ping(ctx context.Context) error
	Close() error
}

// CreateRedisLocker connects a Redis-backed locker
func (f *LockerFactory) CreateRedisLocker() (LockerCloser, error) {
	locker, err := NewRedisCloseLocker(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis close locker: %w", err)
	}
	return locker, nil
}

// CreateInMemoryLocker creates a process-local locker.
// Two instances sharing a database can then close the same period at once.
func (f *LockerFactory) CreateInMemoryLocker() LockerCloser {
	return NewInMemoryCloseLocker()
}

// CreateLocker returns the Redis locker when Redis is enabled and reachable,
// otherwise the in-memory one if fallback is allowed.
func (f *LockerFactory) CreateLocker() (LockerCloser, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("redis disabled, using in-memory close locker")
		return f.CreateInMemoryLocker(), nil
	}

	locker, err := f.CreateRedisLocker()
	if err == nil {
		f.logger.Info("using Redis close locker", zap.String("addr", f.redisConfig.Addr()))
		return locker, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for close locking but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory close locker. "+
		"Concurrent month closes across instances will not be serialized.",
		zap.Error(err),
	)
	return f.CreateInMemoryLocker(), nil
}
