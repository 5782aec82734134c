package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/infrastructure/config"
	"github.com/hibiken/asynq"
)

// Enqueuer is the part of asynq.Client the scheduler uses
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client queues finance tasks
type Client struct {
	enqueuer Enqueuer
	cfg      config.WorkerConfig
}

// NewClient wraps an asynq client with the worker's queue settings
func NewClient(redis asynq.RedisConnOpt, cfg config.WorkerConfig) *Client {
	return NewClientWithEnqueuer(asynq.NewClient(redis), cfg)
}

// NewClientWithEnqueuer is NewClient over any Enqueuer
func NewClientWithEnqueuer(e Enqueuer, cfg config.WorkerConfig) *Client {
	return &Client{enqueuer: e, cfg: cfg}
}

func (c *Client) options() []asynq.Option {
	return []asynq.Option{
		asynq.Queue(c.cfg.Queue),
		asynq.MaxRetry(c.cfg.MaxRetry),
		asynq.Timeout(c.cfg.TaskTimeout),
	}
}

// EnqueueMonthClose queues a close. A close already queued or running for
// the same holdco and period yields shared.ErrCloseInProgress.
func (c *Client) EnqueueMonthClose(ctx context.Context, p MonthClosePayload) (*asynq.TaskInfo, error) {
	task, err := NewMonthCloseTask(p)
	if err != nil {
		return nil, shared.BadRequestf("%v", err)
	}
	info, err := c.enqueuer.EnqueueContext(ctx, task, c.options()...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil, shared.ErrCloseInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue month close: %w", err)
	}
	return info, nil
}

// EnqueueRepostPeriod queues a repost of every invoice in a period
func (c *Client) EnqueueRepostPeriod(ctx context.Context, p RepostPeriodPayload) (*asynq.TaskInfo, error) {
	task, err := NewRepostPeriodTask(p)
	if err != nil {
		return nil, shared.BadRequestf("%v", err)
	}
	info, err := c.enqueuer.EnqueueContext(ctx, task, c.options()...)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue repost: %w", err)
	}
	return info, nil
}

// Close releases the Redis connection
func (c *Client) Close() error {
	return c.enqueuer.Close()
}
