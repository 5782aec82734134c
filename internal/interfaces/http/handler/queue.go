package handler

import (
	"context"

	"github.com/erp/icledger/internal/infrastructure/scheduler"
	"github.com/hibiken/asynq"
)

// TaskQueue hands long-running work to the background worker.
// *scheduler.Client satisfies it.
type TaskQueue interface {
	EnqueueMonthClose(ctx context.Context, p scheduler.MonthClosePayload) (*asynq.TaskInfo, error)
	EnqueueRepostPeriod(ctx context.Context, p scheduler.RepostPeriodPayload) (*asynq.TaskInfo, error)
}

func toEnqueuedResponse(info *asynq.TaskInfo) EnqueuedResponse {
	return EnqueuedResponse{TaskID: info.ID, Queue: info.Queue, Type: info.Type}
}
