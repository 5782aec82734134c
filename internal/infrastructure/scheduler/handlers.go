package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/erp/icledger/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// MonthCloser runs a month close
type MonthCloser interface {
	RunMonthClose(ctx context.Context, in finance.MonthCloseInput) (*finance.MonthCloseResult, error)
}

// PeriodReposter re-posts a period's invoices
type PeriodReposter interface {
	PostAllForPeriod(ctx context.Context, groupID uuid.UUID, period valueobject.Period) (int, error)
}

// FinanceHandlers process finance tasks
type FinanceHandlers struct {
	closer   MonthCloser
	reposter PeriodReposter
}

// NewFinanceHandlers creates the task handlers
func NewFinanceHandlers(closer MonthCloser, reposter PeriodReposter) *FinanceHandlers {
	return &FinanceHandlers{closer: closer, reposter: reposter}
}

// Register adds every finance handler to mux
func (h *FinanceHandlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskMonthClose, h.HandleMonthClose)
	mux.HandleFunc(TaskRepostPeriod, h.HandleRepostPeriod)
}

// HandleMonthClose runs a queued close
func (h *FinanceHandlers) HandleMonthClose(ctx context.Context, t *asynq.Task) error {
	var p MonthClosePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%w: %v: %w", ErrInvalidPayload, err, asynq.SkipRetry)
	}
	in, err := p.Input()
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	ctx = logger.WithGroupID(ctx, p.GroupID.String())
	if p.Actor != "" {
		ctx = logger.WithActor(ctx, p.Actor)
	}
	result, err := h.closer.RunMonthClose(ctx, in)
	if err != nil {
		return classify(err)
	}

	logger.L(ctx).Info("queued month close completed",
		zap.String("holdco_id", p.HoldcoID.String()),
		zap.String("period", p.Period),
		zap.Int("invoices", len(result.Invoices)),
	)
	return nil
}

// HandleRepostPeriod re-posts a period
func (h *FinanceHandlers) HandleRepostPeriod(ctx context.Context, t *asynq.Task) error {
	var p RepostPeriodPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%w: %v: %w", ErrInvalidPayload, err, asynq.SkipRetry)
	}
	period, err := valueobject.ParsePeriod(p.Period)
	if err != nil {
		return fmt.Errorf("%w: %v: %w", ErrInvalidPayload, err, asynq.SkipRetry)
	}

	ctx = logger.WithGroupID(ctx, p.GroupID.String())
	n, err := h.reposter.PostAllForPeriod(ctx, p.GroupID, period)
	if err != nil {
		return classify(err)
	}
	logger.L(ctx).Info("period reposted", zap.String("period", p.Period), zap.Int("invoices", n))
	return nil
}

// classify marks business-rule failures as final. A concurrent close and
// infrastructure errors stay retryable.
func classify(err error) error {
	if errors.Is(err, shared.ErrCloseInProgress) {
		return err
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}
