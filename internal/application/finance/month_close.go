package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/erp/icledger/internal/infrastructure/logger"
	"github.com/erp/icledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CloseLocker serializes month-close runs across processes. Lock returns
// ok=false when another holder owns key.
type CloseLocker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// MonthCloseError reports the step at which a close stopped. Steps before
// it are committed; re-running the whole close is safe.
type MonthCloseError struct {
	Step     intercompany.CloseStep
	Period   valueobject.Period
	HoldcoID uuid.UUID
	Err      error
}

func (e *MonthCloseError) Error() string {
	return fmt.Sprintf("month close %s for holdco %s failed at %s: %v", e.Period, e.HoldcoID, e.Step, e.Err)
}

func (e *MonthCloseError) Unwrap() error {
	return e.Err
}

// MonthCloseInput is everything one close needs. IssueDate and DueDays
// follow GenerateInput.
type MonthCloseInput struct {
	GroupID   uuid.UUID
	HoldcoID  uuid.UUID
	Period    valueobject.Period
	Lines     []intercompany.LineInput
	Weights   []intercompany.WeightInput
	IssueDate time.Time
	DueDays   *int
	Actor     string
}

// MonthCloseResult is the outcome of a completed close
type MonthCloseResult struct {
	Run      *intercompany.CloseRun `json:"run"`
	PoolID   uuid.UUID              `json:"pool_id"`
	Invoices []GeneratedInvoice     `json:"invoices"`
}

// MonthCloseOrchestrator runs pool creation, allocation, invoice
// generation and the period lock, in that order, halting at the first
// failure. Each step commits on its own.
type MonthCloseOrchestrator struct {
	repos     Repositories
	scope     TransactionScope
	pools     *CostPoolAllocator
	generator *InvoiceGenerator
	locks     *PeriodLockService
	locker    CloseLocker
	metrics   *telemetry.FinanceMetrics
	lockTTL   time.Duration
	now       func() time.Time
}

// NewMonthCloseOrchestrator creates a MonthCloseOrchestrator
func NewMonthCloseOrchestrator(
	repos Repositories,
	scope TransactionScope,
	pools *CostPoolAllocator,
	generator *InvoiceGenerator,
	locks *PeriodLockService,
	locker CloseLocker,
	metrics *telemetry.FinanceMetrics,
	lockTTL time.Duration,
	now func() time.Time,
) *MonthCloseOrchestrator {
	if now == nil {
		now = time.Now
	}
	return &MonthCloseOrchestrator{
		repos:     repos,
		scope:     scope,
		pools:     pools,
		generator: generator,
		locks:     locks,
		locker:    locker,
		metrics:   metrics,
		lockTTL:   lockTTL,
		now:       now,
	}
}

func closeLockKey(groupID, holdcoID uuid.UUID, period valueobject.Period) string {
	return fmt.Sprintf("icl:close:%s:%s:%s", groupID, holdcoID, period)
}

// RunMonthClose executes the close. A concurrent run for the same holdco
// and period fails with CLOSE_IN_PROGRESS.
func (o *MonthCloseOrchestrator) RunMonthClose(ctx context.Context, in MonthCloseInput) (*MonthCloseResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "month_close", "run")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrGroupID, in.GroupID.String(),
		telemetry.SpanAttrHoldcoID, in.HoldcoID.String(),
		telemetry.SpanAttrPeriod, in.Period.String(),
	)
	log := logger.L(ctx).With(
		zap.String("holdco_id", in.HoldcoID.String()),
		zap.String("period", in.Period.String()),
	)

	if o.locker != nil {
		key := closeLockKey(in.GroupID, in.HoldcoID, in.Period)
		token, ok, err := o.locker.Lock(ctx, key, o.lockTTL)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to acquire close lock: %w", err)
		}
		if !ok {
			err := shared.NewDomainError(shared.CodeCloseInProgress,
				fmt.Sprintf("a month close for %s is already running", in.Period))
			telemetry.RecordError(span, err)
			log.Warn("Month close already in progress")
			return nil, err
		}
		defer func() {
			if err := o.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
				log.Warn("Failed to release close lock", zap.Error(err))
			}
		}()
	}

	started := o.now()
	run := intercompany.StartCloseRun(in.GroupID, in.HoldcoID, in.Period, started)
	if err := o.saveRun(ctx, run); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	log.Info("Month close started", zap.String("run_id", run.ID.String()))

	result := &MonthCloseResult{Run: run}
	steps := []struct {
		step intercompany.CloseStep
		fn   func() error
	}{
		{intercompany.CloseStepAssertUnlocked, func() error {
			return o.locks.AssertNotLocked(ctx, in.GroupID, in.HoldcoID, in.Period)
		}},
		{intercompany.CloseStepCreatePool, func() error {
			pool, err := o.pools.CreateCostPool(ctx, CreateCostPoolInput{
				GroupID:  in.GroupID,
				HoldcoID: in.HoldcoID,
				Period:   in.Period,
				Lines:    in.Lines,
				Weights:  in.Weights,
			})
			if err != nil {
				return err
			}
			result.PoolID = pool.ID
			run.PoolID = &pool.ID
			return nil
		}},
		{intercompany.CloseStepAllocate, func() error {
			_, err := o.pools.AllocateCostPool(ctx, in.GroupID, result.PoolID)
			return err
		}},
		{intercompany.CloseStepGenerateInvoices, func() error {
			invoices, err := o.generator.Generate(ctx, GenerateInput{
				GroupID:   in.GroupID,
				HoldcoID:  in.HoldcoID,
				Period:    in.Period,
				IssueDate: in.IssueDate,
				DueDays:   in.DueDays,
			})
			if err != nil {
				return err
			}
			result.Invoices = invoices
			run.InvoiceCount = len(invoices)
			return nil
		}},
		{intercompany.CloseStepLockPeriod, func() error {
			_, err := o.locks.Lock(ctx, in.GroupID, in.HoldcoID, in.Period, in.Actor, "month close")
			return err
		}},
	}

	for _, s := range steps {
		telemetry.AddEvent(span, "close_step_started", telemetry.SpanAttrStep, string(s.step))
		if err := s.fn(); err != nil {
			closeErr := &MonthCloseError{Step: s.step, Period: in.Period, HoldcoID: in.HoldcoID, Err: err}
			run.Fail(s.step, err, o.now())
			if saveErr := o.saveRun(ctx, run); saveErr != nil {
				log.Error("Failed to record close failure", zap.Error(saveErr))
			}
			o.metrics.MonthClose(ctx, in.GroupID, string(s.step), o.now().Sub(started))
			telemetry.RecordError(span, closeErr)
			log.Warn("Month close failed", zap.String("step", string(s.step)), zap.Error(err))
			return nil, closeErr
		}
		run.StepCompleted(s.step)
		log.Info("Month close step completed", zap.String("step", string(s.step)))
	}

	run.Complete(o.now())
	if err := o.saveRun(ctx, run); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	o.metrics.MonthClose(ctx, in.GroupID, "", o.now().Sub(started))
	log.Info("Month close completed", zap.Int("invoices", run.InvoiceCount))
	return result, nil
}

// LatestRun returns the most recent close run, or NOT_FOUND
func (o *MonthCloseOrchestrator) LatestRun(ctx context.Context, groupID, holdcoID uuid.UUID, period valueobject.Period) (*intercompany.CloseRun, error) {
	run, err := o.repos.CloseRuns().FindLatest(ctx, groupID, holdcoID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to load close run: %w", err)
	}
	if run == nil {
		return nil, shared.NotFoundf("no month close has run for %s", period)
	}
	return run, nil
}

func (o *MonthCloseOrchestrator) saveRun(ctx context.Context, run *intercompany.CloseRun) error {
	err := o.scope.Execute(ctx, func(repos Repositories) error {
		return repos.CloseRuns().Save(ctx, run)
	})
	if err != nil {
		return fmt.Errorf("failed to save close run: %w", err)
	}
	return nil
}

// IsCloseError reports whether err came from a month close step
func IsCloseError(err error) (*MonthCloseError, bool) {
	var ce *MonthCloseError
	ok := errors.As(err, &ce)
	return ce, ok
}
