package intercompany

import (
	"context"
	"time"

	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// CloseStep is one stage of the month close
type CloseStep string

const (
	CloseStepAssertUnlocked   CloseStep = "ASSERT_UNLOCKED"
	CloseStepCreatePool       CloseStep = "CREATE_POOL"
	CloseStepAllocate         CloseStep = "ALLOCATE"
	CloseStepGenerateInvoices CloseStep = "GENERATE_INVOICES"
	CloseStepLockPeriod       CloseStep = "LOCK_PERIOD"
)

// CloseSteps lists the steps in execution order
var CloseSteps = []CloseStep{
	CloseStepAssertUnlocked,
	CloseStepCreatePool,
	CloseStepAllocate,
	CloseStepGenerateInvoices,
	CloseStepLockPeriod,
}

// CloseRunStatus is the outcome of a close run
type CloseRunStatus string

const (
	CloseRunRunning   CloseRunStatus = "RUNNING"
	CloseRunCompleted CloseRunStatus = "COMPLETED"
	CloseRunFailed    CloseRunStatus = "FAILED"
)

// CloseRun records one invocation of the month close for a holdco and
// period. It is a log for operators; a retried close re-runs every step.
type CloseRun struct {
	shared.GroupAggregateRoot
	HoldcoID     uuid.UUID
	Period       valueobject.Period
	Status       CloseRunStatus
	LastStep     CloseStep
	FailedStep   CloseStep
	ErrorMessage string
	PoolID       *uuid.UUID
	InvoiceCount int
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// StartCloseRun opens a RUNNING record
func StartCloseRun(groupID, holdcoID uuid.UUID, period valueobject.Period, now time.Time) *CloseRun {
	return &CloseRun{
		GroupAggregateRoot: shared.NewGroupAggregateRoot(groupID),
		HoldcoID:           holdcoID,
		Period:             period,
		Status:             CloseRunRunning,
		StartedAt:          now.UTC(),
	}
}

// StepCompleted advances the last completed step
func (r *CloseRun) StepCompleted(step CloseStep) {
	r.LastStep = step
	r.Touch()
}

// Fail marks the run FAILED at the given step
func (r *CloseRun) Fail(step CloseStep, err error, now time.Time) {
	r.Status = CloseRunFailed
	r.FailedStep = step
	if err != nil {
		r.ErrorMessage = err.Error()
	}
	finished := now.UTC()
	r.FinishedAt = &finished
	r.Touch()
}

// Complete marks the run COMPLETED
func (r *CloseRun) Complete(now time.Time) {
	r.Status = CloseRunCompleted
	finished := now.UTC()
	r.FinishedAt = &finished
	r.Touch()
}

// CloseRunRepository persists close runs
type CloseRunRepository interface {
	FindLatest(ctx context.Context, groupID, holdcoID uuid.UUID, period valueobject.Period) (*CloseRun, error)
	Save(ctx context.Context, run *CloseRun) error
}
