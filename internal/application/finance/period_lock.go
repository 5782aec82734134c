package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/icledger/internal/domain/ledger"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/erp/icledger/internal/infrastructure/logger"
	"github.com/erp/icledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PeriodLockService opens and closes accounting periods per company
type PeriodLockService struct {
	repos Repositories
	scope TransactionScope
	now   func() time.Time
}

// NewPeriodLockService creates a PeriodLockService
func NewPeriodLockService(repos Repositories, scope TransactionScope, now func() time.Time) *PeriodLockService {
	if now == nil {
		now = time.Now
	}
	return &PeriodLockService{repos: repos, scope: scope, now: now}
}

// Lock closes the period for a company. Locking twice refreshes the reason.
func (s *PeriodLockService) Lock(ctx context.Context, groupID, companyID uuid.UUID, period valueobject.Period, by, reason string) (*ledger.PeriodLock, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "period_lock", "lock")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCompanyID, companyID.String(), telemetry.SpanAttrPeriod, period.String())

	var lock *ledger.PeriodLock
	err := s.scope.Execute(ctx, func(repos Repositories) error {
		var err error
		lock, err = s.loadForUpdate(ctx, repos, groupID, companyID, period)
		if err != nil {
			return err
		}
		lock.Lock(by, reason, s.now())
		if err := repos.PeriodLocks().Save(ctx, lock); err != nil {
			return fmt.Errorf("failed to save period lock: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	logger.L(ctx).Info("Period locked",
		zap.String("company_id", companyID.String()),
		zap.String("period", period.String()),
		zap.String("by", lock.LockedBy),
	)
	return lock, nil
}

// Unlock reopens a locked period
func (s *PeriodLockService) Unlock(ctx context.Context, groupID, companyID uuid.UUID, period valueobject.Period, by string) (*ledger.PeriodLock, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "period_lock", "unlock")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCompanyID, companyID.String(), telemetry.SpanAttrPeriod, period.String())

	var lock *ledger.PeriodLock
	err := s.scope.Execute(ctx, func(repos Repositories) error {
		var err error
		lock, err = s.loadForUpdate(ctx, repos, groupID, companyID, period)
		if err != nil {
			return err
		}
		if err := lock.Unlock(by, s.now()); err != nil {
			return err
		}
		if err := repos.PeriodLocks().Save(ctx, lock); err != nil {
			return fmt.Errorf("failed to save period lock: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	logger.L(ctx).Warn("Period unlocked",
		zap.String("company_id", companyID.String()),
		zap.String("period", period.String()),
		zap.String("by", lock.UnlockedBy),
	)
	return lock, nil
}

// IsLocked reports the lock state; a period never locked is open
func (s *PeriodLockService) IsLocked(ctx context.Context, groupID, companyID uuid.UUID, period valueobject.Period) (bool, error) {
	if _, err := companyInGroup(ctx, s.repos.Subsidiaries(), groupID, companyID); err != nil {
		return false, err
	}
	lock, err := s.repos.PeriodLocks().Find(ctx, companyID, period)
	if err != nil {
		return false, fmt.Errorf("failed to load period lock: %w", err)
	}
	return lock != nil && lock.Locked, nil
}

// AssertNotLocked fails with PERIOD_LOCKED when the period is closed
func (s *PeriodLockService) AssertNotLocked(ctx context.Context, groupID, companyID uuid.UUID, period valueobject.Period) error {
	locked, err := s.IsLocked(ctx, groupID, companyID, period)
	if err != nil {
		return err
	}
	if locked {
		return ledger.LockedError(companyID, period)
	}
	return nil
}

func (s *PeriodLockService) loadForUpdate(ctx context.Context, repos Repositories, groupID, companyID uuid.UUID, period valueobject.Period) (*ledger.PeriodLock, error) {
	if _, err := companyInGroup(ctx, repos.Subsidiaries(), groupID, companyID); err != nil {
		return nil, err
	}
	lock, err := repos.PeriodLocks().FindForUpdate(ctx, companyID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to load period lock: %w", err)
	}
	if lock == nil {
		lock = ledger.NewPeriodLock(groupID, companyID, period)
	}
	return lock, nil
}

// assertUnlockedTx checks the lock inside the caller's transaction, holding
// a row lock on the period-lock row until the transaction ends.
func assertUnlockedTx(ctx context.Context, repos Repositories, companyID uuid.UUID, period valueobject.Period) error {
	lock, err := repos.PeriodLocks().FindForUpdate(ctx, companyID, period)
	if err != nil {
		return fmt.Errorf("failed to load period lock: %w", err)
	}
	if lock != nil && lock.Locked {
		return ledger.LockedError(companyID, period)
	}
	return nil
}
