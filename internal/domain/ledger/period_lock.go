package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// PeriodLock gates mutations for a company's accounting period.
// It is unique per (company, period).
type PeriodLock struct {
	ID         uuid.UUID
	GroupID    uuid.UUID
	CompanyID  uuid.UUID
	Period     valueobject.Period
	Locked     bool
	LockedAt   *time.Time
	LockedBy   string
	Reason     string
	UnlockedAt *time.Time
	UnlockedBy string
	UpdatedAt  time.Time
}

// NewPeriodLock creates an unlocked row for (company, period)
func NewPeriodLock(groupID, companyID uuid.UUID, period valueobject.Period) *PeriodLock {
	return &PeriodLock{
		ID:        uuid.New(),
		GroupID:   groupID,
		CompanyID: companyID,
		Period:    period,
		UpdatedAt: time.Now().UTC(),
	}
}

// Lock closes the period. Locking a locked period refreshes the reason.
func (l *PeriodLock) Lock(by, reason string, now time.Time) {
	at := now.UTC()
	l.Locked = true
	l.LockedAt = &at
	l.LockedBy = strings.TrimSpace(by)
	l.Reason = strings.TrimSpace(reason)
	l.UpdatedAt = at
}

// Unlock reopens the period
func (l *PeriodLock) Unlock(by string, now time.Time) error {
	if !l.Locked {
		return shared.BadRequestf("period %s is not locked", l.Period)
	}
	at := now.UTC()
	l.Locked = false
	l.UnlockedAt = &at
	l.UnlockedBy = strings.TrimSpace(by)
	l.UpdatedAt = at
	return nil
}

// LockedError builds the PERIOD_LOCKED error for a company and period
func LockedError(companyID uuid.UUID, period valueobject.Period) error {
	return shared.NewDomainError(shared.CodePeriodLocked,
		"period "+period.String()+" is locked for company "+companyID.String())
}

// PeriodLockRepository persists period locks. Find methods return
// (nil, nil) when no row exists yet.
type PeriodLockRepository interface {
	Find(ctx context.Context, companyID uuid.UUID, period valueobject.Period) (*PeriodLock, error)
	// FindForUpdate reads the row under a row lock; only meaningful in a transaction.
	FindForUpdate(ctx context.Context, companyID uuid.UUID, period valueobject.Period) (*PeriodLock, error)
	Save(ctx context.Context, l *PeriodLock) error
}
