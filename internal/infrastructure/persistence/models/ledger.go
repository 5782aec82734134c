package models

import (
	"time"

	"github.com/erp/icledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerAccountModel is the persistence model for a ledger Account.
type LedgerAccountModel struct {
	ID        uuid.UUID          `gorm:"type:uuid;primary_key"`
	GroupID   uuid.UUID          `gorm:"type:uuid;not null;index"`
	CompanyID uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_account_company_code,priority:1"`
	Code      string             `gorm:"type:varchar(30);not null;uniqueIndex:idx_ledger_account_company_code,priority:2"`
	Name      string             `gorm:"type:varchar(200);not null"`
	Type      ledger.AccountType `gorm:"type:varchar(20);not null"`
	CreatedAt time.Time          `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LedgerAccountModel) TableName() string {
	return "ledger_accounts"
}

// ToDomain converts the persistence model to a domain Account.
func (m *LedgerAccountModel) ToDomain() *ledger.Account {
	return &ledger.Account{
		ID:        m.ID,
		GroupID:   m.GroupID,
		CompanyID: m.CompanyID,
		Code:      m.Code,
		Name:      m.Name,
		Type:      m.Type,
		CreatedAt: m.CreatedAt,
	}
}

// LedgerAccountModelFromDomain creates a new persistence model from a domain Account.
func LedgerAccountModelFromDomain(a *ledger.Account) *LedgerAccountModel {
	return &LedgerAccountModel{
		ID:        a.ID,
		GroupID:   a.GroupID,
		CompanyID: a.CompanyID,
		Code:      a.Code,
		Name:      a.Name,
		Type:      a.Type,
		CreatedAt: a.CreatedAt,
	}
}

// LedgerEntryModel is the persistence model for a ledger Entry.
type LedgerEntryModel struct {
	ID          uuid.UUID         `gorm:"type:uuid;primary_key"`
	GroupID     uuid.UUID         `gorm:"type:uuid;not null;index"`
	CompanyID   uuid.UUID         `gorm:"type:uuid;not null;index:idx_ledger_entry_company_period,priority:1"`
	Period      string            `gorm:"type:varchar(7);not null;index:idx_ledger_entry_company_period,priority:2"`
	EntryDate   time.Time         `gorm:"type:date;not null"`
	AccountID   uuid.UUID         `gorm:"type:uuid;not null;index"`
	AccountCode string            `gorm:"type:varchar(30);not null"`
	Debit       decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	Credit      decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	Memo        string            `gorm:"type:varchar(300)"`
	SourceType  ledger.SourceType `gorm:"type:varchar(20);not null;index:idx_ledger_entry_source,priority:1"`
	SourceRef   uuid.UUID         `gorm:"type:uuid;not null;index:idx_ledger_entry_source,priority:2"`
	CreatedAt   time.Time         `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

// ToDomain converts the persistence model to a domain Entry.
func (m *LedgerEntryModel) ToDomain() ledger.Entry {
	return ledger.Entry{
		ID:          m.ID,
		GroupID:     m.GroupID,
		CompanyID:   m.CompanyID,
		Period:      parsePeriod(m.Period),
		EntryDate:   m.EntryDate,
		AccountID:   m.AccountID,
		AccountCode: m.AccountCode,
		Debit:       m.Debit,
		Credit:      m.Credit,
		Memo:        m.Memo,
		SourceType:  m.SourceType,
		SourceRef:   m.SourceRef,
		CreatedAt:   m.CreatedAt,
	}
}

// LedgerEntryModelFromDomain creates a new persistence model from a domain Entry.
func LedgerEntryModelFromDomain(e *ledger.Entry) *LedgerEntryModel {
	return &LedgerEntryModel{
		ID:          e.ID,
		GroupID:     e.GroupID,
		CompanyID:   e.CompanyID,
		Period:      e.Period.String(),
		EntryDate:   e.EntryDate,
		AccountID:   e.AccountID,
		AccountCode: e.AccountCode,
		Debit:       e.Debit,
		Credit:      e.Credit,
		Memo:        e.Memo,
		SourceType:  e.SourceType,
		SourceRef:   e.SourceRef,
		CreatedAt:   e.CreatedAt,
	}
}

// PeriodLockModel is the persistence model for a PeriodLock.
type PeriodLockModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	GroupID    uuid.UUID `gorm:"type:uuid;not null;index"`
	CompanyID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_period_lock_company_period,priority:1"`
	Period     string    `gorm:"type:varchar(7);not null;uniqueIndex:idx_period_lock_company_period,priority:2"`
	Locked     bool      `gorm:"not null;default:false"`
	LockedAt   *time.Time
	LockedBy   string `gorm:"type:varchar(100)"`
	Reason     string `gorm:"type:varchar(500)"`
	UnlockedAt *time.Time
	UnlockedBy string    `gorm:"type:varchar(100)"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PeriodLockModel) TableName() string {
	return "period_locks"
}

// ToDomain converts the persistence model to a domain PeriodLock.
func (m *PeriodLockModel) ToDomain() *ledger.PeriodLock {
	return &ledger.PeriodLock{
		ID:         m.ID,
		GroupID:    m.GroupID,
		CompanyID:  m.CompanyID,
		Period:     parsePeriod(m.Period),
		Locked:     m.Locked,
		LockedAt:   m.LockedAt,
		LockedBy:   m.LockedBy,
		Reason:     m.Reason,
		UnlockedAt: m.UnlockedAt,
		UnlockedBy: m.UnlockedBy,
		UpdatedAt:  m.UpdatedAt,
	}
}

// PeriodLockModelFromDomain creates a new persistence model from a domain PeriodLock.
func PeriodLockModelFromDomain(l *ledger.PeriodLock) *PeriodLockModel {
	return &PeriodLockModel{
		ID:         l.ID,
		GroupID:    l.GroupID,
		CompanyID:  l.CompanyID,
		Period:     l.Period.String(),
		Locked:     l.Locked,
		LockedAt:   l.LockedAt,
		LockedBy:   l.LockedBy,
		Reason:     l.Reason,
		UnlockedAt: l.UnlockedAt,
		UnlockedBy: l.UnlockedBy,
		UpdatedAt:  l.UpdatedAt,
	}
}
