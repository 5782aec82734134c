package persistence

import (
	"context"
	"errors"

	"github.com/erp/icledger/internal/domain/ledger"
	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/erp/icledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedgerAccountRepository implements ledger.AccountRepository using GORM
type GormLedgerAccountRepository struct {
	db *gorm.DB
}

// NewGormLedgerAccountRepository creates a new GormLedgerAccountRepository
func NewGormLedgerAccountRepository(db *gorm.DB) *GormLedgerAccountRepository {
	return &GormLedgerAccountRepository{db: db}
}

// FindByCompanyCode finds a company's account by code
func (r *GormLedgerAccountRepository) FindByCompanyCode(ctx context.Context, companyID uuid.UUID, code string) (*ledger.Account, error) {
	var model models.LedgerAccountModel
	if err := r.db.WithContext(ctx).
		Where("company_id = ? AND code = ?", companyID, code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCompany lists a company's chart of accounts by code
func (r *GormLedgerAccountRepository) FindByCompany(ctx context.Context, companyID uuid.UUID) ([]ledger.Account, error) {
	return r.find(ctx, "company_id = ?", companyID)
}

// FindByGroup lists every account of every company in the group
func (r *GormLedgerAccountRepository) FindByGroup(ctx context.Context, groupID uuid.UUID) ([]ledger.Account, error) {
	return r.find(ctx, "group_id = ?", groupID)
}

func (r *GormLedgerAccountRepository) find(ctx context.Context, where string, arg uuid.UUID) ([]ledger.Account, error) {
	var rows []models.LedgerAccountModel
	if err := r.db.WithContext(ctx).
		Where(where, arg).
		Order("company_id ASC, code ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ledger.Account, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, nil
}

// Save creates or updates an account
func (r *GormLedgerAccountRepository) Save(ctx context.Context, a *ledger.Account) error {
	return r.db.WithContext(ctx).Save(models.LedgerAccountModelFromDomain(a)).Error
}

// GormLedgerEntryRepository implements ledger.EntryRepository using GORM.
// Entries are append-only; a re-post deletes by source and inserts again.
type GormLedgerEntryRepository struct {
	db *gorm.DB
}

// NewGormLedgerEntryRepository creates a new GormLedgerEntryRepository
func NewGormLedgerEntryRepository(db *gorm.DB) *GormLedgerEntryRepository {
	return &GormLedgerEntryRepository{db: db}
}

// FindAllForGroup lists entries of a group matching the filter
func (r *GormLedgerEntryRepository) FindAllForGroup(ctx context.Context, groupID uuid.UUID, filter ledger.EntryFilter) ([]ledger.Entry, error) {
	query := r.db.WithContext(ctx).Model(&models.LedgerEntryModel{}).Where("group_id = ?", groupID)
	if filter.CompanyID != nil {
		query = query.Where("company_id = ?", *filter.CompanyID)
	}
	if filter.Period != nil {
		query = query.Where("period = ?", filter.Period.String())
	}
	if filter.Source != nil {
		query = query.Where("source_type = ? AND source_ref = ?", filter.Source.Type, filter.Source.Ref)
	}

	var rows []models.LedgerEntryModel
	if err := query.Order("entry_date ASC, created_at ASC, account_code ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ledger.Entry, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// DeleteBySource removes every entry produced by one source document
func (r *GormLedgerEntryRepository) DeleteBySource(ctx context.Context, src ledger.Source) error {
	return r.db.WithContext(ctx).
		Where("source_type = ? AND source_ref = ?", src.Type, src.Ref).
		Delete(&models.LedgerEntryModel{}).Error
}

// CreateAll inserts entries in one statement
func (r *GormLedgerEntryRepository) CreateAll(ctx context.Context, entries []ledger.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*models.LedgerEntryModel, 0, len(entries))
	for i := range entries {
		rows = append(rows, models.LedgerEntryModelFromDomain(&entries[i]))
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// GormPeriodLockRepository implements ledger.PeriodLockRepository using GORM
type GormPeriodLockRepository struct {
	db *gorm.DB
}

// NewGormPeriodLockRepository creates a new GormPeriodLockRepository
func NewGormPeriodLockRepository(db *gorm.DB) *GormPeriodLockRepository {
	return &GormPeriodLockRepository{db: db}
}

// Find returns the lock row for (company, period), or nil
func (r *GormPeriodLockRepository) Find(ctx context.Context, companyID uuid.UUID, period valueobject.Period) (*ledger.PeriodLock, error) {
	return r.find(r.db.WithContext(ctx), companyID, period)
}

// FindForUpdate is Find under SELECT ... FOR UPDATE
func (r *GormPeriodLockRepository) FindForUpdate(ctx context.Context, companyID uuid.UUID, period valueobject.Period) (*ledger.PeriodLock, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), companyID, period)
}

func (r *GormPeriodLockRepository) find(db *gorm.DB, companyID uuid.UUID, period valueobject.Period) (*ledger.PeriodLock, error) {
	var model models.PeriodLockModel
	err := db.Where("company_id = ? AND period = ?", companyID, period.String()).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a lock row
func (r *GormPeriodLockRepository) Save(ctx context.Context, l *ledger.PeriodLock) error {
	return r.db.WithContext(ctx).Save(models.PeriodLockModelFromDomain(l)).Error
}

var (
	_ ledger.AccountRepository    = (*GormLedgerAccountRepository)(nil)
	_ ledger.EntryRepository      = (*GormLedgerEntryRepository)(nil)
	_ ledger.PeriodLockRepository = (*GormPeriodLockRepository)(nil)
)
