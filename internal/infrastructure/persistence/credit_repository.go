package persistence

import (
	"context"
	"errors"

	"github.com/erp/icledger/internal/domain/credit"
	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCreditAccountRepository implements credit.AccountRepository using GORM
type GormCreditAccountRepository struct {
	db *gorm.DB
}

// NewGormCreditAccountRepository creates a new GormCreditAccountRepository
func NewGormCreditAccountRepository(db *gorm.DB) *GormCreditAccountRepository {
	return &GormCreditAccountRepository{db: db}
}

// FindByIDForGroup finds a credit account by ID within a group
func (r *GormCreditAccountRepository) FindByIDForGroup(ctx context.Context, groupID, id uuid.UUID) (*credit.Account, error) {
	return r.first(r.db.WithContext(ctx), "group_id = ? AND id = ?", groupID, id)
}

// FindByIDForUpdate finds a credit account under a row lock
func (r *GormCreditAccountRepository) FindByIDForUpdate(ctx context.Context, groupID, id uuid.UUID) (*credit.Account, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), "group_id = ? AND id = ?", groupID, id)
}

// FindByReseller finds the account a subsidiary holds for a reseller
func (r *GormCreditAccountRepository) FindByReseller(ctx context.Context, groupID, subsidiaryID, resellerID uuid.UUID) (*credit.Account, error) {
	return r.first(r.db.WithContext(ctx), "group_id = ? AND subsidiary_id = ? AND reseller_id = ?", groupID, subsidiaryID, resellerID)
}

func (r *GormCreditAccountRepository) first(db *gorm.DB, where string, args ...any) (*credit.Account, error) {
	var model models.CreditAccountModel
	if err := db.Where(where, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a credit account
func (r *GormCreditAccountRepository) Save(ctx context.Context, a *credit.Account) error {
	return r.db.WithContext(ctx).Save(models.CreditAccountModelFromDomain(a)).Error
}

// GormCreditOrderRepository implements credit.OrderRepository using GORM
type GormCreditOrderRepository struct {
	db *gorm.DB
}

// NewGormCreditOrderRepository creates a new GormCreditOrderRepository
func NewGormCreditOrderRepository(db *gorm.DB) *GormCreditOrderRepository {
	return &GormCreditOrderRepository{db: db}
}

// FindOpenByAccount returns OPEN orders, oldest first
func (r *GormCreditOrderRepository) FindOpenByAccount(ctx context.Context, accountID uuid.UUID) ([]credit.Order, error) {
	return r.find(r.db.WithContext(ctx).Where("credit_account_id = ? AND status = ?", accountID, credit.OrderOpen))
}

// FindByAccount returns every order on the account, oldest first
func (r *GormCreditOrderRepository) FindByAccount(ctx context.Context, accountID uuid.UUID) ([]credit.Order, error) {
	return r.find(r.db.WithContext(ctx).Where("credit_account_id = ?", accountID))
}

func (r *GormCreditOrderRepository) find(query *gorm.DB) ([]credit.Order, error) {
	var rows []models.CreditOrderModel
	if err := query.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]credit.Order, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// Save creates or updates an order
func (r *GormCreditOrderRepository) Save(ctx context.Context, o *credit.Order) error {
	return r.db.WithContext(ctx).Save(models.CreditOrderModelFromDomain(o)).Error
}

// GormRepaymentRepository implements credit.RepaymentRepository using GORM
type GormRepaymentRepository struct {
	db *gorm.DB
}

// NewGormRepaymentRepository creates a new GormRepaymentRepository
func NewGormRepaymentRepository(db *gorm.DB) *GormRepaymentRepository {
	return &GormRepaymentRepository{db: db}
}

// FindByAccount lists repayments on an account with their allocations
func (r *GormRepaymentRepository) FindByAccount(ctx context.Context, accountID uuid.UUID) ([]credit.Repayment, error) {
	var rows []models.RepaymentModel
	if err := r.db.WithContext(ctx).
		Preload("Allocations", byPosition).
		Where("credit_account_id = ?", accountID).
		Order("paid_at ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]credit.Repayment, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// Save writes the repayment and replaces its allocations
func (r *GormRepaymentRepository) Save(ctx context.Context, rp *credit.Repayment) error {
	model := models.RepaymentModelFromDomain(rp)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(model).Error; err != nil {
			return err
		}
		if err := tx.Where("repayment_id = ?", model.ID).Delete(&models.RepaymentAllocationModel{}).Error; err != nil {
			return err
		}
		if len(model.Allocations) == 0 {
			return nil
		}
		return tx.Create(&model.Allocations).Error
	})
}

var (
	_ credit.AccountRepository   = (*GormCreditAccountRepository)(nil)
	_ credit.OrderRepository     = (*GormCreditOrderRepository)(nil)
	_ credit.RepaymentRepository = (*GormRepaymentRepository)(nil)
)
