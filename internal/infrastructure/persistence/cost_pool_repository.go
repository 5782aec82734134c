package persistence

import (
	"context"
	"errors"

	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/erp/icledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCostPoolRepository implements intercompany.CostPoolRepository using GORM
type GormCostPoolRepository struct {
	db *gorm.DB
}

// NewGormCostPoolRepository creates a new GormCostPoolRepository
func NewGormCostPoolRepository(db *gorm.DB) *GormCostPoolRepository {
	return &GormCostPoolRepository{db: db}
}

func byPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *GormCostPoolRepository) withChildren(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Lines", byPosition).
		Preload("Rule").
		Preload("Rule.Weights", byPosition).
		Preload("Allocations", byPosition)
}

// FindByIDForGroup finds a cost pool with its lines, rule and allocations
func (r *GormCostPoolRepository) FindByIDForGroup(ctx context.Context, groupID, id uuid.UUID) (*intercompany.CostPool, error) {
	var model models.CostPoolModel
	if err := r.withChildren(ctx).
		Where("group_id = ? AND id = ?", groupID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByHoldcoPeriod returns the holdco's pool for a period, or nil when none exists
func (r *GormCostPoolRepository) FindByHoldcoPeriod(ctx context.Context, groupID, holdcoID uuid.UUID, period valueobject.Period) (*intercompany.CostPool, error) {
	var model models.CostPoolModel
	err := r.withChildren(ctx).
		Where("group_id = ? AND holdco_id = ? AND period = ?", groupID, holdcoID, period.String()).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save writes the pool and replaces its lines, rule and allocations
func (r *GormCostPoolRepository) Save(ctx context.Context, pool *intercompany.CostPool) error {
	model := models.CostPoolModelFromDomain(pool)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(model).Error; err != nil {
			return err
		}

		var ruleIDs []uuid.UUID
		if err := tx.Model(&models.AllocationRuleModel{}).
			Where("pool_id = ?", model.ID).
			Pluck("id", &ruleIDs).Error; err != nil {
			return err
		}
		if len(ruleIDs) > 0 {
			if err := tx.Where("rule_id IN ?", ruleIDs).Delete(&models.AllocationWeightModel{}).Error; err != nil {
				return err
			}
		}
		for _, child := range []any{&models.AllocationRuleModel{}, &models.CostPoolLineModel{}, &models.CostAllocationModel{}} {
			if err := tx.Where("pool_id = ?", model.ID).Delete(child).Error; err != nil {
				return err
			}
		}

		if len(model.Lines) > 0 {
			if err := tx.Create(&model.Lines).Error; err != nil {
				return err
			}
		}
		if model.Rule != nil {
			if err := tx.Omit(clause.Associations).Create(model.Rule).Error; err != nil {
				return err
			}
			if len(model.Rule.Weights) > 0 {
				if err := tx.Create(&model.Rule.Weights).Error; err != nil {
					return err
				}
			}
		}
		if len(model.Allocations) > 0 {
			if err := tx.Create(&model.Allocations).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

var _ intercompany.CostPoolRepository = (*GormCostPoolRepository)(nil)
