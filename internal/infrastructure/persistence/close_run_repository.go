package persistence

import (
	"context"
	"errors"

	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/erp/icledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCloseRunRepository implements intercompany.CloseRunRepository using GORM
type GormCloseRunRepository struct {
	db *gorm.DB
}

// NewGormCloseRunRepository creates a new GormCloseRunRepository
func NewGormCloseRunRepository(db *gorm.DB) *GormCloseRunRepository {
	return &GormCloseRunRepository{db: db}
}

// FindLatest returns the most recently started run for (holdco, period), or nil
func (r *GormCloseRunRepository) FindLatest(ctx context.Context, groupID, holdcoID uuid.UUID, period valueobject.Period) (*intercompany.CloseRun, error) {
	var model models.CloseRunModel
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND holdco_id = ? AND period = ?", groupID, holdcoID, period.String()).
		Order("started_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a close run
func (r *GormCloseRunRepository) Save(ctx context.Context, run *intercompany.CloseRun) error {
	return r.db.WithContext(ctx).Save(models.CloseRunModelFromDomain(run)).Error
}

var _ intercompany.CloseRunRepository = (*GormCloseRunRepository)(nil)
