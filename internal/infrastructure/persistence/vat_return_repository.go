package persistence

import (
	"context"
	"errors"

	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/erp/icledger/internal/domain/tax"
	"github.com/erp/icledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormVatReturnRepository implements tax.VatReturnRepository using GORM
type GormVatReturnRepository struct {
	db *gorm.DB
}

// NewGormVatReturnRepository creates a new GormVatReturnRepository
func NewGormVatReturnRepository(db *gorm.DB) *GormVatReturnRepository {
	return &GormVatReturnRepository{db: db}
}

// Find returns the company's return for a period, or nil
func (r *GormVatReturnRepository) Find(ctx context.Context, companyID uuid.UUID, period valueobject.Period) (*tax.VatReturn, error) {
	var model models.VatReturnModel
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND period = ?", companyID, period.String()).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a return
func (r *GormVatReturnRepository) Save(ctx context.Context, ret *tax.VatReturn) error {
	return r.db.WithContext(ctx).Save(models.VatReturnModelFromDomain(ret)).Error
}

var _ tax.VatReturnRepository = (*GormVatReturnRepository)(nil)
