package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAgreementRepository implements intercompany.AgreementRepository using GORM
type GormAgreementRepository struct {
	db *gorm.DB
}

// NewGormAgreementRepository creates a new GormAgreementRepository
func NewGormAgreementRepository(db *gorm.DB) *GormAgreementRepository {
	return &GormAgreementRepository{db: db}
}

// FindByIDForGroup finds an agreement by ID within a group
func (r *GormAgreementRepository) FindByIDForGroup(ctx context.Context, groupID, id uuid.UUID) (*intercompany.Agreement, error) {
	var model models.AgreementModel
	if err := r.db.WithContext(ctx).
		Where("group_id = ? AND id = ?", groupID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByIDs returns the agreements of the group among ids. Missing ids are skipped.
func (r *GormAgreementRepository) FindByIDs(ctx context.Context, groupID uuid.UUID, ids []uuid.UUID) ([]intercompany.Agreement, error) {
	if len(ids) == 0 {
		return []intercompany.Agreement{}, nil
	}
	var rows []models.AgreementModel
	if err := r.db.WithContext(ctx).
		Where("group_id = ? AND id IN ?", groupID, ids).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return agreementsToDomain(rows)
}

// FindAllForGroup lists agreements of a group matching the filter
func (r *GormAgreementRepository) FindAllForGroup(ctx context.Context, groupID uuid.UUID, filter intercompany.AgreementFilter) ([]intercompany.Agreement, error) {
	query := r.db.WithContext(ctx).Model(&models.AgreementModel{}).Where("group_id = ?", groupID)
	if filter.ProviderID != nil {
		query = query.Where("provider_id = ?", *filter.ProviderID)
	}
	if filter.RecipientID != nil {
		query = query.Where("recipient_id = ?", *filter.RecipientID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}

	var rows []models.AgreementModel
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return agreementsToDomain(rows)
}

// Save creates or updates an agreement
func (r *GormAgreementRepository) Save(ctx context.Context, a *intercompany.Agreement) error {
	return r.db.WithContext(ctx).Save(models.AgreementModelFromDomain(a)).Error
}

func agreementsToDomain(rows []models.AgreementModel) ([]intercompany.Agreement, error) {
	out := make([]intercompany.Agreement, 0, len(rows))
	for i := range rows {
		a, err := rows[i].ToDomain()
		if err != nil {
			return nil, fmt.Errorf("agreement %s: %w", rows[i].ID, err)
		}
		out = append(out, *a)
	}
	return out, nil
}

var _ intercompany.AgreementRepository = (*GormAgreementRepository)(nil)
