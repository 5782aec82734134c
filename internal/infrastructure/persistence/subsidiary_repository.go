package persistence

import (
	"context"
	"errors"

	"github.com/erp/icledger/internal/domain/group"
	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSubsidiaryRepository implements group.SubsidiaryRepository using GORM
type GormSubsidiaryRepository struct {
	db *gorm.DB
}

// NewGormSubsidiaryRepository creates a new GormSubsidiaryRepository
func NewGormSubsidiaryRepository(db *gorm.DB) *GormSubsidiaryRepository {
	return &GormSubsidiaryRepository{db: db}
}

// FindByIDForGroup finds a subsidiary by ID within a group
func (r *GormSubsidiaryRepository) FindByIDForGroup(ctx context.Context, groupID, id uuid.UUID) (*group.Subsidiary, error) {
	var model models.SubsidiaryModel
	if err := r.db.WithContext(ctx).
		Where("group_id = ? AND id = ?", groupID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDsForGroup returns the subset of ids that belong to the group
func (r *GormSubsidiaryRepository) FindByIDsForGroup(ctx context.Context, groupID uuid.UUID, ids []uuid.UUID) ([]group.Subsidiary, error) {
	if len(ids) == 0 {
		return []group.Subsidiary{}, nil
	}
	var rows []models.SubsidiaryModel
	if err := r.db.WithContext(ctx).
		Where("group_id = ? AND id IN ?", groupID, ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return subsidiariesToDomain(rows), nil
}

// FindAllForGroup lists every subsidiary of a group, oldest first
func (r *GormSubsidiaryRepository) FindAllForGroup(ctx context.Context, groupID uuid.UUID) ([]group.Subsidiary, error) {
	var rows []models.SubsidiaryModel
	if err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at ASC, name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return subsidiariesToDomain(rows), nil
}

// Save creates or updates a subsidiary
func (r *GormSubsidiaryRepository) Save(ctx context.Context, s *group.Subsidiary) error {
	return r.db.WithContext(ctx).Save(models.SubsidiaryModelFromDomain(s)).Error
}

func subsidiariesToDomain(rows []models.SubsidiaryModel) []group.Subsidiary {
	out := make([]group.Subsidiary, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out
}

var _ group.SubsidiaryRepository = (*GormSubsidiaryRepository)(nil)
