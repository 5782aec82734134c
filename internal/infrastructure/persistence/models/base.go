package models

import (
	"time"

	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// AggregateModel provides common persistence fields for aggregate roots.
// It extends BaseModel with version for optimistic locking.
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// FromDomainAggregateRoot populates AggregateModel from domain BaseAggregateRoot
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
}

// GroupAggregateModel provides common persistence fields for group-scoped aggregate roots.
type GroupAggregateModel struct {
	AggregateModel
	GroupID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// FromDomainGroupAggregateRoot populates GroupAggregateModel from domain GroupAggregateRoot
func (m *GroupAggregateModel) FromDomainGroupAggregateRoot(g shared.GroupAggregateRoot) {
	m.FromDomainAggregateRoot(g.BaseAggregateRoot)
	m.GroupID = g.GroupID
}

// ToDomainGroupAggregateRoot builds the domain GroupAggregateRoot from the model
func (m *GroupAggregateModel) ToDomainGroupAggregateRoot() shared.GroupAggregateRoot {
	return shared.GroupAggregateRoot{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: m.BaseModel.ToDomain(),
			Version:    m.Version,
		},
		GroupID: m.GroupID,
	}
}

// parsePeriod reads a stored "YYYY-MM" column. Rows are written through
// Period.String so a parse failure means the column was empty.
func parsePeriod(s string) valueobject.Period {
	p, err := valueobject.ParsePeriod(s)
	if err != nil {
		return valueobject.Period{}
	}
	return p
}
