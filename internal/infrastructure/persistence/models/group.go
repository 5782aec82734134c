package models

import (
	"github.com/erp/icledger/internal/domain/group"
)

// SubsidiaryModel is the persistence model for the Subsidiary aggregate root.
type SubsidiaryModel struct {
	GroupAggregateModel
	Name string     `gorm:"type:varchar(200);not null"`
	Role group.Role `gorm:"type:varchar(30);not null;index"`
}

// TableName returns the table name for GORM
func (SubsidiaryModel) TableName() string {
	return "subsidiaries"
}

// ToDomain converts the persistence model to a domain Subsidiary.
func (m *SubsidiaryModel) ToDomain() *group.Subsidiary {
	return &group.Subsidiary{
		GroupAggregateRoot: m.ToDomainGroupAggregateRoot(),
		Name:               m.Name,
		Role:               m.Role,
	}
}

// FromDomain populates the persistence model from a domain Subsidiary.
func (m *SubsidiaryModel) FromDomain(s *group.Subsidiary) {
	m.FromDomainGroupAggregateRoot(s.GroupAggregateRoot)
	m.Name = s.Name
	m.Role = s.Role
}

// SubsidiaryModelFromDomain creates a new persistence model from a domain Subsidiary.
func SubsidiaryModelFromDomain(s *group.Subsidiary) *SubsidiaryModel {
	m := &SubsidiaryModel{}
	m.FromDomain(s)
	return m
}
