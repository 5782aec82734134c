package shared

import (
	"github.com/google/uuid"
)

// AggregateRoot is the base interface for all aggregate roots
type AggregateRoot interface {
	Entity
	GetVersion() int
	IncrementVersion()
}

// BaseAggregateRoot provides common fields for aggregate roots
type BaseAggregateRoot struct {
	BaseEntity
	Version int
}

// GetVersion returns the aggregate version
func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion increments the version number
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// NewBaseAggregateRoot creates a new base aggregate root
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity: NewBaseEntity(),
		Version:    1,
	}
}

// GroupAggregateRoot is an aggregate owned by a holding group (the tenant).
type GroupAggregateRoot struct {
	BaseAggregateRoot
	GroupID uuid.UUID
}

// GetGroupID returns the owning group
func (g *GroupAggregateRoot) GetGroupID() uuid.UUID {
	return g.GroupID
}

// NewGroupAggregateRoot creates a new group-scoped aggregate root
func NewGroupAggregateRoot(groupID uuid.UUID) GroupAggregateRoot {
	return GroupAggregateRoot{
		BaseAggregateRoot: NewBaseAggregateRoot(),
		GroupID:           groupID,
	}
}
