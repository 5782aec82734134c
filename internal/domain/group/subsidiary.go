package group

import (
	"context"
	"strings"

	"github.com/erp/icledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Role is the business function a subsidiary plays inside the group
type Role string

const (
	RoleHoldco             Role = "HOLDCO"
	RoleProcurementTrading Role = "PROCUREMENT_TRADING"
	RoleRetail             Role = "RETAIL"
	RoleReseller           Role = "RESELLER"
	RoleDigitalCommerce    Role = "DIGITAL_COMMERCE"
	RoleLogistics          Role = "LOGISTICS"
)

// AllRoles lists every role in declaration order
var AllRoles = []Role{
	RoleHoldco,
	RoleProcurementTrading,
	RoleRetail,
	RoleReseller,
	RoleDigitalCommerce,
	RoleLogistics,
}

// IsValid checks if the role is known
func (r Role) IsValid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// String returns the string representation of Role
func (r Role) String() string {
	return string(r)
}

// Subsidiary is a legal entity owned by a holding group
type Subsidiary struct {
	shared.GroupAggregateRoot
	Name string
	Role Role
}

// NewSubsidiary creates a subsidiary. The role cannot change afterwards.
func NewSubsidiary(groupID uuid.UUID, name string, role Role) (*Subsidiary, error) {
	if groupID == uuid.Nil {
		return nil, shared.BadRequestf("group id is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.BadRequestf("subsidiary name is required")
	}
	if len(name) > 200 {
		return nil, shared.BadRequestf("subsidiary name cannot exceed 200 characters")
	}
	if !role.IsValid() {
		return nil, shared.BadRequestf("unknown subsidiary role %q", role)
	}
	return &Subsidiary{
		GroupAggregateRoot: shared.NewGroupAggregateRoot(groupID),
		Name:               name,
		Role:               role,
	}, nil
}

// HasRole reports whether the subsidiary plays one of the given roles
func (s *Subsidiary) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}

// SubsidiaryRepository persists subsidiaries
type SubsidiaryRepository interface {
	FindByIDForGroup(ctx context.Context, groupID, id uuid.UUID) (*Subsidiary, error)
	FindByIDsForGroup(ctx context.Context, groupID uuid.UUID, ids []uuid.UUID) ([]Subsidiary, error)
	FindAllForGroup(ctx context.Context, groupID uuid.UUID) ([]Subsidiary, error)
	Save(ctx context.Context, s *Subsidiary) error
}
