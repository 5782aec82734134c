package group

import (
	"testing"

	"github.com/erp/icledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSubsidiary(t *testing.T) {
	groupID := uuid.New()

	t.Run("creates subsidiary with valid role", func(t *testing.T) {
		s, err := NewSubsidiary(groupID, "  Acme Retail  ", RoleRetail)
		require.NoError(t, err)
		assert.Equal(t, "Acme Retail", s.Name)
		assert.Equal(t, RoleRetail, s.Role)
		assert.Equal(t, groupID, s.GroupID)
		assert.NotEqual(t, uuid.Nil, s.ID)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		_, err := NewSubsidiary(groupID, "Acme", Role("BANK"))
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrBadRequest)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := NewSubsidiary(groupID, " ", RoleHoldco)
		assert.ErrorIs(t, err, shared.ErrBadRequest)
	})

	t.Run("rejects nil group", func(t *testing.T) {
		_, err := NewSubsidiary(uuid.Nil, "Acme", RoleHoldco)
		assert.ErrorIs(t, err, shared.ErrBadRequest)
	})
}

func TestSubsidiary_HasRole(t *testing.T) {
	s, err := NewSubsidiary(uuid.New(), "Trading", RoleProcurementTrading)
	require.NoError(t, err)

	assert.True(t, s.HasRole(RoleHoldco, RoleProcurementTrading))
	assert.False(t, s.HasRole(RoleRetail))
	assert.False(t, s.HasRole())
}
