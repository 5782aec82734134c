package intercompany

import (
	"testing"
	"time"

	"github.com/erp/icledger/internal/domain/group"
	"github.com/erp/icledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func mustSubsidiary(t *testing.T, groupID uuid.UUID, role group.Role) *group.Subsidiary {
	t.Helper()
	s, err := group.NewSubsidiary(groupID, string(role)+" Co", role)
	require.NoError(t, err)
	return s
}

func managementTerms(provider, recipient *group.Subsidiary, rate string, from time.Time) AgreementTerms {
	return AgreementTerms{
		ProviderID:    provider.ID,
		RecipientID:   recipient.ID,
		Type:          AgreementTypeManagement,
		Pricing:       CostPlus{Markup: decimal.RequireFromString(rate)},
		EffectiveFrom: from,
	}
}

func TestGovernor_ManagementRange(t *testing.T) {
	groupID := uuid.New()
	holdco := mustSubsidiary(t, groupID, group.RoleHoldco)
	retail := mustSubsidiary(t, groupID, group.RoleRetail)
	gov := NewGovernor(clock)
	nextMonth := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		rate    string
		from    time.Time
		wantErr bool
	}{
		{"20% is outside 5-15%", "0.20", nextMonth, true},
		{"10% on a mid-month date", "0.10", time.Date(2025, time.April, 15, 0, 0, 0, 0, time.UTC), true},
		{"10% from the 1st of next month", "0.10", nextMonth, false},
		{"lower bound is inclusive", "0.05", nextMonth, false},
		{"upper bound is inclusive", "0.15", nextMonth, false},
		{"4.99% is below range", "0.0499", nextMonth, true},
		{"backdated to last month", "0.10", time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), true},
		{"current month start is allowed", "0.10", time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := gov.Validate(managementTerms(holdco, retail, tc.rate, tc.from), holdco, retail, nil)
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, shared.ErrBadRequest)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGovernor_RangeMessageNamesTheRule(t *testing.T) {
	groupID := uuid.New()
	holdco := mustSubsidiary(t, groupID, group.RoleHoldco)
	retail := mustSubsidiary(t, groupID, group.RoleRetail)

	err := NewGovernor(clock).Validate(
		managementTerms(holdco, retail, "0.20", time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)),
		holdco, retail, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MANAGEMENT rate 20%")
	assert.Contains(t, err.Error(), "5%-15%")
}

func TestGovernor_IPLicense(t *testing.T) {
	groupID := uuid.New()
	holdco := mustSubsidiary(t, groupID, group.RoleHoldco)
	reseller := mustSubsidiary(t, groupID, group.RoleReseller)
	gov := NewGovernor(clock)
	from := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)

	base := AgreementTerms{
		ProviderID:    holdco.ID,
		RecipientID:   reseller.ID,
		Type:          AgreementTypeIPLicense,
		EffectiveFrom: from,
	}

	t.Run("fixed monthly escape is allowed", func(t *testing.T) {
		terms := base
		terms.Pricing = FixedMonthly{Fee: decimal.NewFromInt(500)}
		assert.NoError(t, gov.Validate(terms, holdco, reseller, nil))
	})

	t.Run("royalty inside range", func(t *testing.T) {
		terms := base
		terms.Pricing = RoyaltyPercent{Rate: decimal.RequireFromString("0.02")}
		assert.NoError(t, gov.Validate(terms, holdco, reseller, nil))
	})

	t.Run("royalty outside range", func(t *testing.T) {
		terms := base
		terms.Pricing = RoyaltyPercent{Rate: decimal.RequireFromString("0.05")}
		assert.ErrorIs(t, gov.Validate(terms, holdco, reseller, nil), shared.ErrBadRequest)
	})

	t.Run("cost plus is the wrong model", func(t *testing.T) {
		terms := base
		terms.Pricing = CostPlus{Markup: decimal.RequireFromString("0.02")}
		assert.ErrorIs(t, gov.Validate(terms, holdco, reseller, nil), shared.ErrBadRequest)
	})

	t.Run("zero fee is rejected", func(t *testing.T) {
		terms := base
		terms.Pricing = FixedMonthly{Fee: decimal.Zero}
		assert.ErrorIs(t, gov.Validate(terms, holdco, reseller, nil), shared.ErrBadRequest)
	})
}

func TestGovernor_RoleEligibility(t *testing.T) {
	groupID := uuid.New()
	holdco := mustSubsidiary(t, groupID, group.RoleHoldco)
	procurement := mustSubsidiary(t, groupID, group.RoleProcurementTrading)
	retail := mustSubsidiary(t, groupID, group.RoleRetail)
	logistics := mustSubsidiary(t, groupID, group.RoleLogistics)
	gov := NewGovernor(clock)
	from := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		typ       AgreementType
		rate      string
		provider  *group.Subsidiary
		recipient *group.Subsidiary
		wantErr   bool
	}{
		{"management from retail", AgreementTypeManagement, "0.10", retail, procurement, true},
		{"management to holdco", AgreementTypeManagement, "0.10", procurement, holdco, true},
		{"product supply from procurement to retail", AgreementTypeProductSupply, "0.05", procurement, retail, false},
		{"product supply from holdco", AgreementTypeProductSupply, "0.05", holdco, retail, true},
		{"product supply to logistics", AgreementTypeProductSupply, "0.05", procurement, logistics, true},
		{"logistics to procurement", AgreementTypeLogistics, "0.08", logistics, procurement, false},
		{"logistics rate above range", AgreementTypeLogistics, "0.13", logistics, procurement, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			terms := AgreementTerms{
				ProviderID:    tc.provider.ID,
				RecipientID:   tc.recipient.ID,
				Type:          tc.typ,
				Pricing:       CostPlus{Markup: decimal.RequireFromString(tc.rate)},
				EffectiveFrom: from,
			}
			err := gov.Validate(terms, tc.provider, tc.recipient, nil)
			if tc.wantErr {
				assert.ErrorIs(t, err, shared.ErrBadRequest)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGovernor_Parties(t *testing.T) {
	groupID := uuid.New()
	holdco := mustSubsidiary(t, groupID, group.RoleHoldco)
	other := mustSubsidiary(t, uuid.New(), group.RoleRetail)
	from := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	gov := NewGovernor(clock)

	t.Run("same provider and recipient", func(t *testing.T) {
		err := gov.Validate(managementTerms(holdco, holdco, "0.10", from), holdco, holdco, nil)
		assert.ErrorIs(t, err, shared.ErrBadRequest)
	})

	t.Run("recipient in another group", func(t *testing.T) {
		err := gov.Validate(managementTerms(holdco, other, "0.10", from), holdco, other, nil)
		assert.ErrorIs(t, err, shared.ErrBadRequest)
	})
}

func TestGovernor_UpdateDateRules(t *testing.T) {
	groupID := uuid.New()
	holdco := mustSubsidiary(t, groupID, group.RoleHoldco)
	retail := mustSubsidiary(t, groupID, group.RoleRetail)
	gov := NewGovernor(clock)

	// Created long ago; an unchanged effective_from is not re-checked.
	existing := NewAgreement(groupID, managementTerms(holdco, retail, "0.10",
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)))

	t.Run("vat change keeps old effective_from", func(t *testing.T) {
		terms := existing.Terms()
		terms.VAT = VatTerms{Applies: true, Rate: decimal.RequireFromString("0.07")}
		assert.NoError(t, gov.Validate(terms, holdco, retail, existing))
	})

	t.Run("rate change needs a new effective_from", func(t *testing.T) {
		terms := existing.Terms()
		terms.Pricing = CostPlus{Markup: decimal.RequireFromString("0.12")}
		assert.ErrorIs(t, gov.Validate(terms, holdco, retail, existing), shared.ErrBadRequest)
	})

	t.Run("rate change mid-year is rejected", func(t *testing.T) {
		terms := existing.Terms()
		terms.Pricing = CostPlus{Markup: decimal.RequireFromString("0.12")}
		terms.EffectiveFrom = time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
		err := gov.Validate(terms, holdco, retail, existing)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "January 1")
	})

	t.Run("rate change on January 1 is accepted", func(t *testing.T) {
		terms := existing.Terms()
		terms.Pricing = CostPlus{Markup: decimal.RequireFromString("0.12")}
		terms.EffectiveFrom = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
		assert.NoError(t, gov.Validate(terms, holdco, retail, existing))
	})

	t.Run("effective_to before effective_from", func(t *testing.T) {
		terms := existing.Terms()
		to := time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC)
		terms.EffectiveTo = &to
		assert.ErrorIs(t, gov.Validate(terms, holdco, retail, existing), shared.ErrBadRequest)
	})
}

func TestAgreement_IsActiveOn(t *testing.T) {
	from := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)
	a := NewAgreement(uuid.New(), AgreementTerms{
		Type:          AgreementTypeManagement,
		Pricing:       CostPlus{Markup: decimal.RequireFromString("0.10")},
		EffectiveFrom: from,
		EffectiveTo:   &to,
	})

	assert.False(t, a.IsActiveOn(from.AddDate(0, 0, -1)))
	assert.True(t, a.IsActiveOn(from))
	assert.True(t, a.IsActiveOn(to.Add(15*time.Hour)))
	assert.False(t, a.IsActiveOn(to.AddDate(0, 0, 1)))
}

func TestPricingParts_RoundTrip(t *testing.T) {
	for _, p := range []Pricing{
		CostPlus{Markup: decimal.RequireFromString("0.1")},
		FixedMonthly{Fee: decimal.NewFromInt(500)},
		RoyaltyPercent{Rate: decimal.RequireFromString("0.02")},
	} {
		model, rate, fee := PricingParts(p)
		back, err := PricingFromParts(model, rate, fee)
		require.NoError(t, err)
		assert.True(t, p.equal(back), "pricing %s", model)
	}

	_, err := PricingFromParts("TIERED", decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, shared.ErrBadRequest)
}
