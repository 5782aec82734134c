package intercompany

import (
	"time"

	"github.com/erp/icledger/internal/domain/group"
	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// RateRange is the governed safe range for an agreement type's rate
type RateRange struct {
	Model PricingModel
	Min   decimal.Decimal
	Max   decimal.Decimal
}

// GovernedRanges maps each agreement type to its safe pricing range.
var GovernedRanges = map[AgreementType]RateRange{
	AgreementTypeManagement: {
		Model: PricingCostPlus,
		Min:   decimal.RequireFromString("0.05"),
		Max:   decimal.RequireFromString("0.15"),
	},
	AgreementTypeProductSupply: {
		Model: PricingCostPlus,
		Min:   decimal.RequireFromString("0.03"),
		Max:   decimal.RequireFromString("0.08"),
	},
	AgreementTypeLogistics: {
		Model: PricingCostPlus,
		Min:   decimal.RequireFromString("0.05"),
		Max:   decimal.RequireFromString("0.12"),
	},
	AgreementTypeIPLicense: {
		Model: PricingRoyaltyPercent,
		Min:   decimal.RequireFromString("0.01"),
		Max:   decimal.RequireFromString("0.03"),
	},
}

// RoleEligibility lists which roles may provide and receive an agreement type
type RoleEligibility struct {
	Providers  []group.Role
	Recipients []group.Role
}

var operatingRoles = []group.Role{
	group.RoleProcurementTrading,
	group.RoleRetail,
	group.RoleReseller,
	group.RoleDigitalCommerce,
	group.RoleLogistics,
}

// Eligibility maps each agreement type to its allowed provider/recipient roles.
var Eligibility = map[AgreementType]RoleEligibility{
	AgreementTypeManagement: {
		Providers:  []group.Role{group.RoleHoldco},
		Recipients: operatingRoles,
	},
	AgreementTypeIPLicense: {
		Providers:  []group.Role{group.RoleHoldco},
		Recipients: operatingRoles,
	},
	AgreementTypeProductSupply: {
		Providers: []group.Role{group.RoleProcurementTrading},
		Recipients: []group.Role{
			group.RoleRetail,
			group.RoleReseller,
			group.RoleDigitalCommerce,
		},
	},
	AgreementTypeLogistics: {
		Providers: []group.Role{group.RoleLogistics},
		Recipients: []group.Role{
			group.RoleProcurementTrading,
			group.RoleRetail,
			group.RoleReseller,
			group.RoleDigitalCommerce,
		},
	},
}

// Governor validates agreement terms against group policy.
type Governor struct {
	now func() time.Time
}

// NewGovernor returns a Governor using the given clock. A nil clock means time.Now.
func NewGovernor(now func() time.Time) Governor {
	if now == nil {
		now = time.Now
	}
	return Governor{now: now}
}

// Validate checks terms for a new agreement (existing == nil) or an update.
// Provider and recipient must already be resolved within the calling group.
func (g Governor) Validate(terms AgreementTerms, provider, recipient *group.Subsidiary, existing *Agreement) error {
	terms = terms.normalized()

	if err := validateParties(terms, provider, recipient); err != nil {
		return err
	}
	if terms.Pricing == nil {
		return shared.BadRequestf("pricing terms are required")
	}
	if err := terms.Pricing.validate(); err != nil {
		return err
	}
	if err := validateGovernedRange(terms); err != nil {
		return err
	}
	if err := validateTaxTerms(terms); err != nil {
		return err
	}
	if err := g.validateEffectiveDates(terms, existing); err != nil {
		return err
	}
	return validateRoles(terms.Type, provider, recipient)
}

func validateParties(terms AgreementTerms, provider, recipient *group.Subsidiary) error {
	if !terms.Type.IsValid() {
		return shared.BadRequestf("unknown agreement type %q", terms.Type)
	}
	if provider == nil || recipient == nil {
		return shared.BadRequestf("provider and recipient are required")
	}
	if provider.ID != terms.ProviderID || recipient.ID != terms.RecipientID {
		return shared.BadRequestf("provider/recipient do not match the agreement terms")
	}
	if provider.ID == recipient.ID {
		return shared.BadRequestf("provider and recipient must be different subsidiaries")
	}
	if provider.GroupID != recipient.GroupID {
		return shared.BadRequestf("provider and recipient must belong to the same group")
	}
	return nil
}

func validateGovernedRange(terms AgreementTerms) error {
	rng, governed := GovernedRanges[terms.Type]
	if !governed {
		return nil
	}
	if terms.Type == AgreementTypeIPLicense && terms.Pricing.Model() == PricingFixedMonthly {
		return nil
	}
	if terms.Pricing.Model() != rng.Model {
		return shared.BadRequestf("%s agreements must be priced %s", terms.Type, rng.Model)
	}
	model, rate, _ := PricingParts(terms.Pricing)
	if model != rng.Model || !valueobject.InRange(rate, rng.Min, rng.Max) {
		return shared.BadRequestf("%s rate %s%% is outside the governed range %s%%-%s%%",
			terms.Type, valueobject.Percent(rate), valueobject.Percent(rng.Min), valueobject.Percent(rng.Max))
	}
	return nil
}

func validateTaxTerms(terms AgreementTerms) error {
	if terms.VAT.Applies && !valueobject.InRange(terms.VAT.Rate, decimal.Zero, valueobject.One) {
		return shared.BadRequestf("VAT rate must be between 0 and 1")
	}
	if terms.VAT.Applies && !terms.VAT.Rate.IsPositive() {
		return shared.BadRequestf("VAT rate must be positive when VAT applies")
	}
	if terms.WHT.Applies && !valueobject.InRange(terms.WHT.Rate, decimal.Zero, valueobject.One) {
		return shared.BadRequestf("WHT rate must be between 0 and 1")
	}
	if terms.WHT.Applies && !terms.WHT.Rate.IsPositive() {
		return shared.BadRequestf("WHT rate must be positive when WHT applies")
	}
	return nil
}

func (g Governor) validateEffectiveDates(terms AgreementTerms, existing *Agreement) error {
	if terms.EffectiveFrom.IsZero() {
		return shared.BadRequestf("effective_from is required")
	}
	if terms.EffectiveTo != nil && terms.EffectiveTo.Before(terms.EffectiveFrom) {
		return shared.BadRequestf("effective_to cannot be before effective_from")
	}

	fromChanged := existing == nil || !existing.EffectiveFrom.Equal(terms.EffectiveFrom)
	pricingChanged := existing != nil && !existing.Pricing.equal(terms.Pricing)
	if !fromChanged && !pricingChanged {
		return nil
	}

	if !valueobject.IsMonthStart(terms.EffectiveFrom) {
		return shared.BadRequestf("effective_from must be the first day of a month")
	}
	if terms.EffectiveFrom.Before(valueobject.MonthStart(g.now())) {
		return shared.BadRequestf("effective_from cannot be earlier than the current month")
	}
	if pricingChanged && !valueobject.IsYearStart(terms.EffectiveFrom) {
		return shared.BadRequestf("pricing changes must take effect on January 1")
	}
	return nil
}

func validateRoles(t AgreementType, provider, recipient *group.Subsidiary) error {
	rule, ok := Eligibility[t]
	if !ok {
		return shared.BadRequestf("no role eligibility configured for %s", t)
	}
	if !provider.HasRole(rule.Providers...) {
		return shared.BadRequestf("%s agreements cannot be provided by a %s subsidiary", t, provider.Role)
	}
	if !recipient.HasRole(rule.Recipients...) {
		return shared.BadRequestf("%s agreements cannot be received by a %s subsidiary", t, recipient.Role)
	}
	return nil
}
