package intercompany

import (
	"context"
	"strings"
	"time"

	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AgreementType is the kind of intercompany service being priced
type AgreementType string

const (
	AgreementTypeManagement    AgreementType = "MANAGEMENT"
	AgreementTypeIPLicense     AgreementType = "IP_LICENSE"
	AgreementTypeProductSupply AgreementType = "PRODUCT_SUPPLY"
	AgreementTypeLogistics     AgreementType = "LOGISTICS"
)

// IsValid checks if the agreement type is known
func (t AgreementType) IsValid() bool {
	switch t {
	case AgreementTypeManagement, AgreementTypeIPLicense,
		AgreementTypeProductSupply, AgreementTypeLogistics:
		return true
	}
	return false
}

// String returns the string representation of AgreementType
func (t AgreementType) String() string {
	return string(t)
}

// PricingModel names the variant held by a Pricing value
type PricingModel string

const (
	PricingCostPlus       PricingModel = "COST_PLUS"
	PricingFixedMonthly   PricingModel = "FIXED_MONTHLY"
	PricingRoyaltyPercent PricingModel = "ROYALTY_PERCENT"
)

// IsValid checks if the pricing model is known
func (m PricingModel) IsValid() bool {
	switch m {
	case PricingCostPlus, PricingFixedMonthly, PricingRoyaltyPercent:
		return true
	}
	return false
}

// Pricing is the closed set of pricing terms. Only CostPlus, FixedMonthly
// and RoyaltyPercent implement it.
type Pricing interface {
	Model() PricingModel
	validate() error
	equal(other Pricing) bool
}

// CostPlus charges allocated cost times (1 + Markup).
type CostPlus struct {
	Markup decimal.Decimal
}

// Model implements Pricing
func (CostPlus) Model() PricingModel { return PricingCostPlus }

func (p CostPlus) validate() error {
	if !p.Markup.IsPositive() {
		return shared.BadRequestf("COST_PLUS pricing requires a positive markup rate")
	}
	return nil
}

func (p CostPlus) equal(other Pricing) bool {
	o, ok := other.(CostPlus)
	return ok && o.Markup.Equal(p.Markup)
}

// FixedMonthly charges a flat fee each month.
type FixedMonthly struct {
	Fee decimal.Decimal
}

// Model implements Pricing
func (FixedMonthly) Model() PricingModel { return PricingFixedMonthly }

func (p FixedMonthly) validate() error {
	if !p.Fee.IsPositive() {
		return shared.BadRequestf("FIXED_MONTHLY pricing requires a positive fixed fee")
	}
	return nil
}

func (p FixedMonthly) equal(other Pricing) bool {
	o, ok := other.(FixedMonthly)
	return ok && o.Fee.Equal(p.Fee)
}

// RoyaltyPercent charges a percentage of the recipient's revenue.
type RoyaltyPercent struct {
	Rate decimal.Decimal
}

// Model implements Pricing
func (RoyaltyPercent) Model() PricingModel { return PricingRoyaltyPercent }

func (p RoyaltyPercent) validate() error {
	if !p.Rate.IsPositive() {
		return shared.BadRequestf("ROYALTY_PERCENT pricing requires a positive royalty rate")
	}
	return nil
}

func (p RoyaltyPercent) equal(other Pricing) bool {
	o, ok := other.(RoyaltyPercent)
	return ok && o.Rate.Equal(p.Rate)
}

// PricingFromParts rebuilds a Pricing from its flattened storage columns.
func PricingFromParts(model PricingModel, rate, fee decimal.Decimal) (Pricing, error) {
	switch model {
	case PricingCostPlus:
		return CostPlus{Markup: rate}, nil
	case PricingFixedMonthly:
		return FixedMonthly{Fee: fee}, nil
	case PricingRoyaltyPercent:
		return RoyaltyPercent{Rate: rate}, nil
	}
	return nil, shared.BadRequestf("unknown pricing model %q", model)
}

// PricingParts flattens a Pricing into (model, rate, fee).
func PricingParts(p Pricing) (PricingModel, decimal.Decimal, decimal.Decimal) {
	switch v := p.(type) {
	case CostPlus:
		return PricingCostPlus, v.Markup, decimal.Zero
	case FixedMonthly:
		return PricingFixedMonthly, decimal.Zero, v.Fee
	case RoyaltyPercent:
		return PricingRoyaltyPercent, v.Rate, decimal.Zero
	}
	return "", decimal.Zero, decimal.Zero
}

// TaxType classifies withheld tax for remittance
type TaxType string

const (
	TaxTypeServices  TaxType = "SERVICES"
	TaxTypeRoyalties TaxType = "ROYALTIES"
	TaxTypeRent      TaxType = "RENT"
)

// NormalizeTaxType upper-cases the tax type, defaulting to SERVICES.
func NormalizeTaxType(t TaxType) TaxType {
	s := strings.ToUpper(strings.TrimSpace(string(t)))
	if s == "" {
		return TaxTypeServices
	}
	return TaxType(s)
}

// VatTerms says whether VAT is charged and at which rate
type VatTerms struct {
	Applies bool
	Rate    decimal.Decimal
}

// WhtTerms says whether the payer withholds tax, at which rate and under which type
type WhtTerms struct {
	Applies bool
	Rate    decimal.Decimal
	TaxType TaxType
}

// AgreementTerms is the caller-supplied shape of an agreement
type AgreementTerms struct {
	ProviderID    uuid.UUID
	RecipientID   uuid.UUID
	Type          AgreementType
	Pricing       Pricing
	VAT           VatTerms
	WHT           WhtTerms
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
}

// normalized returns a copy with dates truncated and tax type defaulted
func (t AgreementTerms) normalized() AgreementTerms {
	t.EffectiveFrom = valueobject.DateOnly(t.EffectiveFrom)
	if t.EffectiveTo != nil {
		to := valueobject.DateOnly(*t.EffectiveTo)
		t.EffectiveTo = &to
	}
	if t.WHT.Applies {
		t.WHT.TaxType = NormalizeTaxType(t.WHT.TaxType)
	} else {
		t.WHT.Rate = decimal.Zero
		t.WHT.TaxType = ""
	}
	if !t.VAT.Applies {
		t.VAT.Rate = decimal.Zero
	}
	return t
}

// Agreement is an intercompany pricing agreement between two subsidiaries
type Agreement struct {
	shared.GroupAggregateRoot
	ProviderID    uuid.UUID
	RecipientID   uuid.UUID
	Type          AgreementType
	Pricing       Pricing
	VAT           VatTerms
	WHT           WhtTerms
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
}

// NewAgreement builds an agreement from already-validated terms.
func NewAgreement(groupID uuid.UUID, terms AgreementTerms) *Agreement {
	a := &Agreement{GroupAggregateRoot: shared.NewGroupAggregateRoot(groupID)}
	a.apply(terms.normalized())
	return a
}

// Replace overwrites every field with the already-validated terms.
func (a *Agreement) Replace(terms AgreementTerms) {
	a.apply(terms.normalized())
	a.IncrementVersion()
	a.Touch()
}

func (a *Agreement) apply(t AgreementTerms) {
	a.ProviderID = t.ProviderID
	a.RecipientID = t.RecipientID
	a.Type = t.Type
	a.Pricing = t.Pricing
	a.VAT = t.VAT
	a.WHT = t.WHT
	a.EffectiveFrom = t.EffectiveFrom
	a.EffectiveTo = t.EffectiveTo
}

// Terms returns the agreement's current terms
func (a *Agreement) Terms() AgreementTerms {
	return AgreementTerms{
		ProviderID:    a.ProviderID,
		RecipientID:   a.RecipientID,
		Type:          a.Type,
		Pricing:       a.Pricing,
		VAT:           a.VAT,
		WHT:           a.WHT,
		EffectiveFrom: a.EffectiveFrom,
		EffectiveTo:   a.EffectiveTo,
	}
}

// IsActiveOn reports whether effective_from <= day <= effective_to.
func (a *Agreement) IsActiveOn(day time.Time) bool {
	day = valueobject.DateOnly(day)
	if day.Before(a.EffectiveFrom) {
		return false
	}
	return a.EffectiveTo == nil || !day.After(*a.EffectiveTo)
}

// AgreementFilter narrows agreement lookups
type AgreementFilter struct {
	ProviderID  *uuid.UUID
	RecipientID *uuid.UUID
	Type        *AgreementType
}

// AgreementRepository persists agreements
type AgreementRepository interface {
	FindByIDForGroup(ctx context.Context, groupID, id uuid.UUID) (*Agreement, error)
	FindByIDs(ctx context.Context, groupID uuid.UUID, ids []uuid.UUID) ([]Agreement, error)
	FindAllForGroup(ctx context.Context, groupID uuid.UUID, filter AgreementFilter) ([]Agreement, error)
	Save(ctx context.Context, a *Agreement) error
}
