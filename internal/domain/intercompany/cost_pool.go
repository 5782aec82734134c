package intercompany

import (
	"context"
	"strings"

	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultWeightTolerance is how far allocation weights may drift from 1.0.
var DefaultWeightTolerance = decimal.RequireFromString("0.001")

// AllocationMethod is how a cost pool is split across recipients
type AllocationMethod string

const (
	AllocationByFixedSplit AllocationMethod = "BY_FIXED_SPLIT"
)

// CostPoolLine is one shared-cost item in a pool
type CostPoolLine struct {
	ID       uuid.UUID
	Category string
	Amount   decimal.Decimal
}

// AllocationWeight is one recipient's share of a pool
type AllocationWeight struct {
	ID          uuid.UUID
	RecipientID uuid.UUID
	Weight      decimal.Decimal
}

// AllocationRule says how to split a pool
type AllocationRule struct {
	ID      uuid.UUID
	Method  AllocationMethod
	Weights []AllocationWeight
}

// CostAllocation is the derived share of a pool charged to one recipient.
// AllocatedCost keeps full precision; rounding happens at invoicing.
type CostAllocation struct {
	ID            uuid.UUID
	RecipientID   uuid.UUID
	Weight        decimal.Decimal
	AllocatedCost decimal.Decimal
}

// LineInput is a caller-supplied pool line
type LineInput struct {
	Category string
	Amount   decimal.Decimal
}

// WeightInput is a caller-supplied allocation weight
type WeightInput struct {
	RecipientID uuid.UUID
	Weight      decimal.Decimal
}

// CostPool aggregates a holding company's shared costs for one period.
// It is unique per (holdco, period).
type CostPool struct {
	shared.GroupAggregateRoot
	HoldcoID    uuid.UUID
	Period      valueobject.Period
	TotalCost   decimal.Decimal
	Lines       []CostPoolLine
	Rule        *AllocationRule
	Allocations []CostAllocation
}

// NewCostPool creates an empty pool
func NewCostPool(groupID, holdcoID uuid.UUID, period valueobject.Period) (*CostPool, error) {
	if holdcoID == uuid.Nil {
		return nil, shared.BadRequestf("holding company id is required")
	}
	if period.IsZero() {
		return nil, shared.BadRequestf("period is required")
	}
	return &CostPool{
		GroupAggregateRoot: shared.NewGroupAggregateRoot(groupID),
		HoldcoID:           holdcoID,
		Period:             period,
		TotalCost:          decimal.Zero,
	}, nil
}

// ReplaceLines swaps in a new set of lines and recomputes total_cost.
func (p *CostPool) ReplaceLines(inputs []LineInput) error {
	if len(inputs) == 0 {
		return shared.BadRequestf("cost pool requires at least one line")
	}
	lines := make([]CostPoolLine, 0, len(inputs))
	amounts := make([]decimal.Decimal, 0, len(inputs))
	for i, in := range inputs {
		category := strings.TrimSpace(in.Category)
		if category == "" {
			return shared.BadRequestf("line %d: category is required", i+1)
		}
		if in.Amount.IsNegative() {
			return shared.BadRequestf("line %d: amount cannot be negative", i+1)
		}
		amount := valueobject.Round2(in.Amount)
		lines = append(lines, CostPoolLine{ID: uuid.New(), Category: category, Amount: amount})
		amounts = append(amounts, amount)
	}
	p.Lines = lines
	p.TotalCost = valueobject.SumRound2(amounts...)
	p.Touch()
	return nil
}

// ValidateWeights checks each weight lies in [0,1], recipients are unique
// and the weights sum to 1 within tolerance.
func ValidateWeights(weights []WeightInput, tolerance decimal.Decimal) error {
	if len(weights) == 0 {
		return shared.NewDomainError(shared.CodeInvalidAllocation, "at least one allocation weight is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(weights))
	sum := decimal.Zero
	for _, w := range weights {
		if w.RecipientID == uuid.Nil {
			return shared.NewDomainError(shared.CodeInvalidAllocation, "allocation weight recipient is required")
		}
		if _, dup := seen[w.RecipientID]; dup {
			return shared.NewDomainError(shared.CodeInvalidAllocation,
				"recipient "+w.RecipientID.String()+" appears more than once")
		}
		seen[w.RecipientID] = struct{}{}
		if !valueobject.InRange(w.Weight, decimal.Zero, valueobject.One) {
			return shared.NewDomainError(shared.CodeInvalidAllocation,
				"weight "+w.Weight.String()+" must be between 0 and 1")
		}
		sum = sum.Add(w.Weight)
	}
	if !valueobject.WithinTolerance(sum, valueobject.One, tolerance) {
		return shared.NewDomainError(shared.CodeInvalidAllocation,
			"allocation weights sum to "+sum.String()+", expected 1.0")
	}
	return nil
}

// UpsertRule ensures a BY_FIXED_SPLIT rule exists. When weights is non-nil
// they are validated and replace the rule's weights; nil keeps the existing ones.
func (p *CostPool) UpsertRule(weights []WeightInput, tolerance decimal.Decimal) error {
	if weights != nil {
		if err := ValidateWeights(weights, tolerance); err != nil {
			return err
		}
	}
	if p.Rule == nil {
		p.Rule = &AllocationRule{ID: uuid.New(), Method: AllocationByFixedSplit}
	}
	if weights == nil {
		return nil
	}
	p.Rule.Weights = make([]AllocationWeight, 0, len(weights))
	for _, w := range weights {
		p.Rule.Weights = append(p.Rule.Weights, AllocationWeight{
			ID:          uuid.New(),
			RecipientID: w.RecipientID,
			Weight:      w.Weight,
		})
	}
	p.Touch()
	return nil
}

// Allocate replaces all allocations with total_cost x weight per recipient.
func (p *CostPool) Allocate() error {
	if p.Rule == nil || p.Rule.Method != AllocationByFixedSplit || len(p.Rule.Weights) == 0 {
		return shared.NewDomainError(shared.CodeNotConfigured,
			"cost pool "+p.Period.String()+" has no BY_FIXED_SPLIT rule with weights")
	}
	allocations := make([]CostAllocation, 0, len(p.Rule.Weights))
	for _, w := range p.Rule.Weights {
		allocations = append(allocations, CostAllocation{
			ID:            uuid.New(),
			RecipientID:   w.RecipientID,
			Weight:        w.Weight,
			AllocatedCost: p.TotalCost.Mul(w.Weight),
		})
	}
	p.Allocations = allocations
	p.Touch()
	return nil
}

// RecipientIDs returns the recipients named by the rule's weights
func (p *CostPool) RecipientIDs() []uuid.UUID {
	if p.Rule == nil {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(p.Rule.Weights))
	for _, w := range p.Rule.Weights {
		ids = append(ids, w.RecipientID)
	}
	return ids
}

// TotalAllocated sums the allocated cost across recipients
func (p *CostPool) TotalAllocated() decimal.Decimal {
	total := decimal.Zero
	for _, a := range p.Allocations {
		total = total.Add(a.AllocatedCost)
	}
	return total
}

// CostPoolRepository persists cost pools with their lines, rule and allocations
type CostPoolRepository interface {
	FindByIDForGroup(ctx context.Context, groupID, id uuid.UUID) (*CostPool, error)
	FindByHoldcoPeriod(ctx context.Context, groupID, holdcoID uuid.UUID, period valueobject.Period) (*CostPool, error)
	Save(ctx context.Context, pool *CostPool) error
}
