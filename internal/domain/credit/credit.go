package credit

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStatus is the state of a reseller credit line
type AccountStatus string

const (
	AccountActive    AccountStatus = "ACTIVE"
	AccountSuspended AccountStatus = "SUSPENDED"
	AccountClosed    AccountStatus = "CLOSED"
)

// Account is a reseller's credit line with a lending subsidiary
type Account struct {
	ID           uuid.UUID
	GroupID      uuid.UUID
	SubsidiaryID uuid.UUID
	ResellerID   uuid.UUID
	LimitAmount  decimal.Decimal
	UsedAmount   decimal.Decimal
	Status       AccountStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewAccount opens an ACTIVE credit line
func NewAccount(groupID, subsidiaryID, resellerID uuid.UUID, limit decimal.Decimal) (*Account, error) {
	if subsidiaryID == uuid.Nil || resellerID == uuid.Nil {
		return nil, shared.BadRequestf("subsidiary and reseller are required")
	}
	if subsidiaryID == resellerID {
		return nil, shared.BadRequestf("a subsidiary cannot extend credit to itself")
	}
	if limit.IsNegative() {
		return nil, shared.BadRequestf("credit limit cannot be negative")
	}
	now := time.Now().UTC()
	return &Account{
		ID:           uuid.New(),
		GroupID:      groupID,
		SubsidiaryID: subsidiaryID,
		ResellerID:   resellerID,
		LimitAmount:  valueobject.Round2(limit),
		UsedAmount:   decimal.Zero,
		Status:       AccountActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Available returns limit minus used
func (a *Account) Available() decimal.Decimal {
	return a.LimitAmount.Sub(a.UsedAmount)
}

// Reserve adds amount to used_amount. Exceeding the limit fails with
// CREDIT_LIMIT_EXCEEDED unless allowOverride is set.
func (a *Account) Reserve(amount decimal.Decimal, allowOverride bool) error {
	if a.Status != AccountActive {
		return shared.BadRequestf("credit account is %s", strings.ToLower(string(a.Status)))
	}
	amount = valueobject.Round2(amount)
	if !amount.IsPositive() {
		return shared.BadRequestf("reservation amount must be positive")
	}
	next := a.UsedAmount.Add(amount)
	if next.GreaterThan(a.LimitAmount) && !allowOverride {
		return shared.NewDomainError(shared.CodeCreditLimitExceeded,
			"reserving "+amount.StringFixed(2)+" would exceed the credit limit of "+
				a.LimitAmount.StringFixed(2)+" (used "+a.UsedAmount.StringFixed(2)+")")
	}
	a.UsedAmount = next
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Release subtracts the amount a repayment actually offset
func (a *Account) Release(amount decimal.Decimal) {
	a.UsedAmount = valueobject.Round2(a.UsedAmount.Sub(amount))
	a.UpdatedAt = time.Now().UTC()
}

// OrderStatus tracks repayment of a credit order
type OrderStatus string

const (
	OrderOpen OrderStatus = "OPEN"
	OrderPaid OrderStatus = "PAID"
)

// Order is a reseller purchase financed by its credit account
type Order struct {
	ID              uuid.UUID
	GroupID         uuid.UUID
	CreditAccountID uuid.UUID
	ResellerID      uuid.UUID
	Reference       string
	TotalAmount     decimal.Decimal
	PaidAmount      decimal.Decimal
	Status          OrderStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewOrder creates an OPEN order against an account
func NewOrder(account *Account, reference string, total decimal.Decimal, createdAt time.Time) (*Order, error) {
	total = valueobject.Round2(total)
	if !total.IsPositive() {
		return nil, shared.BadRequestf("order total must be positive")
	}
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &Order{
		ID:              uuid.New(),
		GroupID:         account.GroupID,
		CreditAccountID: account.ID,
		ResellerID:      account.ResellerID,
		Reference:       strings.TrimSpace(reference),
		TotalAmount:     total,
		PaidAmount:      decimal.Zero,
		Status:          OrderOpen,
		CreatedAt:       createdAt.UTC(),
		UpdatedAt:       createdAt.UTC(),
	}, nil
}

// Outstanding returns total minus paid, never below zero
func (o *Order) Outstanding() decimal.Decimal {
	out := o.TotalAmount.Sub(o.PaidAmount)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

func (o *Order) apply(amount decimal.Decimal) {
	o.PaidAmount = o.PaidAmount.Add(amount)
	if o.PaidAmount.GreaterThanOrEqual(o.TotalAmount) {
		o.Status = OrderPaid
	}
	o.UpdatedAt = time.Now().UTC()
}

// Allocation is the part of a repayment applied to one order
type Allocation struct {
	ID          uuid.UUID
	RepaymentID uuid.UUID
	OrderID     uuid.UUID
	Amount      decimal.Decimal
}

// Repayment is money a reseller pays back into its credit line
type Repayment struct {
	ID              uuid.UUID
	GroupID         uuid.UUID
	CreditAccountID uuid.UUID
	Amount          decimal.Decimal
	AppliedAmount   decimal.Decimal
	Method          string
	PaidAt          time.Time
	Allocations     []Allocation
	CreatedAt       time.Time
}

// NewRepayment records a repayment; paidAt defaults to now
func NewRepayment(account *Account, amount decimal.Decimal, method string, paidAt *time.Time) (*Repayment, error) {
	amount = valueobject.Round2(amount)
	if !amount.IsPositive() {
		return nil, shared.BadRequestf("repayment amount must be positive")
	}
	now := time.Now().UTC()
	at := now
	if paidAt != nil {
		at = paidAt.UTC()
	}
	method = strings.TrimSpace(method)
	if method == "" {
		method = "BANK_TRANSFER"
	}
	return &Repayment{
		ID:              uuid.New(),
		GroupID:         account.GroupID,
		CreditAccountID: account.ID,
		Amount:          amount,
		AppliedAmount:   decimal.Zero,
		Method:          strings.ToUpper(method),
		PaidAt:          at,
		CreatedAt:       now,
	}, nil
}

// Unapplied returns the part of the repayment no order absorbed
func (r *Repayment) Unapplied() decimal.Decimal {
	return r.Amount.Sub(r.AppliedAmount)
}

// AllocateFIFO applies the repayment to orders oldest first. Each order
// absorbs min(remaining, outstanding). It returns the orders it touched.
func (r *Repayment) AllocateFIFO(orders []*Order) []*Order {
	sorted := make([]*Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	remaining := r.Amount.Sub(r.AppliedAmount)
	touched := make([]*Order, 0, len(sorted))
	for _, o := range sorted {
		if !remaining.IsPositive() {
			break
		}
		outstanding := o.Outstanding()
		if !outstanding.IsPositive() {
			continue
		}
		applied := valueobject.MinDecimal(remaining, outstanding)
		o.apply(applied)
		r.Allocations = append(r.Allocations, Allocation{
			ID:          uuid.New(),
			RepaymentID: r.ID,
			OrderID:     o.ID,
			Amount:      applied,
		})
		r.AppliedAmount = r.AppliedAmount.Add(applied)
		remaining = remaining.Sub(applied)
		touched = append(touched, o)
	}
	return touched
}

// AccountRepository persists credit accounts
type AccountRepository interface {
	FindByIDForGroup(ctx context.Context, groupID, id uuid.UUID) (*Account, error)
	// FindByIDForUpdate reads under a row lock; only meaningful in a transaction.
	FindByIDForUpdate(ctx context.Context, groupID, id uuid.UUID) (*Account, error)
	FindByReseller(ctx context.Context, groupID, subsidiaryID, resellerID uuid.UUID) (*Account, error)
	Save(ctx context.Context, a *Account) error
}

// OrderRepository persists credit orders
type OrderRepository interface {
	// FindOpenByAccount returns OPEN orders, oldest first.
	FindOpenByAccount(ctx context.Context, accountID uuid.UUID) ([]Order, error)
	FindByAccount(ctx context.Context, accountID uuid.UUID) ([]Order, error)
	Save(ctx context.Context, o *Order) error
}

// RepaymentRepository persists repayments with their allocations
type RepaymentRepository interface {
	FindByAccount(ctx context.Context, accountID uuid.UUID) ([]Repayment, error)
	Save(ctx context.Context, r *Repayment) error
}
