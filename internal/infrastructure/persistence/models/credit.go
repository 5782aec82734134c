package models

import (
	"time"

	"github.com/erp/icledger/internal/domain/credit"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditAccountModel is the persistence model for a reseller credit Account.
type CreditAccountModel struct {
	ID           uuid.UUID            `gorm:"type:uuid;primary_key"`
	GroupID      uuid.UUID            `gorm:"type:uuid;not null;index"`
	SubsidiaryID uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_credit_account_reseller,priority:1"`
	ResellerID   uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_credit_account_reseller,priority:2"`
	LimitAmount  decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	UsedAmount   decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Status       credit.AccountStatus `gorm:"type:varchar(20);not null;default:'ACTIVE'"`
	CreatedAt    time.Time            `gorm:"not null"`
	UpdatedAt    time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CreditAccountModel) TableName() string {
	return "credit_accounts"
}

// ToDomain converts the persistence model to a domain Account.
func (m *CreditAccountModel) ToDomain() *credit.Account {
	return &credit.Account{
		ID:           m.ID,
		GroupID:      m.GroupID,
		SubsidiaryID: m.SubsidiaryID,
		ResellerID:   m.ResellerID,
		LimitAmount:  m.LimitAmount,
		UsedAmount:   m.UsedAmount,
		Status:       m.Status,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// CreditAccountModelFromDomain creates a new persistence model from a domain Account.
func CreditAccountModelFromDomain(a *credit.Account) *CreditAccountModel {
	return &CreditAccountModel{
		ID:           a.ID,
		GroupID:      a.GroupID,
		SubsidiaryID: a.SubsidiaryID,
		ResellerID:   a.ResellerID,
		LimitAmount:  a.LimitAmount,
		UsedAmount:   a.UsedAmount,
		Status:       a.Status,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

// CreditOrderModel is the persistence model for a credit Order.
type CreditOrderModel struct {
	ID              uuid.UUID          `gorm:"type:uuid;primary_key"`
	GroupID         uuid.UUID          `gorm:"type:uuid;not null;index"`
	CreditAccountID uuid.UUID          `gorm:"type:uuid;not null;index:idx_credit_order_account_status,priority:1"`
	ResellerID      uuid.UUID          `gorm:"type:uuid;not null"`
	Reference       string             `gorm:"type:varchar(100)"`
	TotalAmount     decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	PaidAmount      decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	Status          credit.OrderStatus `gorm:"type:varchar(20);not null;index:idx_credit_order_account_status,priority:2"`
	CreatedAt       time.Time          `gorm:"not null;index"`
	UpdatedAt       time.Time          `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CreditOrderModel) TableName() string {
	return "credit_orders"
}

// ToDomain converts the persistence model to a domain Order.
func (m *CreditOrderModel) ToDomain() credit.Order {
	return credit.Order{
		ID:              m.ID,
		GroupID:         m.GroupID,
		CreditAccountID: m.CreditAccountID,
		ResellerID:      m.ResellerID,
		Reference:       m.Reference,
		TotalAmount:     m.TotalAmount,
		PaidAmount:      m.PaidAmount,
		Status:          m.Status,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// CreditOrderModelFromDomain creates a new persistence model from a domain Order.
func CreditOrderModelFromDomain(o *credit.Order) *CreditOrderModel {
	return &CreditOrderModel{
		ID:              o.ID,
		GroupID:         o.GroupID,
		CreditAccountID: o.CreditAccountID,
		ResellerID:      o.ResellerID,
		Reference:       o.Reference,
		TotalAmount:     o.TotalAmount,
		PaidAmount:      o.PaidAmount,
		Status:          o.Status,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// RepaymentModel is the persistence model for a Repayment.
type RepaymentModel struct {
	ID              uuid.UUID                  `gorm:"type:uuid;primary_key"`
	GroupID         uuid.UUID                  `gorm:"type:uuid;not null;index"`
	CreditAccountID uuid.UUID                  `gorm:"type:uuid;not null;index"`
	Amount          decimal.Decimal            `gorm:"type:decimal(18,4);not null"`
	AppliedAmount   decimal.Decimal            `gorm:"type:decimal(18,4);not null"`
	Method          string                     `gorm:"type:varchar(30);not null"`
	PaidAt          time.Time                  `gorm:"not null"`
	Allocations     []RepaymentAllocationModel `gorm:"foreignKey:RepaymentID;references:ID"`
	CreatedAt       time.Time                  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RepaymentModel) TableName() string {
	return "repayments"
}

// RepaymentAllocationModel is the part of a repayment applied to one order
type RepaymentAllocationModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	RepaymentID uuid.UUID       `gorm:"type:uuid;not null;index"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position    int             `gorm:"not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (RepaymentAllocationModel) TableName() string {
	return "repayment_allocations"
}

// ToDomain converts the persistence model to a domain Repayment.
func (m *RepaymentModel) ToDomain() credit.Repayment {
	r := credit.Repayment{
		ID:              m.ID,
		GroupID:         m.GroupID,
		CreditAccountID: m.CreditAccountID,
		Amount:          m.Amount,
		AppliedAmount:   m.AppliedAmount,
		Method:          m.Method,
		PaidAt:          m.PaidAt,
		CreatedAt:       m.CreatedAt,
	}
	for _, a := range m.Allocations {
		r.Allocations = append(r.Allocations, credit.Allocation{
			ID:          a.ID,
			RepaymentID: a.RepaymentID,
			OrderID:     a.OrderID,
			Amount:      a.Amount,
		})
	}
	return r
}

// RepaymentModelFromDomain creates a new persistence model from a domain Repayment.
func RepaymentModelFromDomain(r *credit.Repayment) *RepaymentModel {
	m := &RepaymentModel{
		ID:              r.ID,
		GroupID:         r.GroupID,
		CreditAccountID: r.CreditAccountID,
		Amount:          r.Amount,
		AppliedAmount:   r.AppliedAmount,
		Method:          r.Method,
		PaidAt:          r.PaidAt,
		CreatedAt:       r.CreatedAt,
	}
	for i, a := range r.Allocations {
		m.Allocations = append(m.Allocations, RepaymentAllocationModel{
			ID:          a.ID,
			RepaymentID: r.ID,
			OrderID:     a.OrderID,
			Position:    i,
			Amount:      a.Amount,
		})
	}
	return m
}
