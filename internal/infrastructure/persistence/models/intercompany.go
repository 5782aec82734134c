package models

import (
	"time"

	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AgreementModel is the persistence model for the Agreement aggregate root.
// The pricing union is flattened into model, rate and fee columns.
type AgreementModel struct {
	GroupAggregateModel
	ProviderID    uuid.UUID                  `gorm:"type:uuid;not null;index"`
	RecipientID   uuid.UUID                  `gorm:"type:uuid;not null;index"`
	Type          intercompany.AgreementType `gorm:"type:varchar(30);not null;index"`
	PricingModel  intercompany.PricingModel  `gorm:"type:varchar(30);not null"`
	Rate          decimal.Decimal            `gorm:"type:decimal(9,6);not null"`
	FixedFee      decimal.Decimal            `gorm:"type:decimal(18,4);not null"`
	VatApplies    bool                       `gorm:"not null;default:false"`
	VatRate       decimal.Decimal            `gorm:"type:decimal(9,6);not null"`
	WhtApplies    bool                       `gorm:"not null;default:false"`
	WhtRate       decimal.Decimal            `gorm:"type:decimal(9,6);not null"`
	WhtTaxType    intercompany.TaxType       `gorm:"type:varchar(20)"`
	EffectiveFrom time.Time                  `gorm:"type:date;not null"`
	EffectiveTo   *time.Time                 `gorm:"type:date"`
}

// TableName returns the table name for GORM
func (AgreementModel) TableName() string {
	return "intercompany_agreements"
}

// ToDomain converts the persistence model to a domain Agreement.
func (m *AgreementModel) ToDomain() (*intercompany.Agreement, error) {
	pricing, err := intercompany.PricingFromParts(m.PricingModel, m.Rate, m.FixedFee)
	if err != nil {
		return nil, err
	}
	return &intercompany.Agreement{
		GroupAggregateRoot: m.ToDomainGroupAggregateRoot(),
		ProviderID:         m.ProviderID,
		RecipientID:        m.RecipientID,
		Type:               m.Type,
		Pricing:            pricing,
		VAT:                intercompany.VatTerms{Applies: m.VatApplies, Rate: m.VatRate},
		WHT:                intercompany.WhtTerms{Applies: m.WhtApplies, Rate: m.WhtRate, TaxType: m.WhtTaxType},
		EffectiveFrom:      m.EffectiveFrom,
		EffectiveTo:        m.EffectiveTo,
	}, nil
}

// FromDomain populates the persistence model from a domain Agreement.
func (m *AgreementModel) FromDomain(a *intercompany.Agreement) {
	m.FromDomainGroupAggregateRoot(a.GroupAggregateRoot)
	m.ProviderID = a.ProviderID
	m.RecipientID = a.RecipientID
	m.Type = a.Type
	m.PricingModel, m.Rate, m.FixedFee = intercompany.PricingParts(a.Pricing)
	m.VatApplies = a.VAT.Applies
	m.VatRate = a.VAT.Rate
	m.WhtApplies = a.WHT.Applies
	m.WhtRate = a.WHT.Rate
	m.WhtTaxType = a.WHT.TaxType
	m.EffectiveFrom = a.EffectiveFrom
	m.EffectiveTo = a.EffectiveTo
}

// AgreementModelFromDomain creates a new persistence model from a domain Agreement.
func AgreementModelFromDomain(a *intercompany.Agreement) *AgreementModel {
	m := &AgreementModel{}
	m.FromDomain(a)
	return m
}

// CostPoolModel is the persistence model for the CostPool aggregate root.
type CostPoolModel struct {
	GroupAggregateModel
	HoldcoID    uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:idx_cost_pool_holdco_period,priority:1"`
	Period      string                `gorm:"type:varchar(7);not null;uniqueIndex:idx_cost_pool_holdco_period,priority:2"`
	TotalCost   decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Lines       []CostPoolLineModel   `gorm:"foreignKey:PoolID;references:ID"`
	Rule        *AllocationRuleModel  `gorm:"foreignKey:PoolID;references:ID"`
	Allocations []CostAllocationModel `gorm:"foreignKey:PoolID;references:ID"`
}

// TableName returns the table name for GORM
func (CostPoolModel) TableName() string {
	return "cost_pools"
}

// CostPoolLineModel is one shared-cost line of a pool
type CostPoolLineModel struct {
	ID       uuid.UUID       `gorm:"type:uuid;primary_key"`
	PoolID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position int             `gorm:"not null"`
	Category string          `gorm:"type:varchar(100);not null"`
	Amount   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (CostPoolLineModel) TableName() string {
	return "cost_pool_lines"
}

// AllocationRuleModel is the pool's split rule
type AllocationRuleModel struct {
	ID      uuid.UUID                     `gorm:"type:uuid;primary_key"`
	PoolID  uuid.UUID                     `gorm:"type:uuid;not null;uniqueIndex"`
	Method  intercompany.AllocationMethod `gorm:"type:varchar(30);not null"`
	Weights []AllocationWeightModel       `gorm:"foreignKey:RuleID;references:ID"`
}

// TableName returns the table name for GORM
func (AllocationRuleModel) TableName() string {
	return "allocation_rules"
}

// AllocationWeightModel is one recipient's weight under a rule
type AllocationWeightModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	RuleID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position    int             `gorm:"not null"`
	RecipientID uuid.UUID       `gorm:"type:uuid;not null"`
	Weight      decimal.Decimal `gorm:"type:decimal(9,6);not null"`
}

// TableName returns the table name for GORM
func (AllocationWeightModel) TableName() string {
	return "allocation_weights"
}

// CostAllocationModel is a derived allocation row. AllocatedCost keeps
// the full product precision.
type CostAllocationModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	PoolID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position      int             `gorm:"not null"`
	RecipientID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Weight        decimal.Decimal `gorm:"type:decimal(9,6);not null"`
	AllocatedCost decimal.Decimal `gorm:"type:decimal(28,10);not null"`
}

// TableName returns the table name for GORM
func (CostAllocationModel) TableName() string {
	return "cost_allocations"
}

// ToDomain converts the persistence model to a domain CostPool.
func (m *CostPoolModel) ToDomain() *intercompany.CostPool {
	pool := &intercompany.CostPool{
		GroupAggregateRoot: m.ToDomainGroupAggregateRoot(),
		HoldcoID:           m.HoldcoID,
		Period:             parsePeriod(m.Period),
		TotalCost:          m.TotalCost,
		Lines:              make([]intercompany.CostPoolLine, 0, len(m.Lines)),
		Allocations:        make([]intercompany.CostAllocation, 0, len(m.Allocations)),
	}
	for _, l := range m.Lines {
		pool.Lines = append(pool.Lines, intercompany.CostPoolLine{ID: l.ID, Category: l.Category, Amount: l.Amount})
	}
	if m.Rule != nil {
		rule := &intercompany.AllocationRule{
			ID:      m.Rule.ID,
			Method:  m.Rule.Method,
			Weights: make([]intercompany.AllocationWeight, 0, len(m.Rule.Weights)),
		}
		for _, w := range m.Rule.Weights {
			rule.Weights = append(rule.Weights, intercompany.AllocationWeight{
				ID:          w.ID,
				RecipientID: w.RecipientID,
				Weight:      w.Weight,
			})
		}
		pool.Rule = rule
	}
	for _, a := range m.Allocations {
		pool.Allocations = append(pool.Allocations, intercompany.CostAllocation{
			ID:            a.ID,
			RecipientID:   a.RecipientID,
			Weight:        a.Weight,
			AllocatedCost: a.AllocatedCost,
		})
	}
	return pool
}

// FromDomain populates the persistence model and its children from a domain CostPool.
func (m *CostPoolModel) FromDomain(p *intercompany.CostPool) {
	m.FromDomainGroupAggregateRoot(p.GroupAggregateRoot)
	m.HoldcoID = p.HoldcoID
	m.Period = p.Period.String()
	m.TotalCost = p.TotalCost
	m.Lines = make([]CostPoolLineModel, 0, len(p.Lines))
	for i, l := range p.Lines {
		m.Lines = append(m.Lines, CostPoolLineModel{
			ID:       l.ID,
			PoolID:   p.ID,
			Position: i,
			Category: l.Category,
			Amount:   l.Amount,
		})
	}
	m.Rule = nil
	if p.Rule != nil {
		rule := &AllocationRuleModel{ID: p.Rule.ID, PoolID: p.ID, Method: p.Rule.Method}
		for i, w := range p.Rule.Weights {
			rule.Weights = append(rule.Weights, AllocationWeightModel{
				ID:          w.ID,
				RuleID:      p.Rule.ID,
				Position:    i,
				RecipientID: w.RecipientID,
				Weight:      w.Weight,
			})
		}
		m.Rule = rule
	}
	m.Allocations = make([]CostAllocationModel, 0, len(p.Allocations))
	for i, a := range p.Allocations {
		m.Allocations = append(m.Allocations, CostAllocationModel{
			ID:            a.ID,
			PoolID:        p.ID,
			Position:      i,
			RecipientID:   a.RecipientID,
			Weight:        a.Weight,
			AllocatedCost: a.AllocatedCost,
		})
	}
}

// CostPoolModelFromDomain creates a new persistence model from a domain CostPool.
func CostPoolModelFromDomain(p *intercompany.CostPool) *CostPoolModel {
	m := &CostPoolModel{}
	m.FromDomain(p)
	return m
}

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	GroupAggregateModel
	Number           string                     `gorm:"type:varchar(50);not null;uniqueIndex"`
	Type             intercompany.InvoiceType   `gorm:"type:varchar(20);not null;index"`
	Status           intercompany.InvoiceStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	SellerID         uuid.UUID                  `gorm:"type:uuid;not null;index:idx_invoice_pair_period,priority:1"`
	BuyerID          uuid.UUID                  `gorm:"type:uuid;not null;index:idx_invoice_pair_period,priority:2"`
	Period           string                     `gorm:"type:varchar(7);not null;index:idx_invoice_pair_period,priority:3"`
	IssueDate        time.Time                  `gorm:"type:date;not null"`
	DueDate          time.Time                  `gorm:"type:date;not null"`
	Currency         string                     `gorm:"type:varchar(3);not null"`
	Subtotal         decimal.Decimal            `gorm:"type:decimal(18,4);not null"`
	VatAmount        decimal.Decimal            `gorm:"type:decimal(18,4);not null"`
	TotalAmount      decimal.Decimal            `gorm:"type:decimal(18,4);not null"`
	IsCreditNote     bool                       `gorm:"not null;default:false;index"`
	RelatedInvoiceID *uuid.UUID                 `gorm:"type:uuid;index"`
	Reason           string                     `gorm:"type:varchar(500)"`
	Lines            []InvoiceLineModel         `gorm:"foreignKey:InvoiceID;references:ID"`
	IssuedAt         *time.Time
	VoidedAt         *time.Time
	VoidReason       string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// InvoiceLineModel is one invoice line
type InvoiceLineModel struct {
	ID          uuid.UUID            `gorm:"type:uuid;primary_key"`
	InvoiceID   uuid.UUID            `gorm:"type:uuid;not null;index"`
	Position    int                  `gorm:"not null"`
	AgreementID *uuid.UUID           `gorm:"type:uuid;index"`
	Description string               `gorm:"type:varchar(300);not null"`
	NetAmount   decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	VatRate     decimal.Decimal      `gorm:"type:decimal(9,6);not null"`
	VatAmount   decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	WhtRate     decimal.Decimal      `gorm:"type:decimal(9,6);not null"`
	WhtAmount   decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	WhtTaxType  intercompany.TaxType `gorm:"type:varchar(20)"`
	GrossAmount decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	// CreditsLineID is set on credit note lines only
	CreditsLineID *uuid.UUID `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (InvoiceLineModel) TableName() string {
	return "invoice_lines"
}

// ToDomain converts the persistence model to a domain Invoice.
func (m *InvoiceModel) ToDomain() *intercompany.Invoice {
	inv := &intercompany.Invoice{
		GroupAggregateRoot: m.ToDomainGroupAggregateRoot(),
		Number:             m.Number,
		Type:               m.Type,
		Status:             m.Status,
		SellerID:           m.SellerID,
		BuyerID:            m.BuyerID,
		Period:             parsePeriod(m.Period),
		IssueDate:          m.IssueDate,
		DueDate:            m.DueDate,
		Currency:           m.Currency,
		Subtotal:           m.Subtotal,
		VatAmount:          m.VatAmount,
		TotalAmount:        m.TotalAmount,
		IsCreditNote:       m.IsCreditNote,
		RelatedInvoiceID:   m.RelatedInvoiceID,
		Reason:             m.Reason,
		Lines:              make([]intercompany.InvoiceLine, 0, len(m.Lines)),
		IssuedAt:           m.IssuedAt,
		VoidedAt:           m.VoidedAt,
		VoidReason:         m.VoidReason,
	}
	for _, l := range m.Lines {
		inv.Lines = append(inv.Lines, intercompany.InvoiceLine{
			ID:            l.ID,
			AgreementID:   l.AgreementID,
			Description:   l.Description,
			NetAmount:     l.NetAmount,
			VatRate:       l.VatRate,
			VatAmount:     l.VatAmount,
			WhtRate:       l.WhtRate,
			WhtAmount:     l.WhtAmount,
			WhtTaxType:    l.WhtTaxType,
			GrossAmount:   l.GrossAmount,
			CreditsLineID: l.CreditsLineID,
		})
	}
	return inv
}

// FromDomain populates the persistence model and its lines from a domain Invoice.
func (m *InvoiceModel) FromDomain(inv *intercompany.Invoice) {
	m.FromDomainGroupAggregateRoot(inv.GroupAggregateRoot)
	m.Number = inv.Number
	m.Type = inv.Type
	m.Status = inv.Status
	m.SellerID = inv.SellerID
	m.BuyerID = inv.BuyerID
	m.Period = inv.Period.String()
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.Currency = inv.Currency
	m.Subtotal = inv.Subtotal
	m.VatAmount = inv.VatAmount
	m.TotalAmount = inv.TotalAmount
	m.IsCreditNote = inv.IsCreditNote
	m.RelatedInvoiceID = inv.RelatedInvoiceID
	m.Reason = inv.Reason
	m.IssuedAt = inv.IssuedAt
	m.VoidedAt = inv.VoidedAt
	m.VoidReason = inv.VoidReason
	m.Lines = make([]InvoiceLineModel, 0, len(inv.Lines))
	for i, l := range inv.Lines {
		m.Lines = append(m.Lines, InvoiceLineModel{
			ID:            l.ID,
			InvoiceID:     inv.ID,
			Position:      i,
			AgreementID:   l.AgreementID,
			Description:   l.Description,
			NetAmount:     l.NetAmount,
			VatRate:       l.VatRate,
			VatAmount:     l.VatAmount,
			WhtRate:       l.WhtRate,
			WhtAmount:     l.WhtAmount,
			WhtTaxType:    l.WhtTaxType,
			GrossAmount:   l.GrossAmount,
			CreditsLineID: l.CreditsLineID,
		})
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *intercompany.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// PaymentModel is the persistence model for a Payment.
type PaymentModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	GroupID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	PayerID     uuid.UUID       `gorm:"type:uuid;not null"`
	PayeeID     uuid.UUID       `gorm:"type:uuid;not null"`
	AmountPaid  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	WhtWithheld decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PaymentDate time.Time       `gorm:"type:date;not null"`
	Reference   string          `gorm:"type:varchar(100)"`
	CreatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment.
func (m *PaymentModel) ToDomain() *intercompany.Payment {
	return &intercompany.Payment{
		ID:          m.ID,
		GroupID:     m.GroupID,
		InvoiceID:   m.InvoiceID,
		PayerID:     m.PayerID,
		PayeeID:     m.PayeeID,
		AmountPaid:  m.AmountPaid,
		WhtWithheld: m.WhtWithheld,
		PaymentDate: m.PaymentDate,
		Reference:   m.Reference,
		CreatedAt:   m.CreatedAt,
	}
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *intercompany.Payment) *PaymentModel {
	return &PaymentModel{
		ID:          p.ID,
		GroupID:     p.GroupID,
		InvoiceID:   p.InvoiceID,
		PayerID:     p.PayerID,
		PayeeID:     p.PayeeID,
		AmountPaid:  p.AmountPaid,
		WhtWithheld: p.WhtWithheld,
		PaymentDate: p.PaymentDate,
		Reference:   p.Reference,
		CreatedAt:   p.CreatedAt,
	}
}

// WhtCreditNoteModel is the persistence model for a WhtCreditNote.
type WhtCreditNoteModel struct {
	ID             uuid.UUID            `gorm:"type:uuid;primary_key"`
	GroupID        uuid.UUID            `gorm:"type:uuid;not null;index"`
	PaymentID      uuid.UUID            `gorm:"type:uuid;not null;index"`
	InvoiceID      uuid.UUID            `gorm:"type:uuid;not null;index"`
	Period         string               `gorm:"type:varchar(7);not null;index"`
	IssuerID       uuid.UUID            `gorm:"type:uuid;not null;index"`
	BeneficiaryID  uuid.UUID            `gorm:"type:uuid;not null;index"`
	TaxType        intercompany.TaxType `gorm:"type:varchar(20);not null"`
	Amount         decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	RemittanceDate *time.Time           `gorm:"type:date"`
	ReceiptRef     string               `gorm:"type:varchar(100)"`
	CreatedAt      time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (WhtCreditNoteModel) TableName() string {
	return "wht_credit_notes"
}

// ToDomain converts the persistence model to a domain WhtCreditNote.
func (m *WhtCreditNoteModel) ToDomain() intercompany.WhtCreditNote {
	return intercompany.WhtCreditNote{
		ID:             m.ID,
		GroupID:        m.GroupID,
		PaymentID:      m.PaymentID,
		InvoiceID:      m.InvoiceID,
		Period:         parsePeriod(m.Period),
		IssuerID:       m.IssuerID,
		BeneficiaryID:  m.BeneficiaryID,
		TaxType:        m.TaxType,
		Amount:         m.Amount,
		RemittanceDate: m.RemittanceDate,
		ReceiptRef:     m.ReceiptRef,
		CreatedAt:      m.CreatedAt,
	}
}

// WhtCreditNoteModelFromDomain creates a new persistence model from a domain WhtCreditNote.
func WhtCreditNoteModelFromDomain(n *intercompany.WhtCreditNote) *WhtCreditNoteModel {
	return &WhtCreditNoteModel{
		ID:             n.ID,
		GroupID:        n.GroupID,
		PaymentID:      n.PaymentID,
		InvoiceID:      n.InvoiceID,
		Period:         n.Period.String(),
		IssuerID:       n.IssuerID,
		BeneficiaryID:  n.BeneficiaryID,
		TaxType:        n.TaxType,
		Amount:         n.Amount,
		RemittanceDate: n.RemittanceDate,
		ReceiptRef:     n.ReceiptRef,
		CreatedAt:      n.CreatedAt,
	}
}

// CloseRunModel is the persistence model for the CloseRun aggregate root.
type CloseRunModel struct {
	GroupAggregateModel
	HoldcoID     uuid.UUID                   `gorm:"type:uuid;not null;index:idx_close_run_holdco_period,priority:1"`
	Period       string                      `gorm:"type:varchar(7);not null;index:idx_close_run_holdco_period,priority:2"`
	Status       intercompany.CloseRunStatus `gorm:"type:varchar(20);not null"`
	LastStep     intercompany.CloseStep      `gorm:"type:varchar(30)"`
	FailedStep   intercompany.CloseStep      `gorm:"type:varchar(30)"`
	ErrorMessage string                      `gorm:"type:text"`
	PoolID       *uuid.UUID                  `gorm:"type:uuid"`
	InvoiceCount int                         `gorm:"not null;default:0"`
	StartedAt    time.Time                   `gorm:"not null;index"`
	FinishedAt   *time.Time
}

// TableName returns the table name for GORM
func (CloseRunModel) TableName() string {
	return "close_runs"
}

// ToDomain converts the persistence model to a domain CloseRun.
func (m *CloseRunModel) ToDomain() *intercompany.CloseRun {
	return &intercompany.CloseRun{
		GroupAggregateRoot: m.ToDomainGroupAggregateRoot(),
		HoldcoID:           m.HoldcoID,
		Period:             parsePeriod(m.Period),
		Status:             m.Status,
		LastStep:           m.LastStep,
		FailedStep:         m.FailedStep,
		ErrorMessage:       m.ErrorMessage,
		PoolID:             m.PoolID,
		InvoiceCount:       m.InvoiceCount,
		StartedAt:          m.StartedAt,
		FinishedAt:         m.FinishedAt,
	}
}

// CloseRunModelFromDomain creates a new persistence model from a domain CloseRun.
func CloseRunModelFromDomain(r *intercompany.CloseRun) *CloseRunModel {
	m := &CloseRunModel{
		HoldcoID:     r.HoldcoID,
		Period:       r.Period.String(),
		Status:       r.Status,
		LastStep:     r.LastStep,
		FailedStep:   r.FailedStep,
		ErrorMessage: r.ErrorMessage,
		PoolID:       r.PoolID,
		InvoiceCount: r.InvoiceCount,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	}
	m.FromDomainGroupAggregateRoot(r.GroupAggregateRoot)
	return m
}
