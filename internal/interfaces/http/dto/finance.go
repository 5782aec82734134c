package dto

import (
	"time"

	"github.com/erp/icledger/internal/domain/credit"
	"github.com/erp/icledger/internal/domain/group"
	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/domain/ledger"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/erp/icledger/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubsidiaryResponse is a member company of the group
type SubsidiaryResponse struct {
	ID        uuid.UUID  `json:"id"`
	GroupID   uuid.UUID  `json:"group_id"`
	Name      string     `json:"name"`
	Role      group.Role `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
}

// ToSubsidiaryResponse maps a subsidiary
func ToSubsidiaryResponse(s *group.Subsidiary) SubsidiaryResponse {
	return SubsidiaryResponse{
		ID:        s.ID,
		GroupID:   s.GroupID,
		Name:      s.Name,
		Role:      s.Role,
		CreatedAt: s.CreatedAt,
	}
}

// ToSubsidiaryResponses maps a list of subsidiaries
func ToSubsidiaryResponses(subs []group.Subsidiary) []SubsidiaryResponse {
	out := make([]SubsidiaryResponse, 0, len(subs))
	for i := range subs {
		out = append(out, ToSubsidiaryResponse(&subs[i]))
	}
	return out
}

// PricingResponse is the flattened pricing of an agreement
type PricingResponse struct {
	Model intercompany.PricingModel `json:"model"`
	Rate  *decimal.Decimal          `json:"rate,omitempty"`
	Fee   *decimal.Decimal          `json:"fee,omitempty"`
}

// AgreementResponse is an intercompany agreement
type AgreementResponse struct {
	ID            uuid.UUID                  `json:"id"`
	GroupID       uuid.UUID                  `json:"group_id"`
	ProviderID    uuid.UUID                  `json:"provider_id"`
	RecipientID   uuid.UUID                  `json:"recipient_id"`
	Type          intercompany.AgreementType `json:"type"`
	Pricing       PricingResponse            `json:"pricing"`
	VatApplies    bool                       `json:"vat_applies"`
	VatRate       decimal.Decimal            `json:"vat_rate"`
	WhtApplies    bool                       `json:"wht_applies"`
	WhtRate       decimal.Decimal            `json:"wht_rate"`
	WhtTaxType    intercompany.TaxType       `json:"wht_tax_type,omitempty"`
	EffectiveFrom string                     `json:"effective_from"`
	EffectiveTo   *string                    `json:"effective_to,omitempty"`
	Version       int                        `json:"version"`
	UpdatedAt     time.Time                  `json:"updated_at"`
}

// ToAgreementResponse maps an agreement
func ToAgreementResponse(a *intercompany.Agreement) AgreementResponse {
	model, rate, fee := intercompany.PricingParts(a.Pricing)
	pricing := PricingResponse{Model: model}
	if model == intercompany.PricingFixedMonthly {
		pricing.Fee = &fee
	} else {
		pricing.Rate = &rate
	}
	resp := AgreementResponse{
		ID:            a.ID,
		GroupID:       a.GroupID,
		ProviderID:    a.ProviderID,
		RecipientID:   a.RecipientID,
		Type:          a.Type,
		Pricing:       pricing,
		VatApplies:    a.VAT.Applies,
		VatRate:       a.VAT.Rate,
		WhtApplies:    a.WHT.Applies,
		WhtRate:       a.WHT.Rate,
		WhtTaxType:    a.WHT.TaxType,
		EffectiveFrom: formatDate(a.EffectiveFrom),
		Version:       a.Version,
		UpdatedAt:     a.UpdatedAt,
	}
	if a.EffectiveTo != nil {
		to := formatDate(*a.EffectiveTo)
		resp.EffectiveTo = &to
	}
	return resp
}

// ToAgreementResponses maps a list of agreements
func ToAgreementResponses(list []intercompany.Agreement) []AgreementResponse {
	out := make([]AgreementResponse, 0, len(list))
	for i := range list {
		out = append(out, ToAgreementResponse(&list[i]))
	}
	return out
}

// CostPoolLineResponse is one cost category of a pool
type CostPoolLineResponse struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// AllocationResponse is one recipient's share of a pool
type AllocationResponse struct {
	RecipientID   uuid.UUID       `json:"recipient_id"`
	Weight        decimal.Decimal `json:"weight"`
	AllocatedCost decimal.Decimal `json:"allocated_cost"`
}

// WeightResponse is one recipient's configured weight
type WeightResponse struct {
	RecipientID uuid.UUID       `json:"recipient_id"`
	Weight      decimal.Decimal `json:"weight"`
}

// CostPoolResponse is a holdco's shared cost pool for a period
type CostPoolResponse struct {
	ID          uuid.UUID              `json:"id"`
	GroupID     uuid.UUID              `json:"group_id"`
	HoldcoID    uuid.UUID              `json:"holdco_id"`
	Period      valueobject.Period     `json:"period"`
	TotalCost   decimal.Decimal        `json:"total_cost"`
	Lines       []CostPoolLineResponse `json:"lines"`
	Weights     []WeightResponse       `json:"weights"`
	Allocations []AllocationResponse   `json:"allocations"`
}

// ToCostPoolResponse maps a cost pool with its rule and allocations
func ToCostPoolResponse(p *intercompany.CostPool) CostPoolResponse {
	resp := CostPoolResponse{
		ID:          p.ID,
		GroupID:     p.GroupID,
		HoldcoID:    p.HoldcoID,
		Period:      p.Period,
		TotalCost:   p.TotalCost,
		Lines:       make([]CostPoolLineResponse, 0, len(p.Lines)),
		Weights:     []WeightResponse{},
		Allocations: make([]AllocationResponse, 0, len(p.Allocations)),
	}
	for _, l := range p.Lines {
		resp.Lines = append(resp.Lines, CostPoolLineResponse{Category: l.Category, Amount: l.Amount})
	}
	if p.Rule != nil {
		for _, w := range p.Rule.Weights {
			resp.Weights = append(resp.Weights, WeightResponse{RecipientID: w.RecipientID, Weight: w.Weight})
		}
	}
	for _, a := range p.Allocations {
		resp.Allocations = append(resp.Allocations, AllocationResponse{
			RecipientID:   a.RecipientID,
			Weight:        a.Weight,
			AllocatedCost: a.AllocatedCost,
		})
	}
	return resp
}

// InvoiceLineResponse is one charge on an invoice
type InvoiceLineResponse struct {
	ID            uuid.UUID            `json:"id"`
	AgreementID   *uuid.UUID           `json:"agreement_id,omitempty"`
	Description   string               `json:"description"`
	NetAmount     decimal.Decimal      `json:"net_amount"`
	VatRate       decimal.Decimal      `json:"vat_rate"`
	VatAmount     decimal.Decimal      `json:"vat_amount"`
	WhtRate       decimal.Decimal      `json:"wht_rate"`
	WhtAmount     decimal.Decimal      `json:"wht_amount"`
	WhtTaxType    intercompany.TaxType `json:"wht_tax_type,omitempty"`
	GrossAmount   decimal.Decimal      `json:"gross_amount"`
	CreditsLineID *uuid.UUID           `json:"credits_line_id,omitempty"`
}

// InvoiceResponse is an intercompany or external invoice, or a credit note
type InvoiceResponse struct {
	ID               uuid.UUID                  `json:"id"`
	GroupID          uuid.UUID                  `json:"group_id"`
	Number           string                     `json:"number"`
	Type             intercompany.InvoiceType   `json:"type"`
	Status           intercompany.InvoiceStatus `json:"status"`
	SellerID         uuid.UUID                  `json:"seller_id"`
	BuyerID          uuid.UUID                  `json:"buyer_id"`
	Period           valueobject.Period         `json:"period"`
	IssueDate        string                     `json:"issue_date"`
	DueDate          string                     `json:"due_date"`
	Currency         string                     `json:"currency"`
	Subtotal         decimal.Decimal            `json:"subtotal"`
	VatAmount        decimal.Decimal            `json:"vat_amount"`
	TotalAmount      decimal.Decimal            `json:"total_amount"`
	IsCreditNote     bool                       `json:"is_credit_note"`
	RelatedInvoiceID *uuid.UUID                 `json:"related_invoice_id,omitempty"`
	Reason           string                     `json:"reason,omitempty"`
	Lines            []InvoiceLineResponse      `json:"lines"`
	IssuedAt         *time.Time                 `json:"issued_at,omitempty"`
	VoidedAt         *time.Time                 `json:"voided_at,omitempty"`
	VoidReason       string                     `json:"void_reason,omitempty"`
}

// ToInvoiceResponse maps an invoice with its lines
func ToInvoiceResponse(inv *intercompany.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:               inv.ID,
		GroupID:          inv.GroupID,
		Number:           inv.Number,
		Type:             inv.Type,
		Status:           inv.Status,
		SellerID:         inv.SellerID,
		BuyerID:          inv.BuyerID,
		Period:           inv.Period,
		IssueDate:        formatDate(inv.IssueDate),
		DueDate:          formatDate(inv.DueDate),
		Currency:         inv.Currency,
		Subtotal:         inv.Subtotal,
		VatAmount:        inv.VatAmount,
		TotalAmount:      inv.TotalAmount,
		IsCreditNote:     inv.IsCreditNote,
		RelatedInvoiceID: inv.RelatedInvoiceID,
		Reason:           inv.Reason,
		Lines:            make([]InvoiceLineResponse, 0, len(inv.Lines)),
		IssuedAt:         inv.IssuedAt,
		VoidedAt:         inv.VoidedAt,
		VoidReason:       inv.VoidReason,
	}
	for _, l := range inv.Lines {
		resp.Lines = append(resp.Lines, InvoiceLineResponse{
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
	return resp
}

// ToInvoiceResponses maps a list of invoices
func ToInvoiceResponses(list []intercompany.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, 0, len(list))
	for i := range list {
		out = append(out, ToInvoiceResponse(&list[i]))
	}
	return out
}

// PaymentResponseItem is a recorded payment against an invoice
type PaymentResponseItem struct {
	ID          uuid.UUID       `json:"id"`
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	PayerID     uuid.UUID       `json:"payer_id"`
	PayeeID     uuid.UUID       `json:"payee_id"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	WhtWithheld decimal.Decimal `json:"wht_withheld"`
	PaymentDate string          `json:"payment_date"`
	Reference   string          `json:"reference,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ToPaymentResponses maps payments
func ToPaymentResponses(list []intercompany.Payment) []PaymentResponseItem {
	out := make([]PaymentResponseItem, 0, len(list))
	for i := range list {
		out = append(out, toPaymentResponse(&list[i]))
	}
	return out
}

func toPaymentResponse(p *intercompany.Payment) PaymentResponseItem {
	return PaymentResponseItem{
		ID:          p.ID,
		InvoiceID:   p.InvoiceID,
		PayerID:     p.PayerID,
		PayeeID:     p.PayeeID,
		AmountPaid:  p.AmountPaid,
		WhtWithheld: p.WhtWithheld,
		PaymentDate: formatDate(p.PaymentDate),
		Reference:   p.Reference,
		CreatedAt:   p.CreatedAt,
	}
}

// WhtCreditNoteResponse is a withholding certificate
type WhtCreditNoteResponse struct {
	ID             uuid.UUID            `json:"id"`
	PaymentID      uuid.UUID            `json:"payment_id"`
	InvoiceID      uuid.UUID            `json:"invoice_id"`
	Period         valueobject.Period   `json:"period"`
	IssuerID       uuid.UUID            `json:"issuer_id"`
	BeneficiaryID  uuid.UUID            `json:"beneficiary_id"`
	TaxType        intercompany.TaxType `json:"tax_type"`
	Amount         decimal.Decimal      `json:"amount"`
	RemittanceDate *string              `json:"remittance_date,omitempty"`
	ReceiptRef     string               `json:"receipt_ref,omitempty"`
}

// ToWhtCreditNoteResponses maps withholding certificates
func ToWhtCreditNoteResponses(list []intercompany.WhtCreditNote) []WhtCreditNoteResponse {
	out := make([]WhtCreditNoteResponse, 0, len(list))
	for _, n := range list {
		item := WhtCreditNoteResponse{
			ID:            n.ID,
			PaymentID:     n.PaymentID,
			InvoiceID:     n.InvoiceID,
			Period:        n.Period,
			IssuerID:      n.IssuerID,
			BeneficiaryID: n.BeneficiaryID,
			TaxType:       n.TaxType,
			Amount:        n.Amount,
			ReceiptRef:    n.ReceiptRef,
		}
		if n.RemittanceDate != nil {
			d := formatDate(*n.RemittanceDate)
			item.RemittanceDate = &d
		}
		out = append(out, item)
	}
	return out
}

// PaymentResultResponse is the outcome of recording a payment
type PaymentResultResponse struct {
	Payment     PaymentResponseItem     `json:"payment"`
	Invoice     InvoiceResponse         `json:"invoice"`
	Settled     decimal.Decimal         `json:"settled"`
	CreditNotes []WhtCreditNoteResponse `json:"credit_notes"`
}

// ToPaymentResultResponse maps a reconciled payment
func ToPaymentResultResponse(p *intercompany.Payment, inv *intercompany.Invoice, settled decimal.Decimal, notes []intercompany.WhtCreditNote) PaymentResultResponse {
	return PaymentResultResponse{
		Payment:     toPaymentResponse(p),
		Invoice:     ToInvoiceResponse(inv),
		Settled:     settled,
		CreditNotes: ToWhtCreditNoteResponses(notes),
	}
}

// PeriodLockResponse is the lock state of a company period
type PeriodLockResponse struct {
	CompanyID  uuid.UUID          `json:"company_id"`
	Period     valueobject.Period `json:"period"`
	Locked     bool               `json:"locked"`
	LockedAt   *time.Time         `json:"locked_at,omitempty"`
	LockedBy   string             `json:"locked_by,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	UnlockedAt *time.Time         `json:"unlocked_at,omitempty"`
	UnlockedBy string             `json:"unlocked_by,omitempty"`
}

// ToPeriodLockResponse maps a period lock row
func ToPeriodLockResponse(l *ledger.PeriodLock) PeriodLockResponse {
	return PeriodLockResponse{
		CompanyID:  l.CompanyID,
		Period:     l.Period,
		Locked:     l.Locked,
		LockedAt:   l.LockedAt,
		LockedBy:   l.LockedBy,
		Reason:     l.Reason,
		UnlockedAt: l.UnlockedAt,
		UnlockedBy: l.UnlockedBy,
	}
}

// CloseRunResponse is the recorded outcome of a month close
type CloseRunResponse struct {
	ID           uuid.UUID                   `json:"id"`
	HoldcoID     uuid.UUID                   `json:"holdco_id"`
	Period       valueobject.Period          `json:"period"`
	Status       intercompany.CloseRunStatus `json:"status"`
	LastStep     intercompany.CloseStep      `json:"last_step,omitempty"`
	FailedStep   intercompany.CloseStep      `json:"failed_step,omitempty"`
	ErrorMessage string                      `json:"error_message,omitempty"`
	PoolID       *uuid.UUID                  `json:"pool_id,omitempty"`
	InvoiceCount int                         `json:"invoice_count"`
	StartedAt    time.Time                   `json:"started_at"`
	FinishedAt   *time.Time                  `json:"finished_at,omitempty"`
}

// ToCloseRunResponse maps a close run
func ToCloseRunResponse(r *intercompany.CloseRun) CloseRunResponse {
	return CloseRunResponse{
		ID:           r.ID,
		HoldcoID:     r.HoldcoID,
		Period:       r.Period,
		Status:       r.Status,
		LastStep:     r.LastStep,
		FailedStep:   r.FailedStep,
		ErrorMessage: r.ErrorMessage,
		PoolID:       r.PoolID,
		InvoiceCount: r.InvoiceCount,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	}
}

// VatReturnResponse is a company's VAT return for a period
type VatReturnResponse struct {
	ID         uuid.UUID           `json:"id"`
	CompanyID  uuid.UUID           `json:"company_id"`
	Period     valueobject.Period  `json:"period"`
	OutputVat  decimal.Decimal     `json:"output_vat"`
	InputVat   decimal.Decimal     `json:"input_vat"`
	NetVat     decimal.Decimal     `json:"net_vat"`
	Status     tax.VatReturnStatus `json:"status"`
	FiledAt    *time.Time          `json:"filed_at,omitempty"`
	PaymentRef string              `json:"payment_ref,omitempty"`
	ArchiveKey string              `json:"archive_key,omitempty"`
}

// ToVatReturnResponse maps a VAT return
func ToVatReturnResponse(v *tax.VatReturn) VatReturnResponse {
	return VatReturnResponse{
		ID:         v.ID,
		CompanyID:  v.CompanyID,
		Period:     v.Period,
		OutputVat:  v.OutputVat,
		InputVat:   v.InputVat,
		NetVat:     v.NetVat,
		Status:     v.Status,
		FiledAt:    v.FiledAt,
		PaymentRef: v.PaymentRef,
		ArchiveKey: v.ArchiveKey,
	}
}

// CreditAccountResponse is a reseller credit line
type CreditAccountResponse struct {
	ID           uuid.UUID            `json:"id"`
	SubsidiaryID uuid.UUID            `json:"subsidiary_id"`
	ResellerID   uuid.UUID            `json:"reseller_id"`
	LimitAmount  decimal.Decimal      `json:"limit_amount"`
	UsedAmount   decimal.Decimal      `json:"used_amount"`
	Available    decimal.Decimal      `json:"available"`
	Status       credit.AccountStatus `json:"status"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// ToCreditAccountResponse maps a credit account
func ToCreditAccountResponse(a *credit.Account) CreditAccountResponse {
	return CreditAccountResponse{
		ID:           a.ID,
		SubsidiaryID: a.SubsidiaryID,
		ResellerID:   a.ResellerID,
		LimitAmount:  a.LimitAmount,
		UsedAmount:   a.UsedAmount,
		Available:    a.Available(),
		Status:       a.Status,
		UpdatedAt:    a.UpdatedAt,
	}
}

// CreditOrderResponse is an order drawn on a credit line
type CreditOrderResponse struct {
	ID              uuid.UUID          `json:"id"`
	CreditAccountID uuid.UUID          `json:"credit_account_id"`
	ResellerID      uuid.UUID          `json:"reseller_id"`
	Reference       string             `json:"reference"`
	TotalAmount     decimal.Decimal    `json:"total_amount"`
	PaidAmount      decimal.Decimal    `json:"paid_amount"`
	Outstanding     decimal.Decimal    `json:"outstanding"`
	Status          credit.OrderStatus `json:"status"`
	CreatedAt       time.Time          `json:"created_at"`
}

// ToCreditOrderResponse maps a credit order
func ToCreditOrderResponse(o *credit.Order) CreditOrderResponse {
	return CreditOrderResponse{
		ID:              o.ID,
		CreditAccountID: o.CreditAccountID,
		ResellerID:      o.ResellerID,
		Reference:       o.Reference,
		TotalAmount:     o.TotalAmount,
		PaidAmount:      o.PaidAmount,
		Outstanding:     o.Outstanding(),
		Status:          o.Status,
		CreatedAt:       o.CreatedAt,
	}
}

// ToCreditOrderResponses maps credit orders
func ToCreditOrderResponses(list []credit.Order) []CreditOrderResponse {
	out := make([]CreditOrderResponse, 0, len(list))
	for i := range list {
		out = append(out, ToCreditOrderResponse(&list[i]))
	}
	return out
}

// RepaymentAllocationResponse is the part of a repayment applied to one order
type RepaymentAllocationResponse struct {
	OrderID uuid.UUID       `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
}

// RepaymentResponse is a reseller repayment with its FIFO allocations
type RepaymentResponse struct {
	ID              uuid.UUID                     `json:"id"`
	CreditAccountID uuid.UUID                     `json:"credit_account_id"`
	Amount          decimal.Decimal               `json:"amount"`
	AppliedAmount   decimal.Decimal               `json:"applied_amount"`
	Unapplied       decimal.Decimal               `json:"unapplied"`
	Method          string                        `json:"method"`
	PaidAt          time.Time                     `json:"paid_at"`
	Allocations     []RepaymentAllocationResponse `json:"allocations"`
}

// ToRepaymentResponse maps a repayment
func ToRepaymentResponse(r *credit.Repayment) RepaymentResponse {
	resp := RepaymentResponse{
		ID:              r.ID,
		CreditAccountID: r.CreditAccountID,
		Amount:          r.Amount,
		AppliedAmount:   r.AppliedAmount,
		Unapplied:       r.Unapplied(),
		Method:          r.Method,
		PaidAt:          r.PaidAt,
		Allocations:     make([]RepaymentAllocationResponse, 0, len(r.Allocations)),
	}
	for _, a := range r.Allocations {
		resp.Allocations = append(resp.Allocations, RepaymentAllocationResponse{OrderID: a.OrderID, Amount: a.Amount})
	}
	return resp
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

// EntryResponse is one ledger line
type EntryResponse struct {
	ID          uuid.UUID          `json:"id"`
	CompanyID   uuid.UUID          `json:"company_id"`
	Period      valueobject.Period `json:"period"`
	EntryDate   string             `json:"entry_date"`
	AccountCode string             `json:"account_code"`
	Debit       decimal.Decimal    `json:"debit"`
	Credit      decimal.Decimal    `json:"credit"`
	Memo        string             `json:"memo,omitempty"`
	SourceType  ledger.SourceType  `json:"source_type"`
	SourceRef   uuid.UUID          `json:"source_ref"`
}

// ToEntryResponses maps ledger entries
func ToEntryResponses(list []ledger.Entry) []EntryResponse {
	out := make([]EntryResponse, len(list))
	for i, e := range list {
		out[i] = EntryResponse{
			ID:          e.ID,
			CompanyID:   e.CompanyID,
			Period:      e.Period,
			EntryDate:   formatDate(e.EntryDate),
			AccountCode: e.AccountCode,
			Debit:       e.Debit,
			Credit:      e.Credit,
			Memo:        e.Memo,
			SourceType:  e.SourceType,
			SourceRef:   e.SourceRef,
		}
	}
	return out
}
