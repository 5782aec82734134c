package intercompany

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceType distinguishes group-internal from external invoices
type InvoiceType string

const (
	InvoiceTypeIntercompany InvoiceType = "INTERCOMPANY"
	InvoiceTypeExternal     InvoiceType = "EXTERNAL"
)

// IsValid checks if the invoice type is known
func (t InvoiceType) IsValid() bool {
	return t == InvoiceTypeIntercompany || t == InvoiceTypeExternal
}

// InvoiceStatus is the invoice lifecycle: DRAFT -> ISSUED -> PART_PAID -> PAID, or VOID
type InvoiceStatus string

const (
	InvoiceStatusDraft    InvoiceStatus = "DRAFT"
	InvoiceStatusIssued   InvoiceStatus = "ISSUED"
	InvoiceStatusPartPaid InvoiceStatus = "PART_PAID"
	InvoiceStatusPaid     InvoiceStatus = "PAID"
	InvoiceStatusVoid     InvoiceStatus = "VOID"
)

// OpenStatuses are the statuses in which an intercompany invoice is regenerated in place
var OpenStatuses = []InvoiceStatus{InvoiceStatusDraft, InvoiceStatusIssued, InvoiceStatusPartPaid}

// IsValid checks if the status is known
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusIssued, InvoiceStatusPartPaid,
		InvoiceStatusPaid, InvoiceStatusVoid:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsOpen returns true for DRAFT, ISSUED and PART_PAID
func (s InvoiceStatus) IsOpen() bool {
	return s == InvoiceStatusDraft || s == InvoiceStatusIssued || s == InvoiceStatusPartPaid
}

// InvoiceLine is one charge on an invoice. Rates are kept so partial
// credit notes can be recomputed from the original line.
type InvoiceLine struct {
	ID          uuid.UUID
	AgreementID *uuid.UUID
	Description string
	NetAmount   decimal.Decimal
	VatRate     decimal.Decimal
	VatAmount   decimal.Decimal
	WhtRate     decimal.Decimal
	WhtAmount   decimal.Decimal
	WhtTaxType  TaxType
	GrossAmount decimal.Decimal
	// CreditsLineID is the original line a credit note line reverses
	CreditsLineID *uuid.UUID
}

// NewInvoiceLine computes vat, wht and gross for a net amount:
// vat = round2(net x vat_rate), wht = round2(net x wht_rate), gross = round2(net + vat).
func NewInvoiceLine(agreementID *uuid.UUID, description string, net decimal.Decimal, vat VatTerms, wht WhtTerms) InvoiceLine {
	net = valueobject.Round2(net)
	line := InvoiceLine{
		ID:          uuid.New(),
		AgreementID: agreementID,
		Description: description,
		NetAmount:   net,
		VatAmount:   decimal.Zero,
		WhtAmount:   decimal.Zero,
	}
	if vat.Applies {
		line.VatRate = vat.Rate
		line.VatAmount = valueobject.Round2(net.Mul(vat.Rate))
	}
	if wht.Applies {
		line.WhtRate = wht.Rate
		line.WhtTaxType = NormalizeTaxType(wht.TaxType)
		line.WhtAmount = valueobject.Round2(net.Mul(wht.Rate))
	}
	line.GrossAmount = valueobject.Round2(net.Add(line.VatAmount))
	return line
}

// reversing returns a copy with a fresh id, every amount sign-flipped and
// a link to the original line
func (l InvoiceLine) reversing(original uuid.UUID) InvoiceLine {
	l.ID = uuid.New()
	l.CreditsLineID = &original
	l.NetAmount = l.NetAmount.Neg()
	l.VatAmount = l.VatAmount.Neg()
	l.WhtAmount = l.WhtAmount.Neg()
	l.GrossAmount = l.GrossAmount.Neg()
	return l
}

// Invoice is an intercompany or external invoice, or a credit note against one
type Invoice struct {
	shared.GroupAggregateRoot
	Number           string
	Type             InvoiceType
	Status           InvoiceStatus
	SellerID         uuid.UUID
	BuyerID          uuid.UUID
	Period           valueobject.Period
	IssueDate        time.Time
	DueDate          time.Time
	Currency         string
	Subtotal         decimal.Decimal
	VatAmount        decimal.Decimal
	TotalAmount      decimal.Decimal
	IsCreditNote     bool
	RelatedInvoiceID *uuid.UUID
	Reason           string
	Lines            []InvoiceLine
	IssuedAt         *time.Time
	VoidedAt         *time.Time
	VoidReason       string
}

// InvoiceHeader carries the fields needed to open an invoice
type InvoiceHeader struct {
	Type      InvoiceType
	SellerID  uuid.UUID
	BuyerID   uuid.UUID
	Period    valueobject.Period
	IssueDate time.Time
	DueDate   time.Time
	Currency  string
}

// NewInvoice creates a DRAFT invoice with the given lines
func NewInvoice(groupID uuid.UUID, h InvoiceHeader, lines []InvoiceLine) (*Invoice, error) {
	if !h.Type.IsValid() {
		return nil, shared.BadRequestf("unknown invoice type %q", h.Type)
	}
	if h.SellerID == uuid.Nil || h.BuyerID == uuid.Nil {
		return nil, shared.BadRequestf("seller and buyer are required")
	}
	if h.SellerID == h.BuyerID {
		return nil, shared.BadRequestf("seller and buyer must differ")
	}
	if h.Period.IsZero() {
		return nil, shared.BadRequestf("invoice period is required")
	}
	inv := &Invoice{
		GroupAggregateRoot: shared.NewGroupAggregateRoot(groupID),
		Type:               h.Type,
		Status:             InvoiceStatusDraft,
		SellerID:           h.SellerID,
		BuyerID:            h.BuyerID,
		Period:             h.Period,
		IssueDate:          valueobject.DateOnly(h.IssueDate),
		DueDate:            valueobject.DateOnly(h.DueDate),
		Currency:           strings.ToUpper(h.Currency),
	}
	inv.Number = invoiceNumber("IC", h.Period, inv.ID)
	if h.Type == InvoiceTypeExternal {
		inv.Number = invoiceNumber("EX", h.Period, inv.ID)
	}
	if err := inv.ReplaceLines(lines); err != nil {
		return nil, err
	}
	return inv, nil
}

func invoiceNumber(prefix string, period valueobject.Period, id uuid.UUID) string {
	compact := strings.ReplaceAll(period.String(), "-", "")
	return fmt.Sprintf("%s-%s-%s", prefix, compact, strings.ToUpper(id.String()[:8]))
}

// ReplaceLines swaps the lines and recomputes subtotal, vat and total
func (inv *Invoice) ReplaceLines(lines []InvoiceLine) error {
	if len(lines) == 0 {
		return shared.BadRequestf("invoice requires at least one line")
	}
	inv.Lines = lines
	inv.recomputeTotals()
	inv.Touch()
	return nil
}

func (inv *Invoice) recomputeTotals() {
	nets := make([]decimal.Decimal, 0, len(inv.Lines))
	vats := make([]decimal.Decimal, 0, len(inv.Lines))
	gross := make([]decimal.Decimal, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		nets = append(nets, l.NetAmount)
		vats = append(vats, l.VatAmount)
		gross = append(gross, l.GrossAmount)
	}
	inv.Subtotal = valueobject.SumRound2(nets...)
	inv.VatAmount = valueobject.SumRound2(vats...)
	inv.TotalAmount = valueobject.SumRound2(gross...)
}

// Reschedule moves the issue and due dates, used when regenerating in place
func (inv *Invoice) Reschedule(issueDate, dueDate time.Time) {
	inv.IssueDate = valueobject.DateOnly(issueDate)
	inv.DueDate = valueobject.DateOnly(dueDate)
	inv.Touch()
}

// Issue transitions a DRAFT invoice to ISSUED
func (inv *Invoice) Issue(now time.Time) error {
	if inv.Status != InvoiceStatusDraft {
		return shared.BadRequestf("invoice %s cannot be issued from status %s", inv.Number, inv.Status)
	}
	inv.Status = InvoiceStatusIssued
	issuedAt := now.UTC()
	inv.IssuedAt = &issuedAt
	inv.IncrementVersion()
	inv.Touch()
	return nil
}

// Void cancels a DRAFT or ISSUED invoice
func (inv *Invoice) Void(reason string, now time.Time) error {
	if inv.Status != InvoiceStatusDraft && inv.Status != InvoiceStatusIssued {
		return shared.BadRequestf("invoice %s cannot be voided from status %s", inv.Number, inv.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.BadRequestf("void reason is required")
	}
	inv.Status = InvoiceStatusVoid
	voidedAt := now.UTC()
	inv.VoidedAt = &voidedAt
	inv.VoidReason = reason
	inv.IncrementVersion()
	inv.Touch()
	return nil
}

// ApplySettlement recomputes status from the total settled against the
// invoice: PAID when settled >= total, PART_PAID when 0 < settled < total,
// otherwise DRAFT stays DRAFT and anything else becomes ISSUED.
func (inv *Invoice) ApplySettlement(settled decimal.Decimal) {
	settled = valueobject.Round2(settled)
	switch {
	case settled.GreaterThanOrEqual(inv.TotalAmount) && settled.IsPositive():
		inv.Status = InvoiceStatusPaid
	case settled.IsPositive():
		inv.Status = InvoiceStatusPartPaid
	case inv.Status != InvoiceStatusDraft:
		inv.Status = InvoiceStatusIssued
	}
	inv.IncrementVersion()
	inv.Touch()
}

// EnsurePostable rejects invoices that must not reach the ledger
func (inv *Invoice) EnsurePostable() error {
	if inv.Status == InvoiceStatusVoid {
		return shared.BadRequestf("invoice %s is void", inv.Number)
	}
	if inv.Period.IsZero() {
		return shared.BadRequestf("invoice %s has no period", inv.Number)
	}
	return nil
}

// LineByID finds a line on the invoice
func (inv *Invoice) LineByID(id uuid.UUID) (InvoiceLine, bool) {
	for _, l := range inv.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return InvoiceLine{}, false
}

// AgreementIDs returns the distinct agreements referenced by the lines
func (inv *Invoice) AgreementIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	ids := make([]uuid.UUID, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		if l.AgreementID == nil {
			continue
		}
		if _, ok := seen[*l.AgreementID]; ok {
			continue
		}
		seen[*l.AgreementID] = struct{}{}
		ids = append(ids, *l.AgreementID)
	}
	return ids
}

// InvoiceFilter narrows invoice lookups
type InvoiceFilter struct {
	Period      *valueobject.Period
	CompanyID   *uuid.UUID // seller or buyer
	SellerID    *uuid.UUID
	BuyerID     *uuid.UUID
	Statuses    []InvoiceStatus
	ExcludeVoid bool
	// RelatedInvoiceID selects the credit notes raised against an invoice
	RelatedInvoiceID *uuid.UUID
}

// InvoiceRepository persists invoices with their lines
type InvoiceRepository interface {
	FindByIDForGroup(ctx context.Context, groupID, id uuid.UUID) (*Invoice, error)
	FindOpenIntercompany(ctx context.Context, groupID, sellerID, buyerID uuid.UUID, period valueobject.Period) (*Invoice, error)
	FindAllForGroup(ctx context.Context, groupID uuid.UUID, filter InvoiceFilter) ([]Invoice, error)
	Save(ctx context.Context, inv *Invoice) error
}
