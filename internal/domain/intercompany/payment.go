package intercompany

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

// DefaultWhtTolerance is the absolute difference accepted between the
// expected and the supplied withholding amount.
var DefaultWhtTolerance = decimal.RequireFromString("1.00")

// Payment is money received against an invoice
type Payment struct {
	ID          uuid.UUID
	GroupID     uuid.UUID
	InvoiceID   uuid.UUID
	PayerID     uuid.UUID
	PayeeID     uuid.UUID
	AmountPaid  decimal.Decimal
	WhtWithheld decimal.Decimal
	PaymentDate time.Time
	Reference   string
	CreatedAt   time.Time
}

// Settled is the amount this payment settles, cash plus tax withheld
func (p Payment) Settled() decimal.Decimal {
	return p.AmountPaid.Add(p.WhtWithheld)
}

// WhtGroup is the withholding expected for one tax type
type WhtGroup struct {
	TaxType TaxType
	Amount  decimal.Decimal
}

// WhtExpectation is the withholding derived from an invoice's lines
type WhtExpectation struct {
	Total  decimal.Decimal
	Groups []WhtGroup
}

// ExpectedWht sums line wht_amount > 0, grouped by the originating
// agreement's tax type. taxTypeOf resolves a line's tax type; an empty
// result falls back to SERVICES. Groups are ordered by tax type.
func ExpectedWht(lines []InvoiceLine, taxTypeOf func(InvoiceLine) TaxType) WhtExpectation {
	byType := make(map[TaxType]decimal.Decimal)
	total := decimal.Zero
	for _, l := range lines {
		if !l.WhtAmount.IsPositive() {
			continue
		}
		var tt TaxType
		if taxTypeOf != nil {
			tt = taxTypeOf(l)
		}
		tt = NormalizeTaxType(tt)
		byType[tt] = byType[tt].Add(l.WhtAmount)
		total = total.Add(l.WhtAmount)
	}
	groups := make([]WhtGroup, 0, len(byType))
	for tt, amount := range byType {
		groups = append(groups, WhtGroup{TaxType: tt, Amount: valueobject.Round2(amount)})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].TaxType < groups[j].TaxType })
	return WhtExpectation{Total: valueobject.Round2(total), Groups: groups}
}

// Check validates the withholding supplied by the payer. A missing or zero
// amount is rejected only when withholding is expected; any other amount
// must fall within tolerance of the expected total, which may be zero.
func (e WhtExpectation) Check(provided *decimal.Decimal, tolerance decimal.Decimal) error {
	withheld := decimal.Zero
	if provided != nil {
		withheld = valueobject.Round2(*provided)
	}
	if withheld.IsZero() {
		if e.Total.IsPositive() {
			return shared.NewDomainError(shared.CodeWhtRequired,
				"withholding of "+e.Total.StringFixed(2)+" is expected for this invoice")
		}
		return nil
	}
	if !valueobject.WithinTolerance(withheld, e.Total, tolerance) {
		return shared.NewDomainError(shared.CodeWhtMismatch,
			"withholding "+withheld.StringFixed(2)+" differs from expected "+e.Total.StringFixed(2)+
				" by more than "+tolerance.StringFixed(2))
	}
	return nil
}

// NewPayment validates and builds a payment for an invoice
func NewPayment(inv *Invoice, date time.Time, amountPaid decimal.Decimal, whtWithheld *decimal.Decimal, reference string) (*Payment, error) {
	if inv.Status == InvoiceStatusVoid {
		return nil, shared.BadRequestf("invoice %s is void", inv.Number)
	}
	if inv.Period.IsZero() {
		return nil, shared.BadRequestf("invoice %s has no period", inv.Number)
	}
	if !amountPaid.IsPositive() {
		return nil, shared.BadRequestf("amount paid must be positive")
	}
	wht := decimal.Zero
	if whtWithheld != nil {
		if whtWithheld.IsNegative() {
			return nil, shared.BadRequestf("withheld amount cannot be negative")
		}
		wht = valueobject.Round2(*whtWithheld)
	}
	if date.IsZero() {
		return nil, shared.BadRequestf("payment date is required")
	}
	return &Payment{
		ID:          uuid.New(),
		GroupID:     inv.GroupID,
		InvoiceID:   inv.ID,
		PayerID:     inv.BuyerID,
		PayeeID:     inv.SellerID,
		AmountPaid:  valueobject.Round2(amountPaid),
		WhtWithheld: wht,
		PaymentDate: valueobject.DateOnly(date),
		Reference:   strings.TrimSpace(reference),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// WhtCreditNote is the payee's claim on tax the payer withheld. It stays
// unremitted until the issuer remits it to the tax authority.
type WhtCreditNote struct {
	ID             uuid.UUID
	GroupID        uuid.UUID
	PaymentID      uuid.UUID
	InvoiceID      uuid.UUID
	Period         valueobject.Period
	IssuerID       uuid.UUID
	BeneficiaryID  uuid.UUID
	TaxType        TaxType
	Amount         decimal.Decimal
	RemittanceDate *time.Time
	ReceiptRef     string
	CreatedAt      time.Time
}

// IsRemitted reports whether the note carries a remittance date
func (n *WhtCreditNote) IsRemitted() bool {
	return n.RemittanceDate != nil
}

// MarkRemitted stamps the remittance date and receipt reference
func (n *WhtCreditNote) MarkRemitted(date time.Time, receiptRef string) {
	d := valueobject.DateOnly(date)
	n.RemittanceDate = &d
	n.ReceiptRef = strings.TrimSpace(receiptRef)
}

// CreditNotesFor creates one WhtCreditNote per expected tax-type group. The
// notes add up to the amount actually withheld: a surplus within tolerance
// goes to the largest group and a shortfall is taken from the largest groups
// first. Withholding with nothing expected is noted as SERVICES.
func CreditNotesFor(inv *Invoice, payment *Payment, expected WhtExpectation) []WhtCreditNote {
	withheld := valueobject.Round2(payment.WhtWithheld)
	if !withheld.IsPositive() {
		return nil
	}
	groups := append([]WhtGroup(nil), expected.Groups...)
	if len(groups) == 0 {
		groups = []WhtGroup{{TaxType: TaxTypeServices, Amount: withheld}}
	} else {
		order := make([]int, len(groups))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return groups[order[a]].Amount.GreaterThan(groups[order[b]].Amount)
		})
		diff := withheld.Sub(valueobject.Sum(groupAmounts(groups)...))
		if diff.IsPositive() {
			groups[order[0]].Amount = groups[order[0]].Amount.Add(diff)
		}
		for _, i := range order {
			if !diff.IsNegative() {
				break
			}
			take := valueobject.MinDecimal(groups[i].Amount, diff.Neg())
			groups[i].Amount = groups[i].Amount.Sub(take)
			diff = diff.Add(take)
		}
	}

	notes := make([]WhtCreditNote, 0, len(groups))
	for _, g := range groups {
		if !g.Amount.IsPositive() {
			continue
		}
		notes = append(notes, WhtCreditNote{
			ID:            uuid.New(),
			GroupID:       inv.GroupID,
			PaymentID:     payment.ID,
			InvoiceID:     inv.ID,
			Period:        inv.Period,
			IssuerID:      payment.PayerID,
			BeneficiaryID: payment.PayeeID,
			TaxType:       g.TaxType,
			Amount:        g.Amount,
			CreatedAt:     payment.CreatedAt,
		})
	}
	return notes
}

func groupAmounts(groups []WhtGroup) []decimal.Decimal {
	out := make([]decimal.Decimal, len(groups))
	for i, g := range groups {
		out[i] = g.Amount
	}
	return out
}

// PaymentRepository persists payments
type PaymentRepository interface {
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error)
	Save(ctx context.Context, p *Payment) error
}

// WhtCreditNoteFilter narrows credit note lookups
type WhtCreditNoteFilter struct {
	IssuerID       *uuid.UUID
	BeneficiaryID  *uuid.UUID
	CompanyID      *uuid.UUID // issuer or beneficiary
	Period         *valueobject.Period
	TaxType        *TaxType
	UnremittedOnly bool
}

// WhtCreditNoteRepository persists WHT credit notes
type WhtCreditNoteRepository interface {
	FindAllForGroup(ctx context.Context, groupID uuid.UUID, filter WhtCreditNoteFilter) ([]WhtCreditNote, error)
	SaveAll(ctx context.Context, notes []WhtCreditNote) error
}
