package intercompany

import (
	"strings"
	"time"

	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditNoteRequest describes a reversal of an original invoice. A nil
// LineCredits means full reversal; otherwise it maps original line ids to
// the positive net amount to credit.
type CreditNoteRequest struct {
	IssueDate   time.Time
	Reason      string
	LineCredits map[uuid.UUID]decimal.Decimal
}

// IsFullReversal reports whether every line is reversed in full
func (r CreditNoteRequest) IsFullReversal() bool {
	return r.LineCredits == nil
}

// NewCreditNote builds an ISSUED credit note mirroring the original.
func NewCreditNote(original *Invoice, req CreditNoteRequest, now time.Time) (*Invoice, error) {
	if original.IsCreditNote {
		return nil, shared.BadRequestf("invoice %s is already a credit note", original.Number)
	}
	if original.Status == InvoiceStatusVoid {
		return nil, shared.BadRequestf("invoice %s is void", original.Number)
	}
	if req.IssueDate.IsZero() {
		return nil, shared.BadRequestf("issue date is required")
	}

	var lines []InvoiceLine
	var err error
	if req.IsFullReversal() {
		lines = reverseAll(original)
	} else {
		lines, err = reversePartial(original, req.LineCredits)
		if err != nil {
			return nil, err
		}
	}

	issue := valueobject.DateOnly(req.IssueDate)
	cn := &Invoice{
		GroupAggregateRoot: shared.NewGroupAggregateRoot(original.GroupID),
		Type:               original.Type,
		Status:             InvoiceStatusIssued,
		SellerID:           original.SellerID,
		BuyerID:            original.BuyerID,
		Period:             original.Period,
		IssueDate:          issue,
		DueDate:            issue,
		Currency:           original.Currency,
		IsCreditNote:       true,
		RelatedInvoiceID:   &original.ID,
		Reason:             strings.TrimSpace(req.Reason),
	}
	issuedAt := now.UTC()
	cn.IssuedAt = &issuedAt
	cn.Number = invoiceNumber("CN", original.Period, cn.ID)
	if err := cn.ReplaceLines(lines); err != nil {
		return nil, err
	}
	return cn, nil
}

func reverseAll(original *Invoice) []InvoiceLine {
	lines := make([]InvoiceLine, 0, len(original.Lines))
	for _, l := range original.Lines {
		lines = append(lines, l.reversing(l.ID))
	}
	return lines
}

// reversePartial recomputes vat, wht and gross from the original line's
// rates, then negates. Lines keep the original invoice's ordering.
func reversePartial(original *Invoice, credits map[uuid.UUID]decimal.Decimal) ([]InvoiceLine, error) {
	if len(credits) == 0 {
		return nil, shared.BadRequestf("at least one line credit is required for a partial credit note")
	}
	for id := range credits {
		if _, ok := original.LineByID(id); !ok {
			return nil, shared.NotFoundf("line %s not found on invoice %s", id, original.Number)
		}
	}

	lines := make([]InvoiceLine, 0, len(credits))
	for _, l := range original.Lines {
		amount, ok := credits[l.ID]
		if !ok {
			continue
		}
		amount = valueobject.Round2(amount)
		if !amount.IsPositive() {
			return nil, shared.BadRequestf("credit for line %s must be positive", l.ID)
		}
		if amount.GreaterThan(l.NetAmount.Abs()) {
			return nil, shared.BadRequestf("credit %s exceeds line %s net %s",
				amount.StringFixed(2), l.ID, l.NetAmount.StringFixed(2))
		}
		credited := NewInvoiceLine(l.AgreementID, "Credit: "+l.Description, amount,
			VatTerms{Applies: l.VatRate.IsPositive(), Rate: l.VatRate},
			WhtTerms{Applies: l.WhtRate.IsPositive(), Rate: l.WhtRate, TaxType: l.WhtTaxType},
		)
		lines = append(lines, credited.reversing(l.ID))
	}
	return lines, nil
}

// EnsureCreditable refuses a credit note that, together with the prior
// non-void credit notes against the same original, would credit a line
// beyond its net amount. A full reversal therefore needs a clean original.
func EnsureCreditable(original *Invoice, prior []Invoice, cn *Invoice) error {
	credited := make(map[uuid.UUID]decimal.Decimal, len(original.Lines))
	add := func(lines []InvoiceLine) {
		for _, l := range lines {
			if l.CreditsLineID != nil {
				credited[*l.CreditsLineID] = credited[*l.CreditsLineID].Add(l.NetAmount.Neg())
			}
		}
	}
	for i := range prior {
		if prior[i].Status == InvoiceStatusVoid || prior[i].ID == cn.ID {
			continue
		}
		add(prior[i].Lines)
	}
	already := make(map[uuid.UUID]decimal.Decimal, len(credited))
	for id, amount := range credited {
		already[id] = amount
	}
	add(cn.Lines)

	for _, l := range original.Lines {
		total, ok := credited[l.ID]
		if !ok || !total.GreaterThan(l.NetAmount.Abs()) {
			continue
		}
		if already[l.ID].GreaterThanOrEqual(l.NetAmount.Abs()) {
			return shared.BadRequestf("line %s of invoice %s is already fully credited", l.ID, original.Number)
		}
		return shared.BadRequestf("credit on line %s of invoice %s would reach %s, above its net %s",
			l.ID, original.Number, total.StringFixed(2), l.NetAmount.Abs().StringFixed(2))
	}
	return nil
}
