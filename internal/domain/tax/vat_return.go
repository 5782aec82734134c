package tax

import (
	"context"
	"strings"
	"time"

	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VatReturnStatus is the filing state of a VAT return
type VatReturnStatus string

const (
	VatReturnDraft VatReturnStatus = "DRAFT"
	VatReturnFiled VatReturnStatus = "FILED"
)

// VatReturn is a company's VAT position for one period
type VatReturn struct {
	ID         uuid.UUID
	GroupID    uuid.UUID
	CompanyID  uuid.UUID
	Period     valueobject.Period
	OutputVat  decimal.Decimal
	InputVat   decimal.Decimal
	NetVat     decimal.Decimal
	Status     VatReturnStatus
	FiledAt    *time.Time
	PaymentRef string
	ArchiveKey string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewVatReturn creates a DRAFT return with zero amounts
func NewVatReturn(groupID, companyID uuid.UUID, period valueobject.Period) *VatReturn {
	now := time.Now().UTC()
	return &VatReturn{
		ID:        uuid.New(),
		GroupID:   groupID,
		CompanyID: companyID,
		Period:    period,
		OutputVat: decimal.Zero,
		InputVat:  decimal.Zero,
		NetVat:    decimal.Zero,
		Status:    VatReturnDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsFiled reports whether the return has been filed
func (r *VatReturn) IsFiled() bool {
	return r.Status == VatReturnFiled
}

// Recompute overwrites the amounts. Filed returns are frozen.
func (r *VatReturn) Recompute(output, input decimal.Decimal) error {
	if r.IsFiled() {
		return shared.BadRequestf("VAT return %s for %s is already filed", r.Period, r.CompanyID)
	}
	r.OutputVat = valueobject.Round2(output)
	r.InputVat = valueobject.Round2(input)
	r.NetVat = valueobject.Round2(r.OutputVat.Sub(r.InputVat))
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// File stamps the return as FILED with the payment reference
func (r *VatReturn) File(paymentRef string, now time.Time) error {
	if r.IsFiled() {
		return shared.BadRequestf("VAT return %s for %s is already filed", r.Period, r.CompanyID)
	}
	at := now.UTC()
	r.Status = VatReturnFiled
	r.FiledAt = &at
	r.PaymentRef = strings.TrimSpace(paymentRef)
	r.UpdatedAt = at
	return nil
}

// CSVRows renders the return for archiving
func (r *VatReturn) CSVRows() [][]string {
	filedAt := ""
	if r.FiledAt != nil {
		filedAt = r.FiledAt.Format(time.RFC3339)
	}
	return [][]string{
		{"company_id", "period", "output_vat", "input_vat", "net_vat", "status", "filed_at", "payment_ref"},
		{
			r.CompanyID.String(), r.Period.String(),
			r.OutputVat.StringFixed(2), r.InputVat.StringFixed(2), r.NetVat.StringFixed(2),
			string(r.Status), filedAt, r.PaymentRef,
		},
	}
}

// SumVat returns output VAT (company sells) and input VAT (company buys)
// across the invoices, skipping VOID ones.
func SumVat(companyID uuid.UUID, invoices []intercompany.Invoice) (output, input decimal.Decimal) {
	output, input = decimal.Zero, decimal.Zero
	for _, inv := range invoices {
		if inv.Status == intercompany.InvoiceStatusVoid {
			continue
		}
		if inv.SellerID == companyID {
			output = output.Add(inv.VatAmount)
		}
		if inv.BuyerID == companyID {
			input = input.Add(inv.VatAmount)
		}
	}
	return valueobject.Round2(output), valueobject.Round2(input)
}

// VatReturnRepository persists VAT returns. Find returns (nil, nil) when absent.
type VatReturnRepository interface {
	Find(ctx context.Context, companyID uuid.UUID, period valueobject.Period) (*VatReturn, error)
	Save(ctx context.Context, r *VatReturn) error
}
