package finance_test

import (
	"strings"
	"testing"
	"time"

	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxEngine_VatReturnLifecycle(t *testing.T) {
	f := newFixture(t)
	f.withAgreements(t)
	f.allocate(t)
	f.generate(t)

	draft, err := f.engine.Tax.ComputeVatReturn(f.ctx, f.groupID, f.holdco.ID, march)
	require.NoError(t, err)
	assert.Equal(t, tax.VatReturnDraft, draft.Status)
	// 138.60 + 92.40 charged to the two subsidiaries
	assert.Equal(t, "231.00", draft.OutputVat.StringFixed(2))
	assert.True(t, draft.InputVat.IsZero())

	buyer, err := f.engine.Tax.ComputeVatReturn(f.ctx, f.groupID, f.retail.ID, march)
	require.NoError(t, err)
	assert.Equal(t, "138.60", buyer.InputVat.StringFixed(2))
	assert.Equal(t, "-138.60", buyer.NetVat.StringFixed(2))

	filed, err := f.engine.Tax.FileVatReturn(f.ctx, f.groupID, f.holdco.ID, march, " PAY-0325 ")
	require.NoError(t, err)
	assert.Equal(t, tax.VatReturnFiled, filed.Status)
	assert.Equal(t, draft.ID, filed.ID)
	assert.Equal(t, "PAY-0325", filed.PaymentRef)
	key := "vat-returns/" + f.groupID.String() + "/2025-03/" + f.holdco.ID.String() + ".csv"
	assert.Equal(t, "mem://"+key, filed.ArchiveKey)
	assert.Contains(t, f.archive.files, key)

	_, err = f.engine.Tax.FileVatReturn(f.ctx, f.groupID, f.holdco.ID, march, "PAY-AGAIN")
	assert.ErrorIs(t, err, shared.ErrBadRequest)
	_, err = f.engine.Tax.ComputeVatReturn(f.ctx, f.groupID, f.holdco.ID, march)
	assert.ErrorIs(t, err, shared.ErrBadRequest)

	_, err = f.engine.Tax.ComputeVatReturn(f.ctx, uuid.New(), f.holdco.ID, march)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestTaxEngine_WhtRemittance(t *testing.T) {
	f := newFixture(t)
	inv := issuedRetailInvoice(t, f)
	_, err := f.engine.Payments.RecordPayment(f.ctx, finance.RecordPaymentInput{
		GroupID:     f.groupID,
		InvoiceID:   inv.ID,
		Date:        paidOn,
		AmountPaid:  dec("2559.20"),
		WhtWithheld: decPtr("59.40"),
	})
	require.NoError(t, err)

	schedule, err := f.engine.Tax.WhtSchedule(f.ctx, f.groupID, f.retail.ID, march)
	require.NoError(t, err)
	assert.Equal(t, "59.40", schedule.Total.StringFixed(2))
	require.Len(t, schedule.Lines, 1)
	assert.Equal(t, intercompany.TaxTypeServices, schedule.Lines[0].TaxType)

	impact, err := f.engine.Tax.TaxImpact(f.ctx, f.groupID, f.holdco.ID, march)
	require.NoError(t, err)
	assert.Equal(t, "59.40", impact.WhtClaimable.StringFixed(2))
	assert.True(t, impact.WhtPayable.IsZero())

	royalties := intercompany.TaxTypeRoyalties
	_, err = f.engine.Tax.MarkRemitted(f.ctx, finance.MarkRemittedInput{
		GroupID:  f.groupID,
		IssuerID: f.retail.ID,
		Period:   march,
		TaxType:  &royalties,
		Date:     paidOn,
	})
	assert.ErrorIs(t, err, shared.ErrNothingToRemit)

	remitted, err := f.engine.Tax.MarkRemitted(f.ctx, finance.MarkRemittedInput{
		GroupID:    f.groupID,
		IssuerID:   f.retail.ID,
		Period:     march,
		Date:       time.Date(2025, time.April, 7, 0, 0, 0, 0, time.UTC),
		ReceiptRef: "RD-7781",
	})
	require.NoError(t, err)
	require.Len(t, remitted, 1)
	assert.True(t, remitted[0].IsRemitted())
	assert.Equal(t, "RD-7781", remitted[0].ReceiptRef)

	var archived string
	for k := range f.archive.files {
		if strings.HasPrefix(k, "wht-remittances/") {
			archived = k
		}
	}
	assert.True(t, strings.HasSuffix(archived, f.retail.ID.String()+"-20250407.csv"), archived)

	schedule, err = f.engine.Tax.WhtSchedule(f.ctx, f.groupID, f.retail.ID, march)
	require.NoError(t, err)
	assert.True(t, schedule.Total.IsZero())

	_, err = f.engine.Tax.MarkRemitted(f.ctx, finance.MarkRemittedInput{
		GroupID: f.groupID, IssuerID: f.retail.ID, Period: march, Date: paidOn,
	})
	assert.ErrorIs(t, err, shared.ErrNothingToRemit)

	_, err = f.engine.Tax.MarkRemitted(f.ctx, finance.MarkRemittedInput{
		GroupID: f.groupID, IssuerID: f.retail.ID, Period: march,
	})
	assert.ErrorIs(t, err, shared.ErrBadRequest)
}

func TestTaxEngine_ConsolidatedPL(t *testing.T) {
	f := newFixture(t)
	issuedRetailInvoice(t, f)

	sale, err := f.engine.Invoices.CreateExternalInvoice(f.ctx, finance.ExternalInvoiceInput{
		GroupID:    f.groupID,
		SellerID:   f.retail.ID,
		CustomerID: uuid.New(),
		Period:     march,
		IssueDate:  time.Date(2025, time.March, 28, 0, 0, 0, 0, time.UTC),
		Lines:      []finance.ExternalLineInput{{Description: "Retail sales", Net: dec("5000")}},
	})
	require.NoError(t, err)
	_, err = f.engine.Invoices.Issue(f.ctx, f.groupID, sale.ID)
	require.NoError(t, err)

	external, err := f.engine.Tax.ConsolidatedPL(f.ctx, f.groupID, march, false)
	require.NoError(t, err)
	assert.Equal(t, "5000.00", external.Revenue.StringFixed(2))
	assert.True(t, external.Expenses.IsZero())

	withIC, err := f.engine.Tax.ConsolidatedPL(f.ctx, f.groupID, march, true)
	require.NoError(t, err)
	assert.Equal(t, "7480.00", withIC.Revenue.StringFixed(2))
	assert.Equal(t, "2480.00", withIC.Expenses.StringFixed(2))
	assert.True(t, external.NetIncome.Equal(withIC.NetIncome), "intercompany charges net out")
}
