package finance_test

import (
	"testing"
	"time"

	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/domain/ledger"
	"github.com/erp/icledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCostPoolAllocator_SplitsByWeight(t *testing.T) {
	f := newFixture(t)
	pool := f.allocate(t)

	assert.True(t, dec("3000").Equal(pool.TotalCost))
	require.Len(t, pool.Allocations, 2)
	byRecipient := map[uuid.UUID]string{}
	for _, a := range pool.Allocations {
		byRecipient[a.RecipientID] = a.AllocatedCost.StringFixed(2)
	}
	assert.Equal(t, "1800.00", byRecipient[f.retail.ID])
	assert.Equal(t, "1200.00", byRecipient[f.online.ID])
}

func TestCostPoolAllocator_RejectsBadWeights(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		weights []intercompany.WeightInput
	}{
		{"sum below one", []intercompany.WeightInput{
			{RecipientID: f.retail.ID, Weight: dec("0.5")},
			{RecipientID: f.online.ID, Weight: dec("0.4")},
		}},
		{"duplicate recipient", []intercompany.WeightInput{
			{RecipientID: f.retail.ID, Weight: dec("0.5")},
			{RecipientID: f.retail.ID, Weight: dec("0.5")},
		}},
		{"weight above one", []intercompany.WeightInput{
			{RecipientID: f.retail.ID, Weight: dec("1.2")},
			{RecipientID: f.online.ID, Weight: dec("-0.2")},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.CostPools.CreateCostPool(f.ctx, finance.CreateCostPoolInput{
				GroupID:  f.groupID,
				HoldcoID: f.holdco.ID,
				Period:   march,
				Lines:    f.poolLines(),
				Weights:  tc.weights,
			})
			assert.ErrorIs(t, err, shared.ErrInvalidAllocation)
		})
	}
}

func TestCostPoolAllocator_RecipientOutsideGroup(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.CostPools.CreateCostPool(f.ctx, finance.CreateCostPoolInput{
		GroupID:  f.groupID,
		HoldcoID: f.holdco.ID,
		Period:   march,
		Lines:    f.poolLines(),
		Weights: []intercompany.WeightInput{
			{RecipientID: f.retail.ID, Weight: dec("0.5")},
			{RecipientID: uuid.New(), Weight: dec("0.5")},
		},
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAgreementGovernor_Rules(t *testing.T) {
	f := newFixture(t)
	base := intercompany.AgreementTerms{
		ProviderID:    f.holdco.ID,
		RecipientID:   f.retail.ID,
		Type:          intercompany.AgreementTypeManagement,
		Pricing:       intercompany.CostPlus{Markup: dec("0.10")},
		EffectiveFrom: marchOne,
	}

	t.Run("markup outside governed range", func(t *testing.T) {
		terms := base
		terms.Pricing = intercompany.CostPlus{Markup: dec("0.20")}
		_, err := f.engine.Agreements.CreateAgreement(f.ctx, f.groupID, terms)
		assert.ErrorIs(t, err, shared.ErrBadRequest)
	})

	t.Run("mid-month start", func(t *testing.T) {
		terms := base
		terms.EffectiveFrom = time.Date(2025, time.April, 15, 0, 0, 0, 0, time.UTC)
		_, err := f.engine.Agreements.CreateAgreement(f.ctx, f.groupID, terms)
		assert.ErrorIs(t, err, shared.ErrBadRequest)
	})

	t.Run("recipient role not eligible", func(t *testing.T) {
		terms := base
		terms.ProviderID, terms.RecipientID = f.retail.ID, f.holdco.ID
		_, err := f.engine.Agreements.CreateAgreement(f.ctx, f.groupID, terms)
		assert.ErrorIs(t, err, shared.ErrBadRequest)
	})

	t.Run("company from another group", func(t *testing.T) {
		terms := base
		terms.RecipientID = uuid.New()
		_, err := f.engine.Agreements.CreateAgreement(f.ctx, f.groupID, terms)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("pricing change must start in January", func(t *testing.T) {
		created, err := f.engine.Agreements.CreateAgreement(f.ctx, f.groupID, base)
		require.NoError(t, err)

		terms := base
		terms.Pricing = intercompany.CostPlus{Markup: dec("0.12")}
		terms.EffectiveFrom = time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
		_, err = f.engine.Agreements.UpdateAgreement(f.ctx, f.groupID, created.ID, terms)
		assert.ErrorIs(t, err, shared.ErrBadRequest)

		terms.EffectiveFrom = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
		updated, err := f.engine.Agreements.UpdateAgreement(f.ctx, f.groupID, created.ID, terms)
		require.NoError(t, err)
		assert.True(t, dec("0.12").Equal(updated.Pricing.(intercompany.CostPlus).Markup))
	})
}

func TestInvoiceGenerator_Generate(t *testing.T) {
	f := newFixture(t)
	f.withAgreements(t)
	f.allocate(t)

	invoices := f.generate(t)
	require.Len(t, invoices, 2)

	retail := invoices[f.retail.ID]
	assert.Equal(t, intercompany.InvoiceStatusDraft, retail.Status)
	assert.Equal(t, f.holdco.ID, retail.SellerID)
	assert.Equal(t, "2480.00", retail.Subtotal.StringFixed(2))
	assert.Equal(t, "138.60", retail.VatAmount.StringFixed(2))
	assert.Equal(t, "2618.60", retail.TotalAmount.StringFixed(2))
	require.Len(t, retail.Lines, 2)
	assert.Equal(t, "1980.00", retail.Lines[0].NetAmount.StringFixed(2))
	assert.Equal(t, "59.40", retail.Lines[0].WhtAmount.StringFixed(2))
	assert.Equal(t, "500.00", retail.Lines[1].NetAmount.StringFixed(2))
	assert.Equal(t, "2025-04-30", retail.DueDate.Format(time.DateOnly))
	assert.Regexp(t, `^IC-202503-[0-9A-F]{8}$`, retail.Number)

	online := invoices[f.online.ID]
	assert.Equal(t, "1820.00", online.Subtotal.StringFixed(2))
	assert.Equal(t, "1912.40", online.TotalAmount.StringFixed(2))
}

func TestInvoiceGenerator_RegenerateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.withAgreements(t)
	f.allocate(t)
	first := f.generate(t)

	results, err := f.engine.Invoices.Generate(f.ctx, finance.GenerateInput{
		GroupID:   f.groupID,
		HoldcoID:  f.holdco.ID,
		Period:    march,
		IssueDate: marchLast,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.Created)
		assert.Equal(t, first[r.RecipientID].ID, r.InvoiceID)
	}

	list, err := f.engine.Invoices.ListInvoices(f.ctx, f.groupID, intercompany.InvoiceFilter{Period: &march})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestInvoiceGenerator_RegenerateRepostsIssuedInvoice(t *testing.T) {
	f := newFixture(t)
	f.withAgreements(t)
	f.allocate(t)
	retail := f.generate(t)[f.retail.ID]

	_, err := f.engine.Invoices.Issue(f.ctx, f.groupID, retail.ID)
	require.NoError(t, err)

	// costs go up after issue; nil weights keep the existing rule
	pool, err := f.engine.CostPools.CreateCostPool(f.ctx, finance.CreateCostPoolInput{
		GroupID:  f.groupID,
		HoldcoID: f.holdco.ID,
		Period:   march,
		Lines:    []intercompany.LineInput{{Category: "salaries", Amount: dec("4000")}},
	})
	require.NoError(t, err)
	pool, err = f.engine.CostPools.AllocateCostPool(f.ctx, f.groupID, pool.ID)
	require.NoError(t, err)
	assert.True(t, dec("4000").Equal(pool.TotalCost))

	again := f.generate(t)[f.retail.ID]
	assert.Equal(t, retail.ID, again.ID)
	assert.Equal(t, intercompany.InvoiceStatusIssued, again.Status)
	// 2400 * 1.10 + 500
	assert.Equal(t, "3140.00", again.Subtotal.StringFixed(2))

	tb, err := f.engine.Poster.LedgerFor(f.ctx, f.groupID, f.holdco.ID, march)
	require.NoError(t, err)
	assert.Equal(t, "3140.00", tb.TotalCredits.StringFixed(2))
	assert.Len(t, tb.Entries, 1)
}

func TestInvoiceGenerator_LockedPeriodFreezesInvoices(t *testing.T) {
	f := newFixture(t)
	f.withAgreements(t)
	f.allocate(t)
	retail := f.generate(t)[f.retail.ID]
	_, err := f.engine.Invoices.Issue(f.ctx, f.groupID, retail.ID)
	require.NoError(t, err)

	_, err = f.engine.Locks.Lock(f.ctx, f.groupID, f.holdco.ID, march, "controller", "closed")
	require.NoError(t, err)

	pool, err := f.engine.CostPools.CreateCostPool(f.ctx, finance.CreateCostPoolInput{
		GroupID:  f.groupID,
		HoldcoID: f.holdco.ID,
		Period:   march,
		Lines:    []intercompany.LineInput{{Category: "salaries", Amount: dec("9000")}},
	})
	require.NoError(t, err)
	_, err = f.engine.CostPools.AllocateCostPool(f.ctx, f.groupID, pool.ID)
	require.NoError(t, err)

	_, err = f.engine.Invoices.Generate(f.ctx, finance.GenerateInput{
		GroupID: f.groupID, HoldcoID: f.holdco.ID, Period: march, IssueDate: marchLast,
	})
	assert.ErrorIs(t, err, shared.ErrPeriodLocked)

	_, err = f.engine.Poster.PostInvoice(f.ctx, f.groupID, retail.ID)
	assert.ErrorIs(t, err, shared.ErrPeriodLocked)
	posted, err := f.engine.Poster.PostAllForPeriod(f.ctx, f.groupID, march)
	require.NoError(t, err)
	assert.Zero(t, posted)

	stored, err := f.engine.Invoices.GetInvoice(f.ctx, f.groupID, retail.ID)
	require.NoError(t, err)
	assert.Equal(t, "2480.00", stored.Subtotal.StringFixed(2))
	list, err := f.engine.Invoices.ListInvoices(f.ctx, f.groupID, intercompany.InvoiceFilter{Period: &march})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	tb, err := f.engine.Poster.LedgerFor(f.ctx, f.groupID, f.holdco.ID, march)
	require.NoError(t, err)
	assert.Equal(t, "2480.00", tb.TotalCredits.StringFixed(2))
	assert.Len(t, tb.Entries, 1)
}

func TestInvoiceGenerator_DatesAndTerms(t *testing.T) {
	f := newFixture(t)
	f.withAgreements(t)
	f.allocate(t)
	zero, seven, negative := 0, 7, -1

	tests := []struct {
		name      string
		issueDate time.Time
		dueDays   *int
		wantIssue string
		wantDue   string
	}{
		{"defaults", time.Time{}, nil, "2025-03-31", "2025-04-30"},
		{"due on issue", marchLast, &zero, "2025-03-31", "2025-03-31"},
		{"explicit terms", time.Date(2025, time.March, 25, 0, 0, 0, 0, time.UTC), &seven, "2025-03-25", "2025-04-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := f.engine.Invoices.Generate(f.ctx, finance.GenerateInput{
				GroupID: f.groupID, HoldcoID: f.holdco.ID, Period: march,
				IssueDate: tt.issueDate, DueDays: tt.dueDays,
			})
			require.NoError(t, err)
			require.NotEmpty(t, results)
			inv, err := f.engine.Invoices.GetInvoice(f.ctx, f.groupID, results[0].InvoiceID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIssue, inv.IssueDate.Format(time.DateOnly))
			assert.Equal(t, tt.wantDue, inv.DueDate.Format(time.DateOnly))
		})
	}

	t.Run("negative terms", func(t *testing.T) {
		_, err := f.engine.Invoices.Generate(f.ctx, finance.GenerateInput{
			GroupID: f.groupID, HoldcoID: f.holdco.ID, Period: march, DueDays: &negative,
		})
		assert.ErrorIs(t, err, shared.ErrBadRequest)
	})

	t.Run("external invoice", func(t *testing.T) {
		inv, err := f.engine.Invoices.CreateExternalInvoice(f.ctx, finance.ExternalInvoiceInput{
			GroupID:    f.groupID,
			SellerID:   f.retail.ID,
			CustomerID: uuid.New(),
			Period:     march,
			DueDays:    &zero,
			Lines:      []finance.ExternalLineInput{{Description: "Cash sale", Net: dec("10")}},
		})
		require.NoError(t, err)
		assert.Equal(t, "2025-03-31", inv.IssueDate.Format(time.DateOnly))
		assert.Equal(t, "2025-03-31", inv.DueDate.Format(time.DateOnly))

		_, err = f.engine.Invoices.CreateExternalInvoice(f.ctx, finance.ExternalInvoiceInput{
			GroupID:    f.groupID,
			SellerID:   f.retail.ID,
			CustomerID: uuid.New(),
			Lines:      []finance.ExternalLineInput{{Description: "Cash sale", Net: dec("10")}},
		})
		assert.ErrorIs(t, err, shared.ErrBadRequest)
	})
}

func TestInvoiceGenerator_MissingConfiguration(t *testing.T) {
	t.Run("no allocation", func(t *testing.T) {
		f := newFixture(t)
		f.withAgreements(t)
		_, err := f.engine.Invoices.Generate(f.ctx, finance.GenerateInput{
			GroupID: f.groupID, HoldcoID: f.holdco.ID, Period: march, IssueDate: marchLast,
		})
		assert.ErrorIs(t, err, shared.ErrNotAllocated)
	})

	t.Run("no agreements", func(t *testing.T) {
		f := newFixture(t)
		f.allocate(t)
		_, err := f.engine.Invoices.Generate(f.ctx, finance.GenerateInput{
			GroupID: f.groupID, HoldcoID: f.holdco.ID, Period: march, IssueDate: marchLast,
		})
		assert.ErrorIs(t, err, shared.ErrNotConfigured)

		list, err := f.engine.Invoices.ListInvoices(f.ctx, f.groupID, intercompany.InvoiceFilter{})
		require.NoError(t, err)
		assert.Empty(t, list, "nothing is written when any recipient fails validation")
	})
}

func TestInvoiceGenerator_IssuePostsBalancedEntries(t *testing.T) {
	f := newFixture(t)
	f.withAgreements(t)
	f.allocate(t)
	retail := f.generate(t)[f.retail.ID]

	tb, err := f.engine.Poster.LedgerFor(f.ctx, f.groupID, f.holdco.ID, march)
	require.NoError(t, err)
	assert.Empty(t, tb.Entries, "drafts are not posted")

	issued, err := f.engine.Invoices.Issue(f.ctx, f.groupID, retail.ID)
	require.NoError(t, err)
	assert.Equal(t, intercompany.InvoiceStatusIssued, issued.Status)

	seller, err := f.engine.Poster.LedgerFor(f.ctx, f.groupID, f.holdco.ID, march)
	require.NoError(t, err)
	buyer, err := f.engine.Poster.LedgerFor(f.ctx, f.groupID, f.retail.ID, march)
	require.NoError(t, err)

	require.Len(t, seller.Entries, 1)
	assert.Equal(t, ledger.CodeIntercompanyRevenue, seller.Entries[0].AccountCode)
	assert.Equal(t, "2480.00", seller.Entries[0].Credit.StringFixed(2))
	require.Len(t, buyer.Entries, 1)
	assert.Equal(t, ledger.CodeIntercompanyExpense, buyer.Entries[0].AccountCode)
	assert.Equal(t, "2480.00", buyer.Entries[0].Debit.StringFixed(2))

	// posting again replaces rather than duplicates
	entries, err := f.engine.Poster.PostInvoice(f.ctx, f.groupID, retail.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	n, err := f.engine.Poster.PostAllForPeriod(f.ctx, f.groupID, march)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	seller, err = f.engine.Poster.LedgerFor(f.ctx, f.groupID, f.holdco.ID, march)
	require.NoError(t, err)
	assert.Len(t, seller.Entries, 2, "the draft for online is posted by the period re-post")
}

func TestInvoiceGenerator_Void(t *testing.T) {
	f := newFixture(t)
	f.withAgreements(t)
	f.allocate(t)
	retail := f.generate(t)[f.retail.ID]
	_, err := f.engine.Invoices.Issue(f.ctx, f.groupID, retail.ID)
	require.NoError(t, err)

	_, err = f.engine.Invoices.Void(f.ctx, f.groupID, retail.ID, "  ")
	assert.ErrorIs(t, err, shared.ErrBadRequest)

	voided, err := f.engine.Invoices.Void(f.ctx, f.groupID, retail.ID, "wrong period")
	require.NoError(t, err)
	assert.Equal(t, intercompany.InvoiceStatusVoid, voided.Status)

	tb, err := f.engine.Poster.LedgerFor(f.ctx, f.groupID, f.holdco.ID, march)
	require.NoError(t, err)
	assert.Empty(t, tb.Entries)

	_, err = f.engine.Poster.PostInvoice(f.ctx, f.groupID, retail.ID)
	assert.ErrorIs(t, err, shared.ErrBadRequest)
}

func TestInvoiceGenerator_PeriodLockBlocksIssue(t *testing.T) {
	f := newFixture(t)
	f.withAgreements(t)
	f.allocate(t)
	retail := f.generate(t)[f.retail.ID]

	_, err := f.engine.Locks.Lock(f.ctx, f.groupID, f.holdco.ID, march, "controller", "closed")
	require.NoError(t, err)

	_, err = f.engine.Invoices.Issue(f.ctx, f.groupID, retail.ID)
	assert.ErrorIs(t, err, shared.ErrPeriodLocked)
	_, err = f.engine.Invoices.Void(f.ctx, f.groupID, retail.ID, "mistake")
	assert.ErrorIs(t, err, shared.ErrPeriodLocked)

	_, err = f.engine.Locks.Unlock(f.ctx, f.groupID, f.holdco.ID, march, "controller")
	require.NoError(t, err)
	_, err = f.engine.Invoices.Issue(f.ctx, f.groupID, retail.ID)
	assert.NoError(t, err)
}

func TestInvoiceGenerator_ExternalInvoicePostsToSales(t *testing.T) {
	f := newFixture(t)
	inv, err := f.engine.Invoices.CreateExternalInvoice(f.ctx, finance.ExternalInvoiceInput{
		GroupID:    f.groupID,
		SellerID:   f.retail.ID,
		CustomerID: uuid.New(),
		IssueDate:  time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC),
		Lines: []finance.ExternalLineInput{
			{Description: "Store sale", Net: dec("1000"), VatRate: dec("0.07")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, march, inv.Period)
	assert.Regexp(t, `^EX-202503-`, inv.Number)
	assert.Equal(t, "1070.00", inv.TotalAmount.StringFixed(2))

	_, err = f.engine.Invoices.Issue(f.ctx, f.groupID, inv.ID)
	require.NoError(t, err)

	tb, err := f.engine.Poster.LedgerFor(f.ctx, f.groupID, f.retail.ID, march)
	require.NoError(t, err)
	assert.True(t, tb.IsBalanced())
	codes := map[string]string{}
	for _, e := range tb.Entries {
		codes[e.AccountCode] = e.Net().StringFixed(2)
	}
	assert.Equal(t, "1000.00", codes[ledger.CodeExternalReceivable])
	assert.Equal(t, "-1000.00", codes[ledger.CodeSalesRevenue])
}

func TestAccountResolver_ReportingOnlyCode(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Accounts.Resolve(f.ctx, f.groupID, f.holdco.ID, ledger.CodeReportingRevenue)
	assert.ErrorIs(t, err, shared.ErrReportingOnly)

	acct, err := f.engine.Accounts.Resolve(f.ctx, f.groupID, f.holdco.ID, ledger.CodeIntercompanyRevenue)
	require.NoError(t, err)
	assert.Equal(t, f.holdco.ID, acct.CompanyID)

	_, err = f.engine.Accounts.Resolve(f.ctx, f.groupID, f.holdco.ID, "9999")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	// seeding again leaves the chart as is
	accounts, err := f.engine.Accounts.SeedChart(f.ctx, f.groupID, f.holdco.ID)
	require.NoError(t, err)
	assert.Len(t, accounts, len(ledger.StandardChart))
}

func TestTenancyGuard(t *testing.T) {
	f := newFixture(t)

	subs, err := f.engine.Tenancy.ListSubsidiaries(f.ctx, f.groupID)
	require.NoError(t, err)
	assert.Len(t, subs, 3)

	_, err = f.engine.Tenancy.AssertCompanyInGroup(f.ctx, uuid.New(), f.holdco.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	got, err := f.engine.Tenancy.AssertCompaniesInGroup(f.ctx, f.groupID, []uuid.UUID{f.online.ID, f.retail.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, f.online.ID, got[0].ID)

	_, err = f.engine.Tenancy.AssertCompaniesInGroup(f.ctx, f.groupID, []uuid.UUID{f.online.ID, uuid.New()})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.engine.Tenancy.AssertCompanyInGroup(f.ctx, f.groupID, uuid.Nil)
	assert.ErrorIs(t, err, shared.ErrBadRequest)
}
