package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/domain/credit"
	"github.com/erp/icledger/internal/domain/group"
	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/domain/ledger"
	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/erp/icledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func ledgerSource(ref uuid.UUID) ledger.Source {
	return ledger.Source{Type: ledger.SourceInvoice, Ref: ref}
}

var march = valueobject.MustParsePeriod("2025-03")

func newTestInvoice(t *testing.T, groupID, seller, buyer uuid.UUID, net string) *intercompany.Invoice {
	t.Helper()
	issue := time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)
	agreementID := uuid.New()
	lines := []intercompany.InvoiceLine{
		intercompany.NewInvoiceLine(&agreementID, "Management fee", dec(net),
			intercompany.VatTerms{Applies: true, Rate: dec("0.07")},
			intercompany.WhtTerms{Applies: true, Rate: dec("0.03"), TaxType: intercompany.TaxTypeServices}),
		intercompany.NewInvoiceLine(nil, "IP license", dec("500"), intercompany.VatTerms{}, intercompany.WhtTerms{}),
	}
	inv, err := intercompany.NewInvoice(groupID, intercompany.InvoiceHeader{
		Type:      intercompany.InvoiceTypeIntercompany,
		SellerID:  seller,
		BuyerID:   buyer,
		Period:    march,
		IssueDate: issue,
		DueDate:   issue.AddDate(0, 0, 30),
		Currency:  "USD",
	}, lines)
	require.NoError(t, err)
	return inv
}

func TestSubsidiaryRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSubsidiaryRepository(db)
	ctx := context.Background()
	groupID := uuid.New()

	holdco, err := group.NewSubsidiary(groupID, "Holdco", group.RoleHoldco)
	require.NoError(t, err)
	retail, err := group.NewSubsidiary(groupID, "Retail", group.RoleRetail)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, holdco))
	require.NoError(t, repo.Save(ctx, retail))

	t.Run("finds within group", func(t *testing.T) {
		found, err := repo.FindByIDForGroup(ctx, groupID, holdco.ID)
		require.NoError(t, err)
		assert.Equal(t, "Holdco", found.Name)
		assert.Equal(t, group.RoleHoldco, found.Role)
	})

	t.Run("other group is not found", func(t *testing.T) {
		_, err := repo.FindByIDForGroup(ctx, uuid.New(), holdco.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("FindByIDsForGroup returns the found subset", func(t *testing.T) {
		found, err := repo.FindByIDsForGroup(ctx, groupID, []uuid.UUID{holdco.ID, uuid.New()})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, holdco.ID, found[0].ID)
	})

	t.Run("lists all", func(t *testing.T) {
		all, err := repo.FindAllForGroup(ctx, groupID)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestAgreementRepository_RoundTripsPricing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormAgreementRepository(db)
	ctx := context.Background()
	groupID, provider, recipient := uuid.New(), uuid.New(), uuid.New()

	from := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	a := intercompany.NewAgreement(groupID, intercompany.AgreementTerms{
		ProviderID:    provider,
		RecipientID:   recipient,
		Type:          intercompany.AgreementTypeManagement,
		Pricing:       intercompany.CostPlus{Markup: dec("0.10")},
		VAT:           intercompany.VatTerms{Applies: true, Rate: dec("0.07")},
		WHT:           intercompany.WhtTerms{Applies: true, Rate: dec("0.03"), TaxType: intercompany.TaxTypeServices},
		EffectiveFrom: from,
	})
	require.NoError(t, repo.Save(ctx, a))

	found, err := repo.FindByIDForGroup(ctx, groupID, a.ID)
	require.NoError(t, err)
	pricing, ok := found.Pricing.(intercompany.CostPlus)
	require.True(t, ok)
	assert.True(t, dec("0.10").Equal(pricing.Markup))
	assert.True(t, found.WHT.Applies)
	assert.Equal(t, intercompany.TaxTypeServices, found.WHT.TaxType)
	assert.True(t, from.Equal(found.EffectiveFrom))

	typ := intercompany.AgreementTypeManagement
	byType, err := repo.FindAllForGroup(ctx, groupID, intercompany.AgreementFilter{RecipientID: &recipient, Type: &typ})
	require.NoError(t, err)
	assert.Len(t, byType, 1)

	byIDs, err := repo.FindByIDs(ctx, groupID, []uuid.UUID{a.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, byIDs, 1)
}

func TestCostPoolRepository_SaveReplacesChildren(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormCostPoolRepository(db)
	ctx := context.Background()
	groupID, holdco := uuid.New(), uuid.New()
	trading, retail := uuid.New(), uuid.New()

	missing, err := repo.FindByHoldcoPeriod(ctx, groupID, holdco, march)
	require.NoError(t, err)
	assert.Nil(t, missing)

	pool, err := intercompany.NewCostPool(groupID, holdco, march)
	require.NoError(t, err)
	require.NoError(t, pool.ReplaceLines([]intercompany.LineInput{
		{Category: "finance", Amount: dec("1000")},
		{Category: "it", Amount: dec("2000")},
	}))
	require.NoError(t, pool.UpsertRule([]intercompany.WeightInput{
		{RecipientID: trading, Weight: dec("0.6")},
		{RecipientID: retail, Weight: dec("0.4")},
	}, dec("0.001")))
	require.NoError(t, pool.Allocate())
	require.NoError(t, repo.Save(ctx, pool))

	found, err := repo.FindByHoldcoPeriod(ctx, groupID, holdco, march)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, dec("3000").Equal(found.TotalCost))
	require.Len(t, found.Lines, 2)
	assert.Equal(t, "finance", found.Lines[0].Category)
	require.NotNil(t, found.Rule)
	require.Len(t, found.Rule.Weights, 2)
	assert.Equal(t, trading, found.Rule.Weights[0].RecipientID)
	require.Len(t, found.Allocations, 2)
	assert.True(t, dec("1800").Equal(found.Allocations[0].AllocatedCost))
	assert.True(t, dec("1200").Equal(found.Allocations[1].AllocatedCost))

	require.NoError(t, found.ReplaceLines([]intercompany.LineInput{{Category: "legal", Amount: dec("500")}}))
	require.NoError(t, repo.Save(ctx, found))

	again, err := repo.FindByIDForGroup(ctx, groupID, pool.ID)
	require.NoError(t, err)
	require.Len(t, again.Lines, 1)
	assert.Equal(t, "legal", again.Lines[0].Category)
	require.NotNil(t, again.Rule)
	assert.Len(t, again.Rule.Weights, 2)

	var lineRows int64
	require.NoError(t, db.Model(&models.CostPoolLineModel{}).Count(&lineRows).Error)
	assert.Equal(t, int64(1), lineRows)
}

func TestInvoiceRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	groupID, holdco, trading := uuid.New(), uuid.New(), uuid.New()

	inv := newTestInvoice(t, groupID, holdco, trading, "1980")
	require.NoError(t, repo.Save(ctx, inv))

	t.Run("round trips lines in order", func(t *testing.T) {
		found, err := repo.FindByIDForGroup(ctx, groupID, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, inv.Number, found.Number)
		require.Len(t, found.Lines, 2)
		assert.Equal(t, "Management fee", found.Lines[0].Description)
		assert.True(t, dec("138.6").Equal(found.Lines[0].VatAmount))
		assert.True(t, dec("2480").Equal(found.Subtotal))
		assert.Equal(t, march, found.Period)
	})

	t.Run("finds the open intercompany invoice", func(t *testing.T) {
		open, err := repo.FindOpenIntercompany(ctx, groupID, holdco, trading, march)
		require.NoError(t, err)
		require.NotNil(t, open)
		assert.Equal(t, inv.ID, open.ID)
	})

	t.Run("credit notes never count as open", func(t *testing.T) {
		require.NoError(t, inv.Issue(time.Now()))
		require.NoError(t, repo.Save(ctx, inv))
		cn, err := intercompany.NewCreditNote(inv, intercompany.CreditNoteRequest{
			IssueDate: time.Date(2025, time.April, 2, 0, 0, 0, 0, time.UTC),
			Reason:    "overcharge",
		}, time.Now())
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, cn))

		inv.ApplySettlement(inv.TotalAmount)
		require.NoError(t, repo.Save(ctx, inv))

		open, err := repo.FindOpenIntercompany(ctx, groupID, holdco, trading, march)
		require.NoError(t, err)
		assert.Nil(t, open)
	})

	t.Run("filters by company and excludes void", func(t *testing.T) {
		other := newTestInvoice(t, groupID, holdco, uuid.New(), "100")
		require.NoError(t, other.Void("duplicate", time.Now()))
		require.NoError(t, repo.Save(ctx, other))

		forTrading, err := repo.FindAllForGroup(ctx, groupID, intercompany.InvoiceFilter{CompanyID: &trading})
		require.NoError(t, err)
		assert.Len(t, forTrading, 2)

		nonVoid, err := repo.FindAllForGroup(ctx, groupID, intercompany.InvoiceFilter{Period: &march, SellerID: &holdco, ExcludeVoid: true})
		require.NoError(t, err)
		for _, i := range nonVoid {
			assert.NotEqual(t, intercompany.InvoiceStatusVoid, i.Status)
		}
		assert.Len(t, nonVoid, 2)
	})
}

func TestPaymentAndWhtRepositories(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	groupID, holdco, trading := uuid.New(), uuid.New(), uuid.New()

	inv := newTestInvoice(t, groupID, holdco, trading, "1980")
	require.NoError(t, inv.Issue(time.Now()))
	wht := dec("59.40")
	payment, err := intercompany.NewPayment(inv, time.Date(2025, time.April, 15, 0, 0, 0, 0, time.UTC), dec("1000"), &wht, "TRX-1")
	require.NoError(t, err)

	payments := NewGormPaymentRepository(db)
	require.NoError(t, payments.Save(ctx, payment))

	found, err := payments.FindByInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.True(t, dec("1059.4").Equal(found[0].Settled()))

	notes := NewGormWhtCreditNoteRepository(db)
	batch := intercompany.CreditNotesFor(inv, payment, intercompany.ExpectedWht(inv.Lines, func(l intercompany.InvoiceLine) intercompany.TaxType {
		return l.WhtTaxType
	}))
	require.Len(t, batch, 1)
	require.NoError(t, notes.SaveAll(ctx, batch))

	open, err := notes.FindAllForGroup(ctx, groupID, intercompany.WhtCreditNoteFilter{IssuerID: &trading, UnremittedOnly: true})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.True(t, dec("59.4").Equal(open[0].Amount))

	open[0].MarkRemitted(time.Date(2025, time.May, 7, 0, 0, 0, 0, time.UTC), "RD-77")
	require.NoError(t, notes.SaveAll(ctx, open))

	still, err := notes.FindAllForGroup(ctx, groupID, intercompany.WhtCreditNoteFilter{CompanyID: &holdco, UnremittedOnly: true})
	require.NoError(t, err)
	assert.Empty(t, still)

	all, err := notes.FindAllForGroup(ctx, groupID, intercompany.WhtCreditNoteFilter{Period: &march})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "RD-77", all[0].ReceiptRef)
}

func TestLedgerRepositories(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	groupID, company := uuid.New(), uuid.New()

	accounts := NewGormLedgerAccountRepository(db)
	for _, entry := range ledger.StandardChart {
		a, err := ledger.NewAccount(groupID, company, entry)
		require.NoError(t, err)
		require.NoError(t, accounts.Save(ctx, a))
	}

	rev, err := accounts.FindByCompanyCode(ctx, company, ledger.CodeIntercompanyRevenue)
	require.NoError(t, err)
	exp, err := accounts.FindByCompanyCode(ctx, company, ledger.CodeIntercompanyExpense)
	require.NoError(t, err)

	_, err = accounts.FindByCompanyCode(ctx, company, "9999")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	chart, err := accounts.FindByGroup(ctx, groupID)
	require.NoError(t, err)
	assert.Len(t, chart, len(ledger.StandardChart))

	src := ledgerSource(uuid.New())
	posting := ledger.NewPosting(src)
	line := ledger.Line{GroupID: groupID, CompanyID: company, Period: march, EntryDate: march.End()}
	line.Account = exp
	posting.Debit(line, dec("1980"))
	line.Account = rev
	posting.Credit(line, dec("1980"))
	require.NoError(t, posting.Validate())

	entries := NewGormLedgerEntryRepository(db)
	require.NoError(t, entries.CreateAll(ctx, posting.Entries))

	rows, err := entries.FindAllForGroup(ctx, groupID, ledger.EntryFilter{CompanyID: &company, Period: &march})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	tb := ledger.BuildTrialBalance(company, march, chart, rows)
	assert.True(t, tb.IsBalanced())

	require.NoError(t, entries.DeleteBySource(ctx, src))
	rows, err = entries.FindAllForGroup(ctx, groupID, ledger.EntryFilter{Source: &src})
	require.NoError(t, err)
	assert.Empty(t, rows)

	locks := NewGormPeriodLockRepository(db)
	none, err := locks.Find(ctx, company, march)
	require.NoError(t, err)
	assert.Nil(t, none)

	lock := ledger.NewPeriodLock(groupID, company, march)
	lock.Lock("controller", "month closed", time.Now())
	require.NoError(t, locks.Save(ctx, lock))

	got, err := locks.FindForUpdate(ctx, company, march)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Locked)
	assert.Equal(t, "controller", got.LockedBy)
}

func TestCreditRepositories(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	groupID, subsidiary, reseller := uuid.New(), uuid.New(), uuid.New()

	account, err := credit.NewAccount(groupID, subsidiary, reseller, dec("1000"))
	require.NoError(t, err)
	accounts := NewGormCreditAccountRepository(db)
	require.NoError(t, accounts.Save(ctx, account))

	_, err = accounts.FindByReseller(ctx, groupID, subsidiary, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)

	orders := NewGormCreditOrderRepository(db)
	first, err := credit.NewOrder(account, "SO-1", dec("600"), time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	second, err := credit.NewOrder(account, "SO-2", dec("300"), time.Date(2025, time.March, 2, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, orders.Save(ctx, second))
	require.NoError(t, orders.Save(ctx, first))

	open, err := orders.FindOpenByAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "SO-1", open[0].Reference)

	repayment, err := credit.NewRepayment(account, dec("700"), "bank_transfer", nil)
	require.NoError(t, err)
	ptrs := []*credit.Order{&open[0], &open[1]}
	touched := repayment.AllocateFIFO(ptrs)
	require.Len(t, touched, 2)

	repayments := NewGormRepaymentRepository(db)
	require.NoError(t, repayments.Save(ctx, repayment))
	for _, o := range touched {
		require.NoError(t, orders.Save(ctx, o))
	}

	stillOpen, err := orders.FindOpenByAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, stillOpen, 1)
	assert.True(t, dec("100").Equal(stillOpen[0].PaidAmount))

	saved, err := repayments.FindByAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.Len(t, saved[0].Allocations, 2)
	assert.True(t, dec("600").Equal(saved[0].Allocations[0].Amount))
	assert.True(t, dec("100").Equal(saved[0].Allocations[1].Amount))
}

func TestGormTransactionScope(t *testing.T) {
	db := setupTestDB(t)
	scope := NewGormTransactionScope(db)
	repos := NewRepositories(db)
	ctx := context.Background()
	groupID := uuid.New()

	t.Run("rolls back every repository on error", func(t *testing.T) {
		sub, err := group.NewSubsidiary(groupID, "Retail", group.RoleRetail)
		require.NoError(t, err)
		boom := errors.New("boom")

		err = scope.Execute(ctx, func(tx finance.Repositories) error {
			if err := tx.Subsidiaries().Save(ctx, sub); err != nil {
				return err
			}
			lock := ledger.NewPeriodLock(groupID, sub.ID, march)
			if err := tx.PeriodLocks().Save(ctx, lock); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = repos.Subsidiaries().FindByIDForGroup(ctx, groupID, sub.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		lock, err := repos.PeriodLocks().Find(ctx, sub.ID, march)
		require.NoError(t, err)
		assert.Nil(t, lock)
	})

	t.Run("commits on success", func(t *testing.T) {
		sub, err := group.NewSubsidiary(groupID, "Logistics", group.RoleLogistics)
		require.NoError(t, err)

		require.NoError(t, scope.Execute(ctx, func(tx finance.Repositories) error {
			return tx.Subsidiaries().Save(ctx, sub)
		}))

		found, err := repos.Subsidiaries().FindByIDForGroup(ctx, groupID, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, "Logistics", found.Name)
	})
}
