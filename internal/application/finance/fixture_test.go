package finance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/domain/group"
	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/erp/icledger/internal/infrastructure/persistence"
	"github.com/erp/icledger/internal/infrastructure/persistence/models"
	"github.com/erp/icledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	march     = valueobject.MustParsePeriod("2025-03")
	fixedNow  = time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC)
	marchOne  = time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	marchLast = time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// fixture is a group with one holdco and two operating subsidiaries on a
// fresh in-memory database.
type fixture struct {
	engine  *finance.Engine
	ctx     context.Context
	groupID uuid.UUID
	holdco  *group.Subsidiary
	retail  *group.Subsidiary
	online  *group.Subsidiary
	archive *memoryArchive
}

func newEngine(t *testing.T, locker finance.CloseLocker) (*finance.Engine, *memoryArchive) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	metrics, err := telemetry.NewFinanceMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	archive := &memoryArchive{files: map[string][][]string{}}
	engine := finance.NewEngine(finance.Deps{
		Repos:   persistence.NewRepositories(db),
		Scope:   persistence.NewGormTransactionScope(db),
		Metrics: metrics,
		Locker:  locker,
		Archive: archive,
		Clock:   func() time.Time { return fixedNow },
	})
	return engine, archive
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithLocker(t, nil)
}

func newFixtureWithLocker(t *testing.T, locker finance.CloseLocker) *fixture {
	t.Helper()
	engine, archive := newEngine(t, locker)
	f := &fixture{engine: engine, ctx: context.Background(), groupID: uuid.New(), archive: archive}

	var err error
	f.holdco, err = engine.Tenancy.RegisterSubsidiary(f.ctx, f.groupID, "Holdco", group.RoleHoldco)
	require.NoError(t, err)
	f.retail, err = engine.Tenancy.RegisterSubsidiary(f.ctx, f.groupID, "Retail", group.RoleRetail)
	require.NoError(t, err)
	f.online, err = engine.Tenancy.RegisterSubsidiary(f.ctx, f.groupID, "Online", group.RoleDigitalCommerce)
	require.NoError(t, err)
	return f
}

// withAgreements sets up a 10% management fee with VAT 7% and WHT 3% and a
// 500 monthly IP licence for both recipients.
func (f *fixture) withAgreements(t *testing.T) {
	t.Helper()
	for _, recipient := range []*group.Subsidiary{f.retail, f.online} {
		_, err := f.engine.Agreements.CreateAgreement(f.ctx, f.groupID, intercompany.AgreementTerms{
			ProviderID:    f.holdco.ID,
			RecipientID:   recipient.ID,
			Type:          intercompany.AgreementTypeManagement,
			Pricing:       intercompany.CostPlus{Markup: dec("0.10")},
			VAT:           intercompany.VatTerms{Applies: true, Rate: dec("0.07")},
			WHT:           intercompany.WhtTerms{Applies: true, Rate: dec("0.03"), TaxType: intercompany.TaxTypeServices},
			EffectiveFrom: marchOne,
		})
		require.NoError(t, err)
		_, err = f.engine.Agreements.CreateAgreement(f.ctx, f.groupID, intercompany.AgreementTerms{
			ProviderID:    f.holdco.ID,
			RecipientID:   recipient.ID,
			Type:          intercompany.AgreementTypeIPLicense,
			Pricing:       intercompany.FixedMonthly{Fee: dec("500")},
			EffectiveFrom: marchOne,
		})
		require.NoError(t, err)
	}
}

func (f *fixture) poolLines() []intercompany.LineInput {
	return []intercompany.LineInput{
		{Category: "salaries", Amount: dec("2000")},
		{Category: "office", Amount: dec("1000")},
	}
}

func (f *fixture) weights() []intercompany.WeightInput {
	return []intercompany.WeightInput{
		{RecipientID: f.retail.ID, Weight: dec("0.6")},
		{RecipientID: f.online.ID, Weight: dec("0.4")},
	}
}

// allocate creates and allocates the March pool of 3000
func (f *fixture) allocate(t *testing.T) *intercompany.CostPool {
	t.Helper()
	pool, err := f.engine.CostPools.CreateCostPool(f.ctx, finance.CreateCostPoolInput{
		GroupID:  f.groupID,
		HoldcoID: f.holdco.ID,
		Period:   march,
		Lines:    f.poolLines(),
		Weights:  f.weights(),
	})
	require.NoError(t, err)
	pool, err = f.engine.CostPools.AllocateCostPool(f.ctx, f.groupID, pool.ID)
	require.NoError(t, err)
	return pool
}

// generate invoices the allocation and returns them keyed by buyer
func (f *fixture) generate(t *testing.T) map[uuid.UUID]*intercompany.Invoice {
	t.Helper()
	results, err := f.engine.Invoices.Generate(f.ctx, finance.GenerateInput{
		GroupID:   f.groupID,
		HoldcoID:  f.holdco.ID,
		Period:    march,
		IssueDate: marchLast,
	})
	require.NoError(t, err)
	byBuyer := make(map[uuid.UUID]*intercompany.Invoice, len(results))
	for _, r := range results {
		inv, err := f.engine.Invoices.GetInvoice(f.ctx, f.groupID, r.InvoiceID)
		require.NoError(t, err)
		byBuyer[r.RecipientID] = inv
	}
	return byBuyer
}

// memoryArchive keeps archived documents in memory
type memoryArchive struct {
	mu    sync.Mutex
	files map[string][][]string
}

func (a *memoryArchive) Archive(_ context.Context, key string, rows [][]string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.files[key] = rows
	return "mem://" + key, nil
}

// busyLocker always reports the lock as held elsewhere
type busyLocker struct{}

func (busyLocker) Lock(context.Context, string, time.Duration) (string, bool, error) {
	return "", false, nil
}

func (busyLocker) Unlock(context.Context, string, string) error { return nil }
