package finance

import (
	"time"

	"github.com/erp/icledger/internal/infrastructure/telemetry"
)

// Deps are the collaborators shared by every finance service
type Deps struct {
	Repos    Repositories
	Scope    TransactionScope
	Settings Settings
	// Metrics may be nil.
	Metrics *telemetry.FinanceMetrics
	// Locker serializes month closes; nil disables serialization.
	Locker CloseLocker
	// Archive receives filed tax documents; nil skips archiving.
	Archive ReportArchive
	Clock   func() time.Time
}

// Engine bundles the finance services wired against one unit of work
type Engine struct {
	Tenancy    *TenancyGuard
	Accounts   *AccountResolver
	Poster     *LedgerPoster
	CostPools  *CostPoolAllocator
	Agreements *AgreementGovernor
	Invoices   *InvoiceGenerator
	Payments   *PaymentReconciler
	Credits    *CreditNoteIssuer
	Locks      *PeriodLockService
	Close      *MonthCloseOrchestrator
	Tax        *TaxEngine
	Credit     *CreditLedger
}

// NewEngine wires every service from deps
func NewEngine(deps Deps) *Engine {
	settings := deps.Settings.withDefaults()
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	repos, scope, metrics := deps.Repos, deps.Scope, deps.Metrics

	resolver := NewAccountResolver(repos, scope, settings.ReportingOnlyCodes)
	poster := NewLedgerPoster(repos, scope, resolver, metrics)
	pools := NewCostPoolAllocator(repos, scope, settings.WeightTolerance)
	generator := NewInvoiceGenerator(repos, scope, poster, metrics, settings, now)
	locks := NewPeriodLockService(repos, scope, now)

	return &Engine{
		Tenancy:    NewTenancyGuard(repos, scope),
		Accounts:   resolver,
		Poster:     poster,
		CostPools:  pools,
		Agreements: NewAgreementGovernor(repos, scope, now),
		Invoices:   generator,
		Payments:   NewPaymentReconciler(repos, scope, metrics, settings.WhtTolerance),
		Credits:    NewCreditNoteIssuer(scope, poster, metrics, now),
		Locks:      locks,
		Close:      NewMonthCloseOrchestrator(repos, scope, pools, generator, locks, deps.Locker, metrics, settings.CloseLockTTL, now),
		Tax:        NewTaxEngine(repos, scope, deps.Archive, now),
		Credit:     NewCreditLedger(repos, scope, metrics, now),
	}
}
