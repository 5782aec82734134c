package persistence

import (
	"context"

	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/domain/credit"
	"github.com/erp/icledger/internal/domain/group"
	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/domain/ledger"
	"github.com/erp/icledger/internal/domain/tax"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos finance.Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepositories{db: tx})
	})
}

// NewRepositories returns repositories bound to db, outside any transaction.
func NewRepositories(db *gorm.DB) finance.Repositories {
	return &gormRepositories{db: db}
}

// gormRepositories hands out repositories sharing one *gorm.DB, which is a
// transaction handle inside Execute.
type gormRepositories struct {
	db *gorm.DB
}

func (r *gormRepositories) Subsidiaries() group.SubsidiaryRepository {
	return NewGormSubsidiaryRepository(r.db)
}

func (r *gormRepositories) Agreements() intercompany.AgreementRepository {
	return NewGormAgreementRepository(r.db)
}

func (r *gormRepositories) CostPools() intercompany.CostPoolRepository {
	return NewGormCostPoolRepository(r.db)
}

func (r *gormRepositories) Invoices() intercompany.InvoiceRepository {
	return NewGormInvoiceRepository(r.db)
}

func (r *gormRepositories) Payments() intercompany.PaymentRepository {
	return NewGormPaymentRepository(r.db)
}

func (r *gormRepositories) WhtCreditNotes() intercompany.WhtCreditNoteRepository {
	return NewGormWhtCreditNoteRepository(r.db)
}

func (r *gormRepositories) CloseRuns() intercompany.CloseRunRepository {
	return NewGormCloseRunRepository(r.db)
}

func (r *gormRepositories) Accounts() ledger.AccountRepository {
	return NewGormLedgerAccountRepository(r.db)
}

func (r *gormRepositories) Entries() ledger.EntryRepository {
	return NewGormLedgerEntryRepository(r.db)
}

func (r *gormRepositories) PeriodLocks() ledger.PeriodLockRepository {
	return NewGormPeriodLockRepository(r.db)
}

func (r *gormRepositories) VatReturns() tax.VatReturnRepository {
	return NewGormVatReturnRepository(r.db)
}

func (r *gormRepositories) CreditAccounts() credit.AccountRepository {
	return NewGormCreditAccountRepository(r.db)
}

func (r *gormRepositories) CreditOrders() credit.OrderRepository {
	return NewGormCreditOrderRepository(r.db)
}

func (r *gormRepositories) Repayments() credit.RepaymentRepository {
	return NewGormRepaymentRepository(r.db)
}

// Ensure GormTransactionScope implements TransactionScope
var _ finance.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormRepositories implements Repositories
var _ finance.Repositories = (*gormRepositories)(nil)
