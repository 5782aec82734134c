package finance

import (
	"context"

	"github.com/erp/icledger/internal/domain/credit"
	"github.com/erp/icledger/internal/domain/group"
	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/domain/ledger"
	"github.com/erp/icledger/internal/domain/tax"
)

// TransactionScope runs a unit of work atomically. Every repository handed
// to fn shares one database transaction; an error from fn rolls it back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos Repositories) error) error
}

// Repositories gives access to every finance repository. Inside Execute all
// of them are bound to the current transaction.
//
// Multi-row mutations (pool + lines, invoice + lines, payment + credit notes
// + status, repayment + allocations + credit release) must go through one
// Execute call. Cross-step sequences such as month close commit per step.
type Repositories interface {
	Subsidiaries() group.SubsidiaryRepository
	Agreements() intercompany.AgreementRepository
	CostPools() intercompany.CostPoolRepository
	Invoices() intercompany.InvoiceRepository
	Payments() intercompany.PaymentRepository
	WhtCreditNotes() intercompany.WhtCreditNoteRepository
	CloseRuns() intercompany.CloseRunRepository
	Accounts() ledger.AccountRepository
	Entries() ledger.EntryRepository
	PeriodLocks() ledger.PeriodLockRepository
	VatReturns() tax.VatReturnRepository
	CreditAccounts() credit.AccountRepository
	CreditOrders() credit.OrderRepository
	Repayments() credit.RepaymentRepository
}
