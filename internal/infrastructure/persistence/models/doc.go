// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities should be free of GORM tags and infrastructure concerns
// 2. Persistence models contain all GORM annotations and table mappings
// 3. Mappers convert between domain entities and persistence models
// 4. Repositories use persistence models for database operations
//
// Structure:
// - base.go: Base persistence models (BaseModel, AggregateModel, GroupAggregateModel)
// - group.go: Subsidiaries
// - intercompany.go: Agreements, cost pools, invoices, payments, WHT credit notes, close runs
// - ledger.go: Chart of accounts, ledger entries, period locks
// - tax.go: VAT returns
// - credit.go: Reseller credit accounts, orders, repayments
//
// Periods are stored as "YYYY-MM" strings.
package models

// All returns every persistence model in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&SubsidiaryModel{},
		&AgreementModel{},
		&CostPoolModel{},
		&CostPoolLineModel{},
		&AllocationRuleModel{},
		&AllocationWeightModel{},
		&CostAllocationModel{},
		&InvoiceModel{},
		&InvoiceLineModel{},
		&PaymentModel{},
		&WhtCreditNoteModel{},
		&CloseRunModel{},
		&LedgerAccountModel{},
		&LedgerEntryModel{},
		&PeriodLockModel{},
		&VatReturnModel{},
		&CreditAccountModel{},
		&CreditOrderModel{},
		&RepaymentModel{},
		&RepaymentAllocationModel{},
	}
}
