package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/domain/ledger"
	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/erp/icledger/internal/infrastructure/logger"
	"github.com/erp/icledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerPoster writes balanced double-entry rows for invoices
type LedgerPoster struct {
	repos    Repositories
	scope    TransactionScope
	resolver *AccountResolver
	metrics  *telemetry.FinanceMetrics
}

// NewLedgerPoster creates a LedgerPoster
func NewLedgerPoster(repos Repositories, scope TransactionScope, resolver *AccountResolver, metrics *telemetry.FinanceMetrics) *LedgerPoster {
	return &LedgerPoster{repos: repos, scope: scope, resolver: resolver, metrics: metrics}
}

// PostInvoice replaces the ledger rows of one invoice
func (p *LedgerPoster) PostInvoice(ctx context.Context, groupID, invoiceID uuid.UUID) ([]ledger.Entry, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger_poster", "post_invoice")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrGroupID, groupID.String(), telemetry.SpanAttrInvoiceID, invoiceID.String())

	var posting *ledger.Posting
	err := p.scope.Execute(ctx, func(repos Repositories) error {
		inv, err := repos.Invoices().FindByIDForGroup(ctx, groupID, invoiceID)
		if err != nil {
			return fmt.Errorf("failed to load invoice: %w", err)
		}
		posting, err = p.post(ctx, repos, inv)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return posting.Entries, nil
}

// PostAllForPeriod re-posts every non-VOID invoice of the group in the
// period, one transaction per invoice. Invoices whose seller has locked the
// period are skipped. It returns how many were posted.
func (p *LedgerPoster) PostAllForPeriod(ctx context.Context, groupID uuid.UUID, period valueobject.Period) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger_poster", "post_all_for_period")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrGroupID, groupID.String(), telemetry.SpanAttrPeriod, period.String())

	invoices, err := p.repos.Invoices().FindAllForGroup(ctx, groupID, intercompany.InvoiceFilter{
		Period:      &period,
		ExcludeVoid: true,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("failed to list invoices: %w", err)
	}

	posted, skipped := 0, 0
	for i := range invoices {
		inv := &invoices[i]
		err := p.scope.Execute(ctx, func(repos Repositories) error {
			_, err := p.post(ctx, repos, inv)
			return err
		})
		if errors.Is(err, shared.ErrPeriodLocked) {
			skipped++
			continue
		}
		if err != nil {
			telemetry.RecordError(span, err)
			return posted, fmt.Errorf("failed to post invoice %s: %w", inv.Number, err)
		}
		posted++
	}

	logger.L(ctx).Info("Period re-posted",
		zap.String("period", period.String()),
		zap.Int("invoices", posted),
		zap.Int("skipped_locked", skipped),
	)
	return posted, nil
}

// LedgerFor lists a company's activity for a period, per account
func (p *LedgerPoster) LedgerFor(ctx context.Context, groupID, companyID uuid.UUID, period valueobject.Period) (*ledger.TrialBalance, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger_poster", "ledger_for")
	defer span.End()

	if _, err := companyInGroup(ctx, p.repos.Subsidiaries(), groupID, companyID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	accounts, err := p.repos.Accounts().FindByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	entries, err := p.repos.Entries().FindAllForGroup(ctx, groupID, ledger.EntryFilter{
		CompanyID: &companyID,
		Period:    &period,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	return ledger.BuildTrialBalance(companyID, period, accounts, entries), nil
}

// post deletes the invoice's previous rows and writes the new balanced set.
// Intercompany invoices hit the buyer's IC_EXP and the seller's IC_REV;
// external invoices hit the seller's AR_EXTERNAL and REV_SALES. A negative
// subtotal (credit note) swaps the sides. The seller's period must be open.
func (p *LedgerPoster) post(ctx context.Context, repos Repositories, inv *intercompany.Invoice) (*ledger.Posting, error) {
	if err := inv.EnsurePostable(); err != nil {
		return nil, err
	}
	if err := assertUnlockedTx(ctx, repos, inv.SellerID, inv.Period); err != nil {
		return nil, err
	}
	src := ledger.Source{Type: ledger.SourceInvoice, Ref: inv.ID}
	if err := repos.Entries().DeleteBySource(ctx, src); err != nil {
		return nil, fmt.Errorf("failed to clear previous posting: %w", err)
	}

	posting := ledger.NewPosting(src)
	net := valueobject.Round2(inv.Subtotal)
	if net.IsZero() {
		return posting, nil
	}

	var debitCompany, creditCompany uuid.UUID
	var debitCode, creditCode string
	switch inv.Type {
	case intercompany.InvoiceTypeIntercompany:
		debitCompany, debitCode = inv.BuyerID, ledger.CodeIntercompanyExpense
		creditCompany, creditCode = inv.SellerID, ledger.CodeIntercompanyRevenue
	default:
		debitCompany, debitCode = inv.SellerID, ledger.CodeExternalReceivable
		creditCompany, creditCode = inv.SellerID, ledger.CodeSalesRevenue
	}
	if net.IsNegative() {
		debitCompany, creditCompany = creditCompany, debitCompany
		debitCode, creditCode = creditCode, debitCode
	}

	debitAcct, err := p.resolver.resolve(ctx, repos.Accounts(), debitCompany, debitCode)
	if err != nil {
		return nil, err
	}
	creditAcct, err := p.resolver.resolve(ctx, repos.Accounts(), creditCompany, creditCode)
	if err != nil {
		return nil, err
	}

	line := ledger.Line{
		GroupID:   inv.GroupID,
		Period:    inv.Period,
		EntryDate: inv.IssueDate,
		Memo:      inv.Number,
	}
	amount := net.Abs()

	debitLine := line
	debitLine.CompanyID = debitCompany
	debitLine.Account = debitAcct
	posting.Debit(debitLine, amount)

	creditLine := line
	creditLine.CompanyID = creditCompany
	creditLine.Account = creditAcct
	posting.Credit(creditLine, amount)

	if err := posting.Validate(); err != nil {
		return nil, err
	}
	if err := repos.Entries().CreateAll(ctx, posting.Entries); err != nil {
		return nil, fmt.Errorf("failed to write ledger entries: %w", err)
	}

	p.metrics.EntriesPosted(ctx, inv.GroupID, len(posting.Entries))
	logger.L(ctx).Info("Invoice posted",
		zap.String("invoice", inv.Number),
		zap.String("amount", amount.StringFixed(2)),
		zap.Bool("reversal", net.IsNegative()),
	)
	return posting, nil
}
