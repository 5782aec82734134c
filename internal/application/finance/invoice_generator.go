package finance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/domain/ledger"
	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/erp/icledger/internal/infrastructure/logger"
	"github.com/erp/icledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceGenerator turns a period's allocation and the active agreements
// into intercompany invoices, and drives the invoice lifecycle.
type InvoiceGenerator struct {
	repos    Repositories
	scope    TransactionScope
	poster   *LedgerPoster
	metrics  *telemetry.FinanceMetrics
	settings Settings
	now      func() time.Time
}

// NewInvoiceGenerator creates an InvoiceGenerator
func NewInvoiceGenerator(
	repos Repositories,
	scope TransactionScope,
	poster *LedgerPoster,
	metrics *telemetry.FinanceMetrics,
	settings Settings,
	now func() time.Time,
) *InvoiceGenerator {
	if now == nil {
		now = time.Now
	}
	return &InvoiceGenerator{
		repos:    repos,
		scope:    scope,
		poster:   poster,
		metrics:  metrics,
		settings: settings.withDefaults(),
		now:      now,
	}
}

// GenerateInput is the request to invoice one period's allocation. A zero
// IssueDate means the last day of the period; a nil DueDays uses the
// configured default and zero makes the invoice due on its issue date.
type GenerateInput struct {
	GroupID   uuid.UUID
	HoldcoID  uuid.UUID
	Period    valueobject.Period
	IssueDate time.Time
	DueDays   *int
}

// GeneratedInvoice pairs a recipient with its invoice
type GeneratedInvoice struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	InvoiceID   uuid.UUID `json:"invoice_id"`
	Number      string    `json:"number"`
	Created     bool      `json:"created"`
}

// recipientPlan is everything needed to write one recipient's invoice
type recipientPlan struct {
	recipientID uuid.UUID
	lines       []intercompany.InvoiceLine
}

// Generate creates or refreshes one INTERCOMPANY invoice per allocation
// recipient. Every recipient is validated before anything is written; each
// recipient's invoice then commits in its own transaction.
func (g *InvoiceGenerator) Generate(ctx context.Context, in GenerateInput) ([]GeneratedInvoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice_generator", "generate")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrGroupID, in.GroupID.String(),
		telemetry.SpanAttrHoldcoID, in.HoldcoID.String(),
		telemetry.SpanAttrPeriod, in.Period.String(),
	)

	if in.Period.IsZero() {
		return nil, shared.BadRequestf("period is required")
	}
	dueDays, err := g.dueDays(in.DueDays)
	if err != nil {
		return nil, err
	}
	issueDate := in.Period.End()
	if !in.IssueDate.IsZero() {
		issueDate = valueobject.DateOnly(in.IssueDate)
	}
	dueDate := issueDate.AddDate(0, 0, dueDays)

	plans, err := g.plan(ctx, in, issueDate)
	if err != nil {
		telemetry.RecordError(span, err)
		logger.L(ctx).Warn("Invoice generation aborted", zap.String("period", in.Period.String()), zap.Error(err))
		return nil, err
	}

	results := make([]GeneratedInvoice, 0, len(plans))
	for _, plan := range plans {
		result, err := g.writeInvoice(ctx, in, plan, issueDate, dueDate)
		if err != nil {
			telemetry.RecordError(span, err)
			return results, fmt.Errorf("recipient %s: %w", plan.recipientID, err)
		}
		results = append(results, result)
	}

	g.metrics.InvoicesGenerated(ctx, in.GroupID, len(results))
	logger.L(ctx).Info("Intercompany invoices generated",
		zap.String("holdco_id", in.HoldcoID.String()),
		zap.String("period", in.Period.String()),
		zap.Int("invoices", len(results)),
	)
	return results, nil
}

// dueDays resolves the requested payment terms against the default
func (g *InvoiceGenerator) dueDays(requested *int) (int, error) {
	if requested == nil {
		return g.settings.DefaultDueDays, nil
	}
	if *requested < 0 {
		return 0, shared.BadRequestf("due days cannot be negative")
	}
	return *requested, nil
}

// plan validates the pool and the agreements of every recipient and
// computes the invoice lines, without writing anything.
func (g *InvoiceGenerator) plan(ctx context.Context, in GenerateInput, issueDate time.Time) ([]recipientPlan, error) {
	if _, err := companyInGroup(ctx, g.repos.Subsidiaries(), in.GroupID, in.HoldcoID); err != nil {
		return nil, err
	}
	if err := assertUnlockedTx(ctx, g.repos, in.HoldcoID, in.Period); err != nil {
		return nil, err
	}
	pool, err := g.repos.CostPools().FindByHoldcoPeriod(ctx, in.GroupID, in.HoldcoID, in.Period)
	if err != nil {
		return nil, fmt.Errorf("failed to load cost pool: %w", err)
	}
	if pool == nil || len(pool.Allocations) == 0 {
		return nil, shared.NewDomainError(shared.CodeNotAllocated,
			fmt.Sprintf("no cost allocation exists for holdco %s in %s", in.HoldcoID, in.Period))
	}

	holdcoID := in.HoldcoID
	agreements, err := g.repos.Agreements().FindAllForGroup(ctx, in.GroupID, intercompany.AgreementFilter{ProviderID: &holdcoID})
	if err != nil {
		return nil, fmt.Errorf("failed to load agreements: %w", err)
	}

	plans := make([]recipientPlan, 0, len(pool.Allocations))
	for _, alloc := range pool.Allocations {
		mgmt, err := singleActive(agreements, alloc.RecipientID, intercompany.AgreementTypeManagement, intercompany.PricingCostPlus, issueDate)
		if err != nil {
			return nil, err
		}
		ip, err := singleActive(agreements, alloc.RecipientID, intercompany.AgreementTypeIPLicense, intercompany.PricingFixedMonthly, issueDate)
		if err != nil {
			return nil, err
		}

		markup := mgmt.Pricing.(intercompany.CostPlus).Markup
		fee := ip.Pricing.(intercompany.FixedMonthly).Fee
		mgmtNet := valueobject.Round2(alloc.AllocatedCost.Mul(valueobject.One.Add(markup)))
		ipNet := valueobject.Round2(fee)

		plans = append(plans, recipientPlan{
			recipientID: alloc.RecipientID,
			lines: []intercompany.InvoiceLine{
				intercompany.NewInvoiceLine(&mgmt.ID,
					fmt.Sprintf("Management fee %s (cost plus %s)", in.Period, valueobject.Percent(markup)),
					mgmtNet, mgmt.VAT, mgmt.WHT),
				intercompany.NewInvoiceLine(&ip.ID,
					fmt.Sprintf("IP licence %s", in.Period),
					ipNet, ip.VAT, ip.WHT),
			},
		})
	}
	return plans, nil
}

// singleActive picks the one agreement of a type and pricing model active
// for the recipient on day.
func singleActive(agreements []intercompany.Agreement, recipientID uuid.UUID, t intercompany.AgreementType, model intercompany.PricingModel, day time.Time) (*intercompany.Agreement, error) {
	var match *intercompany.Agreement
	count := 0
	for i := range agreements {
		a := &agreements[i]
		if a.RecipientID != recipientID || a.Type != t || a.Pricing == nil || a.Pricing.Model() != model {
			continue
		}
		if !a.IsActiveOn(day) {
			continue
		}
		match = a
		count++
	}
	if count != 1 {
		return nil, shared.NewDomainError(shared.CodeNotConfigured,
			fmt.Sprintf("recipient %s: expected exactly one active %s agreement priced %s on %s, found %d",
				recipientID, t, model, day.Format(time.DateOnly), count))
	}
	return match, nil
}

func (g *InvoiceGenerator) writeInvoice(ctx context.Context, in GenerateInput, plan recipientPlan, issueDate, dueDate time.Time) (GeneratedInvoice, error) {
	var result GeneratedInvoice
	err := g.scope.Execute(ctx, func(repos Repositories) error {
		if err := assertUnlockedTx(ctx, repos, in.HoldcoID, in.Period); err != nil {
			return err
		}
		inv, err := repos.Invoices().FindOpenIntercompany(ctx, in.GroupID, in.HoldcoID, plan.recipientID, in.Period)
		if err != nil {
			return fmt.Errorf("failed to load open invoice: %w", err)
		}
		created := inv == nil
		if created {
			inv, err = intercompany.NewInvoice(in.GroupID, intercompany.InvoiceHeader{
				Type:      intercompany.InvoiceTypeIntercompany,
				SellerID:  in.HoldcoID,
				BuyerID:   plan.recipientID,
				Period:    in.Period,
				IssueDate: issueDate,
				DueDate:   dueDate,
				Currency:  g.settings.Currency,
			}, plan.lines)
			if err != nil {
				return err
			}
		} else {
			if err := inv.ReplaceLines(plan.lines); err != nil {
				return err
			}
			inv.Reschedule(issueDate, dueDate)
		}
		if err := repos.Invoices().Save(ctx, inv); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}
		// An issued invoice already reached the ledger; keep it in step.
		if inv.Status != intercompany.InvoiceStatusDraft {
			if _, err := g.poster.post(ctx, repos, inv); err != nil {
				return err
			}
		}
		result = GeneratedInvoice{RecipientID: plan.recipientID, InvoiceID: inv.ID, Number: inv.Number, Created: created}
		return nil
	})
	return result, err
}

// Issue moves a DRAFT invoice to ISSUED and posts it, refusing when the
// seller's period is locked.
func (g *InvoiceGenerator) Issue(ctx context.Context, groupID, invoiceID uuid.UUID) (*intercompany.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice_generator", "issue")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrGroupID, groupID.String(), telemetry.SpanAttrInvoiceID, invoiceID.String())

	var inv *intercompany.Invoice
	err := g.scope.Execute(ctx, func(repos Repositories) error {
		var err error
		inv, err = repos.Invoices().FindByIDForGroup(ctx, groupID, invoiceID)
		if err != nil {
			return fmt.Errorf("failed to load invoice: %w", err)
		}
		if err := assertUnlockedTx(ctx, repos, inv.SellerID, inv.Period); err != nil {
			return err
		}
		if err := inv.Issue(g.now()); err != nil {
			return err
		}
		if err := repos.Invoices().Save(ctx, inv); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}
		_, err = g.poster.post(ctx, repos, inv)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		logger.L(ctx).Warn("Invoice issue refused", zap.String("invoice_id", invoiceID.String()), zap.Error(err))
		return nil, err
	}

	g.metrics.InvoiceIssued(ctx, groupID, string(inv.Type))
	logger.L(ctx).Info("Invoice issued",
		zap.String("invoice", inv.Number),
		zap.String("total", inv.TotalAmount.StringFixed(2)),
	)
	return inv, nil
}

// Void cancels a DRAFT or ISSUED invoice that has no payments and removes
// its ledger rows.
func (g *InvoiceGenerator) Void(ctx context.Context, groupID, invoiceID uuid.UUID, reason string) (*intercompany.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice_generator", "void")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrGroupID, groupID.String(), telemetry.SpanAttrInvoiceID, invoiceID.String())

	var inv *intercompany.Invoice
	err := g.scope.Execute(ctx, func(repos Repositories) error {
		var err error
		inv, err = repos.Invoices().FindByIDForGroup(ctx, groupID, invoiceID)
		if err != nil {
			return fmt.Errorf("failed to load invoice: %w", err)
		}
		if err := assertUnlockedTx(ctx, repos, inv.SellerID, inv.Period); err != nil {
			return err
		}
		payments, err := repos.Payments().FindByInvoice(ctx, inv.ID)
		if err != nil {
			return fmt.Errorf("failed to load payments: %w", err)
		}
		if len(payments) > 0 {
			return shared.BadRequestf("invoice %s has %d payment(s) and cannot be voided", inv.Number, len(payments))
		}
		if err := inv.Void(reason, g.now()); err != nil {
			return err
		}
		if err := repos.Invoices().Save(ctx, inv); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}
		if err := repos.Entries().DeleteBySource(ctx, ledger.Source{Type: ledger.SourceInvoice, Ref: inv.ID}); err != nil {
			return fmt.Errorf("failed to remove ledger entries: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	logger.L(ctx).Info("Invoice voided", zap.String("invoice", inv.Number), zap.String("reason", inv.VoidReason))
	return inv, nil
}

// ExternalLineInput is one line of an external sale
type ExternalLineInput struct {
	Description string
	Net         decimal.Decimal
	VatRate     decimal.Decimal
}

// ExternalInvoiceInput is the request to open an invoice to a customer
// outside the group. Period defaults to the issue date's month and the
// issue date to the period's last day; DueDays follows GenerateInput.
type ExternalInvoiceInput struct {
	GroupID    uuid.UUID
	SellerID   uuid.UUID
	CustomerID uuid.UUID
	Period     valueobject.Period
	IssueDate  time.Time
	DueDays    *int
	Lines      []ExternalLineInput
}

// CreateExternalInvoice opens a DRAFT EXTERNAL invoice for a subsidiary
func (g *InvoiceGenerator) CreateExternalInvoice(ctx context.Context, in ExternalInvoiceInput) (*intercompany.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice_generator", "create_external")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrGroupID, in.GroupID.String(), telemetry.SpanAttrCompanyID, in.SellerID.String())

	issueDate, period := in.IssueDate, in.Period
	switch {
	case issueDate.IsZero() && period.IsZero():
		return nil, shared.BadRequestf("issue date or period is required")
	case issueDate.IsZero():
		issueDate = period.End()
	case period.IsZero():
		period = valueobject.PeriodOf(issueDate)
	}
	dueDays, err := g.dueDays(in.DueDays)
	if err != nil {
		return nil, err
	}
	lines := make([]intercompany.InvoiceLine, 0, len(in.Lines))
	for i, l := range in.Lines {
		if l.Net.IsNegative() {
			return nil, shared.BadRequestf("line %d: net amount cannot be negative", i+1)
		}
		lines = append(lines, intercompany.NewInvoiceLine(nil, strings.TrimSpace(l.Description), l.Net,
			intercompany.VatTerms{Applies: l.VatRate.IsPositive(), Rate: l.VatRate},
			intercompany.WhtTerms{}))
	}

	var inv *intercompany.Invoice
	err = g.scope.Execute(ctx, func(repos Repositories) error {
		if _, err := companyInGroup(ctx, repos.Subsidiaries(), in.GroupID, in.SellerID); err != nil {
			return err
		}
		var err error
		inv, err = intercompany.NewInvoice(in.GroupID, intercompany.InvoiceHeader{
			Type:      intercompany.InvoiceTypeExternal,
			SellerID:  in.SellerID,
			BuyerID:   in.CustomerID,
			Period:    period,
			IssueDate: issueDate,
			DueDate:   valueobject.DateOnly(issueDate).AddDate(0, 0, dueDays),
			Currency:  g.settings.Currency,
		}, lines)
		if err != nil {
			return err
		}
		if err := repos.Invoices().Save(ctx, inv); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	logger.L(ctx).Info("External invoice created", zap.String("invoice", inv.Number))
	return inv, nil
}

// GetInvoice loads an invoice with its lines
func (g *InvoiceGenerator) GetInvoice(ctx context.Context, groupID, invoiceID uuid.UUID) (*intercompany.Invoice, error) {
	inv, err := g.repos.Invoices().FindByIDForGroup(ctx, groupID, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	return inv, nil
}

// ListInvoices returns the group's invoices matching filter
func (g *InvoiceGenerator) ListInvoices(ctx context.Context, groupID uuid.UUID, filter intercompany.InvoiceFilter) ([]intercompany.Invoice, error) {
	invoices, err := g.repos.Invoices().FindAllForGroup(ctx, groupID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}
