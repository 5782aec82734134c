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
	"github.com/erp/icledger/internal/domain/tax"
	"github.com/erp/icledger/internal/infrastructure/logger"
	"github.com/erp/icledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReportArchive stores rendered tax documents. Archive returns the
// location the rows were written to.
type ReportArchive interface {
	Archive(ctx context.Context, key string, rows [][]string) (string, error)
}

// TaxEngine aggregates invoices, WHT credit notes and ledger entries into
// VAT returns, WHT schedules and group reports.
type TaxEngine struct {
	repos   Repositories
	scope   TransactionScope
	archive ReportArchive
	now     func() time.Time
}

// NewTaxEngine creates a TaxEngine. A nil archive skips archiving.
func NewTaxEngine(repos Repositories, scope TransactionScope, archive ReportArchive, now func() time.Time) *TaxEngine {
	if now == nil {
		now = time.Now
	}
	return &TaxEngine{repos: repos, scope: scope, archive: archive, now: now}
}

// ComputeVatReturn recomputes and stores the company's DRAFT return
func (t *TaxEngine) ComputeVatReturn(ctx context.Context, groupID, companyID uuid.UUID, period valueobject.Period) (*tax.VatReturn, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tax_engine", "compute_vat_return")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCompanyID, companyID.String(), telemetry.SpanAttrPeriod, period.String())

	var ret *tax.VatReturn
	err := t.scope.Execute(ctx, func(repos Repositories) error {
		var err error
		ret, err = t.recompute(ctx, repos, groupID, companyID, period)
		if err != nil {
			return err
		}
		return repos.VatReturns().Save(ctx, ret)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	logger.L(ctx).Info("VAT return computed",
		zap.String("company_id", companyID.String()),
		zap.String("period", period.String()),
		zap.String("net_vat", ret.NetVat.StringFixed(2)),
	)
	return ret, nil
}

// FileVatReturn recomputes, files and archives the return
func (t *TaxEngine) FileVatReturn(ctx context.Context, groupID, companyID uuid.UUID, period valueobject.Period, paymentRef string) (*tax.VatReturn, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tax_engine", "file_vat_return")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCompanyID, companyID.String(), telemetry.SpanAttrPeriod, period.String())

	var ret *tax.VatReturn
	err := t.scope.Execute(ctx, func(repos Repositories) error {
		var err error
		ret, err = t.recompute(ctx, repos, groupID, companyID, period)
		if err != nil {
			return err
		}
		if err := ret.File(paymentRef, t.now()); err != nil {
			return err
		}
		if t.archive != nil {
			key := fmt.Sprintf("vat-returns/%s/%s/%s.csv", groupID, period, companyID)
			location, err := t.archive.Archive(ctx, key, ret.CSVRows())
			if err != nil {
				return fmt.Errorf("failed to archive VAT return: %w", err)
			}
			ret.ArchiveKey = location
		}
		return repos.VatReturns().Save(ctx, ret)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	logger.L(ctx).Info("VAT return filed",
		zap.String("company_id", companyID.String()),
		zap.String("period", period.String()),
		zap.String("payment_ref", ret.PaymentRef),
		zap.String("archive", ret.ArchiveKey),
	)
	return ret, nil
}

// recompute loads or creates the return and refreshes its amounts.
// Filed returns are rejected by the domain.
func (t *TaxEngine) recompute(ctx context.Context, repos Repositories, groupID, companyID uuid.UUID, period valueobject.Period) (*tax.VatReturn, error) {
	if _, err := companyInGroup(ctx, repos.Subsidiaries(), groupID, companyID); err != nil {
		return nil, err
	}
	ret, err := repos.VatReturns().Find(ctx, companyID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to load VAT return: %w", err)
	}
	if ret == nil {
		ret = tax.NewVatReturn(groupID, companyID, period)
	}
	invoices, err := repos.Invoices().FindAllForGroup(ctx, groupID, intercompany.InvoiceFilter{
		Period:      &period,
		CompanyID:   &companyID,
		ExcludeVoid: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}
	output, input := tax.SumVat(companyID, invoices)
	if err := ret.Recompute(output, input); err != nil {
		return nil, err
	}
	return ret, nil
}

// WhtSchedule lists what the issuer still owes the authority, by tax type
func (t *TaxEngine) WhtSchedule(ctx context.Context, groupID, issuerID uuid.UUID, period valueobject.Period) (*tax.WhtSchedule, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tax_engine", "wht_schedule")
	defer span.End()

	if _, err := companyInGroup(ctx, t.repos.Subsidiaries(), groupID, issuerID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	notes, err := t.repos.WhtCreditNotes().FindAllForGroup(ctx, groupID, intercompany.WhtCreditNoteFilter{
		IssuerID:       &issuerID,
		Period:         &period,
		UnremittedOnly: true,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load WHT credit notes: %w", err)
	}
	return tax.BuildWhtSchedule(issuerID, period, notes), nil
}

// MarkRemittedInput stamps an issuer's unremitted notes for a period. A
// nil TaxType matches every type.
type MarkRemittedInput struct {
	GroupID    uuid.UUID
	IssuerID   uuid.UUID
	Period     valueobject.Period
	TaxType    *intercompany.TaxType
	Date       time.Time
	ReceiptRef string
}

// MarkRemitted stamps all matching unremitted notes and archives the
// remittance. It fails with NOTHING_TO_REMIT when none match.
func (t *TaxEngine) MarkRemitted(ctx context.Context, in MarkRemittedInput) ([]intercompany.WhtCreditNote, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tax_engine", "mark_remitted")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCompanyID, in.IssuerID.String(), telemetry.SpanAttrPeriod, in.Period.String())

	if in.Date.IsZero() {
		return nil, shared.BadRequestf("remittance date is required")
	}
	filter := intercompany.WhtCreditNoteFilter{
		IssuerID:       &in.IssuerID,
		Period:         &in.Period,
		UnremittedOnly: true,
	}
	if in.TaxType != nil {
		tt := intercompany.NormalizeTaxType(*in.TaxType)
		filter.TaxType = &tt
	}

	var notes []intercompany.WhtCreditNote
	err := t.scope.Execute(ctx, func(repos Repositories) error {
		if _, err := companyInGroup(ctx, repos.Subsidiaries(), in.GroupID, in.IssuerID); err != nil {
			return err
		}
		var err error
		notes, err = repos.WhtCreditNotes().FindAllForGroup(ctx, in.GroupID, filter)
		if err != nil {
			return fmt.Errorf("failed to load WHT credit notes: %w", err)
		}
		if len(notes) == 0 {
			return shared.NewDomainError(shared.CodeNothingToRemit,
				fmt.Sprintf("no unremitted withholding for %s in %s", in.IssuerID, in.Period))
		}
		for i := range notes {
			notes[i].MarkRemitted(in.Date, in.ReceiptRef)
		}
		if err := repos.WhtCreditNotes().SaveAll(ctx, notes); err != nil {
			return fmt.Errorf("failed to save WHT credit notes: %w", err)
		}
		if t.archive != nil {
			key := fmt.Sprintf("wht-remittances/%s/%s/%s-%s.csv", in.GroupID, in.Period, in.IssuerID,
				strings.ReplaceAll(in.Date.Format(time.DateOnly), "-", ""))
			if _, err := t.archive.Archive(ctx, key, tax.RemittanceCSVRows(notes)); err != nil {
				return fmt.Errorf("failed to archive remittance: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		logger.L(ctx).Warn("WHT remittance refused", zap.String("issuer_id", in.IssuerID.String()), zap.Error(err))
		return nil, err
	}

	logger.L(ctx).Info("WHT remitted",
		zap.String("issuer_id", in.IssuerID.String()),
		zap.String("period", in.Period.String()),
		zap.Int("notes", len(notes)),
	)
	return notes, nil
}

// TaxImpact summarises a company's VAT and WHT position for a period
func (t *TaxEngine) TaxImpact(ctx context.Context, groupID, companyID uuid.UUID, period valueobject.Period) (*tax.Impact, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tax_engine", "tax_impact")
	defer span.End()

	if _, err := companyInGroup(ctx, t.repos.Subsidiaries(), groupID, companyID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	invoices, err := t.repos.Invoices().FindAllForGroup(ctx, groupID, intercompany.InvoiceFilter{
		Period:      &period,
		CompanyID:   &companyID,
		ExcludeVoid: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}
	notes, err := t.repos.WhtCreditNotes().FindAllForGroup(ctx, groupID, intercompany.WhtCreditNoteFilter{
		CompanyID: &companyID,
		Period:    &period,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load WHT credit notes: %w", err)
	}
	return tax.BuildImpact(companyID, period, invoices, notes), nil
}

// ConsolidatedPL sums the group's P&L accounts for a period. Intercompany
// accounts are excluded unless includeIntercompany is set.
func (t *TaxEngine) ConsolidatedPL(ctx context.Context, groupID uuid.UUID, period valueobject.Period, includeIntercompany bool) (*tax.ConsolidatedPL, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tax_engine", "consolidated_pl")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrGroupID, groupID.String(), telemetry.SpanAttrPeriod, period.String())

	accounts, err := t.repos.Accounts().FindByGroup(ctx, groupID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	entries, err := t.repos.Entries().FindAllForGroup(ctx, groupID, ledger.EntryFilter{Period: &period})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	return tax.BuildConsolidatedPL(groupID, period, includeIntercompany, accounts, entries), nil
}
