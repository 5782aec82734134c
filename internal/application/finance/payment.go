package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/erp/icledger/internal/infrastructure/logger"
	"github.com/erp/icledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentReconciler records payments, checks withholding and keeps the
// invoice status in step with what has been settled.
type PaymentReconciler struct {
	repos     Repositories
	scope     TransactionScope
	metrics   *telemetry.FinanceMetrics
	tolerance decimal.Decimal
}

// NewPaymentReconciler creates a PaymentReconciler. whtTolerance is the
// absolute difference accepted between expected and supplied withholding.
func NewPaymentReconciler(repos Repositories, scope TransactionScope, metrics *telemetry.FinanceMetrics, whtTolerance decimal.Decimal) *PaymentReconciler {
	return &PaymentReconciler{repos: repos, scope: scope, metrics: metrics, tolerance: whtTolerance}
}

// RecordPaymentInput is a payment received against an invoice
type RecordPaymentInput struct {
	GroupID     uuid.UUID
	InvoiceID   uuid.UUID
	Date        time.Time
	AmountPaid  decimal.Decimal
	WhtWithheld *decimal.Decimal
	Reference   string
}

// PaymentResult is the outcome of a recorded payment
type PaymentResult struct {
	Payment     *intercompany.Payment
	CreditNotes []intercompany.WhtCreditNote
	Invoice     *intercompany.Invoice
	Settled     decimal.Decimal
}

// RecordPayment persists the payment and one WHT credit note per tax type,
// then recomputes the invoice status, all in one transaction.
func (r *PaymentReconciler) RecordPayment(ctx context.Context, in RecordPaymentInput) (*PaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_reconciler", "record_payment")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrGroupID, in.GroupID.String(),
		telemetry.SpanAttrInvoiceID, in.InvoiceID.String(),
		telemetry.SpanAttrAmount, in.AmountPaid.String(),
	)

	result := &PaymentResult{}
	err := r.scope.Execute(ctx, func(repos Repositories) error {
		inv, err := repos.Invoices().FindByIDForGroup(ctx, in.GroupID, in.InvoiceID)
		if err != nil {
			return fmt.Errorf("failed to load invoice: %w", err)
		}
		payment, err := intercompany.NewPayment(inv, in.Date, in.AmountPaid, in.WhtWithheld, in.Reference)
		if err != nil {
			return err
		}

		taxTypeOf, err := r.taxTypeResolver(ctx, repos, inv)
		if err != nil {
			return err
		}
		expected := intercompany.ExpectedWht(inv.Lines, taxTypeOf)
		if err := expected.Check(in.WhtWithheld, r.tolerance); err != nil {
			return err
		}

		if err := repos.Payments().Save(ctx, payment); err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}
		notes := intercompany.CreditNotesFor(inv, payment, expected)
		if len(notes) > 0 {
			if err := repos.WhtCreditNotes().SaveAll(ctx, notes); err != nil {
				return fmt.Errorf("failed to save WHT credit notes: %w", err)
			}
		}

		payments, err := repos.Payments().FindByInvoice(ctx, inv.ID)
		if err != nil {
			return fmt.Errorf("failed to load payments: %w", err)
		}
		settled := make([]decimal.Decimal, 0, len(payments))
		for _, p := range payments {
			settled = append(settled, p.Settled())
		}
		result.Settled = valueobject.SumRound2(settled...)
		inv.ApplySettlement(result.Settled)
		if err := repos.Invoices().Save(ctx, inv); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}

		result.Payment = payment
		result.CreditNotes = notes
		result.Invoice = inv
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		var de *shared.DomainError
		if errors.As(err, &de) && (de.Code == shared.CodeWhtRequired || de.Code == shared.CodeWhtMismatch) {
			r.metrics.WhtRejected(ctx, in.GroupID, de.Code)
		}
		logger.L(ctx).Warn("Payment rejected", zap.String("invoice_id", in.InvoiceID.String()), zap.Error(err))
		return nil, err
	}

	r.metrics.PaymentRecorded(ctx, in.GroupID)
	logger.L(ctx).Info("Payment recorded",
		zap.String("invoice", result.Invoice.Number),
		zap.String("amount_paid", result.Payment.AmountPaid.StringFixed(2)),
		zap.String("wht_withheld", result.Payment.WhtWithheld.StringFixed(2)),
		zap.String("status", string(result.Invoice.Status)),
	)
	return result, nil
}

// ListPayments returns the payments recorded against an invoice
func (r *PaymentReconciler) ListPayments(ctx context.Context, groupID, invoiceID uuid.UUID) ([]intercompany.Payment, error) {
	if _, err := r.repos.Invoices().FindByIDForGroup(ctx, groupID, invoiceID); err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	payments, err := r.repos.Payments().FindByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	return payments, nil
}

// taxTypeResolver classifies a line's withholding by its agreement's tax
// type, falling back to the type stored on the line.
func (r *PaymentReconciler) taxTypeResolver(ctx context.Context, repos Repositories, inv *intercompany.Invoice) (func(intercompany.InvoiceLine) intercompany.TaxType, error) {
	byAgreement := make(map[uuid.UUID]intercompany.TaxType)
	if ids := inv.AgreementIDs(); len(ids) > 0 {
		agreements, err := repos.Agreements().FindByIDs(ctx, inv.GroupID, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load agreements: %w", err)
		}
		for _, a := range agreements {
			if a.WHT.Applies {
				byAgreement[a.ID] = a.WHT.TaxType
			}
		}
	}
	return func(l intercompany.InvoiceLine) intercompany.TaxType {
		if l.AgreementID != nil {
			if tt, ok := byAgreement[*l.AgreementID]; ok {
				return tt
			}
		}
		return l.WhtTaxType
	}, nil
}
