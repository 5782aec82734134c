package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/infrastructure/logger"
	"github.com/erp/icledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreditNoteIssuer reverses invoices fully or per line
type CreditNoteIssuer struct {
	scope   TransactionScope
	poster  *LedgerPoster
	metrics *telemetry.FinanceMetrics
	now     func() time.Time
}

// NewCreditNoteIssuer creates a CreditNoteIssuer
func NewCreditNoteIssuer(scope TransactionScope, poster *LedgerPoster, metrics *telemetry.FinanceMetrics, now func() time.Time) *CreditNoteIssuer {
	if now == nil {
		now = time.Now
	}
	return &CreditNoteIssuer{scope: scope, poster: poster, metrics: metrics, now: now}
}

// CreateCreditNote issues a credit note against the original invoice and
// posts its mirror-image entries in the same transaction. Credit notes
// against one original never credit a line beyond its net in total.
func (c *CreditNoteIssuer) CreateCreditNote(ctx context.Context, groupID, originalID uuid.UUID, req intercompany.CreditNoteRequest) (*intercompany.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "credit_note_issuer", "create")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrGroupID, groupID.String(),
		telemetry.SpanAttrInvoiceID, originalID.String(),
		"full_reversal", req.IsFullReversal(),
	)

	var cn *intercompany.Invoice
	err := c.scope.Execute(ctx, func(repos Repositories) error {
		original, err := repos.Invoices().FindByIDForGroup(ctx, groupID, originalID)
		if err != nil {
			return fmt.Errorf("failed to load invoice: %w", err)
		}
		if err := assertUnlockedTx(ctx, repos, original.SellerID, original.Period); err != nil {
			return err
		}
		cn, err = intercompany.NewCreditNote(original, req, c.now())
		if err != nil {
			return err
		}
		prior, err := repos.Invoices().FindAllForGroup(ctx, groupID, intercompany.InvoiceFilter{
			RelatedInvoiceID: &original.ID,
			ExcludeVoid:      true,
		})
		if err != nil {
			return fmt.Errorf("failed to load prior credit notes: %w", err)
		}
		if err := intercompany.EnsureCreditable(original, prior, cn); err != nil {
			return err
		}
		if err := repos.Invoices().Save(ctx, cn); err != nil {
			return fmt.Errorf("failed to save credit note: %w", err)
		}
		_, err = c.poster.post(ctx, repos, cn)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		logger.L(ctx).Warn("Credit note refused", zap.String("invoice_id", originalID.String()), zap.Error(err))
		return nil, err
	}

	c.metrics.CreditNoteIssued(ctx, groupID)
	logger.L(ctx).Info("Credit note issued",
		zap.String("credit_note", cn.Number),
		zap.String("original_id", originalID.String()),
		zap.String("total", cn.TotalAmount.StringFixed(2)),
	)
	return cn, nil
}
