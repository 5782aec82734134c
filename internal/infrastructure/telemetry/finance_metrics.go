package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// FinanceMetrics counts ledger-engine business events. A nil
// *FinanceMetrics is valid and records nothing.
type FinanceMetrics struct {
	invoicesGenerated  *Counter
	invoicesIssued     *Counter
	creditNotesIssued  *Counter
	entriesPosted      *Counter
	paymentsRecorded   *Counter
	whtRejected        *Counter
	monthCloses        *Counter
	closeDuration      *Histogram
	creditReservations *Counter
}

// ErrMeterNil is returned when no meter is supplied.
var ErrMeterNil = &MetricsError{Op: "NewFinanceMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics construction error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// NewFinanceMetrics registers the finance instruments on meter
func NewFinanceMetrics(meter metric.Meter) (*FinanceMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	m := &FinanceMetrics{}
	counters := []struct {
		dst         **Counter
		name        string
		description string
		unit        string
	}{
		{&m.invoicesGenerated, "icl_invoices_generated_total", "Intercompany invoices created or regenerated", "{invoices}"},
		{&m.invoicesIssued, "icl_invoices_issued_total", "Invoices transitioned to ISSUED", "{invoices}"},
		{&m.creditNotesIssued, "icl_credit_notes_issued_total", "Credit notes issued", "{invoices}"},
		{&m.entriesPosted, "icl_ledger_entries_posted_total", "Ledger entries written", "{entries}"},
		{&m.paymentsRecorded, "icl_payments_recorded_total", "Payments recorded against invoices", "{payments}"},
		{&m.whtRejected, "icl_wht_rejected_total", "Payments rejected for missing or mismatched withholding", "{payments}"},
		{&m.monthCloses, "icl_month_close_total", "Month close runs by outcome", "{runs}"},
		{&m.creditReservations, "icl_credit_reservations_total", "Reseller credit reservations by outcome", "{reservations}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(meter, c.name, c.description, c.unit)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	var err error
	m.closeDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "icl_month_close_duration_seconds",
		Description: "Wall time of month close runs",
		Unit:        "s",
		Boundaries:  CloseDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func groupAttr(groupID uuid.UUID) attribute.KeyValue {
	return AttrGroupID.String(groupID.String())
}

// InvoicesGenerated counts invoices written by a generation run
func (m *FinanceMetrics) InvoicesGenerated(ctx context.Context, groupID uuid.UUID, n int) {
	if m == nil || n == 0 {
		return
	}
	m.invoicesGenerated.Add(ctx, int64(n), groupAttr(groupID))
}

// InvoiceIssued counts an issued invoice
func (m *FinanceMetrics) InvoiceIssued(ctx context.Context, groupID uuid.UUID, invoiceType string) {
	if m == nil {
		return
	}
	m.invoicesIssued.Inc(ctx, groupAttr(groupID), AttrInvoiceType.String(invoiceType))
}

// CreditNoteIssued counts an issued credit note
func (m *FinanceMetrics) CreditNoteIssued(ctx context.Context, groupID uuid.UUID) {
	if m == nil {
		return
	}
	m.creditNotesIssued.Inc(ctx, groupAttr(groupID))
}

// EntriesPosted counts ledger rows written
func (m *FinanceMetrics) EntriesPosted(ctx context.Context, groupID uuid.UUID, n int) {
	if m == nil || n == 0 {
		return
	}
	m.entriesPosted.Add(ctx, int64(n), groupAttr(groupID))
}

// PaymentRecorded counts an accepted payment
func (m *FinanceMetrics) PaymentRecorded(ctx context.Context, groupID uuid.UUID) {
	if m == nil {
		return
	}
	m.paymentsRecorded.Inc(ctx, groupAttr(groupID))
}

// WhtRejected counts a payment refused for its withholding
func (m *FinanceMetrics) WhtRejected(ctx context.Context, groupID uuid.UUID, code string) {
	if m == nil {
		return
	}
	m.whtRejected.Inc(ctx, groupAttr(groupID), AttrErrorCode.String(code))
}

// MonthClose records a finished close run; failedStep is empty on success
func (m *FinanceMetrics) MonthClose(ctx context.Context, groupID uuid.UUID, failedStep string, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "completed"
	attrs := []attribute.KeyValue{groupAttr(groupID)}
	if failedStep != "" {
		outcome = "failed"
		attrs = append(attrs, AttrCloseStep.String(failedStep))
	}
	attrs = append(attrs, AttrOutcome.String(outcome))
	m.monthCloses.Inc(ctx, attrs...)
	m.closeDuration.RecordDuration(ctx, elapsed, AttrOutcome.String(outcome))
}

// CreditReservation counts a reservation attempt; outcome is "granted",
// "override" or "denied"
func (m *FinanceMetrics) CreditReservation(ctx context.Context, groupID uuid.UUID, outcome string) {
	if m == nil {
		return
	}
	m.creditReservations.Inc(ctx, groupAttr(groupID), AttrOutcome.String(outcome))
}
