package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/icledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewFinanceMetrics_NilMeter(t *testing.T) {
	m, err := telemetry.NewFinanceMetrics(nil)
	assert.Nil(t, m)
	assert.Equal(t, telemetry.ErrMeterNil, err)
	assert.Equal(t, "NewFinanceMetrics: meter cannot be nil", err.Error())
}

func TestNewFinanceMetrics_Noop(t *testing.T) {
	m, err := telemetry.NewFinanceMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	groupID := uuid.New()
	assert.NotPanics(t, func() {
		m.InvoicesGenerated(ctx, groupID, 2)
		m.InvoiceIssued(ctx, groupID, "INTERCOMPANY")
		m.MonthClose(ctx, groupID, "", time.Second)
	})
}

func TestFinanceMetrics_NilReceiver(t *testing.T) {
	var m *telemetry.FinanceMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.InvoicesGenerated(ctx, uuid.Nil, 1)
		m.InvoiceIssued(ctx, uuid.Nil, "EXTERNAL")
		m.CreditNoteIssued(ctx, uuid.Nil)
		m.EntriesPosted(ctx, uuid.Nil, 2)
		m.PaymentRecorded(ctx, uuid.Nil)
		m.WhtRejected(ctx, uuid.Nil, "WHT_REQUIRED")
		m.MonthClose(ctx, uuid.Nil, "ALLOCATE", time.Millisecond)
		m.CreditReservation(ctx, uuid.Nil, "denied")
	})
}

func TestFinanceMetrics_Recorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := telemetry.NewFinanceMetrics(provider.Meter("icledger"))
	require.NoError(t, err)

	ctx := context.Background()
	groupID := uuid.New()
	m.InvoicesGenerated(ctx, groupID, 2)
	m.InvoicesGenerated(ctx, groupID, 0)
	m.EntriesPosted(ctx, groupID, 4)
	m.WhtRejected(ctx, groupID, "WHT_MISMATCH")
	m.MonthClose(ctx, groupID, "", 150*time.Millisecond)
	m.MonthClose(ctx, groupID, "GENERATE_INVOICES", 20*time.Millisecond)

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, data["icl_invoices_generated_total"]))
	assert.Equal(t, int64(4), sumOf(t, data["icl_ledger_entries_posted_total"]))
	assert.Equal(t, int64(1), sumOf(t, data["icl_wht_rejected_total"]))
	assert.Equal(t, int64(2), sumOf(t, data["icl_month_close_total"]))

	hist, ok := data["icl_month_close_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)
}
