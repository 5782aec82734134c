package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type ledgerRow struct {
	ID     uint   `gorm:"primaryKey"`
	Code   string `gorm:"size:20"`
	Amount string `gorm:"size:32"`
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&ledgerRow{}))
	return db
}

func setupTracedDB(t *testing.T, cfg DBTracingConfig) *gorm.DB {
	t.Helper()
	db := openTestDB(t)
	require.NoError(t, NewDBTracingPlugin(cfg, zap.NewNop()).RegisterOtelGorm(db))
	return db
}

// withTimingCallbacks installs only the span annotation callbacks so the
// caller's span stays the active one.
func withTimingCallbacks(t *testing.T, cfg DBTracingConfig) *gorm.DB {
	t.Helper()
	db := openTestDB(t)
	require.NoError(t, NewDBTracingPlugin(cfg, zap.NewNop()).registerCallbacks(db))
	return db
}

func recordingTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, sr
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()
	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.LogFullSQL)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)
}

func TestRegisterOtelGorm_Disabled(t *testing.T) {
	db := setupTracedDB(t, DefaultDBTracingConfig())
	assert.Nil(t, db.Callback().Query().Get("otel_slow_query:query"))
}

func TestRegisterOtelGorm_Enabled(t *testing.T) {
	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	cfg.DBSystem = "sqlite"
	db := setupTracedDB(t, cfg)

	assert.NotNil(t, db.Callback().Query().Get("otel_slow_query:query"))
	assert.NotNil(t, db.Callback().Create().Get("otel_timing:before_create"))
}

func TestAfterQuery_SlowQueryAndTable(t *testing.T) {
	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	cfg.DBSystem = "sqlite"
	cfg.SlowQueryThresh = 0
	db := withTimingCallbacks(t, cfg)

	tp, sr := recordingTracer(t)
	ctx, span := tp.Tracer("test").Start(context.Background(), "ledger_poster.post_invoice")
	require.NoError(t, db.WithContext(ctx).Create(&ledgerRow{Code: "IC_REV", Amount: "2480.00"}).Error)
	span.End()

	ended := sr.Ended()
	require.NotEmpty(t, ended)
	attrs := make(map[string]any)
	for _, kv := range ended[len(ended)-1].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, true, attrs["db.slow_query"])
	assert.Equal(t, "ledger_rows", attrs["db.sql.table"])
}

func TestAfterQuery_RecordNotFoundIsNotAnError(t *testing.T) {
	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	cfg.DBSystem = "sqlite"
	db := withTimingCallbacks(t, cfg)

	tp, sr := recordingTracer(t)
	ctx, span := tp.Tracer("test").Start(context.Background(), "account_resolver.resolve")
	var row ledgerRow
	err := db.WithContext(ctx).First(&row, 99999).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	span.End()

	ended := sr.Ended()
	require.NotEmpty(t, ended)
	assert.NotEqual(t, codes.Error, ended[len(ended)-1].Status().Code)
}

func TestAfterQuery_NilContext(t *testing.T) {
	p := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())
	db := &gorm.DB{Statement: &gorm.Statement{}}
	assert.NotPanics(t, func() { p.afterQuery(db) })
}
