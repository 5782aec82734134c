package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewZapOTELCore_DisabledIsNop(t *testing.T) {
	core := NewZapOTELCore(ZapBridgeConfig{ServiceName: "icledger"})
	assert.False(t, core.Enabled(zapcore.ErrorLevel))

	core = NewZapOTELCore(ZapBridgeConfig{
		ServiceName:    "icledger",
		LoggerProvider: &LoggerProvider{config: LogsConfig{Enabled: true}},
	})
	assert.False(t, core.Enabled(zapcore.ErrorLevel))
}

func TestLevelFilterCore(t *testing.T) {
	observed, logs := observer.New(zapcore.DebugLevel)
	filtered := &levelFilterCore{Core: observed, minLevel: zapcore.WarnLevel}

	assert.False(t, filtered.Enabled(zapcore.InfoLevel))
	assert.True(t, filtered.Enabled(zapcore.ErrorLevel))

	log := zap.New(filtered.With([]zapcore.Field{zap.String("component", "ledger_poster")}))
	log.Info("posted invoice")
	log.Warn("repost replaced entries")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "repost replaced entries", entry.Message)
	assert.Equal(t, "ledger_poster", entry.ContextMap()["component"])
}

func TestNewBridgedLogger(t *testing.T) {
	base, baseLogs := observer.New(zapcore.InfoLevel)
	other, otherLogs := observer.New(zapcore.ErrorLevel)

	log := NewBridgedLogger(base, other)
	log.Info("month close started")
	log.Error("month close failed")

	assert.Equal(t, 2, baseLogs.Len())
	assert.Equal(t, 1, otherLogs.Len())
}
