// Package bootstrap assembles the ledger engine and its infrastructure from
// configuration. The server, the worker and the CLI share it so every
// process talks to the same database, locker and archive the same way.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/infrastructure/cache"
	"github.com/erp/icledger/internal/infrastructure/config"
	"github.com/erp/icledger/internal/infrastructure/logger"
	"github.com/erp/icledger/internal/infrastructure/persistence"
	"github.com/erp/icledger/internal/infrastructure/storage"
	"github.com/erp/icledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Runtime holds everything a process needs to serve finance operations
type Runtime struct {
	Config        *config.Config
	Logger        *zap.Logger
	DB            *persistence.Database
	Locker        cache.LockerCloser
	MeterProvider *telemetry.MeterProvider
	Engine        *finance.Engine

	closers []func(context.Context) error
}

// NewLogger builds the process logger. When OTEL log export is enabled the
// console core is teed with the bridge core.
func NewLogger(ctx context.Context, cfg *config.Config) (*zap.Logger, func(context.Context) error, error) {
	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	base := logger.New(logCfg)
	noop := func(context.Context) error { return nil }
	if !cfg.Telemetry.Enabled || !cfg.Telemetry.LogsEnabled {
		return base, noop, nil
	}

	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           true,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, base)
	if err != nil {
		return nil, nil, err
	}
	otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		LoggerProvider: lp,
		Level:          logger.ParseLevel(cfg.Log.Level),
	})
	bridged := telemetry.NewBridgedLogger(logger.NewCore(logCfg), otelCore,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	return bridged, lp.Shutdown, nil
}

// New connects every dependency named in cfg and wires the engine. On
// error, whatever was already opened is released.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: log}
	engine, err := rt.wire(ctx)
	if err != nil {
		_ = rt.Shutdown(context.Background())
		return nil, err
	}
	rt.Engine = engine
	return rt, nil
}

func (rt *Runtime) wire(ctx context.Context) (*finance.Engine, error) {
	cfg, log := rt.Config, rt.Logger

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("tracer provider: %w", err)
	}
	rt.closers = append(rt.closers, tp.Shutdown)

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("meter provider: %w", err)
	}
	rt.MeterProvider = mp
	rt.closers = append(rt.closers, mp.Shutdown)

	metrics, err := telemetry.NewFinanceMetrics(mp.Meter("icledger.finance"))
	if err != nil {
		return nil, err
	}

	if err := rt.openDatabase(ctx); err != nil {
		return nil, err
	}

	locker, err := cache.NewLockerFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateLocker()
	if err != nil {
		return nil, err
	}
	rt.Locker = locker
	rt.closers = append(rt.closers, func(context.Context) error { return locker.Close() })

	archive, err := storage.NewReportArchive(ctx, &cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("report archive: %w", err)
	}

	return finance.NewEngine(finance.Deps{
		Repos:    persistence.NewRepositories(rt.DB.DB),
		Scope:    persistence.NewGormTransactionScope(rt.DB.DB),
		Settings: Settings(cfg.Finance),
		Metrics:  metrics,
		Locker:   locker,
		Archive:  archive,
	}), nil
}

func (rt *Runtime) openDatabase(ctx context.Context) error {
	cfg, log := rt.Config, rt.Logger

	level := cfg.Database.LogLevel
	if level == "" {
		level = cfg.Log.Level
	}
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	rt.DB = db
	rt.closers = append(rt.closers, func(context.Context) error { return db.Close() })

	tracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        cfg.Database.Driver,
	}, log)
	if err := tracing.RegisterOtelGorm(db.DB); err != nil {
		return fmt.Errorf("database tracing: %w", err)
	}

	// postgres schemas are owned by the SQL migrations
	if cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(ctx); err != nil {
			return err
		}
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))
	return nil
}

// Settings maps configured tunables onto the engine's settings
func Settings(cfg config.FinanceConfig) finance.Settings {
	return finance.Settings{
		ReportingOnlyCodes: cfg.ReportingOnlyCodes,
		WhtTolerance:       cfg.WhtTolerance,
		WeightTolerance:    cfg.WeightTolerance,
		DefaultDueDays:     cfg.DefaultDueDays,
		Currency:           cfg.Currency,
		CloseLockTTL:       cfg.CloseLockTTL,
	}
}

// HealthChecks names the probes served on /ready
func (rt *Runtime) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"database": rt.DB.Ping,
	}
	if rt.Locker != nil {
		checks["close_locker"] = rt.Locker.Ping
	}
	return checks
}

// Shutdown releases resources in reverse order of acquisition
func (rt *Runtime) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
