package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/erp/icledger/internal/bootstrap"
	"github.com/erp/icledger/internal/infrastructure/config"
	"github.com/erp/icledger/internal/infrastructure/scheduler"
	"github.com/erp/icledger/internal/interfaces/http/handler"
	"github.com/erp/icledger/internal/interfaces/http/middleware"
	"github.com/erp/icledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "icledger server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, flushLogs, err := bootstrap.NewLogger(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = flushLogs(context.Background())
		_ = log.Sync()
	}()

	log.Info("Starting intercompany ledger API",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	rt, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := rt.Shutdown(shutdownCtx); err != nil {
			log.Error("Error releasing resources", zap.Error(err))
		}
	}()

	// A nil queue makes the async endpoints answer 503.
	var queue handler.TaskQueue
	if cfg.Redis.Enabled {
		client := scheduler.NewClient(scheduler.RedisOpt(cfg.Redis), cfg.Worker)
		defer client.Close()
		queue = client
		log.Info("Background queue enabled", zap.String("queue", cfg.Worker.Queue))
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.NewEngine(router.EngineConfig{
		Logger:        log,
		MeterProvider: rt.MeterProvider,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		Metrics:      cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		Security:     middleware.DefaultSecurityConfig(),
		MaxBodyBytes: middleware.DefaultMaxBodyBytes,
		Group:        middleware.DefaultGroupConfig(),
	})
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}

	opts := []router.RouterOption{router.WithAPIVersion("v1")}
	for name, check := range rt.HealthChecks() {
		opts = append(opts, router.WithHealthCheck(name, check))
	}
	r := router.NewRouter(engine, opts...)
	r.Register(router.FinanceRoutes(rt.Engine, queue)...)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Server exited gracefully")
	return nil
}
