package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/erp/icledger/internal/bootstrap"
	"github.com/erp/icledger/internal/infrastructure/config"
	"github.com/erp/icledger/internal/infrastructure/scheduler"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "icledger worker:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if !cfg.Redis.Enabled {
		return errors.New("the worker needs redis.enabled=true to consume tasks")
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

	handlers := scheduler.NewFinanceHandlers(rt.Engine.Close, rt.Engine.Poster)
	worker, err := scheduler.NewWorker(scheduler.RedisOpt(cfg.Redis), cfg.Worker, handlers, log)
	if err != nil {
		return err
	}

	log.Info("Worker starting",
		zap.String("queue", cfg.Worker.Queue),
		zap.Int("concurrency", cfg.Worker.Concurrency),
	)
	if err := worker.Run(ctx); err != nil {
		return err
	}
	log.Info("Worker stopped")
	return nil
}
