package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/erp/icledger/internal/bootstrap"
	"github.com/erp/icledger/internal/infrastructure/config"
	"github.com/erp/icledger/internal/infrastructure/scheduler"
	"github.com/erp/icledger/internal/interfaces/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(openSession)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openSession connects the engine, and a task client when Redis is enabled
func openSession(ctx context.Context) (*cli.Session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	// keep stdout for command output
	cfg.Log.Output = "stderr"

	log, flushLogs, err := bootstrap.NewLogger(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	session := &cli.Session{Engine: rt.Engine}
	var client *scheduler.Client
	if cfg.Redis.Enabled {
		client = scheduler.NewClient(scheduler.RedisOpt(cfg.Redis), cfg.Worker)
		session.Queue = client
	}
	session.Close = func() error {
		if client != nil {
			_ = client.Close()
		}
		err := rt.Shutdown(context.Background())
		_ = flushLogs(context.Background())
		_ = log.Sync()
		return err
	}
	return session, nil
}
