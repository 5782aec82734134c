// Package cli implements icledgerctl, the operator command line for month
// closes, re-posting, period locks and tax filings.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/infrastructure/scheduler"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
)

var version = "dev"

// Queue hands work to the background worker
type Queue interface {
	EnqueueMonthClose(ctx context.Context, p scheduler.MonthClosePayload) (*asynq.TaskInfo, error)
	EnqueueRepostPeriod(ctx context.Context, p scheduler.RepostPeriodPayload) (*asynq.TaskInfo, error)
}

// Session is an open connection to the ledger. Queue is nil when no
// worker backend is configured.
type Session struct {
	Engine *finance.Engine
	Queue  Queue
	Close  func() error
}

// Opener connects a Session for one command invocation
type Opener func(ctx context.Context) (*Session, error)

// NewRootCommand builds the command tree. Every subcommand opens its own
// session through open and closes it when done.
func NewRootCommand(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:   "icledgerctl",
		Short: "Operate the intercompany ledger",
		Long: `icledgerctl runs month closes, re-posts invoices to the ledger, locks
and unlocks periods, and files tax returns against the configured database.

Configuration is read the same way as the server: config.toml in the
working directory or /etc/icledger, overridden by ICL_* variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("group", "", "Group ID (required)")
	_ = root.MarkPersistentFlagRequired("group")

	root.AddCommand(
		newCloseCommand(open),
		newCloseStatusCommand(open),
		newRepostCommand(open),
		newLockCommand(open, true),
		newLockCommand(open, false),
		newVatReturnCommand(open),
		newWhtScheduleCommand(open),
	)
	return root
}

// withSession opens a session, runs fn and closes the session
func withSession(cmd *cobra.Command, open Opener, fn func(ctx context.Context, s *Session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if s.Close != nil {
			_ = s.Close()
		}
	}()
	return fn(ctx, s)
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

type enqueued struct {
	TaskID string `json:"task_id"`
	Queue  string `json:"queue"`
	Type   string `json:"type"`
}

func toEnqueued(info *asynq.TaskInfo) enqueued {
	return enqueued{TaskID: info.ID, Queue: info.Queue, Type: info.Type}
}
