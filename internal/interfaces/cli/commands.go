package cli

import (
	"context"
	"errors"
	"time"

	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/infrastructure/scheduler"
	"github.com/erp/icledger/internal/interfaces/http/dto"
	"github.com/spf13/cobra"
)

// errNoQueue is returned for --async when Redis is not configured
var errNoQueue = errors.New("--async needs redis.enabled=true")

func newCloseCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Run the month close for a holdco",
		Long: `Allocate the holdco's shared costs, generate and post the period's
intercompany invoices, then lock the holdco's period.

With --async the close is queued for the worker instead; at most one close
per holdco and period may be queued at a time.`,
		Example: `  icledgerctl close --group $GROUP --holdco $HOLDCO --period 2025-03 \
    --line salaries=2000 --line office=1000 \
    --weight $RETAIL=0.6 --weight $ONLINE=0.4`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			groupID, err := uuidFlag(cmd, "group")
			if err != nil {
				return err
			}
			holdcoID, err := uuidFlag(cmd, "holdco")
			if err != nil {
				return err
			}
			period, err := periodFlag(cmd)
			if err != nil {
				return err
			}
			lines, err := costLines(cmd)
			if err != nil {
				return err
			}
			shares, err := weights(cmd)
			if err != nil {
				return err
			}
			issueDate, err := dateFlag(cmd, "issue-date")
			if err != nil {
				return err
			}
			dueDays := dueDaysFlag(cmd)
			actor, _ := cmd.Flags().GetString("actor")
			async, _ := cmd.Flags().GetBool("async")

			return withSession(cmd, open, func(ctx context.Context, s *Session) error {
				if async {
					if s.Queue == nil {
						return errNoQueue
					}
					payload := scheduler.MonthClosePayload{
						GroupID:  groupID,
						HoldcoID: holdcoID,
						Period:   period.String(),
						DueDays:  dueDays,
						Actor:    actor,
					}
					if !issueDate.IsZero() {
						payload.IssueDate = issueDate.Format(time.DateOnly)
					}
					for _, l := range lines {
						payload.Lines = append(payload.Lines, scheduler.CostLine{Category: l.Category, Amount: l.Amount})
					}
					for _, w := range shares {
						payload.Weights = append(payload.Weights, scheduler.RecipientWeight{RecipientID: w.RecipientID, Weight: w.Weight})
					}
					info, err := s.Queue.EnqueueMonthClose(ctx, payload)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), toEnqueued(info))
				}

				result, err := s.Engine.Close.RunMonthClose(ctx, finance.MonthCloseInput{
					GroupID:   groupID,
					HoldcoID:  holdcoID,
					Period:    period,
					Lines:     lines,
					Weights:   shares,
					IssueDate: issueDate,
					DueDays:   dueDays,
					Actor:     actor,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), struct {
					Run      dto.CloseRunResponse       `json:"run"`
					PoolID   string                     `json:"pool_id"`
					Invoices []finance.GeneratedInvoice `json:"invoices"`
				}{dto.ToCloseRunResponse(result.Run), result.PoolID.String(), result.Invoices})
			})
		},
	}
	cmd.Flags().String("holdco", "", "Holdco subsidiary ID (required)")
	cmd.Flags().String("period", "", "Period to close, YYYY-MM (required)")
	cmd.Flags().StringArray("line", nil, "Shared cost line CATEGORY=AMOUNT (repeatable)")
	cmd.Flags().StringArray("weight", nil, "Recipient share RECIPIENT_ID=WEIGHT (repeatable)")
	cmd.Flags().String("issue-date", "", "Invoice issue date, YYYY-MM-DD (default: period end)")
	cmd.Flags().Int("due-days", 0, "Days until generated invoices fall due (default: finance.default_due_days)")
	cmd.Flags().String("actor", "cli", "Recorded as the locker of the period")
	cmd.Flags().Bool("async", false, "Queue the close for the worker")
	_ = cmd.MarkFlagRequired("holdco")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func newCloseStatusCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close-status",
		Short: "Show the latest close run for a holdco and period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			groupID, err := uuidFlag(cmd, "group")
			if err != nil {
				return err
			}
			holdcoID, err := uuidFlag(cmd, "holdco")
			if err != nil {
				return err
			}
			period, err := periodFlag(cmd)
			if err != nil {
				return err
			}
			return withSession(cmd, open, func(ctx context.Context, s *Session) error {
				run, err := s.Engine.Close.LatestRun(ctx, groupID, holdcoID, period)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.ToCloseRunResponse(run))
			})
		},
	}
	cmd.Flags().String("holdco", "", "Holdco subsidiary ID (required)")
	cmd.Flags().String("period", "", "Period, YYYY-MM (required)")
	_ = cmd.MarkFlagRequired("holdco")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func newRepostCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repost",
		Short: "Re-post every live invoice of a period to the ledger",
		Long: `Posting replaces an invoice's ledger entries, so re-posting is idempotent.
Invoices whose seller has locked the period are skipped and not counted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			groupID, err := uuidFlag(cmd, "group")
			if err != nil {
				return err
			}
			period, err := periodFlag(cmd)
			if err != nil {
				return err
			}
			async, _ := cmd.Flags().GetBool("async")

			return withSession(cmd, open, func(ctx context.Context, s *Session) error {
				if async {
					if s.Queue == nil {
						return errNoQueue
					}
					info, err := s.Queue.EnqueueRepostPeriod(ctx, scheduler.RepostPeriodPayload{
						GroupID: groupID,
						Period:  period.String(),
					})
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), toEnqueued(info))
				}
				posted, err := s.Engine.Poster.PostAllForPeriod(ctx, groupID, period)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"period": period.String(),
					"posted": posted,
				})
			})
		},
	}
	cmd.Flags().String("period", "", "Period, YYYY-MM (required)")
	cmd.Flags().Bool("async", false, "Queue the re-post for the worker")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func newLockCommand(open Opener, lock bool) *cobra.Command {
	use, short := "unlock", "Reopen a company's period"
	if lock {
		use, short = "lock", "Close a company's period to new postings"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			groupID, err := uuidFlag(cmd, "group")
			if err != nil {
				return err
			}
			companyID, err := uuidFlag(cmd, "company")
			if err != nil {
				return err
			}
			period, err := periodFlag(cmd)
			if err != nil {
				return err
			}
			actor, _ := cmd.Flags().GetString("actor")

			return withSession(cmd, open, func(ctx context.Context, s *Session) error {
				locks := s.Engine.Locks
				if lock {
					reason, _ := cmd.Flags().GetString("reason")
					l, err := locks.Lock(ctx, groupID, companyID, period, actor, reason)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), dto.ToPeriodLockResponse(l))
				}
				l, err := locks.Unlock(ctx, groupID, companyID, period, actor)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.ToPeriodLockResponse(l))
			})
		},
	}
	cmd.Flags().String("company", "", "Subsidiary ID (required)")
	cmd.Flags().String("period", "", "Period, YYYY-MM (required)")
	cmd.Flags().String("actor", "cli", "Recorded against the lock")
	if lock {
		cmd.Flags().String("reason", "", "Why the period is being locked")
	}
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func newVatReturnCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vat-return",
		Short: "Compute, or with --file file, a company's VAT return",
		RunE: func(cmd *cobra.Command, _ []string) error {
			groupID, err := uuidFlag(cmd, "group")
			if err != nil {
				return err
			}
			companyID, err := uuidFlag(cmd, "company")
			if err != nil {
				return err
			}
			period, err := periodFlag(cmd)
			if err != nil {
				return err
			}
			file, _ := cmd.Flags().GetBool("file")
			paymentRef, _ := cmd.Flags().GetString("payment-ref")

			return withSession(cmd, open, func(ctx context.Context, s *Session) error {
				if file {
					ret, err := s.Engine.Tax.FileVatReturn(ctx, groupID, companyID, period, paymentRef)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), dto.ToVatReturnResponse(ret))
				}
				ret, err := s.Engine.Tax.ComputeVatReturn(ctx, groupID, companyID, period)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.ToVatReturnResponse(ret))
			})
		},
	}
	cmd.Flags().String("company", "", "Subsidiary ID (required)")
	cmd.Flags().String("period", "", "Period, YYYY-MM (required)")
	cmd.Flags().Bool("file", false, "File the return and archive it")
	cmd.Flags().String("payment-ref", "", "Payment reference recorded on a filed return")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func newWhtScheduleCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wht-schedule",
		Short: "List withholding tax an issuer still has to remit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			groupID, err := uuidFlag(cmd, "group")
			if err != nil {
				return err
			}
			issuerID, err := uuidFlag(cmd, "company")
			if err != nil {
				return err
			}
			period, err := periodFlag(cmd)
			if err != nil {
				return err
			}
			return withSession(cmd, open, func(ctx context.Context, s *Session) error {
				schedule, err := s.Engine.Tax.WhtSchedule(ctx, groupID, issuerID, period)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), schedule)
			})
		},
	}
	cmd.Flags().String("company", "", "Issuing (paying) subsidiary ID (required)")
	cmd.Flags().String("period", "", "Period, YYYY-MM (required)")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}
