// Package scheduler runs ledger work in the background on asynq: month
// closes queued by controllers and period reposts after agreement fixes.
package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

const (
	// TaskMonthClose runs the full month-close sequence for one holdco
	TaskMonthClose = "finance:month_close"
	// TaskRepostPeriod re-posts every live invoice of a period
	TaskRepostPeriod = "finance:repost_period"
)

// CostLine is one shared-cost line in a queued close
type CostLine struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// RecipientWeight is one recipient share in a queued close
type RecipientWeight struct {
	RecipientID uuid.UUID       `json:"recipient_id"`
	Weight      decimal.Decimal `json:"weight"`
}

// MonthClosePayload is the body of a TaskMonthClose task
type MonthClosePayload struct {
	GroupID   uuid.UUID         `json:"group_id"`
	HoldcoID  uuid.UUID         `json:"holdco_id"`
	Period    string            `json:"period"`
	Lines     []CostLine        `json:"lines"`
	Weights   []RecipientWeight `json:"weights"`
	IssueDate string            `json:"issue_date,omitempty"` // YYYY-MM-DD
	DueDays   *int              `json:"due_days,omitempty"`
	Actor     string            `json:"actor"`
}

// Input converts the payload to the orchestrator's input
func (p MonthClosePayload) Input() (finance.MonthCloseInput, error) {
	period, err := valueobject.ParsePeriod(p.Period)
	if err != nil {
		return finance.MonthCloseInput{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	in := finance.MonthCloseInput{
		GroupID:  p.GroupID,
		HoldcoID: p.HoldcoID,
		Period:   period,
		DueDays:  p.DueDays,
		Actor:    p.Actor,
	}
	if p.IssueDate != "" {
		in.IssueDate, err = time.Parse(time.DateOnly, p.IssueDate)
		if err != nil {
			return finance.MonthCloseInput{}, fmt.Errorf("%w: issue_date: %v", ErrInvalidPayload, err)
		}
	}
	for _, l := range p.Lines {
		in.Lines = append(in.Lines, intercompany.LineInput{Category: l.Category, Amount: l.Amount})
	}
	for _, w := range p.Weights {
		in.Weights = append(in.Weights, intercompany.WeightInput{RecipientID: w.RecipientID, Weight: w.Weight})
	}
	return in, nil
}

// MonthCloseTaskID is the asynq task id for a close. At most one close per
// holdco and period can sit in the queue.
func MonthCloseTaskID(groupID, holdcoID uuid.UUID, period string) string {
	return "close:" + groupID.String() + ":" + holdcoID.String() + ":" + period
}

// NewMonthCloseTask builds a TaskMonthClose task
func NewMonthCloseTask(p MonthClosePayload, opts ...asynq.Option) (*asynq.Task, error) {
	if _, err := p.Input(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	opts = append([]asynq.Option{asynq.TaskID(MonthCloseTaskID(p.GroupID, p.HoldcoID, p.Period))}, opts...)
	return asynq.NewTask(TaskMonthClose, body, opts...), nil
}

// RepostPeriodPayload is the body of a TaskRepostPeriod task
type RepostPeriodPayload struct {
	GroupID uuid.UUID `json:"group_id"`
	Period  string    `json:"period"`
}

// NewRepostPeriodTask builds a TaskRepostPeriod task
func NewRepostPeriodTask(p RepostPeriodPayload, opts ...asynq.Option) (*asynq.Task, error) {
	if _, err := valueobject.ParsePeriod(p.Period); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRepostPeriod, body, opts...), nil
}
