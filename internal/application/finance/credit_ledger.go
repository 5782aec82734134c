package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/icledger/internal/domain/credit"
	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/infrastructure/logger"
	"github.com/erp/icledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Credit reservation outcomes reported to metrics
const (
	reservationGranted  = "granted"
	reservationOverride = "override"
	reservationDenied   = "denied"
)

// CreditLedger enforces reseller credit limits and allocates repayments
// across open orders oldest first.
type CreditLedger struct {
	repos   Repositories
	scope   TransactionScope
	metrics *telemetry.FinanceMetrics
	now     func() time.Time
}

// NewCreditLedger creates a CreditLedger
func NewCreditLedger(repos Repositories, scope TransactionScope, metrics *telemetry.FinanceMetrics, now func() time.Time) *CreditLedger {
	if now == nil {
		now = time.Now
	}
	return &CreditLedger{repos: repos, scope: scope, metrics: metrics, now: now}
}

// OpenCreditAccountInput opens a credit line from a lending subsidiary
type OpenCreditAccountInput struct {
	GroupID      uuid.UUID
	SubsidiaryID uuid.UUID
	ResellerID   uuid.UUID
	Limit        decimal.Decimal
}

// OpenCreditAccount opens an ACTIVE account. The lending subsidiary must
// belong to the group; the reseller is an external party.
func (c *CreditLedger) OpenCreditAccount(ctx context.Context, in OpenCreditAccountInput) (*credit.Account, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "credit_ledger", "open_account")
	defer span.End()

	account, err := credit.NewAccount(in.GroupID, in.SubsidiaryID, in.ResellerID, in.Limit)
	if err != nil {
		return nil, err
	}
	err = c.scope.Execute(ctx, func(repos Repositories) error {
		if _, err := companyInGroup(ctx, repos.Subsidiaries(), in.GroupID, in.SubsidiaryID); err != nil {
			return err
		}
		existing, err := repos.CreditAccounts().FindByReseller(ctx, in.GroupID, in.SubsidiaryID, in.ResellerID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("failed to look up credit account: %w", err)
		}
		if existing != nil {
			return shared.BadRequestf("reseller %s already has a credit account with %s", in.ResellerID, in.SubsidiaryID)
		}
		return repos.CreditAccounts().Save(ctx, account)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	logger.L(ctx).Info("Credit account opened",
		zap.String("account_id", account.ID.String()),
		zap.String("reseller_id", in.ResellerID.String()),
		zap.String("limit", account.LimitAmount.StringFixed(2)),
	)
	return account, nil
}

// ReserveCreditInput asks for credit on a reseller's account
type ReserveCreditInput struct {
	GroupID       uuid.UUID
	SubsidiaryID  uuid.UUID
	ResellerID    uuid.UUID
	Amount        decimal.Decimal
	AllowOverride bool
}

// ReserveCreditUsage increments used_amount, failing with
// CREDIT_LIMIT_EXCEEDED past the limit unless AllowOverride is set.
func (c *CreditLedger) ReserveCreditUsage(ctx context.Context, in ReserveCreditInput) (*credit.Account, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "credit_ledger", "reserve")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrAmount, in.Amount.String(), "allow_override", in.AllowOverride)

	var account *credit.Account
	var overLimit bool
	err := c.scope.Execute(ctx, func(repos Repositories) error {
		var err error
		account, err = c.lockReseller(ctx, repos, in.GroupID, in.SubsidiaryID, in.ResellerID)
		if err != nil {
			return err
		}
		overLimit = account.UsedAmount.Add(in.Amount).GreaterThan(account.LimitAmount)
		if err := account.Reserve(in.Amount, in.AllowOverride); err != nil {
			return err
		}
		return repos.CreditAccounts().Save(ctx, account)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, shared.ErrCreditLimitExceeded) {
			c.metrics.CreditReservation(ctx, in.GroupID, reservationDenied)
		}
		logger.L(ctx).Warn("Credit reservation refused", zap.String("reseller_id", in.ResellerID.String()), zap.Error(err))
		return nil, err
	}
	outcome := reservationGranted
	if overLimit {
		outcome = reservationOverride
	}
	c.metrics.CreditReservation(ctx, in.GroupID, outcome)
	logger.L(ctx).Info("Credit reserved",
		zap.String("account_id", account.ID.String()),
		zap.String("amount", in.Amount.StringFixed(2)),
		zap.String("used", account.UsedAmount.StringFixed(2)),
		zap.String("outcome", outcome),
	)
	return account, nil
}

// CreditOrderInput is a reseller order financed on credit
type CreditOrderInput struct {
	ReserveCreditInput
	Reference string
	CreatedAt time.Time
}

// RecordCreditOrder creates the order and reserves its total in one
// transaction, so a refused reservation leaves no order behind.
func (c *CreditLedger) RecordCreditOrder(ctx context.Context, in CreditOrderInput) (*credit.Order, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "credit_ledger", "record_order")
	defer span.End()

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = c.now()
	}
	var order *credit.Order
	err := c.scope.Execute(ctx, func(repos Repositories) error {
		account, err := c.lockReseller(ctx, repos, in.GroupID, in.SubsidiaryID, in.ResellerID)
		if err != nil {
			return err
		}
		order, err = credit.NewOrder(account, in.Reference, in.Amount, createdAt)
		if err != nil {
			return err
		}
		if err := account.Reserve(order.TotalAmount, in.AllowOverride); err != nil {
			return err
		}
		if err := repos.CreditOrders().Save(ctx, order); err != nil {
			return fmt.Errorf("failed to save credit order: %w", err)
		}
		return repos.CreditAccounts().Save(ctx, account)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, shared.ErrCreditLimitExceeded) {
			c.metrics.CreditReservation(ctx, in.GroupID, reservationDenied)
		}
		logger.L(ctx).Warn("Credit order refused", zap.String("reseller_id", in.ResellerID.String()), zap.Error(err))
		return nil, err
	}
	logger.L(ctx).Info("Credit order recorded",
		zap.String("order_id", order.ID.String()),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	return order, nil
}

// RepaymentInput is money received against a credit account
type RepaymentInput struct {
	GroupID         uuid.UUID
	SubsidiaryID    uuid.UUID
	CreditAccountID uuid.UUID
	Amount          decimal.Decimal
	Method          string
	PaidAt          *time.Time
}

// CreateRepayment allocates the repayment FIFO across open orders and
// releases exactly the applied amount from the account.
func (c *CreditLedger) CreateRepayment(ctx context.Context, in RepaymentInput) (*credit.Repayment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "credit_ledger", "create_repayment")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAccountID, in.CreditAccountID.String(),
		telemetry.SpanAttrAmount, in.Amount.String(),
	)

	var repayment *credit.Repayment
	err := c.scope.Execute(ctx, func(repos Repositories) error {
		account, err := repos.CreditAccounts().FindByIDForUpdate(ctx, in.GroupID, in.CreditAccountID)
		if err != nil {
			return fmt.Errorf("failed to load credit account: %w", err)
		}
		if account.SubsidiaryID != in.SubsidiaryID {
			return shared.BadRequestf("credit account %s is not held with subsidiary %s", account.ID, in.SubsidiaryID)
		}
		repayment, err = credit.NewRepayment(account, in.Amount, in.Method, in.PaidAt)
		if err != nil {
			return err
		}

		open, err := repos.CreditOrders().FindOpenByAccount(ctx, account.ID)
		if err != nil {
			return fmt.Errorf("failed to load open orders: %w", err)
		}
		orders := make([]*credit.Order, len(open))
		for i := range open {
			orders[i] = &open[i]
		}
		touched := repayment.AllocateFIFO(orders)

		if err := repos.Repayments().Save(ctx, repayment); err != nil {
			return fmt.Errorf("failed to save repayment: %w", err)
		}
		for _, o := range touched {
			if err := repos.CreditOrders().Save(ctx, o); err != nil {
				return fmt.Errorf("failed to save credit order: %w", err)
			}
		}
		account.Release(repayment.AppliedAmount)
		return repos.CreditAccounts().Save(ctx, account)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		logger.L(ctx).Warn("Repayment refused", zap.String("account_id", in.CreditAccountID.String()), zap.Error(err))
		return nil, err
	}
	logger.L(ctx).Info("Repayment allocated",
		zap.String("repayment_id", repayment.ID.String()),
		zap.String("amount", repayment.Amount.StringFixed(2)),
		zap.String("applied", repayment.AppliedAmount.StringFixed(2)),
		zap.Int("orders", len(repayment.Allocations)),
	)
	return repayment, nil
}

// GetAccount returns a credit account
func (c *CreditLedger) GetAccount(ctx context.Context, groupID, accountID uuid.UUID) (*credit.Account, error) {
	return c.repos.CreditAccounts().FindByIDForGroup(ctx, groupID, accountID)
}

// ListOrders returns every order financed on an account
func (c *CreditLedger) ListOrders(ctx context.Context, groupID, accountID uuid.UUID) ([]credit.Order, error) {
	if _, err := c.repos.CreditAccounts().FindByIDForGroup(ctx, groupID, accountID); err != nil {
		return nil, err
	}
	return c.repos.CreditOrders().FindByAccount(ctx, accountID)
}

// lockReseller resolves the reseller's account and re-reads it under a
// row lock.
func (c *CreditLedger) lockReseller(ctx context.Context, repos Repositories, groupID, subsidiaryID, resellerID uuid.UUID) (*credit.Account, error) {
	found, err := repos.CreditAccounts().FindByReseller(ctx, groupID, subsidiaryID, resellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load credit account: %w", err)
	}
	account, err := repos.CreditAccounts().FindByIDForUpdate(ctx, groupID, found.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock credit account: %w", err)
	}
	return account, nil
}
