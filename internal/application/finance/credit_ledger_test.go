package finance_test

import (
	"testing"
	"time"

	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/domain/credit"
	"github.com/erp/icledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAccount(t *testing.T, f *fixture, limit string) (*credit.Account, finance.ReserveCreditInput) {
	t.Helper()
	resellerID := uuid.New()
	account, err := f.engine.Credit.OpenCreditAccount(f.ctx, finance.OpenCreditAccountInput{
		GroupID:      f.groupID,
		SubsidiaryID: f.retail.ID,
		ResellerID:   resellerID,
		Limit:        dec(limit),
	})
	require.NoError(t, err)
	return account, finance.ReserveCreditInput{
		GroupID:      f.groupID,
		SubsidiaryID: f.retail.ID,
		ResellerID:   resellerID,
	}
}

func TestCreditLedger_LimitAndOverride(t *testing.T) {
	f := newFixture(t)
	account, in := openAccount(t, f, "1000")

	in.Amount = dec("800")
	reserved, err := f.engine.Credit.ReserveCreditUsage(f.ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "800.00", reserved.UsedAmount.StringFixed(2))

	in.Amount = dec("300")
	_, err = f.engine.Credit.ReserveCreditUsage(f.ctx, in)
	assert.ErrorIs(t, err, shared.ErrCreditLimitExceeded)

	stored, err := f.engine.Credit.GetAccount(f.ctx, f.groupID, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "800.00", stored.UsedAmount.StringFixed(2), "a refused reservation changes nothing")

	in.AllowOverride = true
	over, err := f.engine.Credit.ReserveCreditUsage(f.ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "1100.00", over.UsedAmount.StringFixed(2))
	assert.True(t, over.Available().IsNegative())
}

func TestCreditLedger_OneAccountPerReseller(t *testing.T) {
	f := newFixture(t)
	_, in := openAccount(t, f, "1000")

	_, err := f.engine.Credit.OpenCreditAccount(f.ctx, finance.OpenCreditAccountInput{
		GroupID:      f.groupID,
		SubsidiaryID: f.retail.ID,
		ResellerID:   in.ResellerID,
		Limit:        dec("500"),
	})
	assert.ErrorIs(t, err, shared.ErrBadRequest)

	_, err = f.engine.Credit.OpenCreditAccount(f.ctx, finance.OpenCreditAccountInput{
		GroupID:      uuid.New(),
		SubsidiaryID: f.retail.ID,
		ResellerID:   uuid.New(),
		Limit:        dec("500"),
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreditLedger_RepaymentAllocatesFIFO(t *testing.T) {
	f := newFixture(t)
	account, in := openAccount(t, f, "1000")

	in.Amount = dec("600")
	older, err := f.engine.Credit.RecordCreditOrder(f.ctx, finance.CreditOrderInput{
		ReserveCreditInput: in,
		Reference:          "SO-1",
		CreatedAt:          time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	in.Amount = dec("300")
	newer, err := f.engine.Credit.RecordCreditOrder(f.ctx, finance.CreditOrderInput{
		ReserveCreditInput: in,
		Reference:          "SO-2",
		CreatedAt:          time.Date(2025, time.March, 5, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	in.Amount = dec("200")
	_, err = f.engine.Credit.RecordCreditOrder(f.ctx, finance.CreditOrderInput{ReserveCreditInput: in, Reference: "SO-3"})
	assert.ErrorIs(t, err, shared.ErrCreditLimitExceeded)

	repayment, err := f.engine.Credit.CreateRepayment(f.ctx, finance.RepaymentInput{
		GroupID:         f.groupID,
		SubsidiaryID:    f.retail.ID,
		CreditAccountID: account.ID,
		Amount:          dec("700"),
		Method:          "bank_transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, "BANK_TRANSFER", repayment.Method)
	assert.Equal(t, "700.00", repayment.AppliedAmount.StringFixed(2))
	require.Len(t, repayment.Allocations, 2)
	assert.Equal(t, older.ID, repayment.Allocations[0].OrderID)
	assert.Equal(t, "600.00", repayment.Allocations[0].Amount.StringFixed(2))
	assert.Equal(t, newer.ID, repayment.Allocations[1].OrderID)
	assert.Equal(t, "100.00", repayment.Allocations[1].Amount.StringFixed(2))

	orders, err := f.engine.Credit.ListOrders(f.ctx, f.groupID, account.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2, "the refused order was rolled back")
	assert.Equal(t, credit.OrderPaid, orders[0].Status)
	assert.Equal(t, credit.OrderOpen, orders[1].Status)
	assert.Equal(t, "200.00", orders[1].Outstanding().StringFixed(2))

	stored, err := f.engine.Credit.GetAccount(f.ctx, f.groupID, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "200.00", stored.UsedAmount.StringFixed(2))
}

func TestCreditLedger_OverpaymentReleasesOnlyApplied(t *testing.T) {
	f := newFixture(t)
	account, in := openAccount(t, f, "1000")
	in.Amount = dec("250")
	_, err := f.engine.Credit.RecordCreditOrder(f.ctx, finance.CreditOrderInput{ReserveCreditInput: in, Reference: "SO-9"})
	require.NoError(t, err)

	repayment, err := f.engine.Credit.CreateRepayment(f.ctx, finance.RepaymentInput{
		GroupID:         f.groupID,
		SubsidiaryID:    f.retail.ID,
		CreditAccountID: account.ID,
		Amount:          dec("400"),
	})
	require.NoError(t, err)
	assert.Equal(t, "250.00", repayment.AppliedAmount.StringFixed(2))
	assert.Equal(t, "150.00", repayment.Unapplied().StringFixed(2))

	stored, err := f.engine.Credit.GetAccount(f.ctx, f.groupID, account.ID)
	require.NoError(t, err)
	assert.True(t, stored.UsedAmount.IsZero())

	_, err = f.engine.Credit.CreateRepayment(f.ctx, finance.RepaymentInput{
		GroupID:         f.groupID,
		SubsidiaryID:    f.online.ID,
		CreditAccountID: account.ID,
		Amount:          dec("10"),
	})
	assert.ErrorIs(t, err, shared.ErrBadRequest)
}
