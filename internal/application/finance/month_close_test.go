package finance_test

import (
	"testing"

	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) closeInput() finance.MonthCloseInput {
	return finance.MonthCloseInput{
		GroupID:   f.groupID,
		HoldcoID:  f.holdco.ID,
		Period:    march,
		Lines:     f.poolLines(),
		Weights:   f.weights(),
		IssueDate: marchLast,
		Actor:     "controller@holdco",
	}
}

func TestMonthClose_RunsEveryStep(t *testing.T) {
	f := newFixture(t)
	f.withAgreements(t)

	result, err := f.engine.Close.RunMonthClose(f.ctx, f.closeInput())
	require.NoError(t, err)
	assert.Equal(t, intercompany.CloseRunCompleted, result.Run.Status)
	assert.Equal(t, intercompany.CloseStepLockPeriod, result.Run.LastStep)
	assert.Len(t, result.Invoices, 2)
	assert.Equal(t, 2, result.Run.InvoiceCount)

	pool, err := f.engine.CostPools.GetCostPool(f.ctx, f.groupID, result.PoolID)
	require.NoError(t, err)
	assert.Len(t, pool.Allocations, 2)

	locked, err := f.engine.Locks.IsLocked(f.ctx, f.groupID, f.holdco.ID, march)
	require.NoError(t, err)
	assert.True(t, locked)

	latest, err := f.engine.Close.LatestRun(f.ctx, f.groupID, f.holdco.ID, march)
	require.NoError(t, err)
	assert.Equal(t, result.Run.ID, latest.ID)
	assert.NotNil(t, latest.FinishedAt)
}

func TestMonthClose_StopsAtFirstFailure(t *testing.T) {
	f := newFixture(t)
	// no agreements: generation cannot price the allocation

	_, err := f.engine.Close.RunMonthClose(f.ctx, f.closeInput())
	require.Error(t, err)
	closeErr, ok := finance.IsCloseError(err)
	require.True(t, ok)
	assert.Equal(t, intercompany.CloseStepGenerateInvoices, closeErr.Step)
	assert.ErrorIs(t, err, shared.ErrNotConfigured)

	latest, err := f.engine.Close.LatestRun(f.ctx, f.groupID, f.holdco.ID, march)
	require.NoError(t, err)
	assert.Equal(t, intercompany.CloseRunFailed, latest.Status)
	assert.Equal(t, intercompany.CloseStepGenerateInvoices, latest.FailedStep)
	assert.NotEmpty(t, latest.ErrorMessage)

	locked, err := f.engine.Locks.IsLocked(f.ctx, f.groupID, f.holdco.ID, march)
	require.NoError(t, err)
	assert.False(t, locked)

	// fixing the configuration and re-running completes the close
	f.withAgreements(t)
	result, err := f.engine.Close.RunMonthClose(f.ctx, f.closeInput())
	require.NoError(t, err)
	assert.Equal(t, intercompany.CloseRunCompleted, result.Run.Status)
}

func TestMonthClose_LockedPeriod(t *testing.T) {
	f := newFixture(t)
	f.withAgreements(t)
	_, err := f.engine.Close.RunMonthClose(f.ctx, f.closeInput())
	require.NoError(t, err)

	_, err = f.engine.Close.RunMonthClose(f.ctx, f.closeInput())
	closeErr, ok := finance.IsCloseError(err)
	require.True(t, ok)
	assert.Equal(t, intercompany.CloseStepAssertUnlocked, closeErr.Step)
	assert.ErrorIs(t, err, shared.ErrPeriodLocked)
}

func TestMonthClose_InvalidWeightsFailAtPoolStep(t *testing.T) {
	f := newFixture(t)
	in := f.closeInput()
	in.Weights = []intercompany.WeightInput{{RecipientID: f.retail.ID, Weight: dec("0.7")}}

	_, err := f.engine.Close.RunMonthClose(f.ctx, in)
	closeErr, ok := finance.IsCloseError(err)
	require.True(t, ok)
	assert.Equal(t, intercompany.CloseStepCreatePool, closeErr.Step)
	assert.ErrorIs(t, err, shared.ErrInvalidAllocation)
}

func TestMonthClose_ConcurrentRunRefused(t *testing.T) {
	f := newFixtureWithLocker(t, busyLocker{})

	_, err := f.engine.Close.RunMonthClose(f.ctx, f.closeInput())
	assert.ErrorIs(t, err, shared.ErrCloseInProgress)
	_, ok := finance.IsCloseError(err)
	assert.False(t, ok)

	_, err = f.engine.Close.LatestRun(f.ctx, f.groupID, f.holdco.ID, march)
	assert.ErrorIs(t, err, shared.ErrNotFound, "a refused close records no run")
}
