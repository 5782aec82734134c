package intercompany

import (
	"testing"

	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newPool(t *testing.T) *CostPool {
	t.Helper()
	pool, err := NewCostPool(uuid.New(), uuid.New(), valueobject.MustParsePeriod("2025-03"))
	require.NoError(t, err)
	return pool
}

func TestCostPool_ScenarioAllocation(t *testing.T) {
	pool := newPool(t)
	r1, r2 := uuid.New(), uuid.New()

	require.NoError(t, pool.ReplaceLines([]LineInput{
		{Category: "rent", Amount: dec("1000")},
		{Category: "staff", Amount: dec("2000")},
	}))
	assert.True(t, pool.TotalCost.Equal(dec("3000")))

	require.NoError(t, pool.UpsertRule([]WeightInput{
		{RecipientID: r1, Weight: dec("0.6")},
		{RecipientID: r2, Weight: dec("0.4")},
	}, DefaultWeightTolerance))
	require.NoError(t, pool.Allocate())

	require.Len(t, pool.Allocations, 2)
	got := map[uuid.UUID]decimal.Decimal{}
	for _, a := range pool.Allocations {
		got[a.RecipientID] = a.AllocatedCost
	}
	assert.True(t, got[r1].Equal(dec("1800")), "r1 got %s", got[r1])
	assert.True(t, got[r2].Equal(dec("1200")), "r2 got %s", got[r2])
	assert.True(t, pool.TotalAllocated().Equal(pool.TotalCost))
}

func TestCostPool_AllocationKeepsFullPrecision(t *testing.T) {
	pool := newPool(t)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	require.NoError(t, pool.ReplaceLines([]LineInput{{Category: "it", Amount: dec("100.00")}}))
	require.NoError(t, pool.UpsertRule([]WeightInput{
		{RecipientID: ids[0], Weight: dec("0.3333")},
		{RecipientID: ids[1], Weight: dec("0.3333")},
		{RecipientID: ids[2], Weight: dec("0.3334")},
	}, DefaultWeightTolerance))
	require.NoError(t, pool.Allocate())

	assert.Equal(t, "33.33", pool.Allocations[0].AllocatedCost.String())
	assert.Equal(t, "33.34", pool.Allocations[2].AllocatedCost.String())
	assert.True(t, pool.TotalAllocated().Equal(dec("100")))
}

func TestValidateWeights(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	tests := []struct {
		name    string
		weights []WeightInput
		wantErr bool
	}{
		{"sum exactly one", []WeightInput{{a, dec("0.5")}, {b, dec("0.5")}}, false},
		{"sum within upper tolerance", []WeightInput{{a, dec("0.6")}, {b, dec("0.401")}}, false},
		{"sum within lower tolerance", []WeightInput{{a, dec("0.6")}, {b, dec("0.399")}}, false},
		{"sum above tolerance", []WeightInput{{a, dec("0.6")}, {b, dec("0.402")}}, true},
		{"sum below tolerance", []WeightInput{{a, dec("0.5")}, {b, dec("0.4")}}, true},
		{"weight above one", []WeightInput{{a, dec("1.2")}, {b, dec("-0.2")}}, true},
		{"duplicate recipient", []WeightInput{{a, dec("0.5")}, {a, dec("0.5")}}, true},
		{"empty", []WeightInput{}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateWeights(tc.weights, DefaultWeightTolerance)
			if tc.wantErr {
				assert.ErrorIs(t, err, shared.ErrInvalidAllocation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCostPool_AllocateWithoutRule(t *testing.T) {
	pool := newPool(t)
	require.NoError(t, pool.ReplaceLines([]LineInput{{Category: "rent", Amount: dec("10")}}))

	assert.ErrorIs(t, pool.Allocate(), shared.ErrNotConfigured)

	// A rule with no weights is still not configured.
	require.NoError(t, pool.UpsertRule(nil, DefaultWeightTolerance))
	assert.ErrorIs(t, pool.Allocate(), shared.ErrNotConfigured)
}

func TestCostPool_UpsertRuleNilKeepsWeights(t *testing.T) {
	pool := newPool(t)
	r := uuid.New()
	require.NoError(t, pool.UpsertRule([]WeightInput{{RecipientID: r, Weight: dec("1")}}, DefaultWeightTolerance))
	ruleID := pool.Rule.ID

	require.NoError(t, pool.UpsertRule(nil, DefaultWeightTolerance))
	assert.Equal(t, ruleID, pool.Rule.ID)
	assert.Equal(t, []uuid.UUID{r}, pool.RecipientIDs())
}

func TestCostPool_ReplaceLinesValidation(t *testing.T) {
	pool := newPool(t)

	assert.ErrorIs(t, pool.ReplaceLines(nil), shared.ErrBadRequest)
	assert.ErrorIs(t, pool.ReplaceLines([]LineInput{{Category: " ", Amount: dec("1")}}), shared.ErrBadRequest)
	assert.ErrorIs(t, pool.ReplaceLines([]LineInput{{Category: "rent", Amount: dec("-1")}}), shared.ErrBadRequest)

	require.NoError(t, pool.ReplaceLines([]LineInput{{Category: "rent", Amount: dec("10.005")}}))
	assert.Equal(t, "10.01", pool.TotalCost.StringFixed(2))
}
