package finance

import (
	"context"
	"fmt"

	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/erp/icledger/internal/infrastructure/logger"
	"github.com/erp/icledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CostPoolAllocator builds a holdco's shared-cost pool and splits it
// across recipients by fixed weights.
type CostPoolAllocator struct {
	repos     Repositories
	scope     TransactionScope
	tolerance decimal.Decimal
}

// NewCostPoolAllocator creates a CostPoolAllocator
func NewCostPoolAllocator(repos Repositories, scope TransactionScope, weightTolerance decimal.Decimal) *CostPoolAllocator {
	return &CostPoolAllocator{repos: repos, scope: scope, tolerance: weightTolerance}
}

// CreateCostPoolInput is the request to create or replace a pool.
// A nil Weights keeps the existing rule's weights.
type CreateCostPoolInput struct {
	GroupID  uuid.UUID
	HoldcoID uuid.UUID
	Period   valueobject.Period
	Lines    []intercompany.LineInput
	Weights  []intercompany.WeightInput
}

// CreateCostPool upserts the pool for (holdco, period) with replace-all
// line semantics. Re-running with the same input is a no-op in effect.
func (a *CostPoolAllocator) CreateCostPool(ctx context.Context, in CreateCostPoolInput) (*intercompany.CostPool, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cost_pool", "create")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrGroupID, in.GroupID.String(),
		telemetry.SpanAttrHoldcoID, in.HoldcoID.String(),
		telemetry.SpanAttrPeriod, in.Period.String(),
	)

	if in.Weights != nil {
		if err := intercompany.ValidateWeights(in.Weights, a.tolerance); err != nil {
			telemetry.RecordError(span, err)
			logger.L(ctx).Warn("Cost pool weights rejected", zap.Error(err))
			return nil, err
		}
	}

	var pool *intercompany.CostPool
	err := a.scope.Execute(ctx, func(repos Repositories) error {
		if _, err := companyInGroup(ctx, repos.Subsidiaries(), in.GroupID, in.HoldcoID); err != nil {
			return err
		}
		recipients := make([]uuid.UUID, 0, len(in.Weights))
		for _, w := range in.Weights {
			recipients = append(recipients, w.RecipientID)
		}
		if _, err := companiesInGroup(ctx, repos.Subsidiaries(), in.GroupID, recipients); err != nil {
			return err
		}

		var err error
		pool, err = repos.CostPools().FindByHoldcoPeriod(ctx, in.GroupID, in.HoldcoID, in.Period)
		if err != nil {
			return fmt.Errorf("failed to load cost pool: %w", err)
		}
		if pool == nil {
			pool, err = intercompany.NewCostPool(in.GroupID, in.HoldcoID, in.Period)
			if err != nil {
				return err
			}
		}
		if err := pool.ReplaceLines(in.Lines); err != nil {
			return err
		}
		if err := pool.UpsertRule(in.Weights, a.tolerance); err != nil {
			return err
		}
		if err := repos.CostPools().Save(ctx, pool); err != nil {
			return fmt.Errorf("failed to save cost pool: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrPoolID, pool.ID.String())
	logger.L(ctx).Info("Cost pool saved",
		zap.String("pool_id", pool.ID.String()),
		zap.String("period", pool.Period.String()),
		zap.String("total_cost", pool.TotalCost.StringFixed(2)),
		zap.Int("lines", len(pool.Lines)),
	)
	return pool, nil
}

// AllocateCostPool replaces the pool's allocations from its rule
func (a *CostPoolAllocator) AllocateCostPool(ctx context.Context, groupID, poolID uuid.UUID) (*intercompany.CostPool, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cost_pool", "allocate")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrGroupID, groupID.String(), telemetry.SpanAttrPoolID, poolID.String())

	var pool *intercompany.CostPool
	err := a.scope.Execute(ctx, func(repos Repositories) error {
		var err error
		pool, err = repos.CostPools().FindByIDForGroup(ctx, groupID, poolID)
		if err != nil {
			return fmt.Errorf("failed to load cost pool: %w", err)
		}
		if err := pool.Allocate(); err != nil {
			return err
		}
		if err := repos.CostPools().Save(ctx, pool); err != nil {
			return fmt.Errorf("failed to save allocations: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	logger.L(ctx).Info("Cost pool allocated",
		zap.String("pool_id", pool.ID.String()),
		zap.Int("recipients", len(pool.Allocations)),
		zap.String("allocated", pool.TotalAllocated().StringFixed(2)),
	)
	return pool, nil
}

// GetCostPool loads a pool with lines, rule and allocations
func (a *CostPoolAllocator) GetCostPool(ctx context.Context, groupID, poolID uuid.UUID) (*intercompany.CostPool, error) {
	pool, err := a.repos.CostPools().FindByIDForGroup(ctx, groupID, poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cost pool: %w", err)
	}
	return pool, nil
}
