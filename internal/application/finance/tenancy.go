package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/icledger/internal/domain/group"
	"github.com/erp/icledger/internal/domain/ledger"
	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/infrastructure/logger"
	"github.com/erp/icledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenancyGuard verifies that companies belong to the calling group
type TenancyGuard struct {
	repos Repositories
	scope TransactionScope
}

// NewTenancyGuard creates a TenancyGuard
func NewTenancyGuard(repos Repositories, scope TransactionScope) *TenancyGuard {
	return &TenancyGuard{repos: repos, scope: scope}
}

// AssertCompanyInGroup returns the company or NOT_FOUND
func (g *TenancyGuard) AssertCompanyInGroup(ctx context.Context, groupID, companyID uuid.UUID) (*group.Subsidiary, error) {
	return companyInGroup(ctx, g.repos.Subsidiaries(), groupID, companyID)
}

// AssertCompaniesInGroup returns the companies in the order requested, or
// NOT_FOUND naming the first id outside the group.
func (g *TenancyGuard) AssertCompaniesInGroup(ctx context.Context, groupID uuid.UUID, companyIDs []uuid.UUID) ([]group.Subsidiary, error) {
	return companiesInGroup(ctx, g.repos.Subsidiaries(), groupID, companyIDs)
}

// ListSubsidiaries returns every subsidiary of the group
func (g *TenancyGuard) ListSubsidiaries(ctx context.Context, groupID uuid.UUID) ([]group.Subsidiary, error) {
	subs, err := g.repos.Subsidiaries().FindAllForGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subsidiaries: %w", err)
	}
	return subs, nil
}

// RegisterSubsidiary creates a subsidiary and provisions its chart of
// accounts in the same transaction.
func (g *TenancyGuard) RegisterSubsidiary(ctx context.Context, groupID uuid.UUID, name string, role group.Role) (*group.Subsidiary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tenancy", "register_subsidiary")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrGroupID, groupID.String(), "role", string(role))

	sub, err := group.NewSubsidiary(groupID, name, role)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	err = g.scope.Execute(ctx, func(repos Repositories) error {
		if err := repos.Subsidiaries().Save(ctx, sub); err != nil {
			return fmt.Errorf("failed to save subsidiary: %w", err)
		}
		_, err := seedChart(ctx, repos.Accounts(), groupID, sub.ID)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	logger.L(ctx).Info("Subsidiary registered",
		zap.String("company_id", sub.ID.String()),
		zap.String("role", string(sub.Role)),
	)
	return sub, nil
}

func companyInGroup(ctx context.Context, subs group.SubsidiaryRepository, groupID, companyID uuid.UUID) (*group.Subsidiary, error) {
	if companyID == uuid.Nil {
		return nil, shared.BadRequestf("company id is required")
	}
	sub, err := subs.FindByIDForGroup(ctx, groupID, companyID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NotFoundf("company %s does not belong to group %s", companyID, groupID)
		}
		return nil, fmt.Errorf("failed to load company %s: %w", companyID, err)
	}
	return sub, nil
}

func companiesInGroup(ctx context.Context, subs group.SubsidiaryRepository, groupID uuid.UUID, companyIDs []uuid.UUID) ([]group.Subsidiary, error) {
	if len(companyIDs) == 0 {
		return nil, nil
	}
	found, err := subs.FindByIDsForGroup(ctx, groupID, companyIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load companies: %w", err)
	}
	byID := make(map[uuid.UUID]group.Subsidiary, len(found))
	for _, s := range found {
		byID[s.ID] = s
	}
	result := make([]group.Subsidiary, 0, len(companyIDs))
	for _, id := range companyIDs {
		s, ok := byID[id]
		if !ok {
			return nil, shared.NotFoundf("company %s does not belong to group %s", id, groupID)
		}
		result = append(result, s)
	}
	return result, nil
}

// seedChart creates the standard accounts the company does not have yet
func seedChart(ctx context.Context, accounts ledger.AccountRepository, groupID, companyID uuid.UUID) ([]ledger.Account, error) {
	existing, err := accounts.FindByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart: %w", err)
	}
	have := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		have[a.Code] = struct{}{}
	}
	for _, entry := range ledger.StandardChart {
		if _, ok := have[entry.Code]; ok {
			continue
		}
		acct, err := ledger.NewAccount(groupID, companyID, entry)
		if err != nil {
			return nil, err
		}
		if err := accounts.Save(ctx, acct); err != nil {
			return nil, fmt.Errorf("failed to save account %s: %w", entry.Code, err)
		}
		existing = append(existing, *acct)
	}
	return existing, nil
}
