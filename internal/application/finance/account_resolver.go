package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erp/icledger/internal/domain/ledger"
	"github.com/erp/icledger/internal/domain/shared"
	"github.com/erp/icledger/internal/infrastructure/logger"
	"github.com/erp/icledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccountResolver maps (company, code) to a ledger account and refuses
// codes reserved for reporting.
type AccountResolver struct {
	repos         Repositories
	scope         TransactionScope
	reportingOnly ledger.CodeSet
}

// NewAccountResolver creates an AccountResolver. reportingOnly lists the
// codes postings must never target.
func NewAccountResolver(repos Repositories, scope TransactionScope, reportingOnly []string) *AccountResolver {
	return &AccountResolver{
		repos:         repos,
		scope:         scope,
		reportingOnly: ledger.NewCodeSet(reportingOnly...),
	}
}

// SeedChart provisions the standard chart for a company. Existing
// accounts are left untouched.
func (r *AccountResolver) SeedChart(ctx context.Context, groupID, companyID uuid.UUID) ([]ledger.Account, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "account_resolver", "seed_chart")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrGroupID, groupID.String(), telemetry.SpanAttrCompanyID, companyID.String())

	var accounts []ledger.Account
	err := r.scope.Execute(ctx, func(repos Repositories) error {
		if _, err := companyInGroup(ctx, repos.Subsidiaries(), groupID, companyID); err != nil {
			return err
		}
		var err error
		accounts, err = seedChart(ctx, repos.Accounts(), groupID, companyID)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	logger.L(ctx).Info("Chart of accounts seeded",
		zap.String("company_id", companyID.String()),
		zap.Int("accounts", len(accounts)),
	)
	return accounts, nil
}

// Resolve returns the account for (company, code)
func (r *AccountResolver) Resolve(ctx context.Context, groupID, companyID uuid.UUID, code string) (*ledger.Account, error) {
	if _, err := companyInGroup(ctx, r.repos.Subsidiaries(), groupID, companyID); err != nil {
		return nil, err
	}
	return r.resolve(ctx, r.repos.Accounts(), companyID, code)
}

// resolve works on any account repository so postings can resolve inside
// their own transaction.
func (r *AccountResolver) resolve(ctx context.Context, accounts ledger.AccountRepository, companyID uuid.UUID, code string) (*ledger.Account, error) {
	code = strings.TrimSpace(code)
	if r.reportingOnly.Contains(code) {
		return nil, shared.NewDomainError(shared.CodeReportingOnly,
			fmt.Sprintf("account %s is reporting-only; post to the operational code instead", code))
	}
	acct, err := accounts.FindByCompanyCode(ctx, companyID, code)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NotFoundf("account %s is not set up for company %s", code, companyID)
		}
		return nil, fmt.Errorf("failed to resolve account %s: %w", code, err)
	}
	return acct, nil
}
