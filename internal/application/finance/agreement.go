package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/infrastructure/logger"
	"github.com/erp/icledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AgreementGovernor validates and stores intercompany agreements. Either
// the whole normalized agreement is written or nothing changes.
type AgreementGovernor struct {
	repos    Repositories
	scope    TransactionScope
	governor intercompany.Governor
}

// NewAgreementGovernor creates an AgreementGovernor. now drives the
// no-backdating rule; nil means time.Now.
func NewAgreementGovernor(repos Repositories, scope TransactionScope, now func() time.Time) *AgreementGovernor {
	return &AgreementGovernor{
		repos:    repos,
		scope:    scope,
		governor: intercompany.NewGovernor(now),
	}
}

// CreateAgreement validates and persists a new agreement
func (g *AgreementGovernor) CreateAgreement(ctx context.Context, groupID uuid.UUID, terms intercompany.AgreementTerms) (*intercompany.Agreement, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "agreement_governor", "create")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrGroupID, groupID.String(), "agreement_type", string(terms.Type))

	var agreement *intercompany.Agreement
	err := g.scope.Execute(ctx, func(repos Repositories) error {
		if err := g.validate(ctx, repos, groupID, terms, nil); err != nil {
			return err
		}
		agreement = intercompany.NewAgreement(groupID, terms)
		if err := repos.Agreements().Save(ctx, agreement); err != nil {
			return fmt.Errorf("failed to save agreement: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		logger.L(ctx).Warn("Agreement rejected", zap.String("type", string(terms.Type)), zap.Error(err))
		return nil, err
	}

	logger.L(ctx).Info("Agreement created",
		zap.String("agreement_id", agreement.ID.String()),
		zap.String("type", string(agreement.Type)),
		zap.String("pricing", string(agreement.Pricing.Model())),
	)
	return agreement, nil
}

// UpdateAgreement replaces an agreement's terms after validating them
// against the stored record.
func (g *AgreementGovernor) UpdateAgreement(ctx context.Context, groupID, agreementID uuid.UUID, terms intercompany.AgreementTerms) (*intercompany.Agreement, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "agreement_governor", "update")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrGroupID, groupID.String(), telemetry.SpanAttrAgreement, agreementID.String())

	var agreement *intercompany.Agreement
	err := g.scope.Execute(ctx, func(repos Repositories) error {
		var err error
		agreement, err = repos.Agreements().FindByIDForGroup(ctx, groupID, agreementID)
		if err != nil {
			return fmt.Errorf("failed to load agreement: %w", err)
		}
		if err := g.validate(ctx, repos, groupID, terms, agreement); err != nil {
			return err
		}
		agreement.Replace(terms)
		if err := repos.Agreements().Save(ctx, agreement); err != nil {
			return fmt.Errorf("failed to save agreement: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		logger.L(ctx).Warn("Agreement update rejected", zap.String("agreement_id", agreementID.String()), zap.Error(err))
		return nil, err
	}

	logger.L(ctx).Info("Agreement updated",
		zap.String("agreement_id", agreement.ID.String()),
		zap.Time("effective_from", agreement.EffectiveFrom),
	)
	return agreement, nil
}

// GetAgreement loads one agreement
func (g *AgreementGovernor) GetAgreement(ctx context.Context, groupID, agreementID uuid.UUID) (*intercompany.Agreement, error) {
	agreement, err := g.repos.Agreements().FindByIDForGroup(ctx, groupID, agreementID)
	if err != nil {
		return nil, fmt.Errorf("failed to load agreement: %w", err)
	}
	return agreement, nil
}

// ListAgreements returns the group's agreements matching filter
func (g *AgreementGovernor) ListAgreements(ctx context.Context, groupID uuid.UUID, filter intercompany.AgreementFilter) ([]intercompany.Agreement, error) {
	agreements, err := g.repos.Agreements().FindAllForGroup(ctx, groupID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list agreements: %w", err)
	}
	return agreements, nil
}

func (g *AgreementGovernor) validate(ctx context.Context, repos Repositories, groupID uuid.UUID, terms intercompany.AgreementTerms, existing *intercompany.Agreement) error {
	provider, err := companyInGroup(ctx, repos.Subsidiaries(), groupID, terms.ProviderID)
	if err != nil {
		return err
	}
	recipient, err := companyInGroup(ctx, repos.Subsidiaries(), groupID, terms.RecipientID)
	if err != nil {
		return err
	}
	return g.governor.Validate(terms, provider, recipient, existing)
}
