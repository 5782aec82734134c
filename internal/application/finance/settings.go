package finance

import (
	"strings"
	"time"

	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// Settings holds the deployment-scoped finance rules
type Settings struct {
	// ReportingOnlyCodes are account codes postings may never target.
	ReportingOnlyCodes []string
	WhtTolerance       decimal.Decimal
	WeightTolerance    decimal.Decimal
	DefaultDueDays     int
	Currency           string
	CloseLockTTL       time.Duration
}

// DefaultSettings returns the rules used when nothing is configured
func DefaultSettings() Settings {
	return Settings{
		ReportingOnlyCodes: []string{ledger.CodeReportingRevenue},
		WhtTolerance:       intercompany.DefaultWhtTolerance,
		WeightTolerance:    intercompany.DefaultWeightTolerance,
		DefaultDueDays:     30,
		Currency:           "USD",
		CloseLockTTL:       10 * time.Minute,
	}
}

// withDefaults fills zero fields from DefaultSettings
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.ReportingOnlyCodes == nil {
		s.ReportingOnlyCodes = d.ReportingOnlyCodes
	}
	if s.WhtTolerance.IsZero() {
		s.WhtTolerance = d.WhtTolerance
	}
	if s.WeightTolerance.IsZero() {
		s.WeightTolerance = d.WeightTolerance
	}
	if s.DefaultDueDays <= 0 {
		s.DefaultDueDays = d.DefaultDueDays
	}
	if strings.TrimSpace(s.Currency) == "" {
		s.Currency = d.Currency
	}
	if s.CloseLockTTL <= 0 {
		s.CloseLockTTL = d.CloseLockTTL
	}
	return s
}
