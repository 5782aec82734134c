package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/erp/icledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Operational account codes
const (
	CodeIntercompanyRevenue = "IC_REV"
	CodeIntercompanyExpense = "IC_EXP"
	CodeSalesRevenue        = "REV_SALES"
	CodeExternalReceivable  = "AR_EXTERNAL"
	CodeCostOfGoods         = "COGS"
	CodeOperatingExpense    = "OPEX"
	// CodeReportingRevenue is the consolidated revenue line used only in reports
	CodeReportingRevenue = "4000"
)

// IntercompanyCodes are eliminated from group P&L unless explicitly included
var IntercompanyCodes = []string{CodeIntercompanyRevenue, CodeIntercompanyExpense}

// AccountType classifies a ledger account for reporting
type AccountType string

const (
	AccountTypeRevenue AccountType = "REVENUE"
	AccountTypeCOGS    AccountType = "COGS"
	AccountTypeExpense AccountType = "EXPENSE"
	AccountTypeAsset   AccountType = "ASSET"
)

// IsValid checks if the account type is known
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeRevenue, AccountTypeCOGS, AccountTypeExpense, AccountTypeAsset:
		return true
	}
	return false
}

// IsProfitAndLoss reports whether balances of this type flow into the P&L
func (t AccountType) IsProfitAndLoss() bool {
	return t == AccountTypeRevenue || t == AccountTypeCOGS || t == AccountTypeExpense
}

// ChartEntry is one account in the standard chart
type ChartEntry struct {
	Code string
	Name string
	Type AccountType
}

// StandardChart is provisioned for every subsidiary
var StandardChart = []ChartEntry{
	{Code: CodeIntercompanyRevenue, Name: "Intercompany revenue", Type: AccountTypeRevenue},
	{Code: CodeIntercompanyExpense, Name: "Intercompany expense", Type: AccountTypeExpense},
	{Code: CodeSalesRevenue, Name: "Sales revenue", Type: AccountTypeRevenue},
	{Code: CodeExternalReceivable, Name: "Trade receivables - external", Type: AccountTypeAsset},
	{Code: CodeCostOfGoods, Name: "Cost of goods sold", Type: AccountTypeCOGS},
	{Code: CodeOperatingExpense, Name: "Operating expenses", Type: AccountTypeExpense},
	{Code: CodeReportingRevenue, Name: "Revenue (reporting)", Type: AccountTypeRevenue},
}

// Account is a ledger account, unique per (company, code)
type Account struct {
	ID        uuid.UUID
	GroupID   uuid.UUID
	CompanyID uuid.UUID
	Code      string
	Name      string
	Type      AccountType
	CreatedAt time.Time
}

// NewAccount creates an account for a company
func NewAccount(groupID, companyID uuid.UUID, entry ChartEntry) (*Account, error) {
	code := strings.TrimSpace(entry.Code)
	if code == "" {
		return nil, shared.BadRequestf("account code is required")
	}
	if !entry.Type.IsValid() {
		return nil, shared.BadRequestf("unknown account type %q", entry.Type)
	}
	return &Account{
		ID:        uuid.New(),
		GroupID:   groupID,
		CompanyID: companyID,
		Code:      code,
		Name:      entry.Name,
		Type:      entry.Type,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// CodeSet is a set of account codes
type CodeSet map[string]struct{}

// NewCodeSet builds a set from a list of codes
func NewCodeSet(codes ...string) CodeSet {
	set := make(CodeSet, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c != "" {
			set[c] = struct{}{}
		}
	}
	return set
}

// Contains reports whether code is in the set
func (s CodeSet) Contains(code string) bool {
	_, ok := s[code]
	return ok
}

// AccountRepository persists ledger accounts
type AccountRepository interface {
	FindByCompanyCode(ctx context.Context, companyID uuid.UUID, code string) (*Account, error)
	FindByCompany(ctx context.Context, companyID uuid.UUID) ([]Account, error)
	FindByGroup(ctx context.Context, groupID uuid.UUID) ([]Account, error)
	Save(ctx context.Context, a *Account) error
}
