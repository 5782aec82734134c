package ledger

import (
	"sort"

	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountBalance is one account's activity within a period
type AccountBalance struct {
	AccountID uuid.UUID       `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Type      AccountType     `json:"type"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Balance   decimal.Decimal `json:"balance"` // Debit - Credit
}

// TrialBalance lists a company's per-account activity for a period
type TrialBalance struct {
	CompanyID    uuid.UUID          `json:"company_id"`
	Period       valueobject.Period `json:"period"`
	Accounts     []AccountBalance   `json:"accounts"`
	TotalDebits  decimal.Decimal    `json:"total_debits"`
	TotalCredits decimal.Decimal    `json:"total_credits"`
	Entries      []Entry            `json:"-"`
}

// IsBalanced returns true when total debits equal total credits
func (tb *TrialBalance) IsBalanced() bool {
	return tb.TotalDebits.Equal(tb.TotalCredits)
}

// BuildTrialBalance aggregates entries by account, ordered by code.
// Accounts without activity are omitted.
func BuildTrialBalance(companyID uuid.UUID, period valueobject.Period, accounts []Account, entries []Entry) *TrialBalance {
	byID := make(map[uuid.UUID]Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}

	balances := make(map[uuid.UUID]*AccountBalance)
	tb := &TrialBalance{
		CompanyID:    companyID,
		Period:       period,
		TotalDebits:  decimal.Zero,
		TotalCredits: decimal.Zero,
		Entries:      entries,
	}
	for _, e := range entries {
		b, ok := balances[e.AccountID]
		if !ok {
			acct := byID[e.AccountID]
			code := acct.Code
			if code == "" {
				code = e.AccountCode
			}
			b = &AccountBalance{
				AccountID: e.AccountID,
				Code:      code,
				Name:      acct.Name,
				Type:      acct.Type,
				Debit:     decimal.Zero,
				Credit:    decimal.Zero,
			}
			balances[e.AccountID] = b
		}
		b.Debit = b.Debit.Add(e.Debit)
		b.Credit = b.Credit.Add(e.Credit)
		tb.TotalDebits = tb.TotalDebits.Add(e.Debit)
		tb.TotalCredits = tb.TotalCredits.Add(e.Credit)
	}

	tb.Accounts = make([]AccountBalance, 0, len(balances))
	for _, b := range balances {
		b.Balance = b.Debit.Sub(b.Credit)
		tb.Accounts = append(tb.Accounts, *b)
	}
	sort.Slice(tb.Accounts, func(i, j int) bool { return tb.Accounts[i].Code < tb.Accounts[j].Code })
	return tb
}
