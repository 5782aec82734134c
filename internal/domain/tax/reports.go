package tax

import (
	"sort"
	"time"

	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/domain/ledger"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WhtScheduleLine is the unremitted withholding for one tax type
type WhtScheduleLine struct {
	TaxType   intercompany.TaxType `json:"tax_type"`
	Amount    decimal.Decimal      `json:"amount"`
	NoteCount int                  `json:"note_count"`
}

// WhtSchedule is what an issuer still owes the tax authority for a period
type WhtSchedule struct {
	IssuerID uuid.UUID          `json:"issuer_id"`
	Period   valueobject.Period `json:"period"`
	Lines    []WhtScheduleLine  `json:"lines"`
	Total    decimal.Decimal    `json:"total"`
}

// BuildWhtSchedule groups unremitted notes by tax type
func BuildWhtSchedule(issuerID uuid.UUID, period valueobject.Period, notes []intercompany.WhtCreditNote) *WhtSchedule {
	byType := make(map[intercompany.TaxType]*WhtScheduleLine)
	total := decimal.Zero
	for i := range notes {
		n := &notes[i]
		if n.IsRemitted() {
			continue
		}
		line, ok := byType[n.TaxType]
		if !ok {
			line = &WhtScheduleLine{TaxType: n.TaxType, Amount: decimal.Zero}
			byType[n.TaxType] = line
		}
		line.Amount = line.Amount.Add(n.Amount)
		line.NoteCount++
		total = total.Add(n.Amount)
	}
	s := &WhtSchedule{
		IssuerID: issuerID,
		Period:   period,
		Lines:    make([]WhtScheduleLine, 0, len(byType)),
		Total:    valueobject.Round2(total),
	}
	for _, line := range byType {
		line.Amount = valueobject.Round2(line.Amount)
		s.Lines = append(s.Lines, *line)
	}
	sort.Slice(s.Lines, func(i, j int) bool { return s.Lines[i].TaxType < s.Lines[j].TaxType })
	return s
}

// RemittanceCSVRows renders remitted notes for archiving
func RemittanceCSVRows(notes []intercompany.WhtCreditNote) [][]string {
	rows := [][]string{{"note_id", "invoice_id", "issuer_id", "beneficiary_id", "period", "tax_type", "amount", "remittance_date", "receipt_ref"}}
	for _, n := range notes {
		date := ""
		if n.RemittanceDate != nil {
			date = n.RemittanceDate.Format(time.DateOnly)
		}
		rows = append(rows, []string{
			n.ID.String(), n.InvoiceID.String(), n.IssuerID.String(), n.BeneficiaryID.String(),
			n.Period.String(), string(n.TaxType), n.Amount.StringFixed(2), date, n.ReceiptRef,
		})
	}
	return rows
}

// Impact summarises one company's tax position for a period
type Impact struct {
	CompanyID    uuid.UUID          `json:"company_id"`
	Period       valueobject.Period `json:"period"`
	OutputVat    decimal.Decimal    `json:"output_vat"`
	InputVat     decimal.Decimal    `json:"input_vat"`
	NetVat       decimal.Decimal    `json:"net_vat"`
	WhtPayable   decimal.Decimal    `json:"wht_payable"`   // withheld by the company, owed to the authority
	WhtClaimable decimal.Decimal    `json:"wht_claimable"` // withheld from the company by its payers
}

// BuildImpact combines VAT from invoices and WHT from credit notes
func BuildImpact(companyID uuid.UUID, period valueobject.Period, invoices []intercompany.Invoice, notes []intercompany.WhtCreditNote) *Impact {
	output, input := SumVat(companyID, invoices)
	payable, claimable := decimal.Zero, decimal.Zero
	for _, n := range notes {
		if n.IssuerID == companyID {
			payable = payable.Add(n.Amount)
		}
		if n.BeneficiaryID == companyID {
			claimable = claimable.Add(n.Amount)
		}
	}
	return &Impact{
		CompanyID:    companyID,
		Period:       period,
		OutputVat:    output,
		InputVat:     input,
		NetVat:       valueobject.Round2(output.Sub(input)),
		WhtPayable:   valueobject.Round2(payable),
		WhtClaimable: valueobject.Round2(claimable),
	}
}

// PLLine is one account's contribution to the consolidated P&L
type PLLine struct {
	Code   string             `json:"code"`
	Type   ledger.AccountType `json:"type"`
	Amount decimal.Decimal    `json:"amount"`
}

// ConsolidatedPL is the group's profit and loss for a period
type ConsolidatedPL struct {
	GroupID             uuid.UUID          `json:"group_id"`
	Period              valueobject.Period `json:"period"`
	IncludeIntercompany bool               `json:"include_intercompany"`
	Revenue             decimal.Decimal    `json:"revenue"`
	COGS                decimal.Decimal    `json:"cogs"`
	Expenses            decimal.Decimal    `json:"expenses"`
	GrossProfit         decimal.Decimal    `json:"gross_profit"`
	NetIncome           decimal.Decimal    `json:"net_income"`
	Lines               []PLLine           `json:"lines"`
}

// BuildConsolidatedPL sums REVENUE, COGS and EXPENSE entries by account
// code. Revenue is credit minus debit; costs are debit minus credit.
// IC_REV and IC_EXP are skipped unless includeIntercompany is set.
func BuildConsolidatedPL(groupID uuid.UUID, period valueobject.Period, includeIntercompany bool, accounts []ledger.Account, entries []ledger.Entry) *ConsolidatedPL {
	types := make(map[uuid.UUID]ledger.Account, len(accounts))
	for _, a := range accounts {
		types[a.ID] = a
	}
	excluded := ledger.NewCodeSet()
	if !includeIntercompany {
		excluded = ledger.NewCodeSet(ledger.IntercompanyCodes...)
	}

	byCode := make(map[string]*PLLine)
	for _, e := range entries {
		acct, ok := types[e.AccountID]
		if !ok || !acct.Type.IsProfitAndLoss() || excluded.Contains(acct.Code) {
			continue
		}
		amount := e.Debit.Sub(e.Credit)
		if acct.Type == ledger.AccountTypeRevenue {
			amount = amount.Neg()
		}
		line, ok := byCode[acct.Code]
		if !ok {
			line = &PLLine{Code: acct.Code, Type: acct.Type, Amount: decimal.Zero}
			byCode[acct.Code] = line
		}
		line.Amount = line.Amount.Add(amount)
	}

	pl := &ConsolidatedPL{
		GroupID:             groupID,
		Period:              period,
		IncludeIntercompany: includeIntercompany,
		Revenue:             decimal.Zero,
		COGS:                decimal.Zero,
		Expenses:            decimal.Zero,
		Lines:               make([]PLLine, 0, len(byCode)),
	}
	for _, line := range byCode {
		line.Amount = valueobject.Round2(line.Amount)
		switch line.Type {
		case ledger.AccountTypeRevenue:
			pl.Revenue = pl.Revenue.Add(line.Amount)
		case ledger.AccountTypeCOGS:
			pl.COGS = pl.COGS.Add(line.Amount)
		case ledger.AccountTypeExpense:
			pl.Expenses = pl.Expenses.Add(line.Amount)
		}
		pl.Lines = append(pl.Lines, *line)
	}
	sort.Slice(pl.Lines, func(i, j int) bool { return pl.Lines[i].Code < pl.Lines[j].Code })
	pl.GrossProfit = pl.Revenue.Sub(pl.COGS)
	pl.NetIncome = pl.GrossProfit.Sub(pl.Expenses)
	return pl
}
