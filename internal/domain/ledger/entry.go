package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SourceType tags entries with the document that produced them
type SourceType string

const (
	SourceInvoice SourceType = "INVOICE"
)

// Source identifies a posting event; entries are replaced per source
type Source struct {
	Type SourceType
	Ref  uuid.UUID
}

// String returns "TYPE:ref"
func (s Source) String() string {
	return fmt.Sprintf("%s:%s", s.Type, s.Ref)
}

// Entry is one debit or credit row
type Entry struct {
	ID          uuid.UUID
	GroupID     uuid.UUID
	CompanyID   uuid.UUID
	Period      valueobject.Period
	EntryDate   time.Time
	AccountID   uuid.UUID
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Memo        string
	SourceType  SourceType
	SourceRef   uuid.UUID
	CreatedAt   time.Time
}

// Net returns debit minus credit
func (e Entry) Net() decimal.Decimal {
	return e.Debit.Sub(e.Credit)
}

// Posting is the balanced set of entries written for one source
type Posting struct {
	Source  Source
	Entries []Entry
}

// NewPosting starts an empty posting for a source
func NewPosting(src Source) *Posting {
	return &Posting{Source: src}
}

// Line describes one side of a posting before it becomes an Entry
type Line struct {
	GroupID   uuid.UUID
	CompanyID uuid.UUID
	Period    valueobject.Period
	EntryDate time.Time
	Account   *Account
	Memo      string
}

// Debit appends a debit row
func (p *Posting) Debit(l Line, amount decimal.Decimal) {
	p.add(l, valueobject.Round2(amount), decimal.Zero)
}

// Credit appends a credit row
func (p *Posting) Credit(l Line, amount decimal.Decimal) {
	p.add(l, decimal.Zero, valueobject.Round2(amount))
}

func (p *Posting) add(l Line, debit, credit decimal.Decimal) {
	p.Entries = append(p.Entries, Entry{
		ID:          uuid.New(),
		GroupID:     l.GroupID,
		CompanyID:   l.CompanyID,
		Period:      l.Period,
		EntryDate:   valueobject.DateOnly(l.EntryDate),
		AccountID:   l.Account.ID,
		AccountCode: l.Account.Code,
		Debit:       debit,
		Credit:      credit,
		Memo:        l.Memo,
		SourceType:  p.Source.Type,
		SourceRef:   p.Source.Ref,
		CreatedAt:   time.Now().UTC(),
	})
}

// Totals returns the summed debits and credits
func (p *Posting) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, e := range p.Entries {
		debit = debit.Add(e.Debit)
		credit = credit.Add(e.Credit)
	}
	return debit, credit
}

// Validate enforces sum(debit) == sum(credit) with non-negative, one-sided rows.
func (p *Posting) Validate() error {
	for _, e := range p.Entries {
		if e.Debit.IsNegative() || e.Credit.IsNegative() {
			return fmt.Errorf("posting %s: negative amount on account %s", p.Source, e.AccountCode)
		}
		if e.Debit.IsPositive() && e.Credit.IsPositive() {
			return fmt.Errorf("posting %s: entry on %s is both debit and credit", p.Source, e.AccountCode)
		}
	}
	debit, credit := p.Totals()
	if !debit.Equal(credit) {
		return fmt.Errorf("posting %s is unbalanced: debit %s, credit %s", p.Source, debit.StringFixed(2), credit.StringFixed(2))
	}
	return nil
}

// EntryFilter narrows entry lookups
type EntryFilter struct {
	CompanyID *uuid.UUID
	Period    *valueobject.Period
	Source    *Source
}

// EntryRepository persists ledger entries
type EntryRepository interface {
	FindAllForGroup(ctx context.Context, groupID uuid.UUID, filter EntryFilter) ([]Entry, error)
	DeleteBySource(ctx context.Context, src Source) error
	CreateAll(ctx context.Context, entries []Entry) error
}
