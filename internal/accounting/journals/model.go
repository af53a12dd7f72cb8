package journals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SourceModule tags journals generated from vendor bill distribution.
const SourceModule = "AP.VENDOR_BILL.ICJE"

// Document is an intercompany journal entry generated from a vendor bill.
type Document struct {
	ID           int64
	Subsidiary   int64
	Date         time.Time
	PeriodID     int64
	Memo         string
	BillID       int64
	RunID        uuid.UUID
	ReversalDate *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Postings     []Posting
}

// Posting stores a debit or credit amount for one subsidiary and account.
type Posting struct {
	ID         int64
	JournalID  int64
	Subsidiary int64
	AccountID  int64
	Department int64
	Location   int64
	Debit      decimal.Decimal
	Credit     decimal.Decimal
	Memo       string
	EntityID   int64
	EntityName string
}

// Reversed reports whether a reversal date has been recorded.
func (d Document) Reversed() bool {
	return d.ReversalDate != nil
}

// Totals sums debit and credit postings.
func (d Document) Totals() (debit, credit decimal.Decimal) {
	for _, p := range d.Postings {
		debit = debit.Add(p.Debit)
		credit = credit.Add(p.Credit)
	}
	return debit, credit
}
