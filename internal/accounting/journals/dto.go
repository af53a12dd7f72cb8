package journals

import (
	"fmt"

	"github.com/odyssey-erp/interco/internal/accounting/shared"
	"github.com/shopspring/decimal"
)

// Validate ensures the document balances as a whole and per subsidiary.
func (d Document) Validate() error {
	if d.Subsidiary <= 0 {
		return fmt.Errorf("accounting: subsidiary required")
	}
	if d.Date.IsZero() {
		return fmt.Errorf("accounting: date required")
	}
	if d.BillID <= 0 {
		return fmt.Errorf("accounting: source bill required")
	}
	if len(d.Postings) < 2 {
		return shared.ErrTooFewLines
	}
	perSubsidiary := make(map[int64]decimal.Decimal)
	for idx, p := range d.Postings {
		if p.Subsidiary <= 0 {
			return fmt.Errorf("accounting: line %d missing subsidiary", idx)
		}
		if p.AccountID <= 0 {
			return fmt.Errorf("accounting: line %d missing account", idx)
		}
		if p.Debit.IsNegative() || p.Credit.IsNegative() {
			return fmt.Errorf("accounting: line %d negative amount", idx)
		}
		if p.Debit.IsPositive() == p.Credit.IsPositive() {
			return fmt.Errorf("accounting: line %d must carry exactly one of debit or credit", idx)
		}
		perSubsidiary[p.Subsidiary] = perSubsidiary[p.Subsidiary].Add(p.Debit).Sub(p.Credit)
	}
	debit, credit := d.Totals()
	if !debit.Equal(credit) {
		return shared.ErrUnbalanced
	}
	for sub, net := range perSubsidiary {
		if !net.IsZero() {
			return fmt.Errorf("subsidiary %d off by %s: %w", sub, net.String(), shared.ErrSubsidiaryUnbalanced)
		}
	}
	return nil
}
