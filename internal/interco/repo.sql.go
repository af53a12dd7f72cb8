package interco

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/interco/internal/accounting/shared"
)

// Repository reads vendor bills and applies the field-level updates the
// generator needs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const qualifyingLinesSQL = `SELECT l.bill_id, l.line_no, b.subsidiary_id, l.destination_subsidiary_id,
	l.interco_entity_used_id, l.account_id, l.department_id, l.location_id,
	l.destination_department_id, l.destination_location_id, COALESCE(l.memo, ''),
	l.amount::text, b.vendor_id, COALESCE(v.name, ''), b.tran_date, b.posting_period_id, b.linked_icje_id
FROM vendor_bill_lines l
JOIN vendor_bills b ON b.id = l.bill_id
LEFT JOIN vendors v ON v.id = b.vendor_id
WHERE l.bill_id = ANY($1)
	AND NOT l.mainline AND NOT l.cogs AND NOT l.taxline AND NOT l.shipping
ORDER BY l.bill_id, l.line_no`

// QualifyingLines returns the expense lines of the given bills, excluding
// mainline, COGS, tax and shipping rows.
func (r *Repository) QualifyingLines(ctx context.Context, billIDs []ID) ([]SourceLine, error) {
	ids := make([]int64, 0, len(billIDs))
	for _, id := range billIDs {
		ids = append(ids, id.Int64())
	}
	rows, err := r.pool.Query(ctx, qualifyingLinesSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("query qualifying lines: %w", err)
	}
	defer rows.Close()

	var lines []SourceLine
	for rows.Next() {
		var (
			line                                 SourceLine
			billID                               int64
			subsidiary, destination, entityUsed  *int64
			account, department, location        *int64
			destDepartment, destLocation, vendor *int64
			period, linked                       *int64
			amount                               *string
		)
		if err := rows.Scan(&billID, &line.LineNo, &subsidiary, &destination,
			&entityUsed, &account, &department, &location,
			&destDepartment, &destLocation, &line.Memo,
			&amount, &vendor, &line.CounterpartyName, &line.TranDate, &period, &linked); err != nil {
			return nil, err
		}
		line.BillID = ID(billID)
		line.Subsidiary = idOf(subsidiary)
		line.DestinationSubsidiary = idOf(destination)
		line.IntercoEntityUsed = idOf(entityUsed)
		line.AccountID = idOf(account)
		line.Department = idOf(department)
		line.Location = idOf(location)
		line.DestinationDepartment = idOf(destDepartment)
		line.DestinationLocation = idOf(destLocation)
		line.CounterpartyID = idOf(vendor)
		line.PostingPeriodID = idOf(period)
		line.LinkedJournalID = idOf(linked)
		line.Amount, err = parseAmount(amount)
		if err != nil {
			return nil, fmt.Errorf("bill %d line %d amount: %w", billID, line.LineNo, err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// LinkJournal stores the back-link and clears any previous error marker.
func (r *Repository) LinkJournal(ctx context.Context, billID, journalID ID) error {
	return r.updateBill(ctx, `UPDATE vendor_bills SET linked_icje_id = $2, ic_error = NULL, updated_at = NOW() WHERE id = $1`, billID.Int64(), journalID.Int64())
}

// ClearLink removes the back-link and error marker.
func (r *Repository) ClearLink(ctx context.Context, billID ID) error {
	return r.updateBill(ctx, `UPDATE vendor_bills SET linked_icje_id = NULL, ic_error = NULL, updated_at = NOW() WHERE id = $1`, billID.Int64())
}

// SetErrorMarker writes a human readable failure message onto the bill.
func (r *Repository) SetErrorMarker(ctx context.Context, billID ID, message string) error {
	return r.updateBill(ctx, `UPDATE vendor_bills SET ic_error = $2, updated_at = NOW() WHERE id = $1`, billID.Int64(), message)
}

func (r *Repository) updateBill(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrBillNotFound
	}
	return nil
}

// InterEntityPartner returns the interco partner configured on a subsidiary.
func (r *Repository) InterEntityPartner(ctx context.Context, subsidiaryID ID) (ID, error) {
	var partner *int64
	err := r.pool.QueryRow(ctx, `SELECT interco_entity_id FROM subsidiaries WHERE id = $1`, subsidiaryID.Int64()).Scan(&partner)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.ErrSubsidiaryNotFound
	}
	if err != nil {
		return 0, err
	}
	return idOf(partner), nil
}

// BillSnapshot loads what the trigger needs to decide on generation.
func (r *Repository) BillSnapshot(ctx context.Context, billID ID) (BillSnapshot, error) {
	var snap BillSnapshot
	var linked *int64
	err := r.pool.QueryRow(ctx, `SELECT linked_icje_id FROM vendor_bills WHERE id = $1`, billID.Int64()).Scan(&linked)
	if errors.Is(err, pgx.ErrNoRows) {
		return BillSnapshot{}, shared.ErrBillNotFound
	}
	if err != nil {
		return BillSnapshot{}, err
	}
	snap.LinkedJournalID = idOf(linked)

	rows, err := r.pool.Query(ctx, `SELECT destination_subsidiary_id FROM vendor_bill_lines
WHERE bill_id = $1 AND NOT mainline AND destination_subsidiary_id IS NOT NULL ORDER BY line_no`, billID.Int64())
	if err != nil {
		return BillSnapshot{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var dest int64
		if err := rows.Scan(&dest); err != nil {
			return BillSnapshot{}, err
		}
		snap.Destinations = append(snap.Destinations, ID(dest))
	}
	return snap, rows.Err()
}

func idOf(v *int64) ID {
	if v == nil {
		return 0
	}
	return ID(*v)
}

func parseAmount(v *string) (decimal.NullDecimal, error) {
	if v == nil || !present(*v) {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*v)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
