package journals

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/odyssey-erp/interco/internal/accounting/shared"
	"github.com/odyssey-erp/interco/internal/platform/db"
	"github.com/shopspring/decimal"
)

// Repository encapsulates DB operations for generated journals.
type Repository interface {
	Get(ctx context.Context, id int64) (Document, error)
	SetReversalDate(ctx context.Context, id int64, date time.Time) error
	ListUnreversed(ctx context.Context, billID int64) ([]int64, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction
type TxRepository interface {
	InsertJournalEntry(ctx context.Context, doc Document) (Document, error)
	InsertPostings(ctx context.Context, journalID int64, postings []Posting) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) Get(ctx context.Context, id int64) (Document, error) {
	var (
		doc      Document
		periodID *int64
	)
	err := r.db.QueryRow(ctx, `SELECT id, subsidiary_id, date, period_id, memo, bill_id, run_id, reversal_date, created_at, updated_at
FROM journal_entries WHERE id=$1 AND source_module=$2`, id, SourceModule).
		Scan(&doc.ID, &doc.Subsidiary, &doc.Date, &periodID, &doc.Memo, &doc.BillID, &doc.RunID, &doc.ReversalDate, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, shared.ErrJournalNotFound
		}
		return Document{}, err
	}
	doc.PeriodID = derefInt(periodID)
	rows, err := r.db.Query(ctx, `SELECT id, je_id, subsidiary_id, account_id, department_id, location_id, debit::text, credit::text, memo, entity_id, entity_name
FROM journal_lines WHERE je_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return Document{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			p                     Posting
			dept, loc, entity     *int64
			debitText, creditText string
		)
		if err := rows.Scan(&p.ID, &p.JournalID, &p.Subsidiary, &p.AccountID, &dept, &loc, &debitText, &creditText, &p.Memo, &entity, &p.EntityName); err != nil {
			return Document{}, err
		}
		if p.Debit, err = decimal.NewFromString(debitText); err != nil {
			return Document{}, err
		}
		if p.Credit, err = decimal.NewFromString(creditText); err != nil {
			return Document{}, err
		}
		p.Department = derefInt(dept)
		p.Location = derefInt(loc)
		p.EntityID = derefInt(entity)
		doc.Postings = append(doc.Postings, p)
	}
	return doc, rows.Err()
}

func (r *repository) SetReversalDate(ctx context.Context, id int64, date time.Time) error {
	cmd, err := r.db.Exec(ctx, `UPDATE journal_entries SET reversal_date=$2, updated_at=NOW() WHERE id=$1 AND source_module=$3`, id, date, SourceModule)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrJournalNotFound
	}
	return nil
}

// ListUnreversed returns the ids of the bill's generated journals that carry
// no reversal date, oldest first.
func (r *repository) ListUnreversed(ctx context.Context, billID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM journal_entries
WHERE bill_id=$1 AND source_module=$2 AND reversal_date IS NULL ORDER BY id ASC`, billID, SourceModule)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, doc Document) (Document, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (subsidiary_id, date, period_id, memo, source_module, bill_id, run_id)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at, updated_at`,
		doc.Subsidiary, doc.Date, nullInt(doc.PeriodID), doc.Memo, SourceModule, doc.BillID, doc.RunID)
	if err := row.Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (r *txRepository) InsertPostings(ctx context.Context, journalID int64, postings []Posting) error {
	for _, p := range postings {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (je_id, subsidiary_id, account_id, department_id, location_id, debit, credit, memo, entity_id, entity_name)
VALUES ($1,$2,$3,$4,$5,$6::numeric,$7::numeric,$8,$9,$10)`,
			journalID, p.Subsidiary, p.AccountID, nullInt(p.Department), nullInt(p.Location),
			p.Debit.String(), p.Credit.String(), p.Memo, nullInt(p.EntityID), p.EntityName); err != nil {
			return err
		}
	}
	return nil
}

// Helpers
func nullInt(val int64) any {
	if val <= 0 {
		return nil
	}
	return val
}

func derefInt(val *int64) int64 {
	if val == nil {
		return 0
	}
	return *val
}
