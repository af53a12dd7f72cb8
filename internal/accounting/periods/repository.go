package periods

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	ListPostingPeriods(ctx context.Context) ([]Period, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// ListPostingPeriods returns the non-aggregate periods ordered by ascending id.
func (r *repository) ListPostingPeriods(ctx context.Context) ([]Period, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, closed, is_quarter, is_year
FROM accounting_periods WHERE NOT is_quarter AND NOT is_year ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		var p Period
		if err := rows.Scan(&p.ID, &p.Name, &p.Closed, &p.IsQuarter, &p.IsYear); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
