package interco

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/interco/internal/accounting/journals"
)

// LedgerStore loads, creates and reverses generated journals.
type LedgerStore interface {
	Get(ctx context.Context, id int64) (journals.Document, error)
	SetReversalDate(ctx context.Context, id int64, date time.Time) error
	Create(ctx context.Context, doc journals.Document) (int64, error)
	UnreversedForBill(ctx context.Context, billID int64) ([]int64, error)
}

// Reverser marks a previously generated journal as reversed on its own date.
type Reverser struct {
	store  LedgerStore
	logger *slog.Logger
}

// NewReverser constructs a Reverser.
func NewReverser(store LedgerStore, logger *slog.Logger) *Reverser {
	return &Reverser{store: store, logger: logger}
}

// ReverseIfLinked reverses journalID when it is present and reports whether a
// reversal was written. Rewriting the same date on an already reversed journal
// is harmless.
func (r *Reverser) ReverseIfLinked(ctx context.Context, journalID ID) (bool, error) {
	if !journalID.Valid() {
		return false, nil
	}
	doc, err := r.store.Get(ctx, journalID.Int64())
	if err != nil {
		return false, fmt.Errorf("load journal %d: %w", journalID, err)
	}
	if err := r.store.SetReversalDate(ctx, journalID.Int64(), doc.Date); err != nil {
		return false, fmt.Errorf("reverse journal %d: %w", journalID, err)
	}
	r.log().Debug("reversed linked journal",
		slog.Int64("journal_id", journalID.Int64()),
		slog.Int64("bill_id", doc.BillID),
		slog.Time("reversal_date", doc.Date),
		slog.Bool("previously_reversed", doc.Reversed()))
	return true, nil
}

// ReverseForBill reverses the linked journal and every other live journal
// generated for the bill, such as one left unlinked by an earlier failed run.
// The linked journal, when present, is first in the returned ids.
func (r *Reverser) ReverseForBill(ctx context.Context, billID, linked ID) ([]ID, error) {
	live, err := r.store.UnreversedForBill(ctx, billID.Int64())
	if err != nil {
		return nil, fmt.Errorf("list journals of bill %d: %w", billID, err)
	}
	targets := make([]ID, 0, len(live)+1)
	if linked.Valid() {
		targets = append(targets, linked)
	}
	for _, id := range live {
		if ID(id) != linked {
			targets = append(targets, ID(id))
		}
	}
	reversed := make([]ID, 0, len(targets))
	for _, id := range targets {
		ok, err := r.ReverseIfLinked(ctx, id)
		if err != nil {
			return reversed, err
		}
		if ok {
			reversed = append(reversed, id)
		}
	}
	if orphans := len(targets) - boolInt(linked.Valid()); orphans > 0 {
		r.log().Warn("reversed unlinked journals of bill",
			slog.Int64("bill_id", billID.Int64()),
			slog.Int("count", orphans))
	}
	return reversed, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (r *Reverser) log() *slog.Logger {
	if r != nil && r.logger != nil {
		return r.logger.With(slog.String("component", "icje_reversal"))
	}
	return slog.Default().With(slog.String("component", "icje_reversal"))
}
