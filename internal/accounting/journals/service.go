package journals

import (
	"context"
	"errors"
	"fmt"
	"time"

	internalShared "github.com/odyssey-erp/interco/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

type Service struct {
	repo    Repository
	audit   AuditPort
	actorID int64
	now     func() time.Time
}

func NewService(repo Repository, audit AuditPort, actorID int64) *Service {
	return &Service{repo: repo, audit: audit, actorID: actorID, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Get(ctx context.Context, id int64) (Document, error) {
	return s.repo.Get(ctx, id)
}

// UnreversedForBill lists the bill's live generated journals.
func (s *Service) UnreversedForBill(ctx context.Context, billID int64) ([]int64, error) {
	return s.repo.ListUnreversed(ctx, billID)
}

// Create validates the document and persists header and postings in one
// transaction, returning the new journal id.
func (s *Service) Create(ctx context.Context, doc Document) (int64, error) {
	if err := doc.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertJournalEntry(ctx, doc)
		if err != nil {
			return err
		}
		if err := tx.InsertPostings(ctx, inserted.ID, doc.Postings); err != nil {
			return err
		}
		id = inserted.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	if s.audit != nil {
		debit, _ := doc.Totals()
		_ = s.audit.Record(ctx, internalShared.AuditLog{
			ActorID:  s.actorID,
			Action:   "icje.generate",
			Entity:   "journal_entry",
			EntityID: fmt.Sprintf("%d", id),
			Meta: map[string]any{
				"bill_id":  doc.BillID,
				"run_id":   doc.RunID.String(),
				"postings": len(doc.Postings),
				"total":    debit.StringFixed(2),
			},
			At: s.now(),
		})
	}
	return id, nil
}

// SetReversalDate records the reversal date on an existing journal.
func (s *Service) SetReversalDate(ctx context.Context, id int64, date time.Time) error {
	if id <= 0 {
		return errors.New("accounting: entry id required")
	}
	if err := s.repo.SetReversalDate(ctx, id, date); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, internalShared.AuditLog{
			ActorID:  s.actorID,
			Action:   "icje.reverse",
			Entity:   "journal_entry",
			EntityID: fmt.Sprintf("%d", id),
			Meta: map[string]any{
				"reversal_date": date.Format("2006-01-02"),
			},
			At: s.now(),
		})
	}
	return nil
}
