package interco

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// BillUpdater performs field-level updates on a vendor bill without
// re-submitting its other fields.
type BillUpdater interface {
	LinkJournal(ctx context.Context, billID, journalID ID) error
	ClearLink(ctx context.Context, billID ID) error
	SetErrorMarker(ctx context.Context, billID ID, message string) error
}

// Generator runs the per-bill state machine:
// selecting -> reversing -> building -> persisting -> linking -> done.
type Generator struct {
	reverser *Reverser
	builder  *Builder
	store    LedgerStore
	bills    BillUpdater
	logger   *slog.Logger
}

// NewGenerator wires the generation stages.
func NewGenerator(reverser *Reverser, builder *Builder, store LedgerStore, bills BillUpdater, logger *slog.Logger) *Generator {
	return &Generator{reverser: reverser, builder: builder, store: store, bills: bills, logger: logger}
}

// Generate processes every qualifying line of one bill. Failures are returned
// inside the outcome so that sibling bills keep running.
func (g *Generator) Generate(ctx context.Context, billID ID, lines []SourceLine, runID uuid.UUID) Outcome {
	out := Outcome{BillID: billID, State: StageSelecting}
	if g == nil || g.reverser == nil || g.builder == nil || g.store == nil || g.bills == nil {
		out.Err = failAt(StageSelecting, billID, errors.New("interco: generator not configured"))
		return out
	}
	logger := g.log().With(slog.Int64("bill_id", billID.Int64()), slog.String("run_id", runID.String()))
	if len(lines) == 0 {
		logger.Info("no qualifying lines")
		out.State = StageDone
		return out
	}

	out.State = StageReversing
	reversed, err := g.reverser.ReverseForBill(ctx, billID, linkedJournal(lines))
	if err != nil {
		return g.fail(logger, out, err)
	}
	if len(reversed) > 0 {
		out.Reversed = reversed[0]
	}

	out.State = StageBuilding
	built, err := g.builder.Build(ctx, billID, lines, runID)
	if err != nil {
		if out.Reversed.Valid() {
			g.unlink(ctx, logger, billID)
		}
		return g.fail(logger, out, err)
	}
	out.Diagnostics = built.Diagnostics
	if built.Empty() {
		out.State = StageLinking
		if err := g.bills.ClearLink(ctx, billID); err != nil {
			return g.fail(logger, out, err)
		}
		out.State = StageDone
		logger.Info("no intercompany postings for bill", slog.Int("skipped_lines", len(built.Diagnostics)))
		return out
	}

	out.State = StagePersisting
	journalID, err := g.store.Create(ctx, built.Document)
	if err != nil {
		if out.Reversed.Valid() {
			g.unlink(ctx, logger, billID)
		}
		return g.fail(logger, out, err)
	}
	out.JournalID = ID(journalID)
	out.Postings = len(built.Document.Postings)

	out.State = StageLinking
	if err := g.bills.LinkJournal(ctx, billID, out.JournalID); err != nil {
		g.withdraw(ctx, logger, built.Document.Date, out.JournalID)
		if out.Reversed.Valid() {
			g.unlink(ctx, logger, billID)
		}
		return g.fail(logger, out, err)
	}

	out.State = StageDone
	logger.Info("generated intercompany journal",
		slog.Int64("journal_id", journalID),
		slog.Int64("reversed_journal_id", out.Reversed.Int64()),
		slog.Int("postings", out.Postings),
		slog.Int("skipped_lines", len(out.Diagnostics)))
	return out
}

func (g *Generator) fail(logger *slog.Logger, out Outcome, err error) Outcome {
	out.Err = failAt(out.State, out.BillID, err)
	logger.Error("generation failed", slog.String("stage", string(out.State)), slog.Any("error", err))
	return out
}

// withdraw reverses a journal the bill could not be linked to. A failure here
// leaves the journal live until the next run for the bill reverses it.
func (g *Generator) withdraw(ctx context.Context, logger *slog.Logger, date time.Time, journalID ID) {
	if err := g.store.SetReversalDate(ctx, journalID.Int64(), date); err != nil {
		logger.Warn("reverse unlinked journal", slog.Int64("journal_id", journalID.Int64()), slog.Any("error", err))
	}
}

// unlink drops the bill's pointer to a journal this run already reversed.
func (g *Generator) unlink(ctx context.Context, logger *slog.Logger, billID ID) {
	if err := g.bills.ClearLink(ctx, billID); err != nil {
		logger.Warn("clear reversed link", slog.Any("error", err))
	}
}

func linkedJournal(lines []SourceLine) ID {
	for _, line := range lines {
		if line.LinkedJournalID.Valid() {
			return line.LinkedJournalID
		}
	}
	return 0
}

func (g *Generator) log() *slog.Logger {
	if g != nil && g.logger != nil {
		return g.logger.With(slog.String("component", "icje_generator"))
	}
	return slog.Default().With(slog.String("component", "icje_generator"))
}
