package interco

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// LineSource returns the qualifying expense lines of the requested bills.
type LineSource interface {
	QualifyingLines(ctx context.Context, billIDs []ID) ([]SourceLine, error)
}

// Summary collects everything the reporter needs about one batch run.
type Summary struct {
	RunID      uuid.UUID
	BillIDs    []ID
	SelectErr  error
	Outcomes   []Outcome
	StartedAt  time.Time
	FinishedAt time.Time
}

// Counts splits outcomes into generated, no-op and failed bills.
func (s Summary) Counts() (generated, noop, failed int) {
	for _, out := range s.Outcomes {
		switch {
		case out.Failed():
			failed++
		case out.Generated():
			generated++
		default:
			noop++
		}
	}
	return generated, noop, failed
}

// SkippedLines totals the line diagnostics across all bills.
func (s Summary) SkippedLines() int {
	total := 0
	for _, out := range s.Outcomes {
		total += len(out.Diagnostics)
	}
	return total
}

// Duration reports how long the run took.
func (s Summary) Duration() time.Duration {
	if s.FinishedAt.Before(s.StartedAt) {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Outcome returns the outcome recorded for billID.
func (s Summary) Outcome(billID ID) (Outcome, bool) {
	for _, out := range s.Outcomes {
		if out.BillID == billID {
			return out, true
		}
	}
	return Outcome{}, false
}

// Batch groups qualifying lines by bill and runs one generator per bill.
type Batch struct {
	source      LineSource
	generator   *Generator
	reporter    *Reporter
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// NewBatch constructs a batch runner. A non-positive concurrency falls back to the default.
func NewBatch(source LineSource, generator *Generator, reporter *Reporter, concurrency int, logger *slog.Logger) *Batch {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Batch{
		source:      source,
		generator:   generator,
		reporter:    reporter,
		concurrency: concurrency,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run generates intercompany journals for the given bills. Per-bill failures
// and selection faults are reported, not returned.
func (b *Batch) Run(ctx context.Context, billIDs ...ID) (Summary, error) {
	ids := uniqueIDs(billIDs)
	if len(ids) == 0 {
		return Summary{}, ErrNoBills
	}
	summary := Summary{RunID: uuid.New(), BillIDs: ids, StartedAt: b.now()}
	logger := b.log().With(slog.String("run_id", summary.RunID.String()))

	lines, err := b.source.QualifyingLines(ctx, ids)
	if err != nil {
		summary.SelectErr = err
		summary.FinishedAt = b.now()
		b.reporter.Report(ctx, summary)
		return summary, nil
	}

	groups := groupByBill(ids, lines)
	logger.Debug("selected lines", slog.Int("bills", len(ids)), slog.Int("lines", len(lines)))

	summary.Outcomes = make([]Outcome, len(ids))
	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			summary.Outcomes[i] = b.generator.Generate(ctx, id, groups[id], summary.RunID)
			return nil
		})
	}
	_ = g.Wait()

	summary.FinishedAt = b.now()
	b.reporter.Report(ctx, summary)
	return summary, nil
}

func (b *Batch) log() *slog.Logger {
	if b.logger != nil {
		return b.logger.With(slog.String("component", "icje_batch"))
	}
	return slog.Default().With(slog.String("component", "icje_batch"))
}

func uniqueIDs(ids []ID) []ID {
	seen := make(map[ID]struct{}, len(ids))
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if !id.Valid() {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// groupByBill keeps line order within each bill and drops lines of bills that
// were not requested.
func groupByBill(ids []ID, lines []SourceLine) map[ID][]SourceLine {
	groups := make(map[ID][]SourceLine, len(ids))
	for _, id := range ids {
		groups[id] = nil
	}
	for _, line := range lines {
		if _, ok := groups[line.BillID]; !ok {
			continue
		}
		groups[line.BillID] = append(groups[line.BillID], line)
	}
	return groups
}
