package interco

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	jobmetrics "github.com/odyssey-erp/interco/internal/jobs"
	"github.com/odyssey-erp/interco/internal/shared"
)

const (
	auditActionFailure = "icje.failure"
	auditEntityBill    = "vendor_bill"
	auditEntityRun     = "icje_run"
)

// AuditRecorder persists audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ReporterConfig tunes the failure reporter.
type ReporterConfig struct {
	ActorID       int64
	MarkerRetries uint64
}

// Reporter makes batch failures visible: it stamps the error marker on each
// failed bill, writes the audit trail and logs a run summary. It never fails.
type Reporter struct {
	bills   BillUpdater
	audit   AuditRecorder
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
	cfg     ReporterConfig
	backoff func() backoff.BackOff
}

// NewReporter constructs a failure reporter. audit and metrics may be nil.
func NewReporter(bills BillUpdater, audit AuditRecorder, metrics *jobmetrics.Metrics, logger *slog.Logger, cfg ReporterConfig) *Reporter {
	return &Reporter{
		bills:   bills,
		audit:   audit,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		backoff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// Report runs once per batch after every bill finished.
func (r *Reporter) Report(ctx context.Context, summary Summary) {
	if r == nil {
		return
	}
	logger := r.log().With(slog.String("run_id", summary.RunID.String()))

	if summary.SelectErr != nil {
		logger.Error("Error on Get Input Data", slog.Any("error", summary.SelectErr), slog.Int("bills", len(summary.BillIDs)))
		r.record(ctx, logger, shared.AuditLog{
			ActorID:  r.cfg.ActorID,
			Action:   auditActionFailure,
			Entity:   auditEntityRun,
			EntityID: summary.RunID.String(),
			Meta: map[string]any{
				"stage":    string(StageSelecting),
				"error":    summary.SelectErr.Error(),
				"bill_ids": idStrings(summary.BillIDs),
			},
			At: summary.FinishedAt,
		})
	}

	byStage := make(map[Stage][]string)
	for _, out := range summary.Outcomes {
		if !out.Failed() {
			continue
		}
		message := out.Err.Error()
		if err := r.markBill(ctx, out.BillID, message); err != nil {
			logger.Error("write error marker", slog.Int64("bill_id", out.BillID.Int64()), slog.Any("error", err))
		}
		r.record(ctx, logger, shared.AuditLog{
			ActorID:  r.cfg.ActorID,
			Action:   auditActionFailure,
			Entity:   auditEntityBill,
			EntityID: strconv.FormatInt(out.BillID.Int64(), 10),
			Meta: map[string]any{
				"run_id":              summary.RunID.String(),
				"stage":               string(out.Err.Stage),
				"error":               out.Err.Err.Error(),
				"reversed_journal_id": out.Reversed.Int64(),
			},
			At: summary.FinishedAt,
		})
		byStage[out.Err.Stage] = append(byStage[out.Err.Stage],
			fmt.Sprintf("Failure to create ICJE: %d. Error was: %s", out.BillID, out.Err.Err))
	}

	stages := make([]string, 0, len(byStage))
	for stage := range byStage {
		stages = append(stages, string(stage))
	}
	sort.Strings(stages)
	for _, stage := range stages {
		logger.Error(stage+" stage errors", slog.String("stage", stage), slog.String("errors", strings.Join(byStage[Stage(stage)], "\n")))
	}

	generated, noop, failed := summary.Counts()
	skipped := summary.SkippedLines()
	r.metrics.AddBills(jobmetrics.OutcomeGenerated, generated)
	r.metrics.AddBills(jobmetrics.OutcomeNoop, noop)
	r.metrics.AddBills(jobmetrics.OutcomeFailed, failed)
	r.metrics.AddSkippedLines(skipped)

	logger.Info("icje run finished",
		slog.Int("bills", len(summary.BillIDs)),
		slog.Int("generated", generated),
		slog.Int("noop", noop),
		slog.Int("failed", failed),
		slog.Int("skipped_lines", skipped),
		slog.Bool("selection_failed", summary.SelectErr != nil),
		slog.Duration("duration", summary.Duration()))
}

func (r *Reporter) markBill(ctx context.Context, billID ID, message string) error {
	if r.bills == nil || !billID.Valid() || !present(message) {
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(r.backoff(), r.cfg.MarkerRetries), ctx)
	return backoff.Retry(func() error {
		return r.bills.SetErrorMarker(ctx, billID, message)
	}, policy)
}

func (r *Reporter) record(ctx context.Context, logger *slog.Logger, entry shared.AuditLog) {
	if r.audit == nil {
		return
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	if err := r.audit.Record(ctx, entry); err != nil {
		logger.Warn("audit failure record", slog.String("entity_id", entry.EntityID), slog.Any("error", err))
	}
}

func (r *Reporter) log() *slog.Logger {
	if r.logger != nil {
		return r.logger.With(slog.String("component", "icje_reporter"))
	}
	return slog.Default().With(slog.String("component", "icje_reporter"))
}

func idStrings(ids []ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, strconv.FormatInt(id.Int64(), 10))
	}
	return out
}
