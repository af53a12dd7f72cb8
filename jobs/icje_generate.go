package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/interco/internal/interco"
	jobmetrics "github.com/odyssey-erp/interco/internal/jobs"
)

// BatchRunner runs one generation batch.
type BatchRunner interface {
	Run(ctx context.Context, billIDs ...interco.ID) (interco.Summary, error)
}

// BillLocker guards a bill against concurrent generation.
type BillLocker interface {
	WithBill(ctx context.Context, billID interco.ID, fn func(context.Context) error) error
}

// GenerateICJEJob handles TaskGenerateICJE.
type GenerateICJEJob struct {
	Batch   BatchRunner
	Locker  BillLocker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewGenerateICJEJob constructs the job handler.
func NewGenerateICJEJob(batch BatchRunner, locker BillLocker, logger *slog.Logger, metrics *jobmetrics.Metrics) *GenerateICJEJob {
	return &GenerateICJEJob{
		Batch:   batch,
		Locker:  locker,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one generation batch. Per-bill failures are reported on the
// bills themselves and do not fail the task; only a held bill lock asks asynq
// to retry.
func (j *GenerateICJEJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Batch == nil {
		return errors.New("icje generate: handler not configured")
	}
	payload, err := decodeGenerateICJE(t)
	if err != nil {
		j.logger().Warn("invalid payload", slog.Any("error", err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	start := j.now()
	tracker := j.metrics().Track(TaskGenerateICJE)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	ids := make([]interco.ID, 0, len(payload.BillIDs))
	for _, id := range payload.BillIDs {
		ids = append(ids, interco.ID(id))
	}
	logger := j.logger().With(slog.Any("bill_ids", payload.BillIDs), slog.String("event", payload.Event))
	logger.Info("starting icje generation")

	var summary interco.Summary
	resultErr = j.withBills(ctx, sortedIDs(ids), func(ctx context.Context) error {
		var runErr error
		summary, runErr = j.Batch.Run(ctx, ids...)
		return runErr
	})
	if errors.Is(resultErr, interco.ErrNoBills) {
		resultErr = fmt.Errorf("%v: %w", resultErr, asynq.SkipRetry)
	}
	if resultErr != nil {
		logger.Warn("icje generation not run", slog.Any("error", resultErr))
		return resultErr
	}

	generated, noop, failed := summary.Counts()
	logger.Info("icje generation complete",
		slog.String("run_id", summary.RunID.String()),
		slog.Int("generated", generated),
		slog.Int("noop", noop),
		slog.Int("failed", failed),
		slog.Duration("duration", j.now().Sub(start)))
	return nil
}

func (j *GenerateICJEJob) withBills(ctx context.Context, ids []interco.ID, fn func(context.Context) error) error {
	if j.Locker == nil || len(ids) == 0 {
		return fn(ctx)
	}
	return j.Locker.WithBill(ctx, ids[0], func(ctx context.Context) error {
		return j.withBills(ctx, ids[1:], fn)
	})
}

func sortedIDs(ids []interco.ID) []interco.ID {
	seen := make(map[interco.ID]struct{}, len(ids))
	out := make([]interco.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, k int) bool { return out[i] < out[k] })
	return out
}

func (j *GenerateICJEJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *GenerateICJEJob) logger() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskGenerateICJE))
	}
	return slog.Default().With(slog.String("job", TaskGenerateICJE))
}

func (j *GenerateICJEJob) metrics() *jobmetrics.Metrics {
	if j == nil {
		return nil
	}
	return j.Metrics
}
