package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/interco/jobs"
)

// Enqueuer submits generation tasks.
type Enqueuer interface {
	EnqueueGenerateICJE(ctx context.Context, payload jobs.GenerateICJEPayload) (*asynq.TaskInfo, error)
}

// QueueInspector reads queue state.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	ListRetryTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	queue     Enqueuer
	inspector QueueInspector
	closers   []io.Closer
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	inspector := asynq.NewInspector(opts)
	return &JobsCLI{queue: client, inspector: inspector, closers: []io.Closer{inspector, client}}, nil
}

// NewJobsCLIWith builds the helper from existing collaborators.
func NewJobsCLIWith(queue Enqueuer, inspector QueueInspector) *JobsCLI {
	return &JobsCLI{queue: queue, inspector: inspector}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GenerateICJE enqueues a generation run for the given bills.
func (c *JobsCLI) GenerateICJE(ctx context.Context, billIDs []int64, event string) (*asynq.TaskInfo, error) {
	if c == nil || c.queue == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	info, err := c.queue.EnqueueGenerateICJE(ctx, jobs.GenerateICJEPayload{BillIDs: billIDs, Event: event})
	if err != nil {
		return nil, fmt.Errorf("jobs cli: %w", err)
	}
	if info == nil {
		return nil, errors.New("jobs cli: queue returned no task")
	}
	return info, nil
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// ListUpcoming returns scheduled and retrying tasks ordered by their next run,
// at most size of them.
func (c *JobsCLI) ListUpcoming(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	scheduled, err := c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
	if err != nil {
		return nil, fmt.Errorf("jobs cli: list scheduled: %w", err)
	}
	retrying, err := c.inspector.ListRetryTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
	if err != nil {
		return nil, fmt.Errorf("jobs cli: list retry: %w", err)
	}
	tasks := make([]*asynq.TaskInfo, 0, len(scheduled)+len(retrying))
	tasks = append(append(tasks, scheduled...), retrying...)
	sort.SliceStable(tasks, func(i, k int) bool { return tasks[i].NextProcessAt.Before(tasks[k].NextProcessAt) })
	if len(tasks) > size {
		tasks = tasks[:size]
	}
	return tasks, nil
}
