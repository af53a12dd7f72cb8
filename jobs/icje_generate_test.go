package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/interco/internal/interco"
)

type stubBatch struct {
	calls [][]interco.ID
	err   error
}

func (s *stubBatch) Run(_ context.Context, billIDs ...interco.ID) (interco.Summary, error) {
	s.calls = append(s.calls, billIDs)
	if s.err != nil {
		return interco.Summary{}, s.err
	}
	outcomes := make([]interco.Outcome, 0, len(billIDs))
	for _, id := range billIDs {
		outcomes = append(outcomes, interco.Outcome{BillID: id, State: interco.StageDone, JournalID: id + 1000})
	}
	return interco.Summary{RunID: uuid.New(), BillIDs: billIDs, Outcomes: outcomes}, nil
}

type recordingLocker struct {
	order []interco.ID
}

func (l *recordingLocker) WithBill(ctx context.Context, billID interco.ID, fn func(context.Context) error) error {
	l.order = append(l.order, billID)
	return fn(ctx)
}

func generateTask(t *testing.T, payload any) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(TaskGenerateICJE, data)
}

func TestGenerateICJEJobRunsBatchUnderLocks(t *testing.T) {
	batch := &stubBatch{}
	locker := &recordingLocker{}
	job := NewGenerateICJEJob(batch, locker, nil, nil)

	err := job.Handle(context.Background(), generateTask(t, GenerateICJEPayload{BillIDs: []int64{30, 10, 30}, Event: "edit"}))
	require.NoError(t, err)
	require.Equal(t, []interco.ID{10, 30}, locker.order)
	require.Len(t, batch.calls, 1)
	require.Equal(t, []interco.ID{30, 10, 30}, batch.calls[0])
}

func TestGenerateICJEJobRejectsBadPayload(t *testing.T) {
	batch := &stubBatch{}
	job := NewGenerateICJEJob(batch, nil, nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskGenerateICJE, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), generateTask(t, GenerateICJEPayload{BillIDs: []int64{0}}))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), generateTask(t, GenerateICJEPayload{BillIDs: []int64{4}, Event: "delete"}))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Empty(t, batch.calls)
}

func TestGenerateICJEJobRetriesWhenBillLocked(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	locker := interco.NewBillLocker(rdb, time.Minute)
	batch := &stubBatch{}
	job := NewGenerateICJEJob(batch, locker, nil, nil)

	err := locker.WithBill(context.Background(), 10, func(ctx context.Context) error {
		return job.Handle(ctx, generateTask(t, GenerateICJEPayload{BillIDs: []int64{10}}))
	})
	require.ErrorIs(t, err, interco.ErrBillLocked)
	require.NotErrorIs(t, err, asynq.SkipRetry)
	require.Empty(t, batch.calls)

	require.NoError(t, job.Handle(context.Background(), generateTask(t, GenerateICJEPayload{BillIDs: []int64{10}})))
	require.Len(t, batch.calls, 1)
}

func TestGenerateICJEJobBatchErrors(t *testing.T) {
	job := NewGenerateICJEJob(&stubBatch{err: interco.ErrNoBills}, nil, nil, nil)
	err := job.Handle(context.Background(), generateTask(t, GenerateICJEPayload{BillIDs: []int64{1}}))
	require.ErrorIs(t, err, asynq.SkipRetry)

	boom := errors.New("boom")
	job = NewGenerateICJEJob(&stubBatch{err: boom}, nil, nil, nil)
	err = job.Handle(context.Background(), generateTask(t, GenerateICJEPayload{BillIDs: []int64{1}}))
	require.ErrorIs(t, err, boom)
}

func TestNewGenerateICJETaskValidates(t *testing.T) {
	_, err := NewGenerateICJETask(GenerateICJEPayload{})
	require.Error(t, err)

	task, err := NewGenerateICJETask(GenerateICJEPayload{BillIDs: []int64{7}, Event: "create"})
	require.NoError(t, err)
	require.Equal(t, TaskGenerateICJE, task.Type())
	require.JSONEq(t, `{"bill_ids":[7],"event":"create"}`, string(task.Payload()))
}

func TestNilJobIsRejected(t *testing.T) {
	var job *GenerateICJEJob
	require.Error(t, job.Handle(context.Background(), generateTask(t, GenerateICJEPayload{BillIDs: []int64{1}})))
}
