package interco

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/interco/internal/jobs"
)

func newTestReporter(bills BillUpdater, audit AuditRecorder, logger *slog.Logger, retries uint64) *Reporter {
	r := NewReporter(bills, audit, jobmetrics.NewMetrics(prometheus.NewRegistry()), logger, ReporterConfig{ActorID: 5, MarkerRetries: retries})
	r.backoff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return r
}

func failedOutcome(billID ID, stage Stage, err error) Outcome {
	return Outcome{BillID: billID, State: stage, Err: failAt(stage, billID, err)}
}

func TestReportWritesMarkersAndAudit(t *testing.T) {
	bills := newFakeBills(nil)
	audit := &fakeAudit{}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	reporter := newTestReporter(bills, audit, logger, 2)

	started := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	summary := Summary{
		RunID:   uuid.New(),
		BillIDs: []ID{10, 20, 30},
		Outcomes: []Outcome{
			{BillID: 10, State: StageDone, JournalID: 501, Postings: 4},
			failedOutcome(20, StagePersisting, errors.New("insert failed")),
			failedOutcome(30, StageBuilding, ErrAutoBalancingAccounts),
		},
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
	}
	reporter.Report(context.Background(), summary)

	require.Equal(t, "persisting: insert failed", bills.marker(20))
	require.Equal(t, "building: "+ErrAutoBalancingAccounts.Error(), bills.marker(30))
	require.Empty(t, bills.marker(10))

	require.Equal(t, []string{"icje.failure:vendor_bill:20", "icje.failure:vendor_bill:30"}, audit.actions())
	require.Equal(t, int64(5), audit.entries[0].ActorID)
	require.Equal(t, "persisting", audit.entries[0].Meta["stage"])
	require.Equal(t, summary.FinishedAt, audit.entries[0].At)

	out := buf.String()
	require.Contains(t, out, "Failure to create ICJE: 20. Error was: insert failed")
	require.Contains(t, out, "building stage errors")
	require.Contains(t, out, "icje run finished")
	require.Contains(t, out, "failed=2")
	require.Contains(t, out, "generated=1")
}

func TestReportRetriesMarkerWrites(t *testing.T) {
	bills := newFakeBills(nil)
	bills.markerErrs = 2
	reporter := newTestReporter(bills, nil, discardLogger(), 3)

	reporter.Report(context.Background(), Summary{Outcomes: []Outcome{failedOutcome(20, StageLinking, errors.New("timeout"))}})
	require.Equal(t, 3, bills.markerCalls)
	require.Equal(t, "linking: timeout", bills.marker(20))
}

func TestReportGivesUpAfterRetries(t *testing.T) {
	bills := newFakeBills(nil)
	bills.markerErrs = 10
	audit := &fakeAudit{err: errors.New("audit down")}
	reporter := newTestReporter(bills, audit, discardLogger(), 1)

	require.NotPanics(t, func() {
		reporter.Report(context.Background(), Summary{Outcomes: []Outcome{failedOutcome(20, StageLinking, errors.New("timeout"))}})
	})
	require.Equal(t, 2, bills.markerCalls)
	require.Empty(t, bills.marker(20))
	require.Len(t, audit.actions(), 1)
}

func TestReportSelectionFault(t *testing.T) {
	bills := newFakeBills(nil)
	audit := &fakeAudit{}
	var buf bytes.Buffer
	reporter := newTestReporter(bills, audit, slog.New(slog.NewTextHandler(&buf, nil)), 1)

	runID := uuid.New()
	reporter.Report(context.Background(), Summary{RunID: runID, BillIDs: []ID{10, 11}, SelectErr: errors.New("bad filter")})
	require.Zero(t, bills.markerCalls)
	require.Equal(t, []string{"icje.failure:icje_run:" + runID.String()}, audit.actions())
	require.Equal(t, []string{"10", "11"}, audit.entries[0].Meta["bill_ids"])
	require.Contains(t, buf.String(), "Error on Get Input Data")
}

func TestReportNilReporter(t *testing.T) {
	var reporter *Reporter
	require.NotPanics(t, func() {
		reporter.Report(context.Background(), Summary{Outcomes: []Outcome{failedOutcome(1, StageLinking, errors.New("x"))}})
	})
}
