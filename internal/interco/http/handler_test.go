package intercohttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/interco/internal/accounting/shared"
	"github.com/odyssey-erp/interco/internal/interco"
	"github.com/odyssey-erp/interco/jobs"
)

type stubSnapshots struct {
	snap interco.BillSnapshot
	err  error
}

func (s stubSnapshots) BillSnapshot(context.Context, interco.ID) (interco.BillSnapshot, error) {
	return s.snap, s.err
}

type stubQueue struct {
	payloads []jobs.GenerateICJEPayload
	info     *asynq.TaskInfo
	err      error
}

func (s *stubQueue) EnqueueGenerateICJE(_ context.Context, payload jobs.GenerateICJEPayload) (*asynq.TaskInfo, error) {
	s.payloads = append(s.payloads, payload)
	return s.info, s.err
}

func serve(t *testing.T, h *Handler, target string) (*httptest.ResponseRecorder, generateResponse) {
	t.Helper()
	r := chi.NewRouter()
	h.MountRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, target, nil))
	var resp generateResponse
	if rr.Code < 300 {
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return rr, resp
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGenerateQueuesOnCreateWithDestination(t *testing.T) {
	queue := &stubQueue{info: &asynq.TaskInfo{ID: "task-1"}}
	h := NewHandler(stubSnapshots{snap: interco.BillSnapshot{Destinations: []interco.ID{4}}}, queue, discard())

	rr, resp := serve(t, h, "/bills/12/generate?event=create")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	if !resp.Queued || resp.TaskID != "task-1" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(queue.payloads) != 1 || queue.payloads[0].BillIDs[0] != 12 || queue.payloads[0].Event != "create" {
		t.Fatalf("unexpected payloads %+v", queue.payloads)
	}
}

func TestGenerateSkipsLinkedBillOnCreate(t *testing.T) {
	queue := &stubQueue{}
	h := NewHandler(stubSnapshots{snap: interco.BillSnapshot{LinkedJournalID: 9, Destinations: []interco.ID{4}}}, queue, discard())

	rr, resp := serve(t, h, "/bills/12/generate?event=create")
	if rr.Code != http.StatusOK || resp.Queued {
		t.Fatalf("expected no queueing, got %d %+v", rr.Code, resp)
	}
	if len(queue.payloads) != 0 {
		t.Fatal("queue must not be called")
	}
}

func TestGenerateDefaultsToEdit(t *testing.T) {
	queue := &stubQueue{info: &asynq.TaskInfo{ID: "task-2"}}
	h := NewHandler(stubSnapshots{}, queue, discard())

	rr, resp := serve(t, h, "/bills/12/generate")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	if resp.Event != "edit" || resp.TaskID != "task-2" {
		t.Fatalf("expected edit enqueue, got %+v", resp)
	}
}

func TestGenerateQueuesEveryEdit(t *testing.T) {
	queue := &stubQueue{info: &asynq.TaskInfo{ID: "task-3"}}
	h := NewHandler(stubSnapshots{snap: interco.BillSnapshot{LinkedJournalID: 9}}, queue, discard())

	for i := 0; i < 2; i++ {
		if rr, resp := serve(t, h, "/bills/12/generate?event=edit"); rr.Code != http.StatusAccepted || !resp.Queued {
			t.Fatalf("edit %d: expected 202 queued, got %d %+v", i, rr.Code, resp)
		}
	}
	if len(queue.payloads) != 2 {
		t.Fatalf("expected both edits queued, got %d", len(queue.payloads))
	}
}

func TestGenerateValidation(t *testing.T) {
	h := NewHandler(stubSnapshots{}, &stubQueue{}, discard())
	for _, target := range []string{"/bills/abc/generate", "/bills/0/generate", "/bills/3/generate?event=delete"} {
		rr, _ := serve(t, h, target)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rr.Code)
		}
	}
}

func TestGenerateErrors(t *testing.T) {
	h := NewHandler(stubSnapshots{err: shared.ErrBillNotFound}, &stubQueue{}, discard())
	if rr, _ := serve(t, h, "/bills/3/generate"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	h = NewHandler(stubSnapshots{}, &stubQueue{err: errors.New("redis down")}, discard())
	if rr, _ := serve(t, h, "/bills/3/generate"); rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}
