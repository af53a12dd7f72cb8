package intercohttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/interco/internal/accounting/shared"
	"github.com/odyssey-erp/interco/internal/interco"
	"github.com/odyssey-erp/interco/internal/platform/httpx"
	"github.com/odyssey-erp/interco/jobs"
)

// SnapshotReader loads the trigger view of a bill.
type SnapshotReader interface {
	BillSnapshot(ctx context.Context, billID interco.ID) (interco.BillSnapshot, error)
}

// Enqueuer submits generation tasks.
type Enqueuer interface {
	EnqueueGenerateICJE(ctx context.Context, payload jobs.GenerateICJEPayload) (*asynq.TaskInfo, error)
}

// Handler exposes the bill-saved trigger over HTTP.
type Handler struct {
	bills  SnapshotReader
	queue  Enqueuer
	logger *slog.Logger
}

// NewHandler constructs the trigger handler.
func NewHandler(bills SnapshotReader, queue Enqueuer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{bills: bills, queue: queue, logger: logger.With(slog.String("component", "icje_http"))}
}

// MountRoutes registers the trigger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/bills/{billID}/generate", h.generate)
}

type generateResponse struct {
	BillID int64  `json:"bill_id"`
	Event  string `json:"event"`
	Queued bool   `json:"queued"`
	TaskID string `json:"task_id,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	billID, err := strconv.ParseInt(chi.URLParam(r, "billID"), 10, 64)
	if err != nil || billID <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: bill id must be a positive integer", httpx.ErrValidation))
		return
	}
	evt := interco.EventEdit
	if raw := r.URL.Query().Get("event"); raw != "" {
		evt = interco.Event(raw)
	}
	if !evt.Valid() {
		httpx.RespondError(w, fmt.Errorf("%w: event must be create or edit", httpx.ErrValidation))
		return
	}

	snap, err := h.bills.BillSnapshot(r.Context(), interco.ID(billID))
	if err != nil {
		if errors.Is(err, shared.ErrBillNotFound) {
			httpx.RespondError(w, fmt.Errorf("%w: bill %d", httpx.ErrNotFound, billID))
			return
		}
		h.logger.Error("load bill snapshot", slog.Int64("bill_id", billID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	resp := generateResponse{BillID: billID, Event: string(evt)}
	if !interco.ShouldGenerate(evt, snap) {
		resp.Reason = "bill has no intercompany lines or is already linked"
		httpx.JSON(w, http.StatusOK, resp)
		return
	}

	info, err := h.queue.EnqueueGenerateICJE(r.Context(), jobs.GenerateICJEPayload{BillIDs: []int64{billID}, Event: string(evt)})
	if err != nil {
		h.logger.Error("enqueue icje generation", slog.Int64("bill_id", billID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp.Queued = true
	if info != nil {
		resp.TaskID = info.ID
	}
	h.logger.Info("icje generation queued", slog.Int64("bill_id", billID), slog.String("event", resp.Event), slog.String("task_id", resp.TaskID))
	httpx.JSON(w, http.StatusAccepted, resp)
}
