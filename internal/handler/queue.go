package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/silverfox/cao-engine/internal/domain"
	"github.com/silverfox/cao-engine/internal/queue"
)

// QueueHandler implements the `process_queue` external call: submit one
// (dealership, mode, template_type) order and wait for its outcome.
type QueueHandler struct {
	processor *queue.Processor
	logger    *slog.Logger
}

func NewQueueHandler(p *queue.Processor, logger *slog.Logger) *QueueHandler {
	return &QueueHandler{processor: p, logger: logger}
}

type processQueueRequest struct {
	Dealership     string              `json:"dealership"`
	Mode           domain.OrderMode    `json:"mode"`
	TemplateType   domain.TemplateType `json:"template_type"`
	VINs           []string            `json:"vins,omitempty"`
	SkipVINLogging bool                `json:"skip_vin_logging,omitempty"`
	Quantity       int                 `json:"quantity,omitempty"`
}

// ProcessQueue implements `process_queue`.
func (h *QueueHandler) ProcessQueue(w http.ResponseWriter, r *http.Request) {
	var req processQueueRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Dealership == "" {
		jsonError(w, "dealership is required", http.StatusBadRequest)
		return
	}
	if req.Mode == domain.ModeList && len(req.VINs) == 0 {
		jsonError(w, "vins is required for LIST mode", http.StatusBadRequest)
		return
	}

	job := domain.Job{
		Dealership:     req.Dealership,
		Mode:           req.Mode,
		TemplateType:   req.TemplateType,
		VINs:           req.VINs,
		SkipVINLogging: req.SkipVINLogging,
		Quantity:       req.Quantity,
	}

	ctx := r.Context()
	cancel := func() {}
	if _, ok := ctx.Deadline(); !ok {
		ctx, cancel = context.WithTimeout(ctx, 2*time.Minute)
	}
	defer cancel()

	result, err := h.processor.SubmitAndWait(ctx, job)
	if err != nil {
		if err == queue.ErrQueueFull {
			jsonError(w, "queue is at capacity, try again shortly", http.StatusServiceUnavailable)
			return
		}
		h.logger.Error("process_queue_failed", slog.String("dealership", req.Dealership), slog.String("error", err.Error()))
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}
