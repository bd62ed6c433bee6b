package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/silverfox/cao-engine/internal/realtime"
	"github.com/silverfox/cao-engine/internal/scraper"
)

// ScraperHandler kicks off scraper sessions and streams their progress.
type ScraperHandler struct {
	orchestrator *scraper.Orchestrator
	broker       *realtime.Broker
	logger       *slog.Logger
	adapters     func() []scraper.Adapter
}

// NewScraperHandler takes a adapters factory rather than a fixed slice so
// each session can be built from whatever dealerships are currently active.
func NewScraperHandler(o *scraper.Orchestrator, broker *realtime.Broker, logger *slog.Logger, adapters func() []scraper.Adapter) *ScraperHandler {
	return &ScraperHandler{orchestrator: o, broker: broker, logger: logger, adapters: adapters}
}

// StartScraping implements `start_scraping`: launches a session in the
// background, detached from the request's cancellation, and returns 202
// immediately. The response carries only a confirmation message, not the
// session ID; the orchestrator allocates the ID inside Run, and it appears in
// the session's events and in the scraper_session_finished log line.
func (h *ScraperHandler) StartScraping(w http.ResponseWriter, r *http.Request) {
	adapters := h.adapters()
	if len(adapters) == 0 {
		jsonError(w, "no scraper adapters configured", http.StatusServiceUnavailable)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		result, err := h.orchestrator.Run(ctx, adapters)
		if err != nil {
			h.logger.Error("scraper_session_run_failed", slog.String("error", err.Error()))
			return
		}
		h.logger.Info("scraper_session_finished", slog.String("session_id", result.SessionID), slog.Int("vehicle_count", result.VehicleCount))
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"message": "scraping session started"})
}

// StreamSession implements the scraping-session SSE stream: one named
// scraper event per orchestrator progress tick.
func (h *ScraperHandler) StreamSession(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		jsonError(w, "session_id is required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := &realtime.Subscriber{ID: uuid.NewString(), Messages: make(chan []byte, 32), Done: make(chan struct{})}
	h.broker.Subscribe(sessionID, sub)
	defer h.broker.Unsubscribe(sessionID, sub)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-sub.Messages:
			if _, err := fmt.Fprint(w, string(msg)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
