package handler

import (
	"log/slog"
	"net/http"

	"github.com/silverfox/cao-engine/internal/queue"
	"github.com/silverfox/cao-engine/internal/realtime"
	"github.com/silverfox/cao-engine/internal/scraper"
)

// DebugHandler exposes the Scraper Orchestrator, Queue Processor, and SSE
// broker's live activity for operator troubleshooting.
type DebugHandler struct {
	orchestrator *scraper.Orchestrator
	processor    *queue.Processor
	broker       *realtime.Broker
	logger       *slog.Logger
}

func NewDebugHandler(o *scraper.Orchestrator, p *queue.Processor, broker *realtime.Broker, logger *slog.Logger) *DebugHandler {
	return &DebugHandler{orchestrator: o, processor: p, broker: broker, logger: logger}
}

// ScraperStats returns the orchestrator's current activity.
func (h *DebugHandler) ScraperStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orchestrator.Stats())
}

// QueueStats returns the queue processor's current depth.
func (h *DebugHandler) QueueStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.processor.Stats())
}

// SSEStats returns current SSE broker statistics.
func (h *DebugHandler) SSEStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.broker.Stats())
}

// AllStats returns combined debug information.
func (h *DebugHandler) AllStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scraper": h.orchestrator.Stats(),
		"queue":   h.processor.Stats(),
		"sse":     h.broker.Stats(),
	})
}
