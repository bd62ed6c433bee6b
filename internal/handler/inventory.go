package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/silverfox/cao-engine/internal/domain"
	"github.com/silverfox/cao-engine/internal/store"
)

// InventoryHandler exposes read access to the normalized vehicle table:
// search, per-VIN history, and per-dealership listing.
type InventoryHandler struct {
	store  *store.Store
	logger *slog.Logger
}

func NewInventoryHandler(s *store.Store, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{store: s, logger: logger}
}

// SearchVehicles implements the `search_vehicles` external call.
func (h *InventoryHandler) SearchVehicles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	limit := 20
	offset := 0
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 200 {
		limit = l
	}
	if o, err := strconv.Atoi(q.Get("offset")); err == nil && o >= 0 {
		offset = o
	}

	filters := store.SearchFilters{
		Location:    q.Get("location"),
		Make:        q.Get("make"),
		Model:       q.Get("model"),
		VehicleType: q.Get("vehicle_type"),
	}
	if y := q.Get("year"); y != "" {
		if year, err := strconv.Atoi(y); err == nil {
			filters.Year = &year
		}
	}

	vehicles, total, err := h.store.SearchVehicles(ctx, filters, limit, offset)
	if err != nil {
		h.logger.Error("search_vehicles_failed", slog.String("error", err.Error()))
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, domain.PaginatedResponse[domain.Vehicle]{
		Items:   vehicles,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+len(vehicles)) < total,
	})
}

// VehicleHistory implements the `vehicle_history` external call: every raw
// scrape row ever recorded for one VIN, in ingestion order.
func (h *InventoryHandler) VehicleHistory(w http.ResponseWriter, r *http.Request) {
	vin := r.URL.Query().Get("vin")
	if vin == "" {
		jsonError(w, "vin is required", http.StatusBadRequest)
		return
	}

	rows, err := h.store.VehicleHistory(r.Context(), vin)
	if err != nil {
		h.logger.Error("vehicle_history_failed", slog.String("vin", vin), slog.String("error", err.Error()))
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"vin": vin, "history": rows})
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
