package handler

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/silverfox/cao-engine/internal/domain"
	"github.com/silverfox/cao-engine/internal/store"
)

// VINLogHandler implements the durable per-dealership VIN log's import and
// export external calls.
type VINLogHandler struct {
	store  *store.Store
	logger *slog.Logger
}

func NewVINLogHandler(s *store.Store, logger *slog.Logger) *VINLogHandler {
	return &VINLogHandler{store: s, logger: logger}
}

var vinLogColumns = []string{"vin", "order_number", "processed_date", "order_type", "vehicle_type"}

// ImportVINLog implements `import_vin_log`: bulk-load a dealership's
// historical VIN log, e.g. when onboarding a dealership that already has
// order history elsewhere.
func (h *VINLogHandler) ImportVINLog(w http.ResponseWriter, r *http.Request) {
	dealership := r.URL.Query().Get("dealership")
	if dealership == "" {
		jsonError(w, "dealership is required", http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	entries, err := parseVINLogCSV(file, dealership)
	if err != nil {
		jsonError(w, "invalid csv: "+err.Error(), http.StatusBadRequest)
		return
	}

	opts := store.VINLogImportOptions{
		SkipDuplicates: r.FormValue("skip_duplicates") != "false",
		UpdateExisting: r.FormValue("update_existing") == "true",
	}

	counts, err := h.store.ImportVINLog(r.Context(), dealership, entries, opts)
	if err != nil {
		h.logger.Error("import_vin_log_failed", slog.String("dealership", dealership), slog.String("error", err.Error()))
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, counts)
}

func parseVINLogCSV(r io.Reader, dealership string) ([]domain.VINLogEntry, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) != len(vinLogColumns) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(vinLogColumns), len(header))
	}
	for i, col := range vinLogColumns {
		if strings.ToLower(strings.TrimSpace(header[i])) != col {
			return nil, fmt.Errorf("column %d: expected %q, got %q", i, col, header[i])
		}
	}

	var entries []domain.VINLogEntry
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		processed, _ := time.Parse("2006-01-02", record[2])
		entries = append(entries, domain.VINLogEntry{
			Dealership:    dealership,
			VIN:           strings.ToUpper(strings.TrimSpace(record[0])),
			OrderNumber:   record[1],
			ProcessedDate: processed,
			OrderType:     domain.OrderType(record[3]),
			VehicleType:   domain.VehicleType(record[4]),
		})
	}
	return entries, nil
}

// ExportVINLog implements `export_vin_log`.
func (h *VINLogHandler) ExportVINLog(w http.ResponseWriter, r *http.Request) {
	dealership := r.URL.Query().Get("dealership")
	if dealership == "" {
		jsonError(w, "dealership is required", http.StatusBadRequest)
		return
	}

	entries, err := h.store.ExportVINLog(r.Context(), dealership)
	if err != nil {
		h.logger.Error("export_vin_log_failed", slog.String("dealership", dealership), slog.String("error", err.Error()))
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"dealership": dealership, "entries": entries})
}

// VINHistory implements `vin_history`: every dealership that has ever
// logged this VIN (minus exclude_dealership, when given), e.g. to explain a
// cross-dealership move classification.
func (h *VINLogHandler) VINHistory(w http.ResponseWriter, r *http.Request) {
	vin := r.URL.Query().Get("vin")
	if vin == "" {
		jsonError(w, "vin is required", http.StatusBadRequest)
		return
	}
	excludeDealership := r.URL.Query().Get("exclude_dealership")

	byDealership, err := h.store.CrossDealershipVINs(r.Context(), excludeDealership)
	if err != nil {
		h.logger.Error("vin_history_failed", slog.String("vin", vin), slog.String("error", err.Error()))
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	var hits []domain.VINLogEntry
	for _, entries := range byDealership {
		for _, e := range entries {
			if e.VIN == strings.ToUpper(vin) {
				hits = append(hits, e)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"vin": vin, "entries": hits})
}
