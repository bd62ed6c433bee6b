package handler

import (
	"log/slog"
	"net/http"

	"github.com/silverfox/cao-engine/internal/domain"
	"github.com/silverfox/cao-engine/internal/ingest"
	"github.com/silverfox/cao-engine/internal/store"
)

// ImportHandler drives CSV inventory uploads and manifest lifecycle
// endpoints (`import_csv`, `toggle_import_status`, `export_scraper_import`).
type ImportHandler struct {
	ingester *ingest.Ingester
	store    *store.Store
	logger   *slog.Logger
}

func NewImportHandler(ing *ingest.Ingester, s *store.Store, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{ingester: ing, store: s, logger: logger}
}

// ImportCSV implements the `import_csv` external call: parse a multipart
// CSV upload and ingest it as the new active manifest.
func (h *ImportHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	rows, err := ingest.ParseInventoryCSV(file)
	if err != nil {
		jsonError(w, "invalid csv: "+err.Error(), http.StatusBadRequest)
		return
	}

	// import_csv always activates the new manifest, archiving whatever was
	// previously active — there is no opt-out.
	res, err := h.ingester.IngestBatch(r.Context(), rows, ingest.BatchOptions{
		Source:   domain.ImportSourceCSVUpload,
		FileName: header.Filename,
		Activate: true,
	})
	if err != nil {
		h.logger.Error("import_csv_failed", slog.String("error", err.Error()))
		jsonError(w, "ingest failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"import_id":  res.ImportID,
		"row_count":  res.RowCount,
		"incomplete": res.Incomplete,
		"warnings":   res.Warnings,
		"activated":  true,
	})
}

// ToggleImportStatus implements `toggle_import_status`: archive or
// reactivate a manifest without re-ingesting its rows.
func (h *ImportHandler) ToggleImportStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImportID string `json:"import_id"`
		Status   string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	status := domain.ManifestStatus(req.Status)
	if status != domain.ManifestActive && status != domain.ManifestArchived {
		jsonError(w, "status must be active or archived", http.StatusBadRequest)
		return
	}

	if err := h.store.ToggleImportStatus(r.Context(), req.ImportID, status); err != nil {
		h.logger.Error("toggle_import_status_failed", slog.String("import_id", req.ImportID), slog.String("error", err.Error()))
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"import_id": req.ImportID, "status": req.Status})
}

// ExportScraperImport implements `export_scraper_import`: the currently
// active manifest's metadata, for operators auditing what's live.
func (h *ImportHandler) ExportScraperImport(w http.ResponseWriter, r *http.Request) {
	manifest, err := h.store.ActiveManifest(r.Context())
	if err != nil {
		h.logger.Error("export_scraper_import_failed", slog.String("error", err.Error()))
		jsonError(w, "no active manifest", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, manifest)
}
