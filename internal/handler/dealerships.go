package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/silverfox/cao-engine/internal/domain"
	"github.com/silverfox/cao-engine/internal/store"
)

// DealershipHandler exposes CRUD over per-dealership configuration:
// filter rules, output rules, and active status.
type DealershipHandler struct {
	store    *store.Store
	logger   *slog.Logger
	validate *validator.Validate
}

func NewDealershipHandler(s *store.Store, logger *slog.Logger) *DealershipHandler {
	return &DealershipHandler{store: s, logger: logger, validate: validator.New()}
}

// ListDealerships implements `list_dealerships`.
func (h *DealershipHandler) ListDealerships(w http.ResponseWriter, r *http.Request) {
	configs, err := h.store.ListDealershipConfigs(r.Context())
	if err != nil {
		h.logger.Error("list_dealerships_failed", slog.String("error", err.Error()))
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"dealerships": configs})
}

// GetDealership returns one dealership's configuration.
func (h *DealershipHandler) GetDealership(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	cfg, err := h.store.DealershipConfig(r.Context(), name)
	if err != nil {
		if err == store.ErrNotFound {
			jsonError(w, "dealership not found", http.StatusNotFound)
			return
		}
		h.logger.Error("get_dealership_failed", slog.String("dealership", name), slog.String("error", err.Error()))
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpsertDealership creates or edits a dealership's configuration.
func (h *DealershipHandler) UpsertDealership(w http.ResponseWriter, r *http.Request) {
	var cfg domain.DealershipConfig
	if err := decodeJSON(r, &cfg); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if cfg.Name == "" {
		jsonError(w, "name is required", http.StatusBadRequest)
		return
	}

	if err := h.store.UpsertDealershipConfig(r.Context(), cfg); err != nil {
		h.logger.Error("upsert_dealership_failed", slog.String("dealership", cfg.Name), slog.String("error", err.Error()))
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("dealership_config_upserted", slog.String("dealership", cfg.Name))
	writeJSON(w, http.StatusOK, cfg)
}
