package ops

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Handler holds dependencies for ops handlers.
type Handler struct {
	components Components
	version    string
}

// NewHandler creates a new ops handler.
func NewHandler(comps Components, version string) *Handler {
	return &Handler{
		components: comps,
		version:    version,
	}
}

// Health returns overall health: healthy when every configured
// component answers its ping, degraded otherwise.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.components.Archive != nil {
		if err := h.components.Archive.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.components.Cache != nil {
		if err := h.components.Cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.components.Bus != nil {
		if err := h.components.Bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetReport retrieves an archived screening report by id.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	reportID := chi.URLParam(r, "id")

	if reportID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "report id is required",
		})
		return
	}

	if h.components.Archive == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "archive not available",
		})
		return
	}

	report, err := h.components.Archive.GetReport(r.Context(), reportID)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "report not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to load archived report", "id", reportID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load report",
		})
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// ListReports returns archived reports, newest first. Query params:
// since (RFC3339, default all) and limit (default 50).
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	if h.components.Archive == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "archive not available",
		})
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "since must be RFC3339",
			})
			return
		}
		since = parsed
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = parsed
	}

	reports, err := h.components.Archive.ListReports(r.Context(), since, limit)
	if err != nil {
		slog.Error("failed to list archived reports", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list reports",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
		"count":   len(reports),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
