package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/pharmapos/internal/platform/httpx"
)

// Handler wires HTTP endpoints for inventory reports.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/inventory/expiring", h.handleExpiring)
}

type expiringResponse struct {
	WindowDays int           `json:"window_days"`
	Entries    []ExpiryEntry `json:"entries"`
}

func (h *Handler) handleExpiring(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 3650 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "days must be between 1 and 3650")
			return
		}
		days = n
		window = time.Duration(n) * 24 * time.Hour
	}
	entries, err := h.service.Expiring(r.Context(), window)
	if err != nil {
		h.logger.Error("expiry report failed", slog.Any("error", err))
		if errors.Is(err, ErrSourceUnavailable) {
			httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	if days == 0 {
		days = int(h.service.ExpiryWindow() / (24 * time.Hour))
	}
	h.logger.Info("expiry report", slog.Int("window_days", days), slog.Int("count", len(entries)))
	httpx.JSON(w, http.StatusOK, expiringResponse{WindowDays: days, Entries: entries})
}
