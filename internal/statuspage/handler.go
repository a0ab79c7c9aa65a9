package statuspage

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bissquit/status-garden/internal/catalog"
	"github.com/bissquit/status-garden/internal/pkg/httputil"
	"github.com/bissquit/status-garden/internal/statuslog"
	"github.com/go-chi/chi/v5"
)

// DefaultUptimeWindow is used when the caller omits the range.
const DefaultUptimeWindow = 30 * 24 * time.Hour

// Aggregator computes downtime statistics. Implemented by
// statuslog.Aggregator.
type Aggregator interface {
	DailyDowntime(ctx context.Context, serviceID string, from, to time.Time) (map[string]int, error)
	UptimePercentage(ctx context.Context, serviceID string, from, to time.Time) (float64, error)
}

// Handler serves the public status endpoints.
type Handler struct {
	service    *Service
	catalog    CatalogReader
	aggregator Aggregator
}

// NewHandler creates a new statuspage handler.
func NewHandler(service *Service, catalogReader CatalogReader, aggregator Aggregator) *Handler {
	return &Handler{
		service:    service,
		catalog:    catalogReader,
		aggregator: aggregator,
	}
}

// RegisterPublicRoutes registers the status feed route.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/status/{orgSlug}", h.GetStatusPage)
}

// RegisterOrgRoutes registers per-organization routes. The router is mounted
// under /orgs/{orgSlug}.
func (h *Handler) RegisterOrgRoutes(r chi.Router) {
	r.Get("/services", h.ListServices)
	r.Get("/uptime/{serviceID}", h.GetUptime)
}

// GetStatusPage handles GET /status/{orgSlug} request.
func (h *Handler) GetStatusPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.GetStatusPage(r.Context(), chi.URLParam(r, "orgSlug"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, page)
}

// ListServices handles GET /orgs/{orgSlug}/services request.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.service.ListServicesWithStatus(r.Context(), chi.URLParam(r, "orgSlug"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, services)
}

// UptimeResponse carries downtime minutes per day and the uptime percentage
// over the requested window.
type UptimeResponse struct {
	ServiceID        string         `json:"service_id"`
	From             time.Time      `json:"from"`
	To               time.Time      `json:"to"`
	DailyDowntimeMin map[string]int `json:"daily_downtime_minutes"`
	UptimePercent    float64        `json:"uptime_percent"`
}

// GetUptime handles GET /orgs/{orgSlug}/uptime/{serviceID}?from=...&to=...
// request. Timestamps are RFC 3339; the window defaults to the last 30 days.
func (h *Handler) GetUptime(w http.ResponseWriter, r *http.Request) {
	org, err := h.catalog.GetOrganizationBySlug(r.Context(), chi.URLParam(r, "orgSlug"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	serviceID := chi.URLParam(r, "serviceID")
	service, err := h.catalog.GetService(r.Context(), serviceID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	if service.OrganizationID != org.ID {
		httputil.Error(w, http.StatusNotFound, catalog.ErrServiceNotFound.Error())
		return
	}

	to := time.Now().UTC()
	from := to.Add(-DefaultUptimeWindow)

	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "from must be RFC 3339")
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "to must be RFC 3339")
			return
		}
		to = parsed
	}

	daily, err := h.aggregator.DailyDowntime(r.Context(), serviceID, from, to)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	uptime, err := h.aggregator.UptimePercentage(r.Context(), serviceID, from, to)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, UptimeResponse{
		ServiceID:        serviceID,
		From:             from,
		To:               to,
		DailyDowntimeMin: daily,
		UptimePercent:    uptime,
	})
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrOrganizationNotFound), errors.Is(err, catalog.ErrServiceNotFound):
		httputil.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, statuslog.ErrInvalidRange):
		httputil.Error(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("internal error", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal error")
	}
}
