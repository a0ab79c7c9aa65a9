package events

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Pagination constants.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Handler handles HTTP requests for the events module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new events handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers operator routes for the events module.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/organizations/{orgID}/incidents", func(r chi.Router) {
		r.Get("/", h.ListIncidents)
		r.Post("/", h.CreateIncident)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(h.incidentOrgScope)
			r.Get("/", h.GetIncident)
			r.Delete("/", h.DeleteIncident)
			r.Get("/updates", h.ListIncidentUpdates)
			r.Post("/updates", h.AddIncidentUpdate)
		})
	})

	r.Route("/organizations/{orgID}/maintenances", func(r chi.Router) {
		r.Get("/", h.ListMaintenances)
		r.Post("/", h.CreateMaintenance)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(h.maintenanceOrgScope)
			r.Get("/", h.GetMaintenance)
			r.Delete("/", h.DeleteMaintenance)
			r.Post("/start", h.StartMaintenance)
			r.Post("/complete", h.CompleteMaintenance)
			r.Get("/updates", h.ListMaintenanceUpdates)
			r.Post("/updates", h.AddMaintenanceUpdate)
		})
	})
}

// incidentOrgScope rejects requests whose incident does not belong to the
// organization in the URL.
func (h *Handler) incidentOrgScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		incident, err := h.service.GetIncident(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			h.handleServiceError(w, err)
			return
		}
		if incident.OrganizationID != chi.URLParam(r, "orgID") {
			httputil.Error(w, http.StatusNotFound, ErrIncidentNotFound.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// maintenanceOrgScope rejects requests whose maintenance does not belong to
// the organization in the URL.
func (h *Handler) maintenanceOrgScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, err := h.service.GetMaintenance(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			h.handleServiceError(w, err)
			return
		}
		if m.OrganizationID != chi.URLParam(r, "orgID") {
			httputil.Error(w, http.StatusNotFound, ErrMaintenanceNotFound.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateIncidentRequest represents the request body for reporting an incident.
type CreateIncidentRequest struct {
	Title       string   `json:"title" validate:"required,min=1,max=255"`
	Description string   `json:"description"`
	Impact      string   `json:"impact" validate:"required,oneof=none minor major critical"`
	Phase       string   `json:"phase" validate:"omitempty,oneof=investigating identified monitoring resolved"`
	Message     string   `json:"message" validate:"required,min=1"`
	ServiceIDs  []string `json:"service_ids"`
}

// AddIncidentUpdateRequest represents the request body for an incident update.
type AddIncidentUpdateRequest struct {
	Phase   string `json:"phase" validate:"required,oneof=investigating identified monitoring resolved"`
	Message string `json:"message" validate:"required,min=1"`
}

// CreateMaintenanceRequest represents the request body for scheduling a
// maintenance window.
type CreateMaintenanceRequest struct {
	Title       string    `json:"title" validate:"required,min=1,max=255"`
	Description string    `json:"description"`
	Impact      string    `json:"impact" validate:"required,oneof=none minor major critical"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required"`
	ServiceIDs  []string  `json:"service_ids"`
}

// AddMaintenanceUpdateRequest represents the request body for a maintenance
// update.
type AddMaintenanceUpdateRequest struct {
	Message string `json:"message" validate:"required,min=1"`
}

// CreateIncident handles POST /incidents request.
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var req CreateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	input := CreateIncidentInput{
		OrganizationID: chi.URLParam(r, "orgID"),
		Title:          req.Title,
		Description:    req.Description,
		Impact:         domain.Impact(req.Impact),
		Phase:          domain.IncidentPhase(req.Phase),
		Message:        req.Message,
		ServiceIDs:     req.ServiceIDs,
	}

	incident, err := h.service.CreateIncident(r.Context(), input, httputil.GetUserID(r.Context()))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusCreated, incident)
}

// GetIncident handles GET /incidents/{id} request.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := h.service.GetIncident(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

// ListIncidents handles GET /incidents request.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	filter := IncidentFilter{
		OrganizationID: chi.URLParam(r, "orgID"),
		OpenOnly:       r.URL.Query().Get("open") == "true",
	}

	var ok bool
	if filter.Limit, filter.Offset, ok = parsePagination(w, r); !ok {
		return
	}

	incidents, err := h.service.ListIncidents(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, incidents)
}

// DeleteIncident handles DELETE /incidents/{id} request.
func (h *Handler) DeleteIncident(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteIncident(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddIncidentUpdate handles POST /incidents/{id}/updates request.
func (h *Handler) AddIncidentUpdate(w http.ResponseWriter, r *http.Request) {
	var req AddIncidentUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	input := AddIncidentUpdateInput{
		IncidentID: chi.URLParam(r, "id"),
		Phase:      domain.IncidentPhase(req.Phase),
		Message:    req.Message,
	}

	update, err := h.service.AddIncidentUpdate(r.Context(), input, httputil.GetUserID(r.Context()))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusCreated, update)
}

// ListIncidentUpdates handles GET /incidents/{id}/updates request.
func (h *Handler) ListIncidentUpdates(w http.ResponseWriter, r *http.Request) {
	updates, err := h.service.ListIncidentUpdates(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, updates)
}

// CreateMaintenance handles POST /maintenances request.
func (h *Handler) CreateMaintenance(w http.ResponseWriter, r *http.Request) {
	var req CreateMaintenanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	input := CreateMaintenanceInput{
		OrganizationID: chi.URLParam(r, "orgID"),
		Title:          req.Title,
		Description:    req.Description,
		Impact:         domain.Impact(req.Impact),
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		ServiceIDs:     req.ServiceIDs,
	}

	m, err := h.service.CreateMaintenance(r.Context(), input, httputil.GetUserID(r.Context()))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusCreated, m)
}

// GetMaintenance handles GET /maintenances/{id} request.
func (h *Handler) GetMaintenance(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.GetMaintenance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, m)
}

// ListMaintenances handles GET /maintenances request.
func (h *Handler) ListMaintenances(w http.ResponseWriter, r *http.Request) {
	filter := MaintenanceFilter{
		OrganizationID: chi.URLParam(r, "orgID"),
		ActiveOnly:     r.URL.Query().Get("active") == "true",
	}

	var ok bool
	if filter.Limit, filter.Offset, ok = parsePagination(w, r); !ok {
		return
	}

	maintenances, err := h.service.ListMaintenances(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, maintenances)
}

// DeleteMaintenance handles DELETE /maintenances/{id} request.
func (h *Handler) DeleteMaintenance(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteMaintenance(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StartMaintenance handles POST /maintenances/{id}/start request.
func (h *Handler) StartMaintenance(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.StartMaintenanceNow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, m)
}

// CompleteMaintenance handles POST /maintenances/{id}/complete request.
func (h *Handler) CompleteMaintenance(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.CompleteMaintenanceNow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, m)
}

// AddMaintenanceUpdate handles POST /maintenances/{id}/updates request.
func (h *Handler) AddMaintenanceUpdate(w http.ResponseWriter, r *http.Request) {
	var req AddMaintenanceUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	update, err := h.service.AddMaintenanceUpdate(r.Context(),
		chi.URLParam(r, "id"), req.Message, httputil.GetUserID(r.Context()))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusCreated, update)
}

// ListMaintenanceUpdates handles GET /maintenances/{id}/updates request.
func (h *Handler) ListMaintenanceUpdates(w http.ResponseWriter, r *http.Request) {
	updates, err := h.service.ListMaintenanceUpdates(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, updates)
}

func parsePagination(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit = DefaultListLimit

	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return 0, 0, false
		}
		if parsed > MaxListLimit {
			parsed = MaxListLimit
		}
		limit = parsed
	}

	if o := r.URL.Query().Get("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			httputil.Error(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return 0, 0, false
		}
		offset = parsed
	}

	return limit, offset, true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrIncidentNotFound), errors.Is(err, ErrMaintenanceNotFound):
		httputil.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAffectedServiceNotFound):
		httputil.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidImpact), errors.Is(err, ErrInvalidPhase), errors.Is(err, ErrInvalidWindow):
		httputil.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrIncidentResolved), errors.Is(err, ErrMaintenanceNotScheduled), errors.Is(err, ErrMaintenanceNotInProgress):
		httputil.Error(w, http.StatusConflict, err.Error())
	default:
		slog.Error("internal error", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal error")
	}
}
