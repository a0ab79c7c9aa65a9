package catalog

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the catalog module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new catalog handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterAdminRoutes registers organization and service management routes.
// Patterns are flat so the incident routes under /organizations/{orgID} can
// coexist on the same router.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/organizations", h.ListOrganizations)
	r.Post("/organizations", h.CreateOrganization)
	r.Get("/organizations/{orgID}", h.GetOrganization)
	r.Patch("/organizations/{orgID}", h.RenameOrganization)
	r.Delete("/organizations/{orgID}", h.DeleteOrganization)
	r.Get("/organizations/{orgID}/services", h.ListServices)
	r.Post("/organizations/{orgID}/services", h.CreateService)

	r.Get("/services/{id}", h.GetService)
	r.Patch("/services/{id}", h.RenameService)
	r.Delete("/services/{id}", h.DeleteService)
}

// RegisterOperatorRoutes registers the manual status override route.
func (h *Handler) RegisterOperatorRoutes(r chi.Router) {
	r.Put("/services/{id}/status", h.OverrideServiceStatus)
}

// CreateOrganizationRequest represents the request body for creating an
// organization.
type CreateOrganizationRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
	Slug string `json:"slug" validate:"required,min=1,max=255"`
}

// RenameOrganizationRequest represents the request body for renaming an
// organization. The slug cannot be changed.
type RenameOrganizationRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

// CreateServiceRequest represents the request body for creating a service.
type CreateServiceRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

// RenameServiceRequest represents the request body for renaming a service.
type RenameServiceRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

// OverrideStatusRequest represents the request body for a manual status
// override.
type OverrideStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=operational degraded_performance partial_outage major_outage"`
}

// CreateOrganization handles POST /organizations request.
func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	org := &domain.Organization{Name: req.Name, Slug: req.Slug}
	if err := h.service.CreateOrganization(r.Context(), org); err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusCreated, org)
}

// GetOrganization handles GET /organizations/{orgID} request.
func (h *Handler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := h.service.GetOrganization(r.Context(), chi.URLParam(r, "orgID"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, org)
}

// ListOrganizations handles GET /organizations request.
func (h *Handler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.service.ListOrganizations(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, orgs)
}

// RenameOrganization handles PATCH /organizations/{orgID} request.
func (h *Handler) RenameOrganization(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orgID")

	var req RenameOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	if err := h.service.RenameOrganization(r.Context(), id, req.Name); err != nil {
		h.handleServiceError(w, err)
		return
	}

	org, err := h.service.GetOrganization(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, org)
}

// DeleteOrganization handles DELETE /organizations/{orgID} request.
func (h *Handler) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteOrganization(r.Context(), chi.URLParam(r, "orgID")); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateService handles POST /organizations/{orgID}/services request.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req CreateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	service := &domain.Service{
		OrganizationID: chi.URLParam(r, "orgID"),
		Name:           req.Name,
	}
	if err := h.service.CreateService(r.Context(), service); err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusCreated, service)
}

// GetService handles GET /services/{id} request.
func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	service, err := h.service.GetService(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, service)
}

// ListServices handles GET /organizations/{orgID}/services request.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.service.ListServices(r.Context(), chi.URLParam(r, "orgID"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, services)
}

// RenameService handles PATCH /services/{id} request.
func (h *Handler) RenameService(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req RenameServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	if err := h.service.RenameService(r.Context(), id, req.Name); err != nil {
		h.handleServiceError(w, err)
		return
	}

	service, err := h.service.GetService(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, service)
}

// DeleteService handles DELETE /services/{id} request.
func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteService(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// OverrideServiceStatus handles PUT /services/{id}/status request.
func (h *Handler) OverrideServiceStatus(w http.ResponseWriter, r *http.Request) {
	var req OverrideStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	service, err := h.service.OverrideServiceStatus(r.Context(),
		chi.URLParam(r, "id"), domain.ServiceStatus(req.Status))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, service)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrOrganizationNotFound), errors.Is(err, ErrServiceNotFound):
		httputil.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSlugExists):
		httputil.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidSlug), errors.Is(err, domain.ErrInvalidServiceStatus):
		httputil.Error(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("internal error", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal error")
	}
}
