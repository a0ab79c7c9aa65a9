package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// OrganizationResolver resolves public organization slugs.
type OrganizationResolver interface {
	GetOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error)
}

// Handler handles HTTP requests for subscriptions.
type Handler struct {
	service   *Service
	orgs      OrganizationResolver
	validator *validator.Validate
}

// NewHandler creates a new notifications handler.
func NewHandler(service *Service, orgs OrganizationResolver) *Handler {
	return &Handler{
		service:   service,
		orgs:      orgs,
		validator: validator.New(),
	}
}

// RegisterPublicRoutes registers subscription routes. The router is mounted
// under /orgs/{orgSlug}.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/subscribers", h.Subscribe)
	r.Delete("/subscribers/{id}", h.Unsubscribe)
}

// SubscribeRequest represents the request body for subscribing.
type SubscribeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// SubscribeResponse carries the subscriber and the one-time unsubscribe token.
type SubscribeResponse struct {
	Subscriber       *domain.Subscriber `json:"subscriber"`
	UnsubscribeToken string             `json:"unsubscribe_token"`
}

// Subscribe handles POST /orgs/{orgSlug}/subscribers request.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	org, err := h.orgs.GetOrganizationBySlug(r.Context(), chi.URLParam(r, "orgSlug"))
	if err != nil {
		httputil.Error(w, http.StatusNotFound, "organization not found")
		return
	}

	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	subscriber, token, err := h.service.Subscribe(r.Context(), org.ID, req.Email)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusCreated, SubscribeResponse{
		Subscriber:       subscriber,
		UnsubscribeToken: token,
	})
}

// Unsubscribe handles DELETE /orgs/{orgSlug}/subscribers/{id}?token=... request.
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httputil.Error(w, http.StatusBadRequest, "token is required")
		return
	}

	if err := h.service.Unsubscribe(r.Context(), chi.URLParam(r, "id"), token); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSubscriberNotFound):
		httputil.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadySubscribed):
		httputil.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidUnsubscribeToken):
		httputil.Error(w, http.StatusForbidden, err.Error())
	default:
		slog.Error("internal error", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal error")
	}
}
