// Package catalog provides HTTP handlers and business logic for managing
// organizations and their services.
package catalog

import (
	"context"
	"fmt"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/statuslog"
)

// StatusWriter writes status transitions to the status log. Implemented by
// statuslog.Projector.
type StatusWriter interface {
	// Recompute derives and persists the service's current status. The first
	// call for a new service seeds its initial operational interval.
	Recompute(ctx context.Context, serviceID string) (domain.ServiceStatus, error)
	// Override writes a manual status transition.
	Override(ctx context.Context, serviceID string, to domain.ServiceStatus) (statuslog.Transition, error)
}

// Service implements catalog business logic.
type Service struct {
	repo   Repository
	status StatusWriter
}

// NewService creates a new catalog service.
func NewService(repo Repository, status StatusWriter) *Service {
	return &Service{repo: repo, status: status}
}

// CreateOrganization creates an organization. The slug is immutable once set.
func (s *Service) CreateOrganization(ctx context.Context, org *domain.Organization) error {
	if !domain.IsValidSlug(org.Slug) {
		return ErrInvalidSlug
	}

	if existing, err := s.repo.GetOrganizationBySlug(ctx, org.Slug); err == nil && existing != nil {
		return ErrSlugExists
	}

	if err := s.repo.CreateOrganization(ctx, org); err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

// GetOrganization retrieves an organization by ID.
func (s *Service) GetOrganization(ctx context.Context, id string) (*domain.Organization, error) {
	return s.repo.GetOrganizationByID(ctx, id)
}

// GetOrganizationBySlug retrieves an organization by slug.
func (s *Service) GetOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	return s.repo.GetOrganizationBySlug(ctx, slug)
}

// ListOrganizations retrieves all organizations.
func (s *Service) ListOrganizations(ctx context.Context) ([]*domain.Organization, error) {
	return s.repo.ListOrganizations(ctx)
}

// RenameOrganization changes an organization's display name. The slug never
// changes.
func (s *Service) RenameOrganization(ctx context.Context, id, name string) error {
	if _, err := s.repo.GetOrganizationByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.UpdateOrganizationName(ctx, id, name); err != nil {
		return fmt.Errorf("rename organization: %w", err)
	}
	return nil
}

// DeleteOrganization removes an organization and everything scoped to it.
func (s *Service) DeleteOrganization(ctx context.Context, id string) error {
	if _, err := s.repo.GetOrganizationByID(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteOrganization(ctx, id)
}

// CreateService registers a service and seeds its first operational interval
// in the status log.
func (s *Service) CreateService(ctx context.Context, service *domain.Service) error {
	if _, err := s.repo.GetOrganizationByID(ctx, service.OrganizationID); err != nil {
		return err
	}

	service.CurrentStatus = domain.ServiceStatusOperational
	if err := s.repo.CreateService(ctx, service); err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	if _, err := s.status.Recompute(ctx, service.ID); err != nil {
		return fmt.Errorf("seed status log: %w", err)
	}
	return nil
}

// GetService retrieves a service by ID.
func (s *Service) GetService(ctx context.Context, id string) (*domain.Service, error) {
	return s.repo.GetServiceByID(ctx, id)
}

// ListServices retrieves all services of an organization.
func (s *Service) ListServices(ctx context.Context, organizationID string) ([]*domain.Service, error) {
	return s.repo.ListServices(ctx, organizationID)
}

// RenameService changes a service's display name.
func (s *Service) RenameService(ctx context.Context, id, name string) error {
	if _, err := s.repo.GetServiceByID(ctx, id); err != nil {
		return err
	}
	return s.repo.UpdateServiceName(ctx, id, name)
}

// DeleteService removes a service. Its status log history is retained.
func (s *Service) DeleteService(ctx context.Context, id string) error {
	if _, err := s.repo.GetServiceByID(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteService(ctx, id)
}

// OverrideServiceStatus writes a manual status transition for a service,
// bypassing projection until the next recompute.
func (s *Service) OverrideServiceStatus(ctx context.Context, id string, status domain.ServiceStatus) (*domain.Service, error) {
	service, err := s.repo.GetServiceByID(ctx, id)
	if err != nil {
		return nil, err
	}

	transition, err := s.status.Override(ctx, id, status)
	if err != nil {
		return nil, err
	}

	service.CurrentStatus = transition.To
	return service, nil
}

// ValidateServicesExist reports which of the given service IDs do not exist
// in the organization. Used by the events module before associating affected
// services.
func (s *Service) ValidateServicesExist(ctx context.Context, organizationID string, serviceIDs []string) ([]string, error) {
	if len(serviceIDs) == 0 {
		return nil, nil
	}

	existing, err := s.repo.ExistingServiceIDs(ctx, organizationID, serviceIDs)
	if err != nil {
		return nil, fmt.Errorf("check services: %w", err)
	}

	known := make(map[string]bool, len(existing))
	for _, id := range existing {
		known[id] = true
	}

	missing := make([]string, 0)
	for _, id := range serviceIDs {
		if !known[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
