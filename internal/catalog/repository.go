package catalog

import (
	"context"

	"github.com/bissquit/status-garden/internal/domain"
)

// Repository defines the interface for catalog data operations.
type Repository interface {
	CreateOrganization(ctx context.Context, org *domain.Organization) error
	GetOrganizationByID(ctx context.Context, id string) (*domain.Organization, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error)
	ListOrganizations(ctx context.Context) ([]*domain.Organization, error)
	UpdateOrganizationName(ctx context.Context, id, name string) error
	DeleteOrganization(ctx context.Context, id string) error

	CreateService(ctx context.Context, service *domain.Service) error
	GetServiceByID(ctx context.Context, id string) (*domain.Service, error)
	ListServices(ctx context.Context, organizationID string) ([]*domain.Service, error)
	UpdateServiceName(ctx context.Context, id, name string) error
	DeleteService(ctx context.Context, id string) error

	// ExistingServiceIDs returns the subset of ids that exist and belong to
	// the organization.
	ExistingServiceIDs(ctx context.Context, organizationID string, ids []string) ([]string, error)
}
