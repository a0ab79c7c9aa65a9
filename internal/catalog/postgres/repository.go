// Package postgres provides the PostgreSQL implementation of the catalog
// repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/status-garden/internal/catalog"
	"github.com/bissquit/status-garden/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements the catalog.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateOrganization creates a new organization.
func (r *Repository) CreateOrganization(ctx context.Context, org *domain.Organization) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO organizations (name, slug)
		 VALUES ($1, $2)
		 RETURNING id, created_at, updated_at`,
		org.Name, org.Slug,
	).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

// GetOrganizationByID retrieves an organization by ID.
func (r *Repository) GetOrganizationByID(ctx context.Context, id string) (*domain.Organization, error) {
	return r.getOrganization(ctx, `WHERE id = $1`, id)
}

// GetOrganizationBySlug retrieves an organization by slug.
func (r *Repository) GetOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	return r.getOrganization(ctx, `WHERE slug = $1`, slug)
}

func (r *Repository) getOrganization(ctx context.Context, where string, arg any) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.QueryRow(ctx,
		`SELECT id, name, slug, created_at, updated_at FROM organizations `+where,
		arg,
	).Scan(&org.ID, &org.Name, &org.Slug, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &org, nil
}

// ListOrganizations retrieves all organizations ordered by name.
func (r *Repository) ListOrganizations(ctx context.Context) ([]*domain.Organization, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, slug, created_at, updated_at FROM organizations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	orgs := make([]*domain.Organization, 0)
	for rows.Next() {
		var org domain.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.Slug, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, &org)
	}
	return orgs, rows.Err()
}

// UpdateOrganizationName changes the organization's display name. The slug is
// intentionally not updatable.
func (r *Repository) UpdateOrganizationName(ctx context.Context, id, name string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE organizations SET name = $2, updated_at = now() WHERE id = $1`,
		id, name,
	)
	if err != nil {
		return fmt.Errorf("update organization name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrOrganizationNotFound
	}
	return nil
}

// DeleteOrganization removes an organization; scoped rows are removed via
// CASCADE.
func (r *Repository) DeleteOrganization(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrOrganizationNotFound
	}
	return nil
}

// CreateService creates a new service.
func (r *Repository) CreateService(ctx context.Context, service *domain.Service) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO services (organization_id, name, current_status)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		service.OrganizationID, service.Name, service.CurrentStatus,
	).Scan(&service.ID, &service.CreatedAt, &service.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	return nil
}

// GetServiceByID retrieves a service by ID.
func (r *Repository) GetServiceByID(ctx context.Context, id string) (*domain.Service, error) {
	var service domain.Service
	err := r.db.QueryRow(ctx,
		`SELECT id, organization_id, name, current_status, created_at, updated_at
		 FROM services WHERE id = $1`,
		id,
	).Scan(&service.ID, &service.OrganizationID, &service.Name,
		&service.CurrentStatus, &service.CreatedAt, &service.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrServiceNotFound
		}
		return nil, fmt.Errorf("get service: %w", err)
	}
	return &service, nil
}

// ListServices retrieves all services of an organization ordered by name.
func (r *Repository) ListServices(ctx context.Context, organizationID string) ([]*domain.Service, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, organization_id, name, current_status, created_at, updated_at
		 FROM services WHERE organization_id = $1
		 ORDER BY name`,
		organizationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	services := make([]*domain.Service, 0)
	for rows.Next() {
		var service domain.Service
		if err := rows.Scan(&service.ID, &service.OrganizationID, &service.Name,
			&service.CurrentStatus, &service.CreatedAt, &service.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, &service)
	}
	return services, rows.Err()
}

// UpdateServiceName changes the service's display name.
func (r *Repository) UpdateServiceName(ctx context.Context, id, name string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE services SET name = $2, updated_at = now() WHERE id = $1`,
		id, name,
	)
	if err != nil {
		return fmt.Errorf("update service name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrServiceNotFound
	}
	return nil
}

// DeleteService removes a service. Rows in status_log reference the service
// only by ID and survive the deletion.
func (r *Repository) DeleteService(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrServiceNotFound
	}
	return nil
}

// ExistingServiceIDs returns the subset of ids that exist in the organization.
func (r *Repository) ExistingServiceIDs(ctx context.Context, organizationID string, ids []string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM services WHERE organization_id = $1 AND id = ANY($2)`,
		organizationID, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("check service ids: %w", err)
	}
	defer rows.Close()

	existing := make([]string, 0, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan service id: %w", err)
		}
		existing = append(existing, id)
	}
	return existing, rows.Err()
}
