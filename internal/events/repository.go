// Package events governs the incident and maintenance lifecycle: the state
// machine over updates, manual maintenance overrides, and the recompute and
// notification chain each transition triggers.
package events

import (
	"context"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Repository defines storage for incidents and scheduled maintenances.
type Repository interface {
	GetIncident(ctx context.Context, id string) (*domain.Incident, error)
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]*domain.Incident, error)
	ListIncidentUpdates(ctx context.Context, incidentID string) ([]*domain.IncidentUpdate, error)

	GetMaintenance(ctx context.Context, id string) (*domain.ScheduledMaintenance, error)
	ListMaintenances(ctx context.Context, filter MaintenanceFilter) ([]*domain.ScheduledMaintenance, error)
	ListMaintenanceUpdates(ctx context.Context, maintenanceID string) ([]*domain.MaintenanceUpdate, error)
	CreateMaintenanceUpdate(ctx context.Context, update *domain.MaintenanceUpdate) error

	// Projection source: open incidents and all maintenances touching a
	// service. Satisfies statuslog.ActiveSource.
	ListOpenIncidentsForService(ctx context.Context, serviceID string) ([]*domain.Incident, error)
	ListMaintenancesForService(ctx context.Context, serviceID string) ([]*domain.ScheduledMaintenance, error)

	// ListMaintenanceServiceIDsCrossing returns the services affected by
	// maintenances whose start or end time falls inside (from, to]. Used by
	// the time-derived phase sweep.
	ListMaintenanceServiceIDsCrossing(ctx context.Context, from, to time.Time) ([]string, error)

	// Transaction support.
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CreateIncidentTx(ctx context.Context, tx pgx.Tx, incident *domain.Incident) error
	CreateIncidentUpdateTx(ctx context.Context, tx pgx.Tx, update *domain.IncidentUpdate) error
	SetIncidentResolvedTx(ctx context.Context, tx pgx.Tx, incidentID string, at time.Time) error
	AssociateIncidentServicesTx(ctx context.Context, tx pgx.Tx, incidentID string, serviceIDs []string) error
	DeleteIncidentTx(ctx context.Context, tx pgx.Tx, id string) error

	CreateMaintenanceTx(ctx context.Context, tx pgx.Tx, m *domain.ScheduledMaintenance) error
	AssociateMaintenanceServicesTx(ctx context.Context, tx pgx.Tx, maintenanceID string, serviceIDs []string) error
	UpdateMaintenanceWindowTx(ctx context.Context, tx pgx.Tx, maintenanceID string, start, end time.Time) error
	DeleteMaintenanceTx(ctx context.Context, tx pgx.Tx, id string) error
}

// IncidentFilter holds filter options for listing incidents.
type IncidentFilter struct {
	OrganizationID string
	OpenOnly       bool
	Limit          int
	Offset         int
}

// MaintenanceFilter holds filter options for listing maintenances.
type MaintenanceFilter struct {
	OrganizationID string
	// ActiveOnly keeps maintenances that are scheduled or in progress.
	ActiveOnly bool
	Limit      int
	Offset     int
}
