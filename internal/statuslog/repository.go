// Package statuslog owns the append-only status interval ledger: the
// projector that writes transitions, the aggregator that computes uptime,
// and the reconciler that repairs invariant violations.
package statuslog

import (
	"context"
	"errors"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
)

// Repository errors.
var (
	ErrServiceNotFound = errors.New("service not found")
	ErrNoOpenEntry     = errors.New("no open status log entry")
)

// Transition describes the outcome of a projected status write.
type Transition struct {
	Changed bool
	From    domain.ServiceStatus
	To      domain.ServiceStatus
	At      time.Time
}

// Repository defines storage for status log intervals.
//
// TransitionStatus is the one place requiring mutual exclusion: it must lock
// the service row, close the open interval, open the new one and update the
// cached current_status in a single transaction, so two concurrent recomputes
// can never leave two open intervals.
type Repository interface {
	// TransitionStatus writes a status transition for the service. If the
	// service has no log entries yet it first seeds an operational interval
	// starting at the service's creation time. Returns Changed=false when the
	// projected status equals the open interval's status.
	TransitionStatus(ctx context.Context, serviceID string, status domain.ServiceStatus, at time.Time) (Transition, error)

	// GetOpenEntry returns the currently open interval for the service.
	GetOpenEntry(ctx context.Context, serviceID string) (*domain.StatusLogEntry, error)

	// ListEntriesOverlapping returns all intervals for the service that
	// overlap [from, to], ordered by started_at ascending.
	ListEntriesOverlapping(ctx context.Context, serviceID string, from, to time.Time) ([]domain.StatusLogEntry, error)

	// ListOpenEntries returns every open interval for the service ordered by
	// started_at ascending. More than one element is an invariant violation.
	ListOpenEntries(ctx context.Context, serviceID string) ([]domain.StatusLogEntry, error)

	// FindServicesWithMultipleOpenEntries returns service IDs violating the
	// single-open-interval invariant.
	FindServicesWithMultipleOpenEntries(ctx context.Context) ([]string, error)

	// CloseEntry sets ended_at on the given entry.
	CloseEntry(ctx context.Context, entryID string, at time.Time) error

	// ListServiceIDs returns all service IDs, for reconciliation sweeps.
	ListServiceIDs(ctx context.Context) ([]string, error)

	// GetCachedStatus returns the service's cached current_status.
	GetCachedStatus(ctx context.Context, serviceID string) (domain.ServiceStatus, error)

	// SetCachedStatus overwrites the cached current_status without touching
	// the log. Used only by the reconciler to realign the cache.
	SetCachedStatus(ctx context.Context, serviceID string, status domain.ServiceStatus) error
}

// ActiveSource lists the open incidents and maintenances affecting a service.
// Implemented by the events repository.
type ActiveSource interface {
	ListOpenIncidentsForService(ctx context.Context, serviceID string) ([]*domain.Incident, error)
	ListMaintenancesForService(ctx context.Context, serviceID string) ([]*domain.ScheduledMaintenance, error)
}
