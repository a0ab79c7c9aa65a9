package events

import "errors"

// Lifecycle errors.
var (
	ErrIncidentNotFound    = errors.New("incident not found")
	ErrMaintenanceNotFound = errors.New("maintenance not found")

	// ErrIncidentResolved is returned when appending an update to an incident
	// whose resolution has already been recorded. Resolution is terminal.
	ErrIncidentResolved = errors.New("incident already resolved")

	ErrInvalidImpact = errors.New("invalid impact level")
	ErrInvalidPhase  = errors.New("invalid incident phase")

	// ErrInvalidWindow is returned when a maintenance window has end_time
	// before or equal to start_time.
	ErrInvalidWindow = errors.New("maintenance end time must be after start time")

	ErrMaintenanceNotScheduled  = errors.New("maintenance can only be started while scheduled")
	ErrMaintenanceNotInProgress = errors.New("maintenance can only be completed while in progress")

	ErrAffectedServiceNotFound = errors.New("affected service not found")
)
