package domain

import "time"

// MaintenancePhase represents the lifecycle stage of a scheduled maintenance.
// It is derived from wall clock time, never stored.
type MaintenancePhase string

// Maintenance phases.
const (
	MaintenancePhaseScheduled  MaintenancePhase = "scheduled"
	MaintenancePhaseInProgress MaintenancePhase = "in_progress"
	MaintenancePhaseCompleted  MaintenancePhase = "completed"
)

// IsTerminal reports whether the phase ends the maintenance lifecycle.
func (p MaintenancePhase) IsTerminal() bool {
	return p == MaintenancePhaseCompleted
}

// ScheduledMaintenance represents planned work on one or more services.
type ScheduledMaintenance struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Impact         Impact    `json:"impact"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	ServiceIDs     []string  `json:"service_ids"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Phase derives the maintenance phase from the given reference time.
// A manual start or completion rewrites StartTime/EndTime to now, so the
// derivation stays the single source of phase truth.
func (m *ScheduledMaintenance) Phase(now time.Time) MaintenancePhase {
	if now.Before(m.StartTime) {
		return MaintenancePhaseScheduled
	}
	if now.Before(m.EndTime) {
		return MaintenancePhaseInProgress
	}
	return MaintenancePhaseCompleted
}

// ResolveMaintenanceStatus derives the service status implied by a maintenance
// with the given impact and phase. Only in-progress maintenances affect status.
func ResolveMaintenanceStatus(impact Impact, phase MaintenancePhase) ServiceStatus {
	if phase != MaintenancePhaseInProgress {
		return ServiceStatusOperational
	}
	return impact.ServiceStatus()
}

// MaintenanceUpdate is append-only commentary on a maintenance.
// It never changes the derived phase.
type MaintenanceUpdate struct {
	ID            string    `json:"id"`
	MaintenanceID string    `json:"maintenance_id"`
	Message       string    `json:"message"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}
