package domain

import "time"

// IncidentPhase represents the current lifecycle stage of an incident.
// The phase is carried by the most recent IncidentUpdate.
type IncidentPhase string

// Incident phases.
const (
	IncidentPhaseInvestigating IncidentPhase = "investigating"
	IncidentPhaseIdentified    IncidentPhase = "identified"
	IncidentPhaseMonitoring    IncidentPhase = "monitoring"
	IncidentPhaseResolved      IncidentPhase = "resolved"
)

// IsValid checks if the incident phase is valid.
func (p IncidentPhase) IsValid() bool {
	switch p {
	case IncidentPhaseInvestigating, IncidentPhaseIdentified,
		IncidentPhaseMonitoring, IncidentPhaseResolved:
		return true
	}
	return false
}

// IsTerminal reports whether the phase ends the incident lifecycle.
// Resolution is terminal: no further updates are accepted.
func (p IncidentPhase) IsTerminal() bool {
	return p == IncidentPhaseResolved
}

// Impact represents the severity classification of an incident or maintenance.
type Impact string

// Impact levels.
const (
	ImpactNone     Impact = "none"
	ImpactMinor    Impact = "minor"
	ImpactMajor    Impact = "major"
	ImpactCritical Impact = "critical"
)

// IsValid checks if the impact level is valid.
func (i Impact) IsValid() bool {
	switch i {
	case ImpactNone, ImpactMinor, ImpactMajor, ImpactCritical:
		return true
	}
	return false
}

// ServiceStatus maps an impact level to the service status it implies
// while the owning incident or maintenance is active.
func (i Impact) ServiceStatus() ServiceStatus {
	switch i {
	case ImpactCritical:
		return ServiceStatusMajorOutage
	case ImpactMajor:
		return ServiceStatusPartialOutage
	case ImpactMinor:
		return ServiceStatusDegraded
	default:
		return ServiceStatusOperational
	}
}

// ResolveIncidentStatus derives the service status implied by an incident
// with the given impact and phase. Total over all (impact, phase) pairs.
func ResolveIncidentStatus(impact Impact, phase IncidentPhase) ServiceStatus {
	if phase.IsTerminal() {
		return ServiceStatusOperational
	}
	return impact.ServiceStatus()
}

// Incident represents a reported problem affecting one or more services.
type Incident struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Impact         Impact     `json:"impact"`
	ServiceIDs     []string   `json:"service_ids"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ResolvedAt     *time.Time `json:"resolved_at"`
}

// IsOpen reports whether the incident still affects its services.
func (i *Incident) IsOpen() bool {
	return i.ResolvedAt == nil
}

// IncidentUpdate is one append-only record in an incident's lifecycle.
// The latest update's phase is the incident's current phase.
type IncidentUpdate struct {
	ID         string        `json:"id"`
	IncidentID string        `json:"incident_id"`
	Phase      IncidentPhase `json:"phase"`
	Message    string        `json:"message"`
	CreatedBy  string        `json:"created_by"`
	CreatedAt  time.Time     `json:"created_at"`
}
