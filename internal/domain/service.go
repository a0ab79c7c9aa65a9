package domain

import (
	"errors"
	"time"
)

// ErrInvalidServiceStatus indicates a status outside the known set.
var ErrInvalidServiceStatus = errors.New("invalid service status")

// ServiceStatus represents the operational status of a service.
type ServiceStatus string

// Service statuses, ordered from healthy to worst.
const (
	ServiceStatusOperational   ServiceStatus = "operational"
	ServiceStatusDegraded      ServiceStatus = "degraded_performance"
	ServiceStatusPartialOutage ServiceStatus = "partial_outage"
	ServiceStatusMajorOutage   ServiceStatus = "major_outage"
)

// IsValid checks if the service status is valid.
func (s ServiceStatus) IsValid() bool {
	switch s {
	case ServiceStatusOperational, ServiceStatusDegraded,
		ServiceStatusPartialOutage, ServiceStatusMajorOutage:
		return true
	}
	return false
}

// Severity returns the ordering rank of the status.
// operational < degraded_performance < partial_outage < major_outage.
func (s ServiceStatus) Severity() int {
	switch s {
	case ServiceStatusDegraded:
		return 1
	case ServiceStatusPartialOutage:
		return 2
	case ServiceStatusMajorOutage:
		return 3
	default:
		return 0
	}
}

// Label returns the human-readable label for the status.
func (s ServiceStatus) Label() string {
	switch s {
	case ServiceStatusDegraded:
		return "Degraded Performance"
	case ServiceStatusPartialOutage:
		return "Partial Outage"
	case ServiceStatusMajorOutage:
		return "Major Outage"
	default:
		return "Operational"
	}
}

// WorstServiceStatus returns the highest-severity status of the given set,
// or operational for an empty set.
func WorstServiceStatus(statuses ...ServiceStatus) ServiceStatus {
	worst := ServiceStatusOperational
	for _, s := range statuses {
		if s.Severity() > worst.Severity() {
			worst = s
		}
	}
	return worst
}

// Service represents a monitored service owned by an organization.
// CurrentStatus is a cached projection; the status log is the source of truth.
type Service struct {
	ID             string        `json:"id"`
	OrganizationID string        `json:"organization_id"`
	Name           string        `json:"name"`
	CurrentStatus  ServiceStatus `json:"current_status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}
