package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImpact_ServiceStatus(t *testing.T) {
	tests := []struct {
		impact   Impact
		expected ServiceStatus
	}{
		{ImpactCritical, ServiceStatusMajorOutage},
		{ImpactMajor, ServiceStatusPartialOutage},
		{ImpactMinor, ServiceStatusDegraded},
		{ImpactNone, ServiceStatusOperational},
	}

	for _, tt := range tests {
		t.Run(string(tt.impact), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.impact.ServiceStatus())
		})
	}
}

func TestResolveIncidentStatus(t *testing.T) {
	impacts := []Impact{ImpactNone, ImpactMinor, ImpactMajor, ImpactCritical}
	phases := []IncidentPhase{
		IncidentPhaseInvestigating,
		IncidentPhaseIdentified,
		IncidentPhaseMonitoring,
		IncidentPhaseResolved,
	}

	// Total: every (impact, phase) pair has exactly one valid result.
	for _, impact := range impacts {
		for _, phase := range phases {
			status := ResolveIncidentStatus(impact, phase)
			assert.True(t, status.IsValid(), "impact=%s phase=%s", impact, phase)

			if phase == IncidentPhaseResolved {
				assert.Equal(t, ServiceStatusOperational, status,
					"terminal phase must imply operational")
			} else {
				assert.Equal(t, impact.ServiceStatus(), status)
			}
		}
	}
}

func TestIncidentPhase_IsTerminal(t *testing.T) {
	assert.True(t, IncidentPhaseResolved.IsTerminal())
	assert.False(t, IncidentPhaseInvestigating.IsTerminal())
	assert.False(t, IncidentPhaseIdentified.IsTerminal())
	assert.False(t, IncidentPhaseMonitoring.IsTerminal())
}

func TestWorstServiceStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []ServiceStatus
		expected ServiceStatus
	}{
		{"empty set is operational", nil, ServiceStatusOperational},
		{
			"single degraded",
			[]ServiceStatus{ServiceStatusDegraded},
			ServiceStatusDegraded,
		},
		{
			"major outage wins",
			[]ServiceStatus{ServiceStatusDegraded, ServiceStatusMajorOutage, ServiceStatusPartialOutage},
			ServiceStatusMajorOutage,
		},
		{
			"all operational",
			[]ServiceStatus{ServiceStatusOperational, ServiceStatusOperational},
			ServiceStatusOperational,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, WorstServiceStatus(tt.statuses...))
		})
	}
}

func TestServiceStatus_Severity_Ordering(t *testing.T) {
	assert.Less(t, ServiceStatusOperational.Severity(), ServiceStatusDegraded.Severity())
	assert.Less(t, ServiceStatusDegraded.Severity(), ServiceStatusPartialOutage.Severity())
	assert.Less(t, ServiceStatusPartialOutage.Severity(), ServiceStatusMajorOutage.Severity())
}
