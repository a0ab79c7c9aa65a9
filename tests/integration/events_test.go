//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/bissquit/status-garden/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncidentLifecycle(t *testing.T) {
	admin := newAdminClient(t)
	operator := newOperatorClient(t)

	orgID, orgSlug := createTestOrganization(t, admin, "Lifecycle Org")
	serviceID := createTestService(t, admin, orgID, "API")

	assert.Equal(t, "operational", serviceStatusOnPage(t, orgSlug, serviceID))

	resp, err := operator.POST("/api/v1/organizations/"+orgID+"/incidents", map[string]interface{}{
		"title":       "Elevated error rates",
		"impact":      "major",
		"message":     "We are investigating elevated error rates.",
		"service_ids": []string{serviceID},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Data struct {
			ID         string   `json:"id"`
			Impact     string   `json:"impact"`
			ServiceIDs []string `json:"service_ids"`
			ResolvedAt *string  `json:"resolved_at"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &created)
	incidentID := created.Data.ID
	assert.Equal(t, "major", created.Data.Impact)
	assert.Nil(t, created.Data.ResolvedAt)

	// A major open incident drives the affected service to partial outage.
	assert.Equal(t, "partial_outage", serviceStatusOnPage(t, orgSlug, serviceID))

	resp, err = operator.POST("/api/v1/organizations/"+orgID+"/incidents/"+incidentID+"/updates", map[string]string{
		"phase":   "identified",
		"message": "Root cause identified.",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	// Identified is not terminal, status still degraded.
	assert.Equal(t, "partial_outage", serviceStatusOnPage(t, orgSlug, serviceID))

	resp, err = operator.POST("/api/v1/organizations/"+orgID+"/incidents/"+incidentID+"/updates", map[string]string{
		"phase":   "resolved",
		"message": "A fix has been deployed.",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	assert.Equal(t, "operational", serviceStatusOnPage(t, orgSlug, serviceID))

	resp, err = operator.GET("/api/v1/organizations/" + orgID + "/incidents/" + incidentID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched struct {
		Data struct {
			ResolvedAt *string `json:"resolved_at"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &fetched)
	assert.NotNil(t, fetched.Data.ResolvedAt)

	// Resolved incidents accept no further updates.
	resp, err = operator.POST("/api/v1/organizations/"+orgID+"/incidents/"+incidentID+"/updates", map[string]string{
		"phase":   "monitoring",
		"message": "Watching the metrics.",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestOverlappingIncidentsWorstImpactWins(t *testing.T) {
	admin := newAdminClient(t)
	operator := newOperatorClient(t)

	orgID, orgSlug := createTestOrganization(t, admin, "Overlap Org")
	serviceID := createTestService(t, admin, orgID, "Checkout")

	var incidentIDs []string
	for _, impact := range []string{"minor", "critical"} {
		resp, err := operator.POST("/api/v1/organizations/"+orgID+"/incidents", map[string]interface{}{
			"title":       "Incident " + impact,
			"impact":      impact,
			"message":     "Investigating.",
			"service_ids": []string{serviceID},
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var created struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		testutil.DecodeJSON(t, resp, &created)
		incidentIDs = append(incidentIDs, created.Data.ID)
	}

	// Critical outranks minor.
	assert.Equal(t, "major_outage", serviceStatusOnPage(t, orgSlug, serviceID))

	// Resolving the critical incident drops the status to the remaining
	// minor incident, not to operational.
	resp, err := operator.POST("/api/v1/organizations/"+orgID+"/incidents/"+incidentIDs[1]+"/updates", map[string]string{
		"phase":   "resolved",
		"message": "Resolved.",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	assert.Equal(t, "degraded_performance", serviceStatusOnPage(t, orgSlug, serviceID))

	resp, err = operator.POST("/api/v1/organizations/"+orgID+"/incidents/"+incidentIDs[0]+"/updates", map[string]string{
		"phase":   "resolved",
		"message": "Resolved.",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	assert.Equal(t, "operational", serviceStatusOnPage(t, orgSlug, serviceID))
}

func TestCreateIncidentRejectsUnknownService(t *testing.T) {
	admin := newAdminClient(t)
	operator := newOperatorClient(t)

	orgID, _ := createTestOrganization(t, admin, "Validation Org")

	resp, err := operator.POST("/api/v1/organizations/"+orgID+"/incidents", map[string]interface{}{
		"title":       "Ghost incident",
		"impact":      "minor",
		"message":     "Investigating.",
		"service_ids": []string{"00000000-0000-0000-0000-000000000000"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestDeleteIncidentRecomputesStatus(t *testing.T) {
	admin := newAdminClient(t)
	operator := newOperatorClient(t)

	orgID, orgSlug := createTestOrganization(t, admin, "Delete Org")
	serviceID := createTestService(t, admin, orgID, "Search")

	resp, err := operator.POST("/api/v1/organizations/"+orgID+"/incidents", map[string]interface{}{
		"title":       "Search degraded",
		"impact":      "critical",
		"message":     "Investigating.",
		"service_ids": []string{serviceID},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &created)

	assert.Equal(t, "major_outage", serviceStatusOnPage(t, orgSlug, serviceID))

	resp, err = operator.DELETE("/api/v1/organizations/" + orgID + "/incidents/" + created.Data.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	assert.Equal(t, "operational", serviceStatusOnPage(t, orgSlug, serviceID))
}

func TestIncidentRoutesScopedToOrganization(t *testing.T) {
	admin := newAdminClient(t)
	operator := newOperatorClient(t)

	orgAID, _ := createTestOrganization(t, admin, "Org A")
	orgBID, _ := createTestOrganization(t, admin, "Org B")
	serviceID := createTestService(t, admin, orgAID, "API")

	resp, err := operator.POST("/api/v1/organizations/"+orgAID+"/incidents", map[string]interface{}{
		"title":       "Org A incident",
		"impact":      "minor",
		"message":     "Investigating.",
		"service_ids": []string{serviceID},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &created)
	incidentID := created.Data.ID

	// The incident is reachable under its own organization.
	resp, err = operator.GET("/api/v1/organizations/" + orgAID + "/incidents/" + incidentID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// Under another organization every route 404s.
	resp, err = operator.GET("/api/v1/organizations/" + orgBID + "/incidents/" + incidentID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = operator.POST("/api/v1/organizations/"+orgBID+"/incidents/"+incidentID+"/updates", map[string]interface{}{
		"phase":   "resolved",
		"message": "Not yours.",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = operator.DELETE("/api/v1/organizations/" + orgBID + "/incidents/" + incidentID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}
