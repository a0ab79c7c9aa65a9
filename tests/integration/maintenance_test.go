//go:build integration

package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/bissquit/status-garden/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaintenanceLifecycle(t *testing.T) {
	admin := newAdminClient(t)
	operator := newOperatorClient(t)

	orgID, orgSlug := createTestOrganization(t, admin, "Maintenance Org")
	serviceID := createTestService(t, admin, orgID, "Database")

	start := time.Now().Add(2 * time.Hour).UTC()
	end := start.Add(time.Hour)

	resp, err := operator.POST("/api/v1/organizations/"+orgID+"/maintenances", map[string]interface{}{
		"title":       "Database upgrade",
		"impact":      "major",
		"start_time":  start.Format(time.RFC3339),
		"end_time":    end.Format(time.RFC3339),
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
	maintenanceID := created.Data.ID

	// A scheduled window in the future does not affect the live status but
	// shows up on the public feed.
	assert.Equal(t, "operational", serviceStatusOnPage(t, orgSlug, serviceID))

	public := newPublicClient()
	resp, err = public.GET("/api/v1/status/" + orgSlug)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page struct {
		ScheduledMaintenances []struct {
			Maintenance struct {
				ID string `json:"id"`
			} `json:"maintenance"`
			Phase string `json:"phase"`
		} `json:"scheduled_maintenances"`
	}
	testutil.DecodeJSON(t, resp, &page)
	require.Len(t, page.ScheduledMaintenances, 1)
	assert.Equal(t, maintenanceID, page.ScheduledMaintenances[0].Maintenance.ID)
	assert.Equal(t, "scheduled", page.ScheduledMaintenances[0].Phase)

	// Starting the window immediately applies its impact.
	resp, err = operator.POST("/api/v1/organizations/"+orgID+"/maintenances/"+maintenanceID+"/start", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	assert.Equal(t, "partial_outage", serviceStatusOnPage(t, orgSlug, serviceID))

	// Starting twice is a conflict.
	resp, err = operator.POST("/api/v1/organizations/"+orgID+"/maintenances/"+maintenanceID+"/start", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = operator.POST("/api/v1/organizations/"+orgID+"/maintenances/"+maintenanceID+"/complete", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	assert.Equal(t, "operational", serviceStatusOnPage(t, orgSlug, serviceID))
}

func TestCreateMaintenanceRejectsInvertedWindow(t *testing.T) {
	admin := newAdminClient(t)
	operator := newOperatorClient(t)

	orgID, _ := createTestOrganization(t, admin, "Window Org")
	serviceID := createTestService(t, admin, orgID, "Cache")

	start := time.Now().Add(2 * time.Hour).UTC()

	resp, err := operator.POST("/api/v1/organizations/"+orgID+"/maintenances", map[string]interface{}{
		"title":       "Broken window",
		"impact":      "minor",
		"start_time":  start.Format(time.RFC3339),
		"end_time":    start.Add(-time.Hour).Format(time.RFC3339),
		"service_ids": []string{serviceID},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestMaintenanceUpdatesAreAppendOnly(t *testing.T) {
	admin := newAdminClient(t)
	operator := newOperatorClient(t)

	orgID, _ := createTestOrganization(t, admin, "Notes Org")
	serviceID := createTestService(t, admin, orgID, "Queue")

	start := time.Now().Add(time.Hour).UTC()
	resp, err := operator.POST("/api/v1/organizations/"+orgID+"/maintenances", map[string]interface{}{
		"title":       "Queue maintenance",
		"impact":      "none",
		"start_time":  start.Format(time.RFC3339),
		"end_time":    start.Add(time.Hour).Format(time.RFC3339),
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

	for _, msg := range []string{"Prep started.", "Prep finished."} {
		resp, err = operator.POST("/api/v1/organizations/"+orgID+"/maintenances/"+created.Data.ID+"/updates", map[string]string{
			"message": msg,
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		_ = resp.Body.Close()
	}

	resp, err = operator.GET("/api/v1/organizations/" + orgID + "/maintenances/" + created.Data.ID + "/updates")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updates struct {
		Data []struct {
			Message string `json:"message"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &updates)
	assert.Len(t, updates.Data, 2)
}

func TestMaintenanceRoutesScopedToOrganization(t *testing.T) {
	admin := newAdminClient(t)
	operator := newOperatorClient(t)

	orgAID, _ := createTestOrganization(t, admin, "Maint Org A")
	orgBID, _ := createTestOrganization(t, admin, "Maint Org B")
	serviceID := createTestService(t, admin, orgAID, "Database")

	start := time.Now().Add(time.Hour)
	resp, err := operator.POST("/api/v1/organizations/"+orgAID+"/maintenances", map[string]interface{}{
		"title":       "Org A window",
		"impact":      "minor",
		"start_time":  start.Format(time.RFC3339),
		"end_time":    start.Add(time.Hour).Format(time.RFC3339),
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

	resp, err = operator.POST("/api/v1/organizations/"+orgBID+"/maintenances/"+created.Data.ID+"/start", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = operator.GET("/api/v1/organizations/" + orgBID + "/maintenances/" + created.Data.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}
