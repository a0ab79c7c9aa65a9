//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/bissquit/status-garden/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subscribe(t *testing.T, orgSlug, email string) (subscriberID, token string) {
	t.Helper()

	public := newPublicClient()
	resp, err := public.POST("/api/v1/orgs/"+orgSlug+"/subscribers", map[string]string{
		"email": email,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data struct {
			Subscriber struct {
				ID    string `json:"id"`
				Email string `json:"email"`
			} `json:"subscriber"`
			UnsubscribeToken string `json:"unsubscribe_token"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)

	require.Equal(t, email, result.Data.Subscriber.Email)
	require.NotEmpty(t, result.Data.UnsubscribeToken)
	return result.Data.Subscriber.ID, result.Data.UnsubscribeToken
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	admin := newAdminClient(t)
	_, orgSlug := createTestOrganization(t, admin, "Subscribers Org")

	subscriberID, token := subscribe(t, orgSlug, "reader@example.com")

	public := newPublicClient()

	// Wrong token is rejected.
	resp, err := public.DELETE("/api/v1/orgs/" + orgSlug + "/subscribers/" + subscriberID + "?token=wrong")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = public.DELETE("/api/v1/orgs/" + orgSlug + "/subscribers/" + subscriberID + "?token=" + token)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	// The subscription is gone.
	resp, err = public.DELETE("/api/v1/orgs/" + orgSlug + "/subscribers/" + subscriberID + "?token=" + token)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestSubscribeTwiceConflicts(t *testing.T) {
	admin := newAdminClient(t)
	_, orgSlug := createTestOrganization(t, admin, "Duplicate Org")

	subscribe(t, orgSlug, "dup@example.com")

	public := newPublicClient()
	resp, err := public.POST("/api/v1/orgs/"+orgSlug+"/subscribers", map[string]string{
		"email": "dup@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestSubscribeValidatesEmail(t *testing.T) {
	admin := newAdminClient(t)
	_, orgSlug := createTestOrganization(t, admin, "Email Org")

	public := newPublicClient()
	resp, err := public.POST("/api/v1/orgs/"+orgSlug+"/subscribers", map[string]string{
		"email": "not-an-email",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestIncidentUpdateEnqueuesNotifications(t *testing.T) {
	admin := newAdminClient(t)
	operator := newOperatorClient(t)

	orgID, orgSlug := createTestOrganization(t, admin, "Queue Org")
	serviceID := createTestService(t, admin, orgID, "API")

	subscribe(t, orgSlug, "alice@example.com")
	subscribe(t, orgSlug, "bob@example.com")

	// Notifications are disabled app-wide in tests, so creating an incident
	// must still succeed and simply skip the fan-out.
	resp, err := operator.POST("/api/v1/organizations/"+orgID+"/incidents", map[string]interface{}{
		"title":       "Queue incident",
		"impact":      "minor",
		"message":     "Investigating.",
		"service_ids": []string{serviceID},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()
}
