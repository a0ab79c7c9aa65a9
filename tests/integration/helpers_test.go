//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/bissquit/status-garden/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// randomSlug generates a unique valid slug with the given prefix.
func randomSlug(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, strings.ReplaceAll(uuid.NewString()[:13], "-", ""))
}

// createTestOrganization creates an organization and returns its ID and slug.
func createTestOrganization(t *testing.T, admin *testutil.Client, name string) (id, slug string) {
	t.Helper()

	slug = randomSlug("org")
	resp, err := admin.POST("/api/v1/organizations", map[string]string{
		"name": name,
		"slug": slug,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)

	t.Cleanup(func() {
		resp, err := admin.DELETE("/api/v1/organizations/" + result.Data.ID)
		if err == nil {
			_ = resp.Body.Close()
		}
	})

	return result.Data.ID, slug
}

// createTestService creates a service in the organization and returns its ID.
func createTestService(t *testing.T, admin *testutil.Client, orgID, name string) string {
	t.Helper()

	resp, err := admin.POST("/api/v1/organizations/"+orgID+"/services", map[string]string{
		"name": name,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.ID
}

// serviceStatusOnPage fetches the public status page and returns the status
// shown for the given service.
func serviceStatusOnPage(t *testing.T, orgSlug, serviceID string) string {
	t.Helper()

	client := newPublicClient()
	resp, err := client.GET("/api/v1/status/" + orgSlug)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page struct {
		Services []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"services"`
	}
	testutil.DecodeJSON(t, resp, &page)

	for _, svc := range page.Services {
		if svc.ID == serviceID {
			return svc.Status
		}
	}
	t.Fatalf("service %s not on status page", serviceID)
	return ""
}
