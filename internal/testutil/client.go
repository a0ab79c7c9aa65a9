// Package testutil provides testing utilities for integration tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/bissquit/status-garden/internal/auth"
	"github.com/bissquit/status-garden/internal/domain"
)

// Client is an HTTP client for testing API endpoints.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	auth       *auth.Authenticator
}

// NewClient creates a new unauthenticated test client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{},
	}
}

// NewClientWithAuth creates a test client that can mint its own bearer tokens
// with the given authenticator. The authenticator must share the server's
// JWT secret.
func NewClientWithAuth(baseURL string, authenticator *auth.Authenticator) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{},
		auth:       authenticator,
	}
}

// AuthenticateAs issues a bearer token for the given user and role and
// attaches it to all subsequent requests.
func (c *Client) AuthenticateAs(t *testing.T, userID string, role domain.Role) {
	t.Helper()
	if c.auth == nil {
		t.Fatal("client has no authenticator, use NewClientWithAuth")
	}

	token, err := c.auth.IssueToken(userID, role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	c.Token = token
}

// AuthenticateAsOperator attaches an operator token.
func (c *Client) AuthenticateAsOperator(t *testing.T) {
	t.Helper()
	c.AuthenticateAs(t, "operator-1", domain.RoleOperator)
}

// AuthenticateAsAdmin attaches an admin token.
func (c *Client) AuthenticateAsAdmin(t *testing.T) {
	t.Helper()
	c.AuthenticateAs(t, "admin-1", domain.RoleAdmin)
}

// ClearToken removes the stored token.
func (c *Client) ClearToken() {
	c.Token = ""
}

// GET performs a GET request.
func (c *Client) GET(path string) (*http.Response, error) {
	return c.do("GET", path, nil)
}

// POST performs a POST request with JSON body.
func (c *Client) POST(path string, body interface{}) (*http.Response, error) {
	return c.do("POST", path, body)
}

// PUT performs a PUT request with JSON body.
func (c *Client) PUT(path string, body interface{}) (*http.Response, error) {
	return c.do("PUT", path, body)
}

// PATCH performs a PATCH request with JSON body.
func (c *Client) PATCH(path string, body interface{}) (*http.Response, error) {
	return c.do("PATCH", path, body)
}

// DELETE performs a DELETE request.
func (c *Client) DELETE(path string) (*http.Response, error) {
	return c.do("DELETE", path, nil)
}

func (c *Client) do(method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader

	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	return c.HTTPClient.Do(req)
}

// DecodeJSON decodes response body into v.
func DecodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// ReadBody reads and returns response body as string.
func ReadBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}
