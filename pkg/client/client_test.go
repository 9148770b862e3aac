package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClientFor(t *testing.T, srv *httptest.Server, ref string) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:  srv.URL,
		APIKey:   "sk-test",
		TenantID: "t1",
		Ref:      ref,
	})
	require.NoError(t, err)
	return c
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{TenantID: "t1"})
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "http://localhost:3002"})
	assert.Error(t, err)

	c, err := New(Config{BaseURL: "localhost:3002", TenantID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3002", c.baseURL)
}

func TestRequestShape(t *testing.T) {
	var gotPath, gotAuth, gotRef, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotRef = r.URL.Query().Get("ref")
		gotMethod = r.Method
		json.NewEncoder(w).Encode(Agent{ID: "a1", Name: "Router"})
	}))
	defer srv.Close()

	c := newClientFor(t, srv, "feature-x")
	agent, err := c.GetAgent(context.Background(), "p1", "a1")
	require.NoError(t, err)

	assert.Equal(t, "/tenants/t1/projects/p1/agents/a1", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "feature-x", gotRef)
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "Router", agent.Name)
}

func TestPutAgentSendsBody(t *testing.T) {
	var got Agent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(got)
	}))
	defer srv.Close()

	c := newClientFor(t, srv, "")
	_, err := c.PutAgent(context.Background(), "p1", Agent{ID: "a1", Name: "Router", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "Router", got.Name)
	assert.Equal(t, "gpt-4o", got.Model)
}

func TestAPIErrorDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error":       "agent a1 not found",
			"code":        "not_found",
			"status_code": 404,
		})
	}))
	defer srv.Close()

	c := newClientFor(t, srv, "")
	_, err := c.GetAgent(context.Background(), "p1", "a1")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "not_found")
}

func TestNonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	c := newClientFor(t, srv, "")
	_, err := c.ListAgents(context.Background(), "p1")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusMethodNotAllowed, apiErr.StatusCode)
	assert.Equal(t, "Method Not Allowed", apiErr.Message)
}

func TestDeleteSendsNoRefForExecutions(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode([]Execution{})
	}))
	defer srv.Close()

	c := newClientFor(t, srv, "feature-x")
	_, err := c.ListExecutions(context.Background(), "p1", "a1", "running", 10)
	require.NoError(t, err)
	assert.NotContains(t, gotQuery, "ref=")
	assert.Contains(t, gotQuery, "agentId=a1")
	assert.Contains(t, gotQuery, "status=running")
	assert.Contains(t, gotQuery, "limit=10")
}
