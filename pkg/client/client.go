// Package client is a typed HTTP client for the agents API. It is the
// transport the agents-cli uses and is importable by external tooling.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a single tenant of the agents API. All mutating calls are
// scoped to the ref configured on the client; the zero ref means the server's
// default branch.
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	tenantID   string
	ref        string
}

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. "http://localhost:3002".
	BaseURL string
	// APIKey is sent as a bearer token. Optional when the server runs with
	// auth disabled.
	APIKey string
	// TenantID scopes every request.
	TenantID string
	// Ref selects the branch (or "tag:<hash>" / "commit:<hash>") every
	// request runs against. Empty means the server default.
	Ref string
	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration
}

// New builds a Client. BaseURL and TenantID are required.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.TenantID) == "" {
		return nil, fmt.Errorf("tenant ID is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		cfg.BaseURL = "http://" + cfg.BaseURL
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiKey:     cfg.APIKey,
		tenantID:   cfg.TenantID,
		ref:        strings.TrimSpace(cfg.Ref),
	}, nil
}

// APIError is the decoded error body from a failed request.
type APIError struct {
	Message    string `json:"error"`
	Code       string `json:"code,omitempty"`
	StatusCode int    `json:"status_code"`
	RequestID  string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	u := c.baseURL + path
	if c.ref != "" {
		u += "?ref=" + url.QueryEscape(c.ref)
	}
	return c.send(ctx, method, u, body, out)
}

func (c *Client) send(ctx context.Context, method, u string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		apiErr.StatusCode = resp.StatusCode
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) tenantPath(parts ...string) string {
	segs := append([]string{"tenants", c.tenantID}, parts...)
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(segs, "/")
}

// Projects

func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	err := c.do(ctx, http.MethodGet, c.tenantPath("projects"), nil, &out)
	return out, err
}

func (c *Client) GetProject(ctx context.Context, projectID string) (Project, error) {
	var out Project
	err := c.do(ctx, http.MethodGet, c.tenantPath("projects", projectID), nil, &out)
	return out, err
}

func (c *Client) CreateProject(ctx context.Context, p Project) (Project, error) {
	var out Project
	err := c.do(ctx, http.MethodPost, c.tenantPath("projects"), p, &out)
	return out, err
}

func (c *Client) UpdateProject(ctx context.Context, p Project) (Project, error) {
	var out Project
	err := c.do(ctx, http.MethodPut, c.tenantPath("projects", p.ID), p, &out)
	return out, err
}

func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	return c.do(ctx, http.MethodDelete, c.tenantPath("projects", projectID), nil, nil)
}

// Agents

func (c *Client) ListAgents(ctx context.Context, projectID string) ([]Agent, error) {
	var out []Agent
	err := c.do(ctx, http.MethodGet, c.tenantPath("projects", projectID, "agents"), nil, &out)
	return out, err
}

func (c *Client) GetAgent(ctx context.Context, projectID, agentID string) (Agent, error) {
	var out Agent
	err := c.do(ctx, http.MethodGet, c.tenantPath("projects", projectID, "agents", agentID), nil, &out)
	return out, err
}

// PutAgent creates or replaces an agent.
func (c *Client) PutAgent(ctx context.Context, projectID string, a Agent) (Agent, error) {
	var out Agent
	err := c.do(ctx, http.MethodPut, c.tenantPath("projects", projectID, "agents", a.ID), a, &out)
	return out, err
}

func (c *Client) DeleteAgent(ctx context.Context, projectID, agentID string) error {
	return c.do(ctx, http.MethodDelete, c.tenantPath("projects", projectID, "agents", agentID), nil, nil)
}

// Triggers

func (c *Client) ListTriggers(ctx context.Context, projectID string) ([]Trigger, error) {
	var out []Trigger
	err := c.do(ctx, http.MethodGet, c.tenantPath("projects", projectID, "triggers"), nil, &out)
	return out, err
}

func (c *Client) PutTrigger(ctx context.Context, projectID string, t Trigger) (Trigger, error) {
	var out Trigger
	err := c.do(ctx, http.MethodPut, c.tenantPath("projects", projectID, "triggers", t.ID), t, &out)
	return out, err
}

func (c *Client) DeleteTrigger(ctx context.Context, projectID, triggerID string) error {
	return c.do(ctx, http.MethodDelete, c.tenantPath("projects", projectID, "triggers", triggerID), nil, nil)
}

// Datasets

func (c *Client) ListDatasets(ctx context.Context, projectID string) ([]Dataset, error) {
	var out []Dataset
	err := c.do(ctx, http.MethodGet, c.tenantPath("projects", projectID, "datasets"), nil, &out)
	return out, err
}

func (c *Client) PutDataset(ctx context.Context, projectID string, d Dataset) (Dataset, error) {
	var out Dataset
	err := c.do(ctx, http.MethodPut, c.tenantPath("projects", projectID, "datasets", d.ID), d, &out)
	return out, err
}

func (c *Client) DeleteDataset(ctx context.Context, projectID, datasetID string) error {
	return c.do(ctx, http.MethodDelete, c.tenantPath("projects", projectID, "datasets", datasetID), nil, nil)
}

// Evaluators

func (c *Client) ListEvaluators(ctx context.Context, projectID string) ([]Evaluator, error) {
	var out []Evaluator
	err := c.do(ctx, http.MethodGet, c.tenantPath("projects", projectID, "evaluators"), nil, &out)
	return out, err
}

func (c *Client) PutEvaluator(ctx context.Context, projectID string, e Evaluator) (Evaluator, error) {
	var out Evaluator
	err := c.do(ctx, http.MethodPut, c.tenantPath("projects", projectID, "evaluators", e.ID), e, &out)
	return out, err
}

func (c *Client) DeleteEvaluator(ctx context.Context, projectID, evaluatorID string) error {
	return c.do(ctx, http.MethodDelete, c.tenantPath("projects", projectID, "evaluators", evaluatorID), nil, nil)
}

// Executions

// ListExecutions returns invocation history, newest first. agentID and
// status filter when non-empty; limit 0 uses the server default.
func (c *Client) ListExecutions(ctx context.Context, projectID, agentID, status string, limit int) ([]Execution, error) {
	q := url.Values{}
	if agentID != "" {
		q.Set("agentId", agentID)
	}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}

	path := c.tenantPath("projects", projectID, "executions")
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	// Execution routes are unversioned, so the ref parameter is omitted.
	var out []Execution
	err := c.send(ctx, http.MethodGet, c.baseURL+path, nil, &out)
	return out, err
}
