package client

import "encoding/json"

// Project groups agents, triggers, datasets and evaluators under a tenant.
type Project struct {
	TenantID    string `json:"tenantId,omitempty"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"createdAt,omitempty"`
	UpdatedAt   int64  `json:"updatedAt,omitempty"`
}

// Agent is a configured agent definition.
type Agent struct {
	TenantID    string `json:"tenantId,omitempty"`
	ProjectID   string `json:"projectId,omitempty"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
	Model       string `json:"model,omitempty"`
	CreatedAt   int64  `json:"createdAt,omitempty"`
	UpdatedAt   int64  `json:"updatedAt,omitempty"`
}

// Trigger invokes an agent on a schedule, webhook or event.
type Trigger struct {
	TenantID  string          `json:"tenantId,omitempty"`
	ProjectID string          `json:"projectId,omitempty"`
	ID        string          `json:"id"`
	AgentID   string          `json:"agentId"`
	Name      string          `json:"name"`
	Kind      string          `json:"kind"`
	Config    json.RawMessage `json:"config,omitempty"`
	Enabled   bool            `json:"enabled"`
	CreatedAt int64           `json:"createdAt,omitempty"`
	UpdatedAt int64           `json:"updatedAt,omitempty"`
}

// Dataset is a named collection of evaluation inputs.
type Dataset struct {
	TenantID    string          `json:"tenantId,omitempty"`
	ProjectID   string          `json:"projectId,omitempty"`
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
	CreatedAt   int64           `json:"createdAt,omitempty"`
	UpdatedAt   int64           `json:"updatedAt,omitempty"`
}

// Evaluator scores agent output against criteria.
type Evaluator struct {
	TenantID    string          `json:"tenantId,omitempty"`
	ProjectID   string          `json:"projectId,omitempty"`
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Criteria    string          `json:"criteria,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
	CreatedAt   int64           `json:"createdAt,omitempty"`
	UpdatedAt   int64           `json:"updatedAt,omitempty"`
}

// Execution is one recorded agent invocation.
type Execution struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId,omitempty"`
	ProjectID   string `json:"projectId,omitempty"`
	AgentID     string `json:"agentId"`
	TriggerID   string `json:"triggerId,omitempty"`
	Status      string `json:"status"`
	Input       string `json:"input,omitempty"`
	Output      string `json:"output,omitempty"`
	Error       string `json:"error,omitempty"`
	StartedAt   int64  `json:"startedAt"`
	CompletedAt int64  `json:"completedAt,omitempty"`
}
