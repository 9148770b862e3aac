package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/inkeep/agents/internal/dolt"
	internalerrors "github.com/inkeep/agents/internal/errors"
)

// Agent is a declarative agent definition scoped to a tenant and project.
type Agent struct {
	TenantID    string `json:"tenantId"`
	ProjectID   string `json:"projectId"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
	Model       string `json:"model,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
}

func (a *Agent) validate() error {
	if a.ID == "" || a.Name == "" {
		return internalerrors.Validation("agents.validate", fmt.Errorf("id and name are required"))
	}
	return nil
}

// ListAgents returns all agents in a project, ordered by id.
func ListAgents(ctx context.Context, q dolt.Querier, tenantID, projectID string) ([]Agent, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT tenant_id, project_id, id, name, description, prompt, model, created_at, updated_at
		 FROM agents WHERE tenant_id = ? AND project_id = ? ORDER BY id`, tenantID, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	defer rows.Close()

	var out []Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.TenantID, &a.ProjectID, &a.ID, &a.Name, &a.Description,
			&a.Prompt, &a.Model, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning agent: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAgent fetches one agent.
func GetAgent(ctx context.Context, q dolt.Querier, tenantID, projectID, id string) (*Agent, error) {
	var a Agent
	err := q.QueryRowContext(ctx,
		`SELECT tenant_id, project_id, id, name, description, prompt, model, created_at, updated_at
		 FROM agents WHERE tenant_id = ? AND project_id = ? AND id = ?`, tenantID, projectID, id).
		Scan(&a.TenantID, &a.ProjectID, &a.ID, &a.Name, &a.Description,
			&a.Prompt, &a.Model, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, internalerrors.NotFound("agents.get", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting agent %s: %w", id, err)
	}
	return &a, nil
}

// CreateAgent inserts a new agent. A duplicate id yields ErrConflict.
func CreateAgent(ctx context.Context, q dolt.Querier, a *Agent) error {
	if err := a.validate(); err != nil {
		return err
	}

	var exists int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM agents WHERE tenant_id = ? AND project_id = ? AND id = ?`,
		a.TenantID, a.ProjectID, a.ID).Scan(&exists)
	if err == nil {
		return internalerrors.Conflict("agents.create", a.ID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking agent %s: %w", a.ID, err)
	}

	now := nowUnix()
	a.CreatedAt, a.UpdatedAt = now, now
	_, err = q.ExecContext(ctx,
		`INSERT INTO agents (tenant_id, project_id, id, name, description, prompt, model, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.TenantID, a.ProjectID, a.ID, a.Name, a.Description, a.Prompt, a.Model, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating agent %s: %w", a.ID, err)
	}
	return nil
}

// UpsertAgent updates an existing agent or inserts it if absent. Used by the
// PUT handler so CLI pushes are idempotent.
func UpsertAgent(ctx context.Context, q dolt.Querier, a *Agent) error {
	if err := a.validate(); err != nil {
		return err
	}

	a.UpdatedAt = nowUnix()
	res, err := q.ExecContext(ctx,
		`UPDATE agents SET name = ?, description = ?, prompt = ?, model = ?, updated_at = ?
		 WHERE tenant_id = ? AND project_id = ? AND id = ?`,
		a.Name, a.Description, a.Prompt, a.Model, a.UpdatedAt,
		a.TenantID, a.ProjectID, a.ID)
	if err != nil {
		return fmt.Errorf("updating agent %s: %w", a.ID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	return CreateAgent(ctx, q, a)
}

// DeleteAgent removes an agent and its triggers.
func DeleteAgent(ctx context.Context, q dolt.Querier, tenantID, projectID, id string) error {
	res, err := q.ExecContext(ctx,
		`DELETE FROM agents WHERE tenant_id = ? AND project_id = ? AND id = ?`,
		tenantID, projectID, id)
	if err != nil {
		return fmt.Errorf("deleting agent %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return internalerrors.NotFound("agents.delete", id)
	}

	if _, err := q.ExecContext(ctx,
		`DELETE FROM triggers WHERE tenant_id = ? AND project_id = ? AND agent_id = ?`,
		tenantID, projectID, id); err != nil {
		return fmt.Errorf("deleting triggers for agent %s: %w", id, err)
	}
	return nil
}
