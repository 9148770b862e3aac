package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/inkeep/agents/internal/dolt"
	internalerrors "github.com/inkeep/agents/internal/errors"
)

// Project is the top-level container for agents, triggers, datasets, and
// evaluators within a tenant.
type Project struct {
	TenantID    string `json:"tenantId"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// ListProjects returns all projects for a tenant, ordered by id.
func ListProjects(ctx context.Context, q dolt.Querier, tenantID string) ([]Project, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT tenant_id, id, name, description, created_at, updated_at
		 FROM projects WHERE tenant_id = ? ORDER BY id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.TenantID, &p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProject fetches one project.
func GetProject(ctx context.Context, q dolt.Querier, tenantID, id string) (*Project, error) {
	var p Project
	err := q.QueryRowContext(ctx,
		`SELECT tenant_id, id, name, description, created_at, updated_at
		 FROM projects WHERE tenant_id = ? AND id = ?`, tenantID, id).
		Scan(&p.TenantID, &p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, internalerrors.NotFound("projects.get", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting project %s: %w", id, err)
	}
	return &p, nil
}

// CreateProject inserts a new project. A duplicate id yields ErrConflict.
func CreateProject(ctx context.Context, q dolt.Querier, p *Project) error {
	if p.ID == "" || p.Name == "" {
		return internalerrors.Validation("projects.create", fmt.Errorf("id and name are required"))
	}

	var exists int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM projects WHERE tenant_id = ? AND id = ?`, p.TenantID, p.ID).Scan(&exists)
	if err == nil {
		return internalerrors.Conflict("projects.create", p.ID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking project %s: %w", p.ID, err)
	}

	now := nowUnix()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err = q.ExecContext(ctx,
		`INSERT INTO projects (tenant_id, id, name, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.TenantID, p.ID, p.Name, p.Description, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating project %s: %w", p.ID, err)
	}
	return nil
}

// UpdateProject updates name/description of an existing project.
func UpdateProject(ctx context.Context, q dolt.Querier, p *Project) error {
	p.UpdatedAt = nowUnix()
	res, err := q.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ?`,
		p.Name, p.Description, p.UpdatedAt, p.TenantID, p.ID)
	if err != nil {
		return fmt.Errorf("updating project %s: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return internalerrors.NotFound("projects.update", p.ID)
	}
	return nil
}

// DeleteProject removes a project and everything under it.
func DeleteProject(ctx context.Context, q dolt.Querier, tenantID, id string) error {
	res, err := q.ExecContext(ctx,
		`DELETE FROM projects WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return fmt.Errorf("deleting project %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return internalerrors.NotFound("projects.delete", id)
	}

	for _, table := range []string{"agents", "triggers", "datasets", "evaluators"} {
		if _, err := q.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = ? AND project_id = ?`, table),
			tenantID, id); err != nil {
			return fmt.Errorf("deleting %s for project %s: %w", table, id, err)
		}
	}
	return nil
}
