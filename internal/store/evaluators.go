package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/inkeep/agents/internal/dolt"
	internalerrors "github.com/inkeep/agents/internal/errors"
)

// Evaluator scores agent outputs. Criteria is the human-readable rubric;
// Config holds evaluator-specific settings as opaque JSON.
type Evaluator struct {
	TenantID    string          `json:"tenantId"`
	ProjectID   string          `json:"projectId"`
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Criteria    string          `json:"criteria,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
	CreatedAt   int64           `json:"createdAt"`
	UpdatedAt   int64           `json:"updatedAt"`
}

func (e *Evaluator) configText() string {
	if len(e.Config) == 0 {
		return "{}"
	}
	return string(e.Config)
}

func ListEvaluators(ctx context.Context, q dolt.Querier, tenantID, projectID string) ([]Evaluator, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT tenant_id, project_id, id, name, description, criteria, config, created_at, updated_at
		 FROM evaluators WHERE tenant_id = ? AND project_id = ? ORDER BY id`, tenantID, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing evaluators: %w", err)
	}
	defer rows.Close()

	var out []Evaluator
	for rows.Next() {
		var e Evaluator
		var config string
		if err := rows.Scan(&e.TenantID, &e.ProjectID, &e.ID, &e.Name, &e.Description,
			&e.Criteria, &config, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning evaluator: %w", err)
		}
		e.Config = json.RawMessage(config)
		out = append(out, e)
	}
	return out, rows.Err()
}

func GetEvaluator(ctx context.Context, q dolt.Querier, tenantID, projectID, id string) (*Evaluator, error) {
	var e Evaluator
	var config string
	err := q.QueryRowContext(ctx,
		`SELECT tenant_id, project_id, id, name, description, criteria, config, created_at, updated_at
		 FROM evaluators WHERE tenant_id = ? AND project_id = ? AND id = ?`, tenantID, projectID, id).
		Scan(&e.TenantID, &e.ProjectID, &e.ID, &e.Name, &e.Description, &e.Criteria, &config, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, internalerrors.NotFound("evaluators.get", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting evaluator %s: %w", id, err)
	}
	e.Config = json.RawMessage(config)
	return &e, nil
}

func CreateEvaluator(ctx context.Context, q dolt.Querier, e *Evaluator) error {
	if e.ID == "" || e.Name == "" {
		return internalerrors.Validation("evaluators.create", fmt.Errorf("id and name are required"))
	}

	var exists int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM evaluators WHERE tenant_id = ? AND project_id = ? AND id = ?`,
		e.TenantID, e.ProjectID, e.ID).Scan(&exists)
	if err == nil {
		return internalerrors.Conflict("evaluators.create", e.ID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking evaluator %s: %w", e.ID, err)
	}

	now := nowUnix()
	e.CreatedAt, e.UpdatedAt = now, now
	_, err = q.ExecContext(ctx,
		`INSERT INTO evaluators (tenant_id, project_id, id, name, description, criteria, config, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TenantID, e.ProjectID, e.ID, e.Name, e.Description, e.Criteria, e.configText(), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating evaluator %s: %w", e.ID, err)
	}
	return nil
}

// UpsertEvaluator updates an existing evaluator or inserts it if absent.
func UpsertEvaluator(ctx context.Context, q dolt.Querier, e *Evaluator) error {
	if e.ID == "" || e.Name == "" {
		return internalerrors.Validation("evaluators.upsert", fmt.Errorf("id and name are required"))
	}

	e.UpdatedAt = nowUnix()
	res, err := q.ExecContext(ctx,
		`UPDATE evaluators SET name = ?, description = ?, criteria = ?, config = ?, updated_at = ?
		 WHERE tenant_id = ? AND project_id = ? AND id = ?`,
		e.Name, e.Description, e.Criteria, e.configText(), e.UpdatedAt,
		e.TenantID, e.ProjectID, e.ID)
	if err != nil {
		return fmt.Errorf("updating evaluator %s: %w", e.ID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	return CreateEvaluator(ctx, q, e)
}

func DeleteEvaluator(ctx context.Context, q dolt.Querier, tenantID, projectID, id string) error {
	res, err := q.ExecContext(ctx,
		`DELETE FROM evaluators WHERE tenant_id = ? AND project_id = ? AND id = ?`,
		tenantID, projectID, id)
	if err != nil {
		return fmt.Errorf("deleting evaluator %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return internalerrors.NotFound("evaluators.delete", id)
	}
	return nil
}
