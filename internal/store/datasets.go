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

// Dataset is a named collection definition used by evaluations. The item
// schema and source live in Config as opaque JSON.
type Dataset struct {
	TenantID    string          `json:"tenantId"`
	ProjectID   string          `json:"projectId"`
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
	CreatedAt   int64           `json:"createdAt"`
	UpdatedAt   int64           `json:"updatedAt"`
}

func (d *Dataset) configText() string {
	if len(d.Config) == 0 {
		return "{}"
	}
	return string(d.Config)
}

func ListDatasets(ctx context.Context, q dolt.Querier, tenantID, projectID string) ([]Dataset, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT tenant_id, project_id, id, name, description, config, created_at, updated_at
		 FROM datasets WHERE tenant_id = ? AND project_id = ? ORDER BY id`, tenantID, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}
	defer rows.Close()

	var out []Dataset
	for rows.Next() {
		var d Dataset
		var config string
		if err := rows.Scan(&d.TenantID, &d.ProjectID, &d.ID, &d.Name, &d.Description,
			&config, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning dataset: %w", err)
		}
		d.Config = json.RawMessage(config)
		out = append(out, d)
	}
	return out, rows.Err()
}

func GetDataset(ctx context.Context, q dolt.Querier, tenantID, projectID, id string) (*Dataset, error) {
	var d Dataset
	var config string
	err := q.QueryRowContext(ctx,
		`SELECT tenant_id, project_id, id, name, description, config, created_at, updated_at
		 FROM datasets WHERE tenant_id = ? AND project_id = ? AND id = ?`, tenantID, projectID, id).
		Scan(&d.TenantID, &d.ProjectID, &d.ID, &d.Name, &d.Description, &config, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, internalerrors.NotFound("datasets.get", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting dataset %s: %w", id, err)
	}
	d.Config = json.RawMessage(config)
	return &d, nil
}

func CreateDataset(ctx context.Context, q dolt.Querier, d *Dataset) error {
	if d.ID == "" || d.Name == "" {
		return internalerrors.Validation("datasets.create", fmt.Errorf("id and name are required"))
	}

	var exists int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM datasets WHERE tenant_id = ? AND project_id = ? AND id = ?`,
		d.TenantID, d.ProjectID, d.ID).Scan(&exists)
	if err == nil {
		return internalerrors.Conflict("datasets.create", d.ID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking dataset %s: %w", d.ID, err)
	}

	now := nowUnix()
	d.CreatedAt, d.UpdatedAt = now, now
	_, err = q.ExecContext(ctx,
		`INSERT INTO datasets (tenant_id, project_id, id, name, description, config, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.TenantID, d.ProjectID, d.ID, d.Name, d.Description, d.configText(), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating dataset %s: %w", d.ID, err)
	}
	return nil
}

// UpsertDataset updates an existing dataset or inserts it if absent.
func UpsertDataset(ctx context.Context, q dolt.Querier, d *Dataset) error {
	if d.ID == "" || d.Name == "" {
		return internalerrors.Validation("datasets.upsert", fmt.Errorf("id and name are required"))
	}

	d.UpdatedAt = nowUnix()
	res, err := q.ExecContext(ctx,
		`UPDATE datasets SET name = ?, description = ?, config = ?, updated_at = ?
		 WHERE tenant_id = ? AND project_id = ? AND id = ?`,
		d.Name, d.Description, d.configText(), d.UpdatedAt,
		d.TenantID, d.ProjectID, d.ID)
	if err != nil {
		return fmt.Errorf("updating dataset %s: %w", d.ID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	return CreateDataset(ctx, q, d)
}

func DeleteDataset(ctx context.Context, q dolt.Querier, tenantID, projectID, id string) error {
	res, err := q.ExecContext(ctx,
		`DELETE FROM datasets WHERE tenant_id = ? AND project_id = ? AND id = ?`,
		tenantID, projectID, id)
	if err != nil {
		return fmt.Errorf("deleting dataset %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return internalerrors.NotFound("datasets.delete", id)
	}
	return nil
}
