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

// Trigger kinds accepted by the API.
const (
	TriggerKindWebhook = "webhook"
	TriggerKindCron    = "cron"
	TriggerKindEvent   = "event"
)

// Trigger wires an agent to an activation source. Config is kind-specific
// and stored as opaque JSON; the scheduler that consumes cron triggers lives
// outside this service.
type Trigger struct {
	TenantID  string          `json:"tenantId"`
	ProjectID string          `json:"projectId"`
	ID        string          `json:"id"`
	AgentID   string          `json:"agentId"`
	Name      string          `json:"name"`
	Kind      string          `json:"kind"`
	Config    json.RawMessage `json:"config,omitempty"`
	Enabled   bool            `json:"enabled"`
	CreatedAt int64           `json:"createdAt"`
	UpdatedAt int64           `json:"updatedAt"`
}

func (t *Trigger) validate() error {
	if t.ID == "" || t.Name == "" || t.AgentID == "" {
		return internalerrors.Validation("triggers.validate", fmt.Errorf("id, name and agentId are required"))
	}
	switch t.Kind {
	case TriggerKindWebhook, TriggerKindCron, TriggerKindEvent:
	default:
		return internalerrors.Validation("triggers.validate", fmt.Errorf("unknown trigger kind %q", t.Kind))
	}
	return nil
}

func (t *Trigger) configText() string {
	if len(t.Config) == 0 {
		return "{}"
	}
	return string(t.Config)
}

func ListTriggers(ctx context.Context, q dolt.Querier, tenantID, projectID string) ([]Trigger, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT tenant_id, project_id, id, agent_id, name, kind, config, enabled, created_at, updated_at
		 FROM triggers WHERE tenant_id = ? AND project_id = ? ORDER BY id`, tenantID, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing triggers: %w", err)
	}
	defer rows.Close()

	var out []Trigger
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func GetTrigger(ctx context.Context, q dolt.Querier, tenantID, projectID, id string) (*Trigger, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT tenant_id, project_id, id, agent_id, name, kind, config, enabled, created_at, updated_at
		 FROM triggers WHERE tenant_id = ? AND project_id = ? AND id = ?`, tenantID, projectID, id)
	if err != nil {
		return nil, fmt.Errorf("getting trigger %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("getting trigger %s: %w", id, err)
		}
		return nil, internalerrors.NotFound("triggers.get", id)
	}
	return scanTrigger(rows)
}

func scanTrigger(rows *sql.Rows) (*Trigger, error) {
	var t Trigger
	var config string
	var enabled int
	if err := rows.Scan(&t.TenantID, &t.ProjectID, &t.ID, &t.AgentID, &t.Name, &t.Kind,
		&config, &enabled, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scanning trigger: %w", err)
	}
	t.Config = json.RawMessage(config)
	t.Enabled = enabled != 0
	return &t, nil
}

func CreateTrigger(ctx context.Context, q dolt.Querier, t *Trigger) error {
	if err := t.validate(); err != nil {
		return err
	}

	var exists int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM triggers WHERE tenant_id = ? AND project_id = ? AND id = ?`,
		t.TenantID, t.ProjectID, t.ID).Scan(&exists)
	if err == nil {
		return internalerrors.Conflict("triggers.create", t.ID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking trigger %s: %w", t.ID, err)
	}

	now := nowUnix()
	t.CreatedAt, t.UpdatedAt = now, now
	enabled := 0
	if t.Enabled {
		enabled = 1
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO triggers (tenant_id, project_id, id, agent_id, name, kind, config, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TenantID, t.ProjectID, t.ID, t.AgentID, t.Name, t.Kind, t.configText(), enabled, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating trigger %s: %w", t.ID, err)
	}
	return nil
}

// UpsertTrigger updates an existing trigger or inserts it if absent.
func UpsertTrigger(ctx context.Context, q dolt.Querier, t *Trigger) error {
	if err := t.validate(); err != nil {
		return err
	}

	t.UpdatedAt = nowUnix()
	enabled := 0
	if t.Enabled {
		enabled = 1
	}
	res, err := q.ExecContext(ctx,
		`UPDATE triggers SET agent_id = ?, name = ?, kind = ?, config = ?, enabled = ?, updated_at = ?
		 WHERE tenant_id = ? AND project_id = ? AND id = ?`,
		t.AgentID, t.Name, t.Kind, t.configText(), enabled, t.UpdatedAt,
		t.TenantID, t.ProjectID, t.ID)
	if err != nil {
		return fmt.Errorf("updating trigger %s: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	return CreateTrigger(ctx, q, t)
}

func DeleteTrigger(ctx context.Context, q dolt.Querier, tenantID, projectID, id string) error {
	res, err := q.ExecContext(ctx,
		`DELETE FROM triggers WHERE tenant_id = ? AND project_id = ? AND id = ?`,
		tenantID, projectID, id)
	if err != nil {
		return fmt.Errorf("deleting trigger %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return internalerrors.NotFound("triggers.delete", id)
	}
	return nil
}
