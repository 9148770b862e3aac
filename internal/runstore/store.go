// Package runstore provides persistent storage for agent execution and
// invocation history using SQLite for durability across restarts.
//
// The run store is deliberately separate from the versioned manage store:
// execution history is append-mostly operational data with no use for
// branches or commits.
package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	internalerrors "github.com/inkeep/agents/internal/errors"
)

// Execution statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Execution is one agent invocation: what ran, what it received, and how it
// ended.
type Execution struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	ProjectID   string `json:"projectId"`
	AgentID     string `json:"agentId"`
	TriggerID   string `json:"triggerId,omitempty"`
	Status      string `json:"status"`
	Input       string `json:"input,omitempty"`
	Output      string `json:"output,omitempty"`
	Error       string `json:"error,omitempty"`
	StartedAt   int64  `json:"startedAt"`
	CompletedAt int64  `json:"completedAt,omitempty"`
}

// Filter narrows ListExecutions. Zero values match everything.
type Filter struct {
	AgentID string
	Status  string
	Limit   int
}

// Store provides persistent execution-history storage.
type Store struct {
	db *sql.DB

	// ULID entropy is not safe for concurrent use
	entropyMu sync.Mutex
	entropy   *rand.Rand
}

// Open creates or opens the run store at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating run store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening run store: %w", err)
	}

	s := &Store{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS executions (
		id           TEXT PRIMARY KEY,
		tenant_id    TEXT NOT NULL,
		project_id   TEXT NOT NULL,
		agent_id     TEXT NOT NULL,
		trigger_id   TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL,
		input        TEXT NOT NULL DEFAULT '',
		output       TEXT NOT NULL DEFAULT '',
		error        TEXT NOT NULL DEFAULT '',
		started_at   INTEGER NOT NULL,
		completed_at INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_executions_scope
		ON executions (tenant_id, project_id, agent_id, started_at)`)
	if err != nil {
		return fmt.Errorf("applying run store schema: %w", err)
	}
	return nil
}

// newID returns a time-ordered execution ID.
func (s *Store) newID(now time.Time) string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
}

// RecordExecution inserts a new execution. An empty ID and StartedAt are
// filled in; Status defaults to running.
func (s *Store) RecordExecution(ctx context.Context, e *Execution) error {
	if e.TenantID == "" || e.ProjectID == "" || e.AgentID == "" {
		return internalerrors.Validation("executions.record",
			fmt.Errorf("tenantId, projectId and agentId are required"))
	}

	now := time.Now().UTC()
	if e.ID == "" {
		e.ID = s.newID(now)
	}
	if e.StartedAt == 0 {
		e.StartedAt = now.Unix()
	}
	if e.Status == "" {
		e.Status = StatusRunning
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions (id, tenant_id, project_id, agent_id, trigger_id, status, input, output, error, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TenantID, e.ProjectID, e.AgentID, e.TriggerID, e.Status,
		e.Input, e.Output, e.Error, e.StartedAt, e.CompletedAt)
	if err != nil {
		return fmt.Errorf("recording execution %s: %w", e.ID, err)
	}
	return nil
}

// CompleteExecution marks an execution finished with the given status.
func (s *Store) CompleteExecution(ctx context.Context, id, status, output, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE executions SET status = ?, output = ?, error = ?, completed_at = ? WHERE id = ?`,
		status, output, errMsg, time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("completing execution %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return internalerrors.NotFound("executions.complete", id)
	}
	return nil
}

// GetExecution fetches one execution within a tenant/project scope.
func (s *Store) GetExecution(ctx context.Context, tenantID, projectID, id string) (*Execution, error) {
	var e Execution
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, project_id, agent_id, trigger_id, status, input, output, error, started_at, completed_at
		 FROM executions WHERE tenant_id = ? AND project_id = ? AND id = ?`,
		tenantID, projectID, id).
		Scan(&e.ID, &e.TenantID, &e.ProjectID, &e.AgentID, &e.TriggerID, &e.Status,
			&e.Input, &e.Output, &e.Error, &e.StartedAt, &e.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, internalerrors.NotFound("executions.get", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting execution %s: %w", id, err)
	}
	return &e, nil
}

// ListExecutions returns executions in a project, newest first.
func (s *Store) ListExecutions(ctx context.Context, tenantID, projectID string, f Filter) ([]Execution, error) {
	query := `SELECT id, tenant_id, project_id, agent_id, trigger_id, status, input, output, error, started_at, completed_at
	          FROM executions WHERE tenant_id = ? AND project_id = ?`
	args := []any{tenantID, projectID}

	if f.AgentID != "" {
		query += ` AND agent_id = ?`
		args = append(args, f.AgentID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY started_at DESC, id DESC`
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing executions: %w", err)
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		var e Execution
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ProjectID, &e.AgentID, &e.TriggerID, &e.Status,
			&e.Input, &e.Output, &e.Error, &e.StartedAt, &e.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning execution: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PruneBefore deletes executions started before the cutoff. Used by the
// retention loop in cmd/agents-api.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM executions WHERE started_at < ?`, cutoff.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning executions: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		log.Debug().Int64("deleted", n).Time("cutoff", cutoff).Msg("Pruned old executions")
	}
	return n, nil
}

// Close shuts the store down.
func (s *Store) Close() error {
	return s.db.Close()
}
