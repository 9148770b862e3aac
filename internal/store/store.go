// Package store is the data layer for the manage store: tenant-scoped
// projects, agents, triggers, datasets, and evaluators.
//
// Every operation takes a dolt.Querier so it runs against whatever handle
// the session manager bound for the current request — a pooled connection
// checked out on the right branch, or the shared fallback handle in
// degraded mode. Nothing in this package may cache a connection.
//
// The SQL is kept portable between the Dolt sql-server (MySQL dialect) and
// the embedded SQLite fallback: TEXT columns, unix-seconds timestamps, and
// `?` placeholders.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/inkeep/agents/internal/dolt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		tenant_id   TEXT NOT NULL,
		id          TEXT NOT NULL,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at  BIGINT NOT NULL,
		updated_at  BIGINT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS agents (
		tenant_id   TEXT NOT NULL,
		project_id  TEXT NOT NULL,
		id          TEXT NOT NULL,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		prompt      TEXT NOT NULL DEFAULT '',
		model       TEXT NOT NULL DEFAULT '',
		created_at  BIGINT NOT NULL,
		updated_at  BIGINT NOT NULL,
		PRIMARY KEY (tenant_id, project_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS triggers (
		tenant_id   TEXT NOT NULL,
		project_id  TEXT NOT NULL,
		id          TEXT NOT NULL,
		agent_id    TEXT NOT NULL,
		name        TEXT NOT NULL,
		kind        TEXT NOT NULL,
		config      TEXT NOT NULL DEFAULT '{}',
		enabled     INTEGER NOT NULL DEFAULT 1,
		created_at  BIGINT NOT NULL,
		updated_at  BIGINT NOT NULL,
		PRIMARY KEY (tenant_id, project_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS datasets (
		tenant_id   TEXT NOT NULL,
		project_id  TEXT NOT NULL,
		id          TEXT NOT NULL,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		config      TEXT NOT NULL DEFAULT '{}',
		created_at  BIGINT NOT NULL,
		updated_at  BIGINT NOT NULL,
		PRIMARY KEY (tenant_id, project_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS evaluators (
		tenant_id   TEXT NOT NULL,
		project_id  TEXT NOT NULL,
		id          TEXT NOT NULL,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		criteria    TEXT NOT NULL DEFAULT '',
		config      TEXT NOT NULL DEFAULT '{}',
		created_at  BIGINT NOT NULL,
		updated_at  BIGINT NOT NULL,
		PRIMARY KEY (tenant_id, project_id, id)
	)`,
}

// Migrate creates the manage-store tables if they do not exist.
func Migrate(ctx context.Context, q dolt.Querier) error {
	for _, stmt := range schema {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying manage store schema: %w", err)
		}
	}
	return nil
}

var nowFn = time.Now

func nowUnix() int64 {
	return nowFn().UTC().Unix()
}
