// Package dolt provides the connection pool and version-control primitives
// for the manage store, a Dolt sql-server speaking the MySQL protocol.
//
// Dolt gives the manage store git-style semantics: branches, tags, commits,
// and per-connection checkout. All version-control operations are issued as
// DOLT_* stored procedures over an ordinary database/sql connection.
package dolt

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
)

// connectRetryMaxElapsed bounds startup retries against a Dolt server that is
// still coming up (container start, server restart).
const connectRetryMaxElapsed = 30 * time.Second

// Querier is the query surface shared by *sql.DB, *sql.Conn, and *sql.Tx.
// Store code and the version-control primitives accept a Querier so the same
// SQL runs against a pooled per-request connection or the shared fallback
// handle.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PooledConn is a single physical connection checked out of the pool.
// Close returns it to the pool; the connection must not be used afterwards.
type PooledConn interface {
	Querier
	Close() error
}

// ConnectionPool hands out dedicated connections. The session manager depends
// on this interface rather than *Pool so tests can substitute a fake.
type ConnectionPool interface {
	Acquire(ctx context.Context) (PooledConn, error)
}

// Pool is a fixed-size pool of connections to the Dolt sql-server.
type Pool struct {
	db *sql.DB
}

// Open connects to the Dolt sql-server at dsn with a fixed pool size and
// verifies connectivity, retrying with exponential backoff while the server
// starts up.
func Open(ctx context.Context, dsn string, poolSize int) (*Pool, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening manage store: %w", err)
	}

	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)
	db.SetConnMaxLifetime(0)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = connectRetryMaxElapsed

	attempts := 0
	err = backoff.Retry(func() error {
		attempts++
		return db.PingContext(ctx)
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging manage store: %w", err)
	}
	if attempts > 1 {
		log.Debug().Int("attempts", attempts).Msg("Manage store became reachable after retries")
	}

	return &Pool{db: db}, nil
}

// Acquire checks one dedicated connection out of the pool, blocking until a
// slot frees or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (PooledConn, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring manage store connection: %w", err)
	}
	return conn, nil
}

// DB exposes the underlying handle for non-isolated access (migrations,
// degraded mode).
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Close shuts the pool down.
func (p *Pool) Close() error {
	return p.db.Close()
}
