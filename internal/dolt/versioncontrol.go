package dolt

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// StatusEntry is one row of dolt_status: a table with uncommitted changes.
type StatusEntry struct {
	TableName string
	Staged    bool
	Status    string
}

// CommitOptions carries the message and author for AddAndCommit.
type CommitOptions struct {
	Message     string
	AuthorName  string
	AuthorEmail string
}

// AuthorString renders the git-style "Name <email>" author argument.
func (o CommitOptions) AuthorString() string {
	return fmt.Sprintf("%s <%s>", o.AuthorName, o.AuthorEmail)
}

// VersionControl is the set of version-control primitives the session
// manager depends on. All operations act on the connection behind q; Dolt
// checkout state is per-connection, so q must be a dedicated connection for
// any branch-sensitive sequence.
type VersionControl interface {
	// CheckoutBranch makes name the active branch. With autoCommitPending,
	// leftover uncommitted changes found on the branch are committed first so
	// the caller starts from a clean slate.
	CheckoutBranch(ctx context.Context, q Querier, name string, autoCommitPending bool) error
	// CreateBranchAtHash creates branch name pointing at the given commit
	// hash and checks it out.
	CreateBranchAtHash(ctx context.Context, q Querier, name, hash string) error
	// DeleteBranch force-deletes a branch.
	DeleteBranch(ctx context.Context, q Querier, name string) error
	// Status lists tables with uncommitted changes on the active branch.
	Status(ctx context.Context, q Querier) ([]StatusEntry, error)
	// AddAndCommit stages everything and commits. A commit with nothing to
	// commit is not an error.
	AddAndCommit(ctx context.Context, q Querier, opts CommitOptions) error
	// Reset discards all uncommitted changes on the active branch.
	Reset(ctx context.Context, q Querier) error
}

// Procedures implements VersionControl with DOLT_* stored procedures.
type Procedures struct {
	// RecoveryAuthorName/Email sign auto-commits of leftover changes found
	// during checkout.
	RecoveryAuthorName  string
	RecoveryAuthorEmail string
}

var _ VersionControl = Procedures{}

func (p Procedures) CheckoutBranch(ctx context.Context, q Querier, name string, autoCommitPending bool) error {
	if _, err := q.ExecContext(ctx, "CALL DOLT_CHECKOUT(?)", name); err != nil {
		return fmt.Errorf("checking out branch %s: %w", name, err)
	}
	if !autoCommitPending {
		return nil
	}

	entries, err := p.Status(ctx, q)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	log.Warn().Str("branch", name).Int("tables", len(entries)).
		Msg("Auto-committing leftover changes from a prior incomplete operation")
	return p.AddAndCommit(ctx, q, CommitOptions{
		Message:     fmt.Sprintf("Auto-commit of pending changes on %s", name),
		AuthorName:  p.RecoveryAuthorName,
		AuthorEmail: p.RecoveryAuthorEmail,
	})
}

func (p Procedures) CreateBranchAtHash(ctx context.Context, q Querier, name, hash string) error {
	if _, err := q.ExecContext(ctx, "CALL DOLT_BRANCH(?, ?)", name, hash); err != nil {
		return fmt.Errorf("creating branch %s at %s: %w", name, hash, err)
	}
	if _, err := q.ExecContext(ctx, "CALL DOLT_CHECKOUT(?)", name); err != nil {
		return fmt.Errorf("checking out branch %s: %w", name, err)
	}
	return nil
}

func (p Procedures) DeleteBranch(ctx context.Context, q Querier, name string) error {
	if _, err := q.ExecContext(ctx, "CALL DOLT_BRANCH('-D', ?)", name); err != nil {
		return fmt.Errorf("deleting branch %s: %w", name, err)
	}
	return nil
}

func (p Procedures) Status(ctx context.Context, q Querier) ([]StatusEntry, error) {
	rows, err := q.QueryContext(ctx, "SELECT table_name, staged, status FROM dolt_status")
	if err != nil {
		return nil, fmt.Errorf("querying dolt_status: %w", err)
	}
	defer rows.Close()

	var entries []StatusEntry
	for rows.Next() {
		var e StatusEntry
		if err := rows.Scan(&e.TableName, &e.Staged, &e.Status); err != nil {
			return nil, fmt.Errorf("scanning dolt_status row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading dolt_status: %w", err)
	}
	return entries, nil
}

func (p Procedures) AddAndCommit(ctx context.Context, q Querier, opts CommitOptions) error {
	_, err := q.ExecContext(ctx, "CALL DOLT_COMMIT('-Am', ?, '--author', ?)",
		opts.Message, opts.AuthorString())
	if err != nil {
		if isNothingToCommit(err) {
			return nil
		}
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

func (p Procedures) Reset(ctx context.Context, q Querier) error {
	if _, err := q.ExecContext(ctx, "CALL DOLT_RESET('--hard')"); err != nil {
		return fmt.Errorf("resetting working set: %w", err)
	}
	return nil
}

// isNothingToCommit matches the Dolt server error for an empty commit.
func isNothingToCommit(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "nothing to commit")
}
