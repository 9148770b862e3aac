package api

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/inkeep/agents/internal/dolt"
)

// Fallback commit author for unauthenticated callers.
const (
	serviceAuthorName  = "agents-api"
	serviceAuthorEmail = "api@inkeep.com"
)

// Project deletion has its own out-of-band cleanup; auto-commit is
// suppressed for it even on success.
var projectDeletePattern = regexp.MustCompile(`^/tenants/[^/]+/projects/[^/]+/?$`)

// SessionManager gives every request its own manage-store connection checked
// out on the request's resolved ref, binds the request-scoped handle into
// context, and after the handler finishes commits or resets the branch's
// pending changes based on the outcome. The connection always goes back to
// the pool on the default branch with temp branches deleted, no matter how
// the handler terminates.
//
// With a nil pool the manager runs degraded: every request shares the
// fallback handle, with no branch isolation and no auto-commit. This keeps
// single-process setups (and tests against the embedded store) working
// without a Dolt server.
type SessionManager struct {
	pool          dolt.ConnectionPool
	vc            dolt.VersionControl
	defaultBranch string
	fallback      dolt.Querier
}

// NewSessionManager constructs a session manager. pool may be nil (degraded
// mode); fallback is the shared handle used in that mode.
func NewSessionManager(pool dolt.ConnectionPool, vc dolt.VersionControl, defaultBranch string, fallback dolt.Querier) *SessionManager {
	return &SessionManager{
		pool:          pool,
		vc:            vc,
		defaultBranch: defaultBranch,
		fallback:      fallback,
	}
}

// Middleware wraps next with the per-request session lifecycle.
func (sm *SessionManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sm.pool == nil {
			log.Debug().Str("path", r.URL.Path).Msg("No connection pool; using shared fallback handle")
			next.ServeHTTP(w, r.WithContext(WithDB(r.Context(), sm.fallback)))
			return
		}

		ctx := r.Context()

		ref, ok := ResolvedRefFromContext(ctx)
		if !ok {
			ref = ResolvedRef{Type: RefTypeBranch, Name: sm.defaultBranch}
		}

		conn, err := sm.pool.Acquire(ctx)
		if err != nil {
			log.Error().Err(err).Str("path", r.URL.Path).Msg("Failed to acquire manage store connection")
			writeErrorResponse(w, http.StatusInternalServerError, "connection_unavailable",
				"Could not obtain a database connection", nil)
			return
		}

		// Everything past this point runs under the cleanup guard: the
		// connection is restored to the default branch and released exactly
		// once, on success, error return, or panic.
		tempBranch := ""
		handlerDone := false
		defer func() {
			sm.cleanup(ctx, conn, ref, tempBranch, !handlerDone)
		}()

		switch ref.Type {
		case RefTypeBranch:
			err = sm.vc.CheckoutBranch(ctx, conn, ref.Name, true)
		case RefTypeTag, RefTypeCommit:
			// Tags and commits are immutable pointers; Dolt cannot check
			// them out directly for reads, so each request gets its own
			// throwaway branch. The random suffix keeps concurrent requests
			// against the same hash from colliding.
			tempBranch = tempBranchName(ref)
			err = sm.vc.CreateBranchAtHash(ctx, conn, tempBranch, ref.Hash)
		default:
			err = fmt.Errorf("unknown ref type %q", ref.Type)
		}
		if err != nil {
			// Leave handlerDone false: checkout can fail mid-auto-commit with
			// the branch already active and dirty, so cleanup must take the
			// aborted path and reset before switching back.
			log.Error().Err(err).Str("path", r.URL.Path).Str("ref_type", string(ref.Type)).
				Msg("Branch setup failed")
			writeErrorResponse(w, http.StatusInternalServerError, "ref_checkout_failed",
				"Could not check out the requested ref", nil)
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r.WithContext(WithDB(ctx, conn)))
		handlerDone = true

		sm.finish(ctx, conn, r, ref, rw.statusCode)
	})
}

// finish applies the post-handler commit/reset policy. Failures here are
// logged and swallowed: the handler's response already reflects the durable
// row-level outcome, and version-control bookkeeping must not change it.
func (sm *SessionManager) finish(ctx context.Context, conn dolt.PooledConn, r *http.Request, ref ResolvedRef, status int) {
	if ref.Type != RefTypeBranch || !isMutating(r.Method) {
		return
	}

	// The client may already have disconnected; the commit/reset decision
	// still has to settle or the branch is left with stranded changes.
	ctx = context.WithoutCancel(ctx)

	success := status >= 200 && status < 300

	if success && !isProjectDelete(r.Method, r.URL.Path) {
		entries, err := sm.vc.Status(ctx, conn)
		if err != nil {
			log.Error().Err(err).Str("branch", ref.Name).Msg("Failed to read pending changes; skipping auto-commit")
			return
		}
		if len(entries) == 0 {
			return
		}

		identity, _ := IdentityFromContext(ctx)
		opts := dolt.CommitOptions{
			Message:     commitMessage(r.Method, r.URL.Path),
			AuthorName:  identity.UserID,
			AuthorEmail: identity.UserEmail,
		}
		if opts.AuthorName == "" {
			opts.AuthorName = serviceAuthorName
		}
		if opts.AuthorEmail == "" {
			opts.AuthorEmail = serviceAuthorEmail
		}

		if err := sm.vc.AddAndCommit(ctx, conn, opts); err != nil {
			log.Error().Err(err).Str("branch", ref.Name).Str("message", opts.Message).
				Msg("Auto-commit failed; response already sent, history will lag")
			return
		}
		log.Info().Str("branch", ref.Name).Str("message", opts.Message).
			Int("tables", len(entries)).Msg("Committed changes")
		return
	}

	if !success {
		entries, err := sm.vc.Status(ctx, conn)
		if err != nil {
			log.Error().Err(err).Str("branch", ref.Name).Msg("Failed to read pending changes after failed request")
			return
		}
		if len(entries) == 0 {
			return
		}
		if err := sm.vc.Reset(ctx, conn); err != nil {
			log.Error().Err(err).Str("branch", ref.Name).Msg("Failed to reset pending changes after failed request")
			return
		}
		log.Warn().Str("branch", ref.Name).Int("status", status).
			Msg("Discarded pending changes from failed request")
	}
}

// cleanup restores the connection to a neutral state and releases it.
// Errors are logged, never propagated: they must not mask the handler's
// result, and the release must happen regardless.
func (sm *SessionManager) cleanup(ctx context.Context, conn dolt.PooledConn, ref ResolvedRef, tempBranch string, aborted bool) {
	// The request context may already be canceled (client abort, panic
	// unwinding a timeout); cleanup queries still have to run.
	ctx = context.WithoutCancel(ctx)

	if aborted {
		// The handler never completed, so the commit/reset decision never
		// ran. Dolt refuses to switch branches over conflicting uncommitted
		// changes, so discard them explicitly before the checkout below.
		if err := sm.vc.Reset(ctx, conn); err != nil {
			log.Error().Err(err).Msg("Cleanup: failed to reset working set after aborted request")
		}
	}

	if err := sm.vc.CheckoutBranch(ctx, conn, sm.defaultBranch, false); err != nil {
		log.Error().Err(err).Str("branch", sm.defaultBranch).Msg("Cleanup: failed to check out default branch")
	}

	if tempBranch != "" {
		if err := sm.vc.DeleteBranch(ctx, conn, tempBranch); err != nil {
			log.Error().Err(err).Str("branch", tempBranch).Msg("Cleanup: failed to delete temporary branch")
		}
	}

	if err := conn.Close(); err != nil {
		log.Error().Err(err).Msg("Cleanup: failed to release connection")
	}
}

func tempBranchName(ref ResolvedRef) string {
	hash := ref.Hash
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return fmt.Sprintf("ref-%s-%s-%s", ref.Type, hash, uuid.NewString()[:8])
}

func isMutating(method string) bool {
	return method != http.MethodGet && method != http.MethodHead
}

func isProjectDelete(method, path string) bool {
	return method == http.MethodDelete && projectDeletePattern.MatchString(path)
}

// commitMessage derives a human-readable commit message from the request.
func commitMessage(method, path string) string {
	var verb string
	switch method {
	case http.MethodPost:
		verb = "Create"
	case http.MethodPut, http.MethodPatch:
		verb = "Update"
	case http.MethodDelete:
		verb = "Delete"
	default:
		verb = method
	}
	return fmt.Sprintf("%s %s via API", verb, path)
}
