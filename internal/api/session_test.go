package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkeep/agents/internal/dolt"
)

// fakeConn satisfies dolt.PooledConn. The fake version control layer
// intercepts every operation, so no SQL ever reaches the connection.
type fakeConn struct {
	mu     sync.Mutex
	closes int
}

func (c *fakeConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, errors.New("fakeConn: unexpected direct SQL")
}

func (c *fakeConn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, errors.New("fakeConn: unexpected direct SQL")
}

func (c *fakeConn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

type fakePool struct {
	mu         sync.Mutex
	acquires   int
	conns      []*fakeConn
	acquireErr error
}

func (p *fakePool) Acquire(ctx context.Context) (dolt.PooledConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	p.acquires++
	conn := &fakeConn{}
	p.conns = append(p.conns, conn)
	return conn, nil
}

func (p *fakePool) totalCloses() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.conns {
		n += c.closes
	}
	return n
}

// fakeVC records every version-control call in order. Like a real driver,
// every operation fails without being recorded when its context is already
// canceled.
type fakeVC struct {
	mu    sync.Mutex
	calls []string

	pending          []dolt.StatusEntry
	statusErr        error
	commitErr        error
	resetErr         error
	setupCheckoutErr error

	commits []dolt.CommitOptions
}

func (v *fakeVC) record(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, fmt.Sprintf(format, args...))
}

func (v *fakeVC) CheckoutBranch(ctx context.Context, q dolt.Querier, name string, autoCommitPending bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if autoCommitPending && v.setupCheckoutErr != nil {
		return v.setupCheckoutErr
	}
	v.record("checkout:%s:%t", name, autoCommitPending)
	return nil
}

func (v *fakeVC) CreateBranchAtHash(ctx context.Context, q dolt.Querier, name, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.record("create:%s:%s", name, hash)
	return nil
}

func (v *fakeVC) DeleteBranch(ctx context.Context, q dolt.Querier, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.record("delete:%s", name)
	return nil
}

func (v *fakeVC) Status(ctx context.Context, q dolt.Querier) ([]dolt.StatusEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.record("status")
	return v.pending, v.statusErr
}

func (v *fakeVC) AddAndCommit(ctx context.Context, q dolt.Querier, opts dolt.CommitOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.record("commit:%s", opts.Message)
	if v.commitErr != nil {
		return v.commitErr
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.commits = append(v.commits, opts)
	return nil
}

func (v *fakeVC) Reset(ctx context.Context, q dolt.Querier) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.record("reset")
	return v.resetErr
}

func (v *fakeVC) countPrefix(prefix string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, c := range v.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (v *fakeVC) callLog() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.calls...)
}

func dirty() []dolt.StatusEntry {
	return []dolt.StatusEntry{{TableName: "agents", Status: "modified"}}
}

func newTestSession(pool dolt.ConnectionPool, vc dolt.VersionControl) *SessionManager {
	return NewSessionManager(pool, vc, "main", nil)
}

// serve runs the session middleware around handler, recovering any panic the
// middleware propagates.
func serve(t *testing.T, sm *SessionManager, req *http.Request, handler http.HandlerFunc) (rec *httptest.ResponseRecorder, panicked bool) {
	t.Helper()
	rec = httptest.NewRecorder()
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
			}
		}()
		sm.Middleware(handler).ServeHTTP(rec, req)
	}()
	return rec, panicked
}

func branchRequest(method, path, branch string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	return req.WithContext(WithResolvedRef(req.Context(), ResolvedRef{Type: RefTypeBranch, Name: branch}))
}

func statusHandler(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}
}

func TestConnectionReleasedOnEveryOutcome(t *testing.T) {
	outcomes := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"success", statusHandler(http.StatusCreated)},
		{"business error", statusHandler(http.StatusInternalServerError)},
		{"panic", func(w http.ResponseWriter, r *http.Request) { panic("handler exploded") }},
	}

	for _, tc := range outcomes {
		t.Run(tc.name, func(t *testing.T) {
			pool := &fakePool{}
			vc := &fakeVC{pending: dirty()}
			sm := newTestSession(pool, vc)

			_, _ = serve(t, sm, branchRequest(http.MethodPost, "/tenants/t1/projects/p1/agents", "main"), tc.handler)

			assert.Equal(t, 1, pool.acquires)
			assert.Equal(t, 1, pool.totalCloses(), "connection must be released exactly once")
		})
	}
}

func TestStatusFailureDoesNotChangeResponse(t *testing.T) {
	pool := &fakePool{}
	vc := &fakeVC{statusErr: errors.New("status unavailable"), resetErr: errors.New("reset down")}
	sm := newTestSession(pool, vc)

	rec, _ := serve(t, sm, branchRequest(http.MethodPost, "/tenants/t1/projects/p1/agents", "main"),
		statusHandler(http.StatusCreated))

	assert.Equal(t, http.StatusCreated, rec.Code, "plumbing failures must not change the response")
	assert.Equal(t, 1, pool.totalCloses())
}

func TestPoolAcquireFailureIsFatal(t *testing.T) {
	pool := &fakePool{acquireErr: errors.New("pool exhausted")}
	vc := &fakeVC{}
	sm := newTestSession(pool, vc)

	handlerRan := false
	rec, _ := serve(t, sm, branchRequest(http.MethodGet, "/tenants/t1/projects/p1/agents", "main"),
		func(w http.ResponseWriter, r *http.Request) { handlerRan = true })

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, handlerRan, "handler must not run without a connection")
	assert.Empty(t, vc.callLog(), "no branch setup without a connection")
}

func TestTempBranchDeletedForTagRefs(t *testing.T) {
	for _, refType := range []RefType{RefTypeTag, RefTypeCommit} {
		t.Run(string(refType), func(t *testing.T) {
			pool := &fakePool{}
			vc := &fakeVC{}
			sm := newTestSession(pool, vc)

			req := httptest.NewRequest(http.MethodGet, "/tenants/t1/projects/p1/agents/a1", nil)
			req = req.WithContext(WithResolvedRef(req.Context(), ResolvedRef{Type: refType, Hash: "abc123"}))

			rec, _ := serve(t, sm, req, statusHandler(http.StatusOK))
			require.Equal(t, http.StatusOK, rec.Code)

			require.Equal(t, 1, vc.countPrefix("create:"))
			require.Equal(t, 1, vc.countPrefix("delete:"))

			calls := vc.callLog()
			created := strings.TrimPrefix(calls[0], "create:")
			name, hash, ok := strings.Cut(created, ":")
			require.True(t, ok)
			assert.Equal(t, "abc123", hash)
			assert.Contains(t, name, string(refType))
			assert.Contains(t, calls, "delete:"+name)

			assert.Zero(t, vc.countPrefix("commit"), "read-only refs never commit")
			assert.Zero(t, vc.countPrefix("reset"), "read-only refs never reset")
		})
	}
}

func TestTempBranchDeletedEvenWhenHandlerPanics(t *testing.T) {
	pool := &fakePool{}
	vc := &fakeVC{}
	sm := newTestSession(pool, vc)

	req := httptest.NewRequest(http.MethodGet, "/tenants/t1/projects/p1/agents", nil)
	req = req.WithContext(WithResolvedRef(req.Context(), ResolvedRef{Type: RefTypeTag, Hash: "abc123"}))

	_, panicked := serve(t, sm, req, func(w http.ResponseWriter, r *http.Request) { panic("boom") })

	assert.True(t, panicked, "panic must propagate to the outer recovery middleware")
	assert.Equal(t, 1, vc.countPrefix("delete:"))
	assert.Equal(t, 1, pool.totalCloses())
}

func TestTempBranchNamesAreUnique(t *testing.T) {
	ref := ResolvedRef{Type: RefTypeTag, Hash: "abc123"}
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		name := tempBranchName(ref)
		assert.False(t, seen[name], "temp branch name collision: %s", name)
		seen[name] = true
	}
}

func TestCommitOnSuccessfulMutationWithPendingChanges(t *testing.T) {
	pool := &fakePool{}
	vc := &fakeVC{pending: dirty()}
	sm := newTestSession(pool, vc)

	req := branchRequest(http.MethodPost, "/tenants/t1/projects/p1/agents", "main")
	req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: "u-7", UserEmail: "dev@acme.test"}))

	rec, _ := serve(t, sm, req, statusHandler(http.StatusCreated))
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, vc.commits, 1)
	assert.Equal(t, "Create /tenants/t1/projects/p1/agents via API", vc.commits[0].Message)
	assert.Equal(t, "u-7", vc.commits[0].AuthorName)
	assert.Equal(t, "dev@acme.test", vc.commits[0].AuthorEmail)
}

func TestCommitUsesServiceIdentityWhenUnauthenticated(t *testing.T) {
	pool := &fakePool{}
	vc := &fakeVC{pending: dirty()}
	sm := newTestSession(pool, vc)

	rec, _ := serve(t, sm, branchRequest(http.MethodPut, "/tenants/t1/projects/p1/agents/a1", "main"),
		statusHandler(http.StatusOK))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, vc.commits, 1)
	assert.Equal(t, "Update /tenants/t1/projects/p1/agents/a1 via API", vc.commits[0].Message)
	assert.Equal(t, serviceAuthorName, vc.commits[0].AuthorName)
	assert.Equal(t, serviceAuthorEmail, vc.commits[0].AuthorEmail)
}

func TestNoCommitWhenNothingPending(t *testing.T) {
	pool := &fakePool{}
	vc := &fakeVC{} // clean status
	sm := newTestSession(pool, vc)

	_, _ = serve(t, sm, branchRequest(http.MethodPost, "/tenants/t1/projects/p1/agents", "main"),
		statusHandler(http.StatusCreated))

	assert.Equal(t, 1, vc.countPrefix("status"))
	assert.Zero(t, vc.countPrefix("commit"))
}

func TestReadMethodsNeverCommitOrReset(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead} {
		t.Run(method, func(t *testing.T) {
			pool := &fakePool{}
			vc := &fakeVC{pending: dirty()}
			sm := newTestSession(pool, vc)

			_, _ = serve(t, sm, branchRequest(method, "/tenants/t1/projects/p1/agents", "main"),
				statusHandler(http.StatusOK))

			assert.Zero(t, vc.countPrefix("commit"))
			assert.Zero(t, vc.countPrefix("reset"))
			assert.Zero(t, vc.countPrefix("status"), "read requests skip the status query entirely")
		})
	}
}

func TestResetOnFailedMutation(t *testing.T) {
	pool := &fakePool{}
	vc := &fakeVC{pending: dirty()}
	sm := newTestSession(pool, vc)

	rec, _ := serve(t, sm, branchRequest(http.MethodPost, "/tenants/t1/projects/p1/agents", "main"),
		statusHandler(http.StatusInternalServerError))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	assert.Equal(t, 1, vc.countPrefix("reset"))
	assert.Zero(t, vc.countPrefix("commit"))
}

func TestProjectDeleteSuppressesAutoCommit(t *testing.T) {
	pool := &fakePool{}
	vc := &fakeVC{pending: dirty()}
	sm := newTestSession(pool, vc)

	rec, _ := serve(t, sm, branchRequest(http.MethodDelete, "/tenants/t1/projects/p1", "main"),
		statusHandler(http.StatusNoContent))
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Success with deliberate suppression: neither commit nor reset.
	assert.Zero(t, vc.countPrefix("commit"))
	assert.Zero(t, vc.countPrefix("reset"))
}

func TestDeleteBelowProjectStillCommits(t *testing.T) {
	pool := &fakePool{}
	vc := &fakeVC{pending: dirty()}
	sm := newTestSession(pool, vc)

	rec, _ := serve(t, sm, branchRequest(http.MethodDelete, "/tenants/t1/projects/p1/agents/a1", "main"),
		statusHandler(http.StatusNoContent))
	require.Equal(t, http.StatusNoContent, rec.Code)

	require.Len(t, vc.commits, 1)
	assert.Equal(t, "Delete /tenants/t1/projects/p1/agents/a1 via API", vc.commits[0].Message)
}

func TestDefaultBranchCheckedOutAfterEveryRequest(t *testing.T) {
	outcomes := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"success", statusHandler(http.StatusOK)},
		{"failure", statusHandler(http.StatusBadGateway)},
		{"panic", func(w http.ResponseWriter, r *http.Request) { panic("boom") }},
	}

	for _, tc := range outcomes {
		t.Run(tc.name, func(t *testing.T) {
			pool := &fakePool{}
			vc := &fakeVC{}
			sm := newTestSession(pool, vc)

			_, _ = serve(t, sm, branchRequest(http.MethodPost, "/tenants/t1/projects/p1/agents", "feature-x"), tc.handler)

			calls := vc.callLog()
			require.NotEmpty(t, calls)
			assert.Contains(t, calls, "checkout:main:false", "cleanup must return the connection to the default branch")
		})
	}
}

func TestBranchSetupRequestsLeftoverAutoCommit(t *testing.T) {
	pool := &fakePool{}
	vc := &fakeVC{}
	sm := newTestSession(pool, vc)

	_, _ = serve(t, sm, branchRequest(http.MethodGet, "/tenants/t1/projects/p1/agents", "feature-x"),
		statusHandler(http.StatusOK))

	calls := vc.callLog()
	require.NotEmpty(t, calls)
	assert.Equal(t, "checkout:feature-x:true", calls[0])
}

func TestPanicTriggersRecoveryReset(t *testing.T) {
	pool := &fakePool{}
	vc := &fakeVC{pending: dirty()}
	sm := newTestSession(pool, vc)

	_, panicked := serve(t, sm, branchRequest(http.MethodPost, "/tenants/t1/projects/p1/agents", "main"),
		func(w http.ResponseWriter, r *http.Request) { panic("mid-write") })

	require.True(t, panicked)
	assert.Equal(t, 1, vc.countPrefix("reset"), "aborted requests discard the working set before checkout")
	assert.Zero(t, vc.countPrefix("commit"))
}

func TestCommitSettlesAfterClientDisconnect(t *testing.T) {
	pool := &fakePool{}
	vc := &fakeVC{pending: dirty()}
	sm := newTestSession(pool, vc)

	req := branchRequest(http.MethodPost, "/tenants/t1/projects/p1/agents", "main")
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)

	rec, _ := serve(t, sm, req, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		cancel() // client gone before the commit decision runs
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, vc.commits, 1, "disconnect must not strand pending changes")
	assert.Equal(t, "Create /tenants/t1/projects/p1/agents via API", vc.commits[0].Message)
	assert.Contains(t, vc.callLog(), "checkout:main:false")
	assert.Equal(t, 1, pool.totalCloses())
}

func TestResetSettlesAfterClientDisconnect(t *testing.T) {
	pool := &fakePool{}
	vc := &fakeVC{pending: dirty()}
	sm := newTestSession(pool, vc)

	req := branchRequest(http.MethodPost, "/tenants/t1/projects/p1/agents", "main")
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)

	rec, _ := serve(t, sm, req, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		cancel()
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	assert.Equal(t, 1, vc.countPrefix("reset"), "disconnect must not leave a failed request's changes behind")
	assert.Zero(t, vc.countPrefix("commit"))
	assert.Equal(t, 1, pool.totalCloses())
}

func TestBranchSetupFailureResetsBeforeDefaultCheckout(t *testing.T) {
	pool := &fakePool{}
	vc := &fakeVC{setupCheckoutErr: errors.New("checkout blocked by dirty working set")}
	sm := newTestSession(pool, vc)

	handlerRan := false
	rec, _ := serve(t, sm, branchRequest(http.MethodPost, "/tenants/t1/projects/p1/agents", "feature-x"),
		func(w http.ResponseWriter, r *http.Request) { handlerRan = true })

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, handlerRan)
	assert.Equal(t, 1, vc.countPrefix("reset"), "setup failure can leave the connection on a dirty branch")
	assert.Contains(t, vc.callLog(), "checkout:main:false")
	assert.Equal(t, 1, pool.totalCloses())
}

func TestCommitFailureDoesNotChangeResponse(t *testing.T) {
	pool := &fakePool{}
	vc := &fakeVC{pending: dirty(), commitErr: errors.New("commit refused")}
	sm := newTestSession(pool, vc)

	rec, _ := serve(t, sm, branchRequest(http.MethodPost, "/tenants/t1/projects/p1/agents", "main"),
		statusHandler(http.StatusCreated))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, pool.totalCloses())
}

func TestDegradedModeBindsFallbackHandle(t *testing.T) {
	fallback := &fakeConn{}
	vc := &fakeVC{}
	sm := NewSessionManager(nil, vc, "main", fallback)

	var bound dolt.Querier
	rec := httptest.NewRecorder()
	req := branchRequest(http.MethodPost, "/tenants/t1/projects/p1/agents", "main")
	sm.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bound = DBFromContext(r.Context())
		w.WriteHeader(http.StatusCreated)
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Same(t, fallback, bound.(*fakeConn))
	assert.Empty(t, vc.callLog(), "degraded mode skips all branch machinery")
	assert.Zero(t, fallback.closes, "the shared handle must not be released")
}

func TestHandlerSeesRequestScopedHandle(t *testing.T) {
	pool := &fakePool{}
	vc := &fakeVC{}
	sm := newTestSession(pool, vc)

	var bound dolt.Querier
	_, _ = serve(t, sm, branchRequest(http.MethodGet, "/tenants/t1/projects/p1/agents", "main"),
		func(w http.ResponseWriter, r *http.Request) {
			bound = DBFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})

	require.Len(t, pool.conns, 1)
	assert.Same(t, pool.conns[0], bound.(*fakeConn), "the bound handle must wrap this request's connection")
}

func TestCommitMessageVerbs(t *testing.T) {
	cases := []struct {
		method string
		want   string
	}{
		{http.MethodPost, "Create /tenants/t1/projects/p1/agents via API"},
		{http.MethodPut, "Update /tenants/t1/projects/p1/agents via API"},
		{http.MethodPatch, "Update /tenants/t1/projects/p1/agents via API"},
		{http.MethodDelete, "Delete /tenants/t1/projects/p1/agents via API"},
		{"PURGE", "PURGE /tenants/t1/projects/p1/agents via API"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, commitMessage(tc.method, "/tenants/t1/projects/p1/agents"))
	}
}

func TestProjectDeletePatternMatching(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   bool
	}{
		{http.MethodDelete, "/tenants/t1/projects/p1", true},
		{http.MethodDelete, "/tenants/t1/projects/p1/", true},
		{http.MethodDelete, "/tenants/t1/projects/p1/agents/a1", false},
		{http.MethodPost, "/tenants/t1/projects/p1", false},
		{http.MethodDelete, "/tenants/t1/projects", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, isProjectDelete(tc.method, tc.path), "%s %s", tc.method, tc.path)
	}
}
