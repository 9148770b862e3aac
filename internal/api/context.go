package api

import (
	"context"

	"github.com/inkeep/agents/internal/dolt"
)

type contextKey string

const (
	refContextKey      contextKey = "resolved_ref"
	dbContextKey       contextKey = "db_handle"
	identityContextKey contextKey = "caller_identity"
)

// RefType discriminates the ResolvedRef union.
type RefType string

const (
	RefTypeBranch RefType = "branch"
	RefTypeTag    RefType = "tag"
	RefTypeCommit RefType = "commit"
)

// ResolvedRef names the version of the manage store a request operates on.
// Branch refs carry Name; tag and commit refs carry Hash. It is produced
// once by the ref middleware and immutable for the request's lifetime.
type ResolvedRef struct {
	Type RefType
	Name string
	Hash string
}

// WithResolvedRef stores the resolved ref on the context.
func WithResolvedRef(ctx context.Context, ref ResolvedRef) context.Context {
	return context.WithValue(ctx, refContextKey, ref)
}

// ResolvedRefFromContext returns the ref stored by the ref middleware.
func ResolvedRefFromContext(ctx context.Context) (ResolvedRef, bool) {
	ref, ok := ctx.Value(refContextKey).(ResolvedRef)
	return ref, ok
}

// Identity is the authenticated caller, used for commit authorship.
type Identity struct {
	UserID    string
	UserEmail string
}

// WithIdentity stores the caller identity on the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext returns the caller identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok
}

// WithDB binds the request-scoped database handle. Only the session manager
// calls this; the handle is valid strictly for the current request.
func WithDB(ctx context.Context, q dolt.Querier) context.Context {
	return context.WithValue(ctx, dbContextKey, q)
}

// DBFromContext returns the handle bound by the session manager, or nil.
// Handlers must use this handle for every manage-store query and must never
// retain it beyond the request.
func DBFromContext(ctx context.Context) dolt.Querier {
	q, _ := ctx.Value(dbContextKey).(dolt.Querier)
	return q
}
