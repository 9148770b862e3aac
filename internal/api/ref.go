package api

import (
	"errors"
	"net/http"
	"strings"
)

// RefHeader carries the requested ref when it is not in the query string.
const RefHeader = "X-Inkeep-Ref"

// ResolveRef produces the ResolvedRef for the request and stores it in
// context before the session manager runs. Syntax:
//
//	?ref=<branch>          branch checkout (default branch when absent)
//	?ref=tag:<hash>        read-only view of a tag
//	?ref=commit:<hash>     read-only view of a commit
//
// The header form takes effect only when the query parameter is absent.
func ResolveRef(defaultBranch string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.URL.Query().Get("ref"))
			if raw == "" {
				raw = strings.TrimSpace(r.Header.Get(RefHeader))
			}

			ref, err := parseRef(raw, defaultBranch)
			if err != nil {
				writeErrorResponse(w, http.StatusBadRequest, "invalid_ref", err.Error(), nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithResolvedRef(r.Context(), ref)))
		})
	}
}

func parseRef(raw, defaultBranch string) (ResolvedRef, error) {
	switch {
	case raw == "":
		return ResolvedRef{Type: RefTypeBranch, Name: defaultBranch}, nil
	case strings.HasPrefix(raw, "tag:"):
		hash := strings.TrimSpace(strings.TrimPrefix(raw, "tag:"))
		if hash == "" {
			return ResolvedRef{}, errors.New("tag ref requires a hash")
		}
		return ResolvedRef{Type: RefTypeTag, Hash: hash}, nil
	case strings.HasPrefix(raw, "commit:"):
		hash := strings.TrimSpace(strings.TrimPrefix(raw, "commit:"))
		if hash == "" {
			return ResolvedRef{}, errors.New("commit ref requires a hash")
		}
		return ResolvedRef{Type: RefTypeCommit, Hash: hash}, nil
	case strings.ContainsAny(raw, " \t'\";"):
		return ResolvedRef{}, errors.New("invalid branch name")
	default:
		return ResolvedRef{Type: RefTypeBranch, Name: raw}, nil
	}
}
