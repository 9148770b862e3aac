package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    ResolvedRef
		wantErr bool
	}{
		{"empty defaults to main", "", ResolvedRef{Type: RefTypeBranch, Name: "main"}, false},
		{"plain branch", "feature-x", ResolvedRef{Type: RefTypeBranch, Name: "feature-x"}, false},
		{"tag", "tag:abc123def", ResolvedRef{Type: RefTypeTag, Hash: "abc123def"}, false},
		{"commit", "commit:abc123def", ResolvedRef{Type: RefTypeCommit, Hash: "abc123def"}, false},
		{"tag without hash", "tag:", ResolvedRef{}, true},
		{"commit without hash", "commit:", ResolvedRef{}, true},
		{"branch with space", "feature x", ResolvedRef{}, true},
		{"branch with quote", `feat"x`, ResolvedRef{}, true},
		{"branch with semicolon", "main;drop", ResolvedRef{}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseRef(tc.raw, "main")
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveRefMiddleware(t *testing.T) {
	mw := ResolveRef("main")

	t.Run("query parameter wins over header", func(t *testing.T) {
		var got ResolvedRef
		req := httptest.NewRequest(http.MethodGet, "/tenants/t1/projects/p1/agents?ref=feature-x", nil)
		req.Header.Set(RefHeader, "other-branch")
		rec := httptest.NewRecorder()

		mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = ResolvedRefFromContext(r.Context())
		})).ServeHTTP(rec, req)

		assert.Equal(t, ResolvedRef{Type: RefTypeBranch, Name: "feature-x"}, got)
	})

	t.Run("header used when query absent", func(t *testing.T) {
		var got ResolvedRef
		req := httptest.NewRequest(http.MethodGet, "/tenants/t1/projects/p1/agents", nil)
		req.Header.Set(RefHeader, "tag:abc123")
		rec := httptest.NewRecorder()

		mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = ResolvedRefFromContext(r.Context())
		})).ServeHTTP(rec, req)

		assert.Equal(t, ResolvedRef{Type: RefTypeTag, Hash: "abc123"}, got)
	})

	t.Run("invalid ref rejected with 400", func(t *testing.T) {
		handlerRan := false
		req := httptest.NewRequest(http.MethodGet, "/tenants/t1/projects/p1/agents?ref=bad%3Bbranch", nil)
		rec := httptest.NewRecorder()

		mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerRan = true
		})).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, handlerRan)
		assert.Contains(t, rec.Body.String(), "invalid_ref")
	})
}
