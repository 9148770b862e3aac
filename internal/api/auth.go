package api

import (
	"net/http"
	"strings"

	"github.com/inkeep/agents/internal/config"
)

// Gateway headers carrying the end-user identity for commit authorship.
const (
	UserIDHeader    = "X-Inkeep-User-Id"
	UserEmailHeader = "X-Inkeep-User-Email"
)

// Authenticate verifies the bearer API key against the configured hash and
// extracts the caller identity from the gateway headers. With auth disabled
// the key check is skipped but identity extraction still happens, so
// commits remain attributable in development setups.
func Authenticate(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Disabled {
				key := bearerToken(r)
				if !cfg.CheckAPIKey(key) {
					writeErrorResponse(w, http.StatusUnauthorized, "unauthorized",
						"Missing or invalid API key", nil)
					return
				}
			}

			identity := Identity{
				UserID:    strings.TrimSpace(r.Header.Get(UserIDHeader)),
				UserEmail: strings.TrimSpace(r.Header.Get(UserEmailHeader)),
			}
			if identity.UserID != "" || identity.UserEmail != "" {
				r = r.WithContext(WithIdentity(r.Context(), identity))
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
