package middleware

import (
	"net/http"
	"strings"

	"github.com/tobeyfinance/backoffice/internal/audit"
)

// Actor tags the request context with the caller identity from the
// X-Actor-Id header so downstream audit entries can attribute mutations.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get("X-Actor-Id"))
		if actor != "" {
			r = r.WithContext(audit.ContextWithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}
