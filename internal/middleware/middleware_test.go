package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tobeyfinance/backoffice/internal/audit"
)

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestActor(t *testing.T) {
	var seen string
	handler := Actor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = audit.ActorFromContext(r.Context())
	}))

	t.Run("header is picked up", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Actor-Id", "teller-42")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, "teller-42", seen)
	})

	t.Run("missing header falls back to system", func(t *testing.T) {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, "system", seen)
	})
}
