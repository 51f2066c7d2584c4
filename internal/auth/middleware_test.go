package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMiddleware(t *testing.T) *Middleware {
	t.Helper()
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)
	return NewMiddleware(v)
}

func controlToken(t *testing.T) string {
	return signToken(t, testSecret, jwt.MapClaims{
		"sub":    "operator-1",
		"scopes": []string{"read", "control"},
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
}

func readToken(t *testing.T) string {
	return signToken(t, testSecret, jwt.MapClaims{
		"sub":    "viewer-1",
		"scopes": []string{"read"},
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
}

func TestRequireAuthPassesClaims(t *testing.T) {
	m := newTestMiddleware(t)

	var got *Claims
	handler := m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		got = GetClaimsFromRequest(r)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer "+readToken(t))
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "viewer-1", got.Subject)
}

func TestRequireAuthRejects(t *testing.T) {
	m := newTestMiddleware(t)
	handler := m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"empty bearer", "Bearer "},
		{"invalid token", "Bearer not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireAuthSkipsHealth(t *testing.T) {
	m := newTestMiddleware(t)
	handler := m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuthAcceptsQueryToken(t *testing.T) {
	m := newTestMiddleware(t)
	handler := m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// WebSocket clients pass the token as a query parameter.
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/ws?access_token="+url.QueryEscape(readToken(t)), nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireScope(t *testing.T) {
	m := newTestMiddleware(t)

	handler := m.RequireAuth(m.RequireScope(ScopeControl)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Read-only token lacks control scope.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stop", nil)
	req.Header.Set("Authorization", "Bearer "+readToken(t))
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/stop", nil)
	req.Header.Set("Authorization", "Bearer "+controlToken(t))
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubjectFromContext(t *testing.T) {
	m := newTestMiddleware(t)

	var subject string
	handler := m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		subject = SubjectFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer "+controlToken(t))
	handler(httptest.NewRecorder(), req)
	assert.Equal(t, "operator-1", subject)

	// No claims in context falls back to unknown.
	assert.Equal(t, "unknown", SubjectFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
