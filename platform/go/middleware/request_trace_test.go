package middleware

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"

	platformauth "github.com/zenGate-Global/retailops/platform/go/auth"
	"github.com/zenGate-Global/retailops/platform/go/requesttrace"
)

func unsignedToken(payload string) string {
	return "e30." + base64.RawURLEncoding.EncodeToString([]byte(payload)) + "."
}

func tracedRouter(t *testing.T, check func(audit requesttrace.AuditInfo)) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(platformauth.JWT(platformauth.UnsignedTokenVerifier(), nil))
	r.Use(RequestTrace)
	r.Get("/test", func(w http.ResponseWriter, req *http.Request) {
		audit, ok := requesttrace.FromContext(req.Context())
		require.True(t, ok)
		require.NotEmpty(t, audit.RequestID)
		check(audit)
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func TestRequestTraceWithAuth(t *testing.T) {
	r := tracedRouter(t, func(audit requesttrace.AuditInfo) {
		require.Equal(t, requesttrace.ActorKindUser, audit.ActorKind)
		require.Equal(t, "user-123", *audit.UserID)
		require.Equal(t, "tenant-1", *audit.TenantID)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+unsignedToken(`{"uid":"user-123","tenantId":"tenant-1"}`))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
}

func TestRequestTraceServiceAccount(t *testing.T) {
	r := tracedRouter(t, func(audit requesttrace.AuditInfo) {
		require.Equal(t, requesttrace.ActorKindSystem, audit.ActorKind)
		require.Nil(t, audit.UserID)
		require.Equal(t, "provisioner", *audit.ServiceID)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+unsignedToken(`{"uid":"provisioner","serviceAccount":true}`))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
}

func TestRequestTraceAnonymous(t *testing.T) {
	r := tracedRouter(t, func(audit requesttrace.AuditInfo) {
		require.Equal(t, requesttrace.ActorKindAnonymous, audit.ActorKind)
		require.Nil(t, audit.UserID)
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/test", nil))

	require.Equal(t, http.StatusOK, resp.Code)
}
