package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := NewLogger(Config{Component: "test", Level: "loud"})
	require.Error(t, err)
}

func TestNewLoggerConsole(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger(Config{Component: "cli", Level: "debug", Console: true})
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestRequestLoggerStoresLoggerOnContext(t *testing.T) {
	t.Parallel()

	base := zaptest.NewLogger(t)
	var seen bool
	handler := middleware.RequestID(RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, seen = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.True(t, seen)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLifecycleFields(t *testing.T) {
	t.Parallel()

	tenant := uuid.New()
	fields := Request(Lifecycle(tenant, "analytics"), "req-1")
	require.Len(t, fields, 3)
	require.Equal(t, tenant.String(), fields[0].String)
	require.Equal(t, "req-1", fields[2].String)

	require.Len(t, Request(Lifecycle(tenant, "analytics"), ""), 2)
}

func TestParseLevelAcceptsWarningAlias(t *testing.T) {
	t.Parallel()

	level, err := ParseLevel(" WARNING ")
	require.NoError(t, err)
	require.Equal(t, zap.WarnLevel, level.Level())

	level, err = ParseLevel("")
	require.NoError(t, err)
	require.Equal(t, zap.InfoLevel, level.Level())
}

func TestAccessLevelFollowsStatus(t *testing.T) {
	t.Parallel()

	require.Equal(t, zap.InfoLevel, accessLevel(http.StatusCreated))
	require.Equal(t, zap.WarnLevel, accessLevel(http.StatusConflict))
	require.Equal(t, zap.ErrorLevel, accessLevel(http.StatusServiceUnavailable))
}
