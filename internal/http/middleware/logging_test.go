package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestMeta_GeneratesRequestID(t *testing.T) {
	var meta auth.RequestMeta
	handler := middleware.RequestMeta(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta = auth.RequestMetaFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	req.RemoteAddr = "192.0.2.10:4711"
	req.Header.Set("User-Agent", "site-tablet/2.1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	_, err := uuid.Parse(meta.RequestID)
	require.NoError(t, err)
	assert.Equal(t, meta.RequestID, w.Header().Get(middleware.HeaderRequestID))
	assert.Equal(t, "192.0.2.10", meta.IPAddress)
	assert.Equal(t, "site-tablet/2.1", meta.UserAgent)
}

func TestRequestMeta_KeepsIncomingRequestIDAndProxyAddress(t *testing.T) {
	var meta auth.RequestMeta
	handler := middleware.RequestMeta(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta = auth.RequestMetaFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.HeaderRequestID, "gateway-123")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.2")
	req.Header.Set("User-Agent", strings.Repeat("x", 900))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "gateway-123", meta.RequestID)
	assert.Equal(t, "203.0.113.9", meta.IPAddress)
	assert.Len(t, meta.UserAgent, 500)
}

func TestLogging_RecordsPrincipalKind(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	userID := uuid.New()
	inner := middleware.TagPrincipal(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	// Stands in for the authentication middleware
	authenticate := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithPrincipal(r.Context(), auth.UserPrincipal(userID, domain.RoleUser))
		inner.ServeHTTP(w, r.WithContext(ctx))
	})
	handler := middleware.RequestMeta(middleware.Logging(logger)(authenticate))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/v1/tenants/1", nil))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "authenticated", fields["principal_kind"])
	assert.Equal(t, userID.String(), fields["user_id"])
	assert.EqualValues(t, http.StatusNoContent, fields["status_code"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestLogging_UnauthenticatedRequest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	handler := middleware.Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "none", logs.All()[0].ContextMap()["principal_kind"])
}

func TestRecovery_ReturnsInternalError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	logger := zap.New(core)

	handler := middleware.Logging(zap.NewNop())(middleware.Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrorTypeInternal)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "panic recovered", logs.All()[0].Message)
}
