package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/config"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/http/handler"
	"github.com/straye-as/project-access-api/internal/http/middleware"
	"github.com/straye-as/project-access-api/internal/http/router"
	"github.com/straye-as/project-access-api/internal/metrics"
	"github.com/straye-as/project-access-api/internal/repository"
	"github.com/straye-as/project-access-api/internal/service"
	"github.com/straye-as/project-access-api/internal/storage"
	"github.com/straye-as/project-access-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type apiServer struct {
	t      *testing.T
	server *httptest.Server
	jwt    *auth.JWTValidator
}

func newAPIServer(t *testing.T) *apiServer {
	t.Helper()

	db := testutil.SetupTestDB(t)
	log := zap.NewNop()

	cfg := &config.Config{
		App:       config.AppConfig{Name: "test", Environment: "development"},
		Auth:      config.AuthConfig{JWTSecret: "router-test-secret", APIKey: "service-key"},
		Portal:    config.PortalConfig{TokenLifetimeDays: 7, RenewalLeadDays: 7, RenewalPeriodDays: 30},
		Authz:     config.AuthzConfig{PolicyVersion: access.PolicyScoped},
		Metrics:   config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Security:  config.SecurityConfig{ContentTypeNosniff: true, FrameOptions: "DENY"},
		CORS:      config.CORSConfig{AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"}},
		RateLimit: config.RateLimitConfig{Enabled: false},
	}

	policy, err := access.LookupPolicy(cfg.Authz.PolicyVersion)
	require.NoError(t, err)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	authorizer := access.NewAuthorizer(policy, repository.NewAccessFactsRepository(db), m, log)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	auditService := service.NewAuditService(repository.NewAuditRecordRepository(db), repository.NewAuditExportRepository(db), authorizer, store, config.AuditExportConfig{Prefix: "audit", SettleSeconds: 300}, m, log)
	writer := service.NewWriter(db, auditService, m, log)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewUserRoleRepository(db, log)
	memberRepo := repository.NewMemberRepository(db)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), memberRepo, authorizer, log)
	tokens := service.NewPortalTokenService(writer, authorizer, repository.NewPortalTokenRepository(db), cfg.Portal, m, log)

	authMiddleware := auth.NewMiddleware(&cfg.Auth, auth.NewRoleResolver(roleRepo, log), tokens, log)

	rt := router.NewRouter(cfg, log, db, authMiddleware, middleware.NewRateLimiter(&cfg.RateLimit, log), m, router.Handlers{
		Auth:         handler.NewAuthHandler(service.NewUserService(writer, userRepo, roleRepo, authorizer, log), log),
		Portal:       handler.NewPortalHandler(tokens, log),
		Project:      handler.NewProjectHandler(service.NewProjectService(writer, authorizer, log), service.NewMemberService(writer, authorizer, memberRepo, userRepo, notifications, log), log),
		Tenant:       handler.NewTenantHandler(service.NewTenantService(writer, authorizer, repository.NewProjectRepository(db), notifications, log), log),
		Cable:        handler.NewCableHandler(service.NewCableService(writer, authorizer, log), log),
		FinalAccount: handler.NewFinalAccountHandler(service.NewFinalAccountService(writer, authorizer, log), log),
		Procurement:  handler.NewProcurementHandler(service.NewProcurementService(writer, authorizer, repository.NewProcurementHistoryRepository(db), notifications, log), log),
		Roadmap:      handler.NewRoadmapHandler(service.NewRoadmapService(writer, authorizer, log), log),
		Document:     handler.NewDocumentHandler(service.NewDocumentService(writer, authorizer, log), log),
		Audit:        handler.NewAuditHandler(auditService, log),
		Contact:      handler.NewContactHandler(service.NewContactService(writer, authorizer, log), log),
		Notification: handler.NewNotificationHandler(notifications, log),
	})

	server := httptest.NewServer(rt.Setup())
	t.Cleanup(server.Close)

	return &apiServer{t: t, server: server, jwt: auth.NewJWTValidator(&cfg.Auth)}
}

// session returns the Authorization header of a fresh user id
func (s *apiServer) session() (uuid.UUID, map[string]string) {
	s.t.Helper()
	id := uuid.New()
	token, err := s.jwt.IssueToken(id, "", "", time.Hour)
	require.NoError(s.t, err)
	return id, map[string]string{"Authorization": "Bearer " + token}
}

func (s *apiServer) signup(email string) (uuid.UUID, map[string]string) {
	s.t.Helper()
	id, headers := s.session()
	resp, _ := s.do(http.MethodPost, "/api/v1/signup", headers, domain.SignupRequest{Email: email, DisplayName: email})
	require.Equal(s.t, http.StatusCreated, resp.StatusCode)
	return id, headers
}

func (s *apiServer) do(method, path string, headers map[string]string, body interface{}) (*http.Response, []byte) {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.server.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestRouter_Health(t *testing.T) {
	s := newAPIServer(t)

	resp, body := s.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
	assert.NotEmpty(t, resp.Header.Get(middleware.HeaderRequestID))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp, body = s.do(http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	ready := decode[map[string]interface{}](t, body)
	assert.Equal(t, "healthy", ready["status"])
	assert.Equal(t, access.PolicyScoped, ready["policy_version"])
}

func TestRouter_RequiresCredentials(t *testing.T) {
	s := newAPIServer(t)

	resp, _ := s.do(http.MethodGet, "/api/v1/projects", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := s.do(http.MethodGet, "/api/v1/projects", map[string]string{auth.HeaderPortalToken: "made-up"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, domain.ErrorTypePortalToken, decode[domain.ErrorResponse](t, body).Error)
}

func TestRouter_ProjectAccessOverHTTP(t *testing.T) {
	s := newAPIServer(t)

	_, admin := s.signup("carol@example.com")
	_, alice := s.signup("alice@example.com")
	bobID, bob := s.signup("bob@example.com")

	// Validation errors carry field details
	resp, body := s.do(http.MethodPost, "/api/v1/projects", alice, map[string]string{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	apiErr := decode[domain.APIError](t, body)
	assert.Contains(t, apiErr.Errors, "name")

	resp, body = s.do(http.MethodPost, "/api/v1/projects", alice, domain.CreateProjectRequest{Name: "Harbour Mall"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	project := decode[domain.Project](t, body)

	// Denial is indistinguishable from absence
	resp, _ = s.do(http.MethodGet, "/api/v1/projects/"+project.ID.String(), bob, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = s.do(http.MethodGet, "/api/v1/projects/"+uuid.NewString(), alice, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = s.do(http.MethodDelete, "/api/v1/projects/"+project.ID.String(), bob, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(http.MethodGet, "/api/v1/projects/not-a-uuid", alice, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Only admins change roles
	resp, _ = s.do(http.MethodPut, "/api/v1/users/"+bobID.String()+"/role", alice, domain.SetRoleRequest{Role: domain.RoleModerator})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, body = s.do(http.MethodPut, "/api/v1/users/"+bobID.String()+"/role", admin, domain.SetRoleRequest{Role: domain.RoleModerator})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.RoleModerator, decode[domain.UserDTO](t, body).Role)

	// The new role applies to Bob's next request
	resp, body = s.do(http.MethodGet, "/api/v1/auth/me", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.RoleModerator, decode[domain.MeDTO](t, body).Principal.Role)
}

func TestRouter_PortalLinkFlow(t *testing.T) {
	s := newAPIServer(t)

	_, alice := s.signup("alice@example.com")
	resp, body := s.do(http.MethodPost, "/api/v1/projects", alice, domain.CreateProjectRequest{Name: "Depot"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	project := decode[domain.Project](t, body)

	resp, body = s.do(http.MethodPost, "/api/v1/projects/"+project.ID.String()+"/portal-tokens", alice,
		domain.CreatePortalTokenRequest{Class: domain.PortalTokenClient, DocumentTabs: []string{"drawings"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[domain.PortalTokenCreatedDTO](t, body)
	require.NotEmpty(t, created.Secret)

	// Validation is public and never reveals why a link is invalid
	resp, body = s.do(http.MethodPost, "/api/v1/portal/validate", nil, domain.ValidatePortalTokenRequest{Token: created.Secret})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[domain.PortalValidationDTO](t, body)
	assert.True(t, result.IsValid)
	assert.Equal(t, &project.ID, result.ProjectID)
	assert.Equal(t, "client", result.Class)

	resp, body = s.do(http.MethodPost, "/api/v1/portal/validate", nil, domain.ValidatePortalTokenRequest{Token: "bogus"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[domain.PortalValidationDTO](t, body).IsValid)

	resp, _ = s.do(http.MethodPost, "/api/v1/portal/validate", nil, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	portal := map[string]string{auth.HeaderPortalToken: created.Secret}
	resp, _ = s.do(http.MethodGet, "/api/v1/projects/"+project.ID.String(), portal, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Portal callers cannot create projects or reach their audit trail
	resp, _ = s.do(http.MethodPost, "/api/v1/projects", portal, domain.CreateProjectRequest{Name: "Sneaky"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/api/v1/portal-tokens/"+created.Token.ID.String()+"/revoke", alice, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(http.MethodGet, "/api/v1/projects/"+project.ID.String(), portal, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = s.do(http.MethodGet, "/api/v1/projects/"+project.ID.String()+"/audit", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "portal_token")

	resp, body = s.do(http.MethodGet, "/api/v1/projects/"+project.ID.String()+"/audit?sortBy=changedAt&sortOrder=asc", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[struct {
		Data []domain.AuditRecordDTO `json:"data"`
	}](t, body)
	require.NotEmpty(t, page.Data)
	assert.Equal(t, domain.ChangeCreated, page.Data[0].ChangeType)
	assert.Equal(t, domain.ChangeUpdated, page.Data[len(page.Data)-1].ChangeType, "the revoke is the latest change")

	resp, body = s.do(http.MethodGet, "/api/v1/projects/"+project.ID.String()+"/audit/summary", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decode[domain.AuditSummaryDTO](t, body)
	assert.Equal(t, project.ID, summary.ProjectID)
	assert.GreaterOrEqual(t, summary.Created, int64(2))
	assert.GreaterOrEqual(t, summary.Updated, int64(1))
	assert.Equal(t, summary.Created+summary.Updated+summary.Deleted, summary.Total)

	resp, _ = s.do(http.MethodGet, "/api/v1/projects/"+project.ID.String()+"/audit/summary?changeType=renamed", alice, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	s := newAPIServer(t)

	s.do(http.MethodGet, "/health", nil, nil)
	resp, body := s.do(http.MethodGet, "/metrics", nil, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "project_access_http_requests_total")
}
