package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/config"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/repository"
	"github.com/straye-as/project-access-api/internal/service"
	"github.com/straye-as/project-access-api/internal/storage"
	"github.com/straye-as/project-access-api/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// testClock is a settable clock shared by the services of one test
type testClock struct {
	t time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Now().UTC().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type testEnv struct {
	db            *gorm.DB
	clock         *testClock
	authorizer    *access.Authorizer
	store         *storage.LocalStorage
	audit         *service.AuditService
	writer        *service.Writer
	notifications *service.NotificationService
	users         *service.UserService
	projects      *service.ProjectService
	members       *service.MemberService
	tokens        *service.PortalTokenService
	tenants       *service.TenantService
	cables        *service.CableService
	finalAccounts *service.FinalAccountService
	procurement   *service.ProcurementService
	roadmap       *service.RoadmapService
	documents     *service.DocumentService
	contacts      *service.ContactService
}

func newTestEnv(t *testing.T, policyVersion string) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	clock := newTestClock()

	policy, err := access.LookupPolicy(policyVersion)
	require.NoError(t, err)
	authorizer := access.NewAuthorizer(policy, repository.NewAccessFactsRepository(db), nil, logger)
	authorizer.SetClock(clock.Now)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	audit := service.NewAuditService(
		repository.NewAuditRecordRepository(db),
		repository.NewAuditExportRepository(db),
		authorizer, store, config.AuditExportConfig{Prefix: "audit", SettleSeconds: 300}, nil, logger,
	)
	audit.SetClock(clock.Now)
	writer := service.NewWriter(db, audit, nil, logger)

	memberRepo := repository.NewMemberRepository(db)
	userRepo := repository.NewUserRepository(db)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), memberRepo, authorizer, logger)

	tokens := service.NewPortalTokenService(writer, authorizer, repository.NewPortalTokenRepository(db), config.PortalConfig{
		TokenLifetimeDays: 7,
		RenewalLeadDays:   7,
		RenewalPeriodDays: 30,
	}, nil, logger)
	tokens.SetClock(clock.Now)

	procurement := service.NewProcurementService(writer, authorizer, repository.NewProcurementHistoryRepository(db), notifications, logger)
	procurement.SetClock(clock.Now)

	return &testEnv{
		db:            db,
		clock:         clock,
		authorizer:    authorizer,
		store:         store,
		audit:         audit,
		writer:        writer,
		notifications: notifications,
		users:         service.NewUserService(writer, userRepo, repository.NewUserRoleRepository(db, logger), authorizer, logger),
		projects:      service.NewProjectService(writer, authorizer, logger),
		members:       service.NewMemberService(writer, authorizer, memberRepo, userRepo, notifications, logger),
		tokens:        tokens,
		tenants:       service.NewTenantService(writer, authorizer, repository.NewProjectRepository(db), notifications, logger),
		cables:        service.NewCableService(writer, authorizer, logger),
		finalAccounts: service.NewFinalAccountService(writer, authorizer, logger),
		procurement:   procurement,
		roadmap:       service.NewRoadmapService(writer, authorizer, logger),
		documents:     service.NewDocumentService(writer, authorizer, logger),
		contacts:      service.NewContactService(writer, authorizer, logger),
	}
}

func asUser(user *domain.User, role domain.Role) context.Context {
	return auth.WithPrincipal(context.Background(), auth.UserPrincipal(user.ID, role))
}

func asService() context.Context {
	return auth.WithPrincipal(context.Background(), auth.ServicePrincipal())
}

func asPortal(grant *auth.PortalGrant) context.Context {
	return auth.WithPrincipal(context.Background(), auth.AnonymousPrincipal(grant))
}

// issueToken creates a portal token as owner and validates it into a grant
func (e *testEnv) issueToken(t *testing.T, ownerCtx context.Context, projectID uuid.UUID, class domain.PortalTokenClass, tabs ...string) (*domain.PortalTokenCreatedDTO, *auth.PortalGrant) {
	t.Helper()

	created, err := e.tokens.Create(ownerCtx, projectID, &domain.CreatePortalTokenRequest{Class: class, DocumentTabs: tabs})
	require.NoError(t, err)
	require.NotNil(t, created)

	result, err := e.tokens.Validate(context.Background(), created.Secret, auth.RequestMeta{IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	require.True(t, result.IsValid)
	return created, result.Grant()
}

func (e *testEnv) auditRecords(t *testing.T, entityType string) []domain.AuditRecord {
	t.Helper()

	var records []domain.AuditRecord
	require.NoError(t, e.db.Where("entity_type = ?", entityType).Order("changed_at ASC").Find(&records).Error)
	return records
}
