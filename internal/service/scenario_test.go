package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenario_ProjectLifecycle walks one project from creation through member
// and contractor access until the contractor link expires.
func TestScenario_ProjectLifecycle(t *testing.T) {
	env := newTestEnv(t, access.PolicyScoped)
	alice := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	bob := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	aliceCtx := asUser(alice, domain.RoleUser)
	bobCtx := asUser(bob, domain.RoleUser)

	project, err := env.projects.Create(aliceCtx, &domain.CreateProjectRequest{Name: "Harbour Mall"})
	require.NoError(t, err)
	require.NotNil(t, project)
	other, err := env.projects.Create(aliceCtx, &domain.CreateProjectRequest{Name: "Depot"})
	require.NoError(t, err)
	require.NotNil(t, other)

	member, err := env.members.Add(aliceCtx, project.ID, &domain.AddMemberRequest{UserID: bob.ID, Role: domain.MemberRoleMember})
	require.NoError(t, err)
	require.NotNil(t, member)

	_, err = env.tenants.Create(aliceCtx, project.ID, &domain.CreateTenantRequest{ShopNumber: "G01", Name: "Bakery"})
	require.NoError(t, err)
	schedule, err := env.cables.CreateSchedule(aliceCtx, project.ID, &domain.CreateCableScheduleRequest{Name: "LV Reticulation"})
	require.NoError(t, err)
	require.NotNil(t, schedule)
	entry, err := env.cables.CreateEntry(aliceCtx, schedule.ID, &domain.CreateCableEntryRequest{CableTag: "C-001", DesignLength: dec("42")})
	require.NoError(t, err)
	require.NotNil(t, entry)

	t.Run("member reads but cannot delete the project", func(t *testing.T) {
		tenants, err := env.tenants.List(bobCtx, project.ID)
		require.NoError(t, err)
		assert.Len(t, tenants, 1)

		deleted, err := env.projects.Delete(bobCtx, project.ID)
		require.NoError(t, err)
		assert.False(t, deleted)

		still, err := env.projects.GetByID(aliceCtx, project.ID)
		require.NoError(t, err)
		assert.NotNil(t, still)
	})

	t.Run("member does not see the other project", func(t *testing.T) {
		projects, err := env.projects.List(bobCtx)
		require.NoError(t, err)
		require.Len(t, projects, 1)
		assert.Equal(t, project.ID, projects[0].ID)
	})

	created, grant := env.issueToken(t, aliceCtx, project.ID, domain.PortalTokenContractor)
	contractorCtx := asPortal(grant)

	t.Run("contractor reads schedules and records installation", func(t *testing.T) {
		env.clock.Advance(time.Minute)

		schedules, err := env.cables.ListSchedules(contractorCtx, project.ID)
		require.NoError(t, err)
		assert.Len(t, schedules, 1)

		installed := true
		updated, err := env.cables.UpdateEntry(contractorCtx, entry.ID, &domain.UpdateCableEntryRequest{ContractorInstalled: &installed})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.True(t, updated.ContractorInstalled)

		records := env.auditRecords(t, string(access.ResourceCableEntry))
		require.Len(t, records, 2)
		assert.Equal(t, "anonymous", records[1].ActorKind)
		assert.Nil(t, records[1].ChangedBy)
		assert.Equal(t, []string{"contractorInstalled"}, records[1].ChangedFields)
	})

	t.Run("contractor cannot touch engineering fields", func(t *testing.T) {
		tag := "C-999"
		updated, err := env.cables.UpdateEntry(contractorCtx, entry.ID, &domain.UpdateCableEntryRequest{CableTag: &tag})
		require.NoError(t, err)
		assert.Nil(t, updated)
	})

	t.Run("contractor is confined to its project", func(t *testing.T) {
		schedules, err := env.cables.ListSchedules(contractorCtx, other.ID)
		require.NoError(t, err)
		assert.Empty(t, schedules)

		tenants, err := env.tenants.List(contractorCtx, project.ID)
		require.NoError(t, err)
		assert.Empty(t, tenants, "tenants are client-only")
	})

	t.Run("link stops working after its lifetime", func(t *testing.T) {
		env.clock.Advance(8 * 24 * time.Hour)

		result, err := env.tokens.Validate(context.Background(), created.Secret, auth.RequestMeta{})
		require.NoError(t, err)
		assert.False(t, result.IsValid)

		schedules, err := env.cables.ListSchedules(contractorCtx, project.ID)
		require.NoError(t, err)
		assert.Empty(t, schedules, "an expired grant already in flight is rejected")
	})
}

func TestScenario_CollaborativePolicyWidensMembers(t *testing.T) {
	env := newTestEnv(t, access.PolicyCollaborative)
	owner := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	plain := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	project := testutil.CreateTestProject(t, env.db, owner.ID, "Clinic")
	testutil.AddTestMember(t, env.db, project.ID, plain.ID, domain.MemberRoleMember)
	plainCtx := asUser(plain, domain.RoleUser)

	tenant, err := env.tenants.Create(plainCtx, project.ID, &domain.CreateTenantRequest{ShopNumber: "A1", Name: "Pharmacy"})
	require.NoError(t, err)
	require.NotNil(t, tenant, "any member writes under collaborative-v1")

	account, err := env.finalAccounts.CreateAccount(plainCtx, project.ID, &domain.CreateFinalAccountRequest{Name: "Main Contract"})
	require.NoError(t, err)
	assert.NotNil(t, account)

	deleted, err := env.projects.Delete(plainCtx, project.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestScenario_ServicePrincipalBypassesPredicates(t *testing.T) {
	env := newTestEnv(t, access.PolicyScoped)
	owner := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	project := testutil.CreateTestProject(t, env.db, owner.ID, "Warehouse")

	tenant, err := env.tenants.Create(asService(), project.ID, &domain.CreateTenantRequest{ShopNumber: "W1", Name: "Store"})
	require.NoError(t, err)
	require.NotNil(t, tenant)

	records := env.auditRecords(t, string(access.ResourceTenant))
	require.Len(t, records, 1)
	assert.Equal(t, "service", records[0].ActorKind)
	assert.Nil(t, records[0].ChangedBy)
}
