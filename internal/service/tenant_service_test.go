package service_test

import (
	"testing"

	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/repository"
	"github.com/straye-as/project-access-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantService_SideEffects(t *testing.T) {
	env := newTestEnv(t, access.PolicyScoped)
	owner := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	editor := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	viewer := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	project := testutil.CreateTestProject(t, env.db, owner.ID, "Mall")
	testutil.AddTestMember(t, env.db, project.ID, editor.ID, domain.MemberRoleEditor)
	testutil.AddTestMember(t, env.db, project.ID, viewer.ID, domain.MemberRoleMember)
	ownerCtx := asUser(owner, domain.RoleUser)
	projects := repository.NewProjectRepository(env.db)

	tenant, err := env.tenants.Create(ownerCtx, project.ID, &domain.CreateTenantRequest{
		ShopNumber: "G01", Name: "Bakery", AreaM2: dec("85.5"),
	})
	require.NoError(t, err)
	require.NotNil(t, tenant)
	assert.Equal(t, "pending", tenant.Status)

	version, err := projects.TenantScheduleVersion(ownerCtx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	// every member except the actor is told
	assert.Zero(t, testutil.CountRows(t, env.db, &domain.Notification{}, "user_id = ?", owner.ID))
	assert.Equal(t, int64(1), testutil.CountRows(t, env.db, &domain.Notification{}, "user_id = ? AND type = ?", editor.ID, domain.NotificationTenantScheduleChanged))
	assert.Equal(t, int64(1), testutil.CountRows(t, env.db, &domain.Notification{}, "user_id = ?", viewer.ID))

	name := "Artisan Bakery"
	updated, err := env.tenants.Update(asUser(editor, domain.RoleUser), tenant.ID, &domain.UpdateTenantRequest{Name: &name})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, name, updated.Name)

	version, err = projects.TenantScheduleVersion(ownerCtx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.Equal(t, int64(1), testutil.CountRows(t, env.db, &domain.Notification{}, "user_id = ?", owner.ID))

	t.Run("denied writes have no side effects", func(t *testing.T) {
		deleted, err := env.tenants.Delete(asUser(viewer, domain.RoleUser), tenant.ID)
		require.NoError(t, err)
		assert.False(t, deleted)

		version, err := projects.TenantScheduleVersion(ownerCtx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, version)
		assert.Len(t, env.auditRecords(t, string(access.ResourceTenant)), 2)
	})

	t.Run("delete", func(t *testing.T) {
		deleted, err := env.tenants.Delete(ownerCtx, tenant.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		version, err := projects.TenantScheduleVersion(ownerCtx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, version)

		records := env.auditRecords(t, string(access.ResourceTenant))
		require.Len(t, records, 3)
		deletedRecord := records[2]
		for _, r := range records {
			if r.ChangeType == domain.ChangeDeleted {
				deletedRecord = r
			}
		}
		assert.Equal(t, domain.ChangeDeleted, deletedRecord.ChangeType)
		assert.Nil(t, deletedRecord.EntityID)
		assert.Nil(t, deletedRecord.NewValues)
		require.NotNil(t, deletedRecord.OldValues)
		assert.Contains(t, *deletedRecord.OldValues, "Artisan Bakery")
	})
}

func TestTenantService_PortalVisibility(t *testing.T) {
	env := newTestEnv(t, access.PolicyScoped)
	owner := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	project := testutil.CreateTestProject(t, env.db, owner.ID, "Mall")
	ownerCtx := asUser(owner, domain.RoleUser)

	_, err := env.tenants.Create(ownerCtx, project.ID, &domain.CreateTenantRequest{ShopNumber: "G01", Name: "Bakery"})
	require.NoError(t, err)

	_, client := env.issueToken(t, ownerCtx, project.ID, domain.PortalTokenClient)
	_, contractor := env.issueToken(t, ownerCtx, project.ID, domain.PortalTokenContractor)

	tenants, err := env.tenants.List(asPortal(client), project.ID)
	require.NoError(t, err)
	assert.Len(t, tenants, 1)

	tenants, err = env.tenants.List(asPortal(contractor), project.ID)
	require.NoError(t, err)
	assert.Empty(t, tenants)

	created, err := env.tenants.Create(asPortal(client), project.ID, &domain.CreateTenantRequest{ShopNumber: "G02", Name: "Florist"})
	require.NoError(t, err)
	assert.Nil(t, created, "client portals are read-only")
}
