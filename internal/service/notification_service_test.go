package service_test

import (
	"testing"

	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/service"
	"github.com/straye-as/project-access-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationService_Inbox(t *testing.T) {
	env := newTestEnv(t, access.PolicyScoped)
	owner := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	viewer := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	admin := testutil.CreateTestUser(t, env.db, domain.RoleAdmin)
	project := testutil.CreateTestProject(t, env.db, owner.ID, "School")
	testutil.AddTestMember(t, env.db, project.ID, viewer.ID, domain.MemberRoleMember)
	ownerCtx := asUser(owner, domain.RoleUser)
	viewerCtx := asUser(viewer, domain.RoleUser)

	for _, shop := range []string{"S1", "S2"} {
		_, err := env.tenants.Create(ownerCtx, project.ID, &domain.CreateTenantRequest{ShopNumber: shop, Name: "Shop " + shop})
		require.NoError(t, err)
	}

	page, err := env.notifications.List(viewerCtx, 1, 10, false, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	items, ok := page.Data.([]domain.NotificationDTO)
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Equal(t, domain.NotificationTenantScheduleChanged, items[0].Type)

	t.Run("admin inbox is still its own", func(t *testing.T) {
		adminPage, err := env.notifications.List(asUser(admin, domain.RoleAdmin), 1, 10, false, "")
		require.NoError(t, err)
		assert.Zero(t, adminPage.Total)

		marked, err := env.notifications.MarkAsRead(asUser(admin, domain.RoleAdmin), items[0].ID)
		require.NoError(t, err)
		assert.False(t, marked)
	})

	t.Run("others cannot mark it read", func(t *testing.T) {
		marked, err := env.notifications.MarkAsRead(ownerCtx, items[0].ID)
		require.NoError(t, err)
		assert.False(t, marked)
	})

	t.Run("owner marks it read", func(t *testing.T) {
		marked, err := env.notifications.MarkAsRead(viewerCtx, items[0].ID)
		require.NoError(t, err)
		assert.True(t, marked)

		count, err := env.notifications.UnreadCount(viewerCtx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count.Count)

		unread, err := env.notifications.List(viewerCtx, 1, 10, true, "")
		require.NoError(t, err)
		assert.Equal(t, int64(1), unread.Total)
	})

	t.Run("portal callers have no inbox", func(t *testing.T) {
		_, grant := env.issueToken(t, ownerCtx, project.ID, domain.PortalTokenClient)
		_, err := env.notifications.UnreadCount(asPortal(grant))
		assert.ErrorIs(t, err, service.ErrUnauthorized)

		empty, err := env.notifications.List(asPortal(grant), 1, 10, false, "")
		require.NoError(t, err)
		assert.Zero(t, empty.Total)
	})
}
