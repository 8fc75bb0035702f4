package service_test

import (
	"testing"
	"time"

	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcurementService_StatusLifecycle(t *testing.T) {
	env := newTestEnv(t, access.PolicyScoped)
	owner := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	member := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	project := testutil.CreateTestProject(t, env.db, owner.ID, "Depot")
	testutil.AddTestMember(t, env.db, project.ID, member.ID, domain.MemberRoleMember)
	ctx := asUser(owner, domain.RoleUser)

	milestone, err := env.roadmap.Create(ctx, project.ID, &domain.CreateRoadmapItemRequest{Title: "Transformer on site"})
	require.NoError(t, err)
	require.NotNil(t, milestone)

	item, err := env.procurement.CreateItem(ctx, project.ID, &domain.CreateProcurementItemRequest{
		Description:   "1000 kVA transformer",
		Supplier:      "Acme",
		RoadmapItemID: &milestone.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, domain.ProcurementPending, item.Status)

	env.clock.Advance(time.Minute)
	ordered := domain.ProcurementOrdered
	_, err = env.procurement.UpdateItem(ctx, item.ID, &domain.UpdateProcurementItemRequest{Status: &ordered})
	require.NoError(t, err)

	// a field change without status change appends no history
	supplier := "Acme Ltd"
	_, err = env.procurement.UpdateItem(ctx, item.ID, &domain.UpdateProcurementItemRequest{Supplier: &supplier})
	require.NoError(t, err)

	var reloaded domain.RoadmapItem
	require.NoError(t, env.db.First(&reloaded, "id = ?", milestone.ID).Error)
	assert.False(t, reloaded.Completed, "only delivery completes the milestone")

	env.clock.Advance(time.Hour)
	delivered := domain.ProcurementDelivered
	_, err = env.procurement.UpdateItem(ctx, item.ID, &domain.UpdateProcurementItemRequest{Status: &delivered})
	require.NoError(t, err)

	history, err := env.procurement.History(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Nil(t, history[0].FromStatus)
	assert.Equal(t, domain.ProcurementPending, history[0].ToStatus)
	require.NotNil(t, history[2].FromStatus)
	assert.Equal(t, domain.ProcurementOrdered, *history[2].FromStatus)
	assert.Equal(t, domain.ProcurementDelivered, history[2].ToStatus)

	require.NoError(t, env.db.First(&reloaded, "id = ?", milestone.ID).Error)
	assert.True(t, reloaded.Completed)
	require.NotNil(t, reloaded.CompletedAt)
	assert.WithinDuration(t, env.clock.Now(), *reloaded.CompletedAt, time.Second)

	assert.Len(t, env.auditRecords(t, string(access.ResourceProcurementItem)), 4)
	assert.Len(t, env.auditRecords(t, string(access.ResourceRoadmapItem)), 2)
	assert.Equal(t, int64(1), testutil.CountRows(t, env.db, &domain.Notification{}, "user_id = ? AND type = ?", member.ID, domain.NotificationProcurementDelivered))

	// status history outlives the project
	deleted, err := env.projects.Delete(ctx, project.ID)
	require.NoError(t, err)
	require.True(t, deleted)
	assert.Equal(t, int64(3), testutil.CountRows(t, env.db, &domain.ProcurementStatusHistory{}, "project_id = ?", project.ID))
}

func TestProcurementService_ContractorPortal(t *testing.T) {
	env := newTestEnv(t, access.PolicyScoped)
	owner := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	project := testutil.CreateTestProject(t, env.db, owner.ID, "Depot")
	ctx := asUser(owner, domain.RoleUser)

	item, err := env.procurement.CreateItem(ctx, project.ID, &domain.CreateProcurementItemRequest{Description: "Switchgear"})
	require.NoError(t, err)

	_, contractor := env.issueToken(t, ctx, project.ID, domain.PortalTokenContractor)
	_, client := env.issueToken(t, ctx, project.ID, domain.PortalTokenClient)
	portalCtx := asPortal(contractor)

	t.Run("date fields", func(t *testing.T) {
		eta := env.clock.Now().Add(14 * 24 * time.Hour)
		updated, err := env.procurement.UpdateItem(portalCtx, item.ID, &domain.UpdateProcurementItemRequest{ExpectedDeliveryDate: &eta})
		require.NoError(t, err)
		require.NotNil(t, updated)
		require.NotNil(t, updated.ExpectedDeliveryDate)
		assert.WithinDuration(t, eta, *updated.ExpectedDeliveryDate, time.Second)

		var portalRecords int
		for _, r := range env.auditRecords(t, string(access.ResourceProcurementItem)) {
			if r.ChangeType != domain.ChangeUpdated {
				continue
			}
			portalRecords++
			assert.Nil(t, r.ChangedBy)
			assert.Equal(t, "anonymous", r.ActorKind)
			assert.Equal(t, []string{"expectedDeliveryDate"}, r.ChangedFields)
		}
		assert.Equal(t, 1, portalRecords)
	})

	t.Run("other fields are denied", func(t *testing.T) {
		delivered := domain.ProcurementDelivered
		updated, err := env.procurement.UpdateItem(portalCtx, item.ID, &domain.UpdateProcurementItemRequest{Status: &delivered})
		require.NoError(t, err)
		assert.Nil(t, updated)

		var reloaded domain.ProcurementItem
		require.NoError(t, env.db.First(&reloaded, "id = ?", item.ID).Error)
		assert.Equal(t, domain.ProcurementPending, reloaded.Status)
	})

	t.Run("deliveries", func(t *testing.T) {
		delivery, err := env.procurement.CreateDelivery(portalCtx, item.ID, &domain.CreateDeliveryRequest{
			ReceivedBy: "Site foreman",
			Quantity:   dec("2"),
		})
		require.NoError(t, err)
		require.NotNil(t, delivery)
		assert.True(t, delivery.SubmittedViaPortal)

		delivery, err = env.procurement.CreateDelivery(asPortal(client), item.ID, &domain.CreateDeliveryRequest{Quantity: dec("1")})
		require.NoError(t, err)
		assert.Nil(t, delivery)

		deliveries, err := env.procurement.ListDeliveries(ctx, item.ID)
		require.NoError(t, err)
		require.Len(t, deliveries, 1)
		assert.False(t, deliveries[0].DeliveredAt.IsZero())
	})
}
