package service_test

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/repository"
	"github.com/straye-as/project-access-api/internal/service"
	"github.com/straye-as/project-access-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_OneRecordPerMutation(t *testing.T) {
	env := newTestEnv(t, access.PolicyScoped)
	owner := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	project := testutil.CreateTestProject(t, env.db, owner.ID, "Mall")
	ctx := asUser(owner, domain.RoleUser)

	schedule, err := env.cables.CreateSchedule(ctx, project.ID, &domain.CreateCableScheduleRequest{Name: "LV"})
	require.NoError(t, err)
	entry, err := env.cables.CreateEntry(ctx, schedule.ID, &domain.CreateCableEntryRequest{CableTag: "C-01", DesignLength: dec("42")})
	require.NoError(t, err)
	require.NotNil(t, entry)

	env.clock.Advance(time.Minute)
	installed := true
	_, err = env.cables.UpdateEntry(ctx, entry.ID, &domain.UpdateCableEntryRequest{ContractorInstalled: &installed})
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	deleted, err := env.cables.DeleteEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	records := env.auditRecords(t, string(access.ResourceCableEntry))
	require.Len(t, records, 3)

	created, updated, removed := records[0], records[1], records[2]
	assert.Equal(t, domain.ChangeCreated, created.ChangeType)
	assert.Nil(t, created.OldValues)
	require.NotNil(t, created.NewValues)
	assert.Equal(t, entry.ID, *created.EntityID)
	assert.Equal(t, project.ID, *created.ProjectID)
	assert.Equal(t, owner.ID, *created.ChangedBy)
	assert.Equal(t, "authenticated", created.ActorKind)

	assert.Equal(t, domain.ChangeUpdated, updated.ChangeType)
	assert.NotNil(t, updated.OldValues)
	assert.NotNil(t, updated.NewValues)
	assert.Equal(t, []string{"contractorInstalled"}, updated.ChangedFields)

	assert.Equal(t, domain.ChangeDeleted, removed.ChangeType)
	assert.Nil(t, removed.EntityID, "deletes keep no reference to the removed row")
	assert.Nil(t, removed.NewValues)
	assert.Contains(t, *removed.OldValues, "C-01")

	t.Run("denied mutations leave no record", func(t *testing.T) {
		stranger := testutil.CreateTestUser(t, env.db, domain.RoleUser)
		other, err := env.cables.CreateSchedule(asUser(stranger, domain.RoleUser), project.ID, &domain.CreateCableScheduleRequest{Name: "HV"})
		require.NoError(t, err)
		assert.Nil(t, other)
		assert.Len(t, env.auditRecords(t, string(access.ResourceCableSchedule)), 1)
	})
}

func TestAuditService_ListForProject(t *testing.T) {
	env := newTestEnv(t, access.PolicyScoped)
	owner := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	stranger := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	project := testutil.CreateTestProject(t, env.db, owner.ID, "Mall")
	ctx := asUser(owner, domain.RoleUser)

	for _, name := range []string{"A", "B", "C"} {
		_, err := env.roadmap.Create(ctx, project.ID, &domain.CreateRoadmapItemRequest{Title: name})
		require.NoError(t, err)
		env.clock.Advance(time.Second)
	}

	resp, err := env.audit.ListForProject(ctx, project.ID, repository.AuditRecordFilter{}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Total)
	assert.Equal(t, 2, resp.TotalPages)
	records, ok := resp.Data.([]domain.AuditRecordDTO)
	require.True(t, ok)
	assert.Len(t, records, 2)

	resp, err = env.audit.ListForProject(asUser(stranger, domain.RoleUser), project.ID, repository.AuditRecordFilter{}, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, resp.Total)

	history, err := env.audit.ListByEntity(ctx, string(access.ResourceRoadmapItem), *records[0].EntityID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.JSONEq(t, "null", string(history[0].OldValues))
}

func TestAuditService_SortAndSummary(t *testing.T) {
	env := newTestEnv(t, access.PolicyScoped)
	owner := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	stranger := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	project := testutil.CreateTestProject(t, env.db, owner.ID, "Mall")
	ctx := asUser(owner, domain.RoleUser)

	var items []*domain.RoadmapItem
	for _, name := range []string{"A", "B", "C"} {
		item, err := env.roadmap.Create(ctx, project.ID, &domain.CreateRoadmapItemRequest{Title: name})
		require.NoError(t, err)
		items = append(items, item)
		env.clock.Advance(time.Second)
	}
	title := "B2"
	_, err := env.roadmap.Update(ctx, items[1].ID, &domain.UpdateRoadmapItemRequest{Title: &title})
	require.NoError(t, err)
	env.clock.Advance(time.Second)
	deleted, err := env.roadmap.Delete(ctx, items[2].ID)
	require.NoError(t, err)
	require.True(t, deleted)

	oldestFirst := repository.AuditRecordFilter{Sort: repository.SortConfig{Field: "changedAt", Order: repository.SortOrderAsc}}
	resp, err := env.audit.ListForProject(ctx, project.ID, oldestFirst, 1, 20)
	require.NoError(t, err)
	records, ok := resp.Data.([]domain.AuditRecordDTO)
	require.True(t, ok)
	require.Len(t, records, 5)
	assert.Contains(t, string(records[0].NewValues), `"title":"A"`)
	assert.Equal(t, domain.ChangeDeleted, records[4].ChangeType)

	// unknown sort fields fall back to newest first
	resp, err = env.audit.ListForProject(ctx, project.ID, repository.AuditRecordFilter{Sort: repository.SortConfig{Field: "ipAddress"}}, 1, 20)
	require.NoError(t, err)
	records, ok = resp.Data.([]domain.AuditRecordDTO)
	require.True(t, ok)
	require.Len(t, records, 5)
	assert.Equal(t, domain.ChangeDeleted, records[0].ChangeType)

	summary, err := env.audit.SummaryForProject(ctx, project.ID, repository.AuditRecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Created)
	assert.Equal(t, int64(1), summary.Updated)
	assert.Equal(t, int64(1), summary.Deleted)
	assert.Equal(t, int64(5), summary.Total)

	created := domain.ChangeCreated
	summary, err = env.audit.SummaryForProject(ctx, project.ID, repository.AuditRecordFilter{ChangeType: &created})
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Total)

	summary, err = env.audit.SummaryForProject(asUser(stranger, domain.RoleUser), project.ID, repository.AuditRecordFilter{})
	require.NoError(t, err)
	assert.Zero(t, summary.Total, "non-members see an empty summary")
}

func TestAuditService_ExportPending(t *testing.T) {
	env := newTestEnv(t, access.PolicyScoped)
	owner := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	project := testutil.CreateTestProject(t, env.db, owner.ID, "Mall")
	ctx := asUser(owner, domain.RoleUser)

	result, err := env.audit.ExportPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Records)
	assert.Empty(t, result.StorageKey, "nothing is written without records")

	_, err = env.contacts.Create(ctx, &domain.CreateContactRequest{Name: "Jane Sparks"})
	require.NoError(t, err)
	_, err = env.roadmap.Create(ctx, project.ID, &domain.CreateRoadmapItemRequest{Title: "Handover"})
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	result, err = env.audit.ExportPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Records)
	assert.True(t, strings.HasPrefix(result.StorageKey, "audit/"))
	assert.True(t, strings.HasSuffix(result.StorageKey, ".jsonl"))

	rc, err := env.store.Get(context.Background(), result.StorageKey)
	require.NoError(t, err)
	defer rc.Close()

	var lines []domain.AuditRecordDTO
	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		var dto domain.AuditRecordDTO
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &dto))
		lines = append(lines, dto)
	}
	require.NoError(t, scanner.Err())
	assert.Len(t, lines, 2)

	// the watermark moves past exported records
	result, err = env.audit.ExportPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Records)
	assert.Equal(t, int64(1), testutil.CountRows(t, env.db, &domain.AuditExport{}))
}

func TestAuditService_ExportKeepsRecordsSharingATimestamp(t *testing.T) {
	env := newTestEnv(t, access.PolicyScoped)
	ctx := context.Background()

	// one more than an export batch, all stamped with the same instant
	const recorded = 1001
	for i := 0; i < recorded; i++ {
		_, err := env.audit.Record(ctx, env.db, service.AuditEntry{
			EntityType: "contact",
			EntityID:   uuid.New(),
			ChangeType: domain.ChangeCreated,
			NewValues:  map[string]interface{}{"n": i},
			Principal:  auth.ServicePrincipal(),
		})
		require.NoError(t, err)
	}

	env.clock.Advance(time.Hour)
	first, err := env.audit.ExportPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, recorded, first.Records)

	second, err := env.audit.ExportPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Records)

}

func TestAuditService_ExportHoldsBackUnsettledRecords(t *testing.T) {
	env := newTestEnv(t, access.PolicyScoped)
	ctx := context.Background()

	_, err := env.audit.Record(ctx, env.db, service.AuditEntry{
		EntityType: "contact",
		EntityID:   uuid.New(),
		ChangeType: domain.ChangeCreated,
		NewValues:  map[string]interface{}{"name": "Jane"},
		Principal:  auth.ServicePrincipal(),
	})
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	result, err := env.audit.ExportPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Records, "records inside the settle window wait for the next run")
	assert.Zero(t, testutil.CountRows(t, env.db, &domain.AuditExport{}))

	env.clock.Advance(5 * time.Minute)
	result, err = env.audit.ExportPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Records)
}
