package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/repository"
	"github.com/straye-as/project-access-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func binding(t *testing.T, res access.Resource) access.Binding {
	t.Helper()
	b, ok := access.BindingFor(res)
	require.True(t, ok)
	return b
}

func TestApplyAccessScope_NestedParentChain(t *testing.T) {
	db := testutil.SetupTestDB(t)
	b := binding(t, access.ResourceFinalAccountItem)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		scope := access.Scope{ProjectIDs: []uuid.UUID{uuid.New()}}
		return repository.ApplyAccessScope(tx.Model(&domain.FinalAccountItem{}), b, scope).Find(&[]domain.FinalAccountItem{})
	})

	assert.Contains(t, sql, "final_account_items.section_id IN (SELECT final_account_sections.id FROM final_account_sections WHERE final_account_sections.bill_id IN (SELECT final_account_bills.id FROM final_account_bills WHERE final_account_bills.final_account_id IN (SELECT final_accounts.id FROM final_accounts WHERE final_accounts.project_id IN")
	assert.NotContains(t, sql, "JOIN")
}

func TestApplyAccessScope_EmptyScopeMatchesNothing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	b := binding(t, access.ResourceTenant)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return repository.ApplyAccessScope(tx.Model(&domain.Tenant{}), b, access.Scope{}).Find(&[]domain.Tenant{})
	})
	assert.Contains(t, sql, "1 = 0")
}

func TestApplyAccessScope_SelfOrProjectIsParenthesized(t *testing.T) {
	db := testutil.SetupTestDB(t)
	b := binding(t, access.ResourceProjectMember)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		scope := access.Scope{ProjectIDs: []uuid.UUID{uuid.New()}, SelfColumn: "user_id", SelfID: uuid.New()}
		return repository.ApplyAccessScope(tx.Model(&domain.ProjectMember{}), b, scope).
			Where("role = ?", "owner").
			Find(&[]domain.ProjectMember{})
	})
	assert.Contains(t, sql, "(project_members.project_id IN (")
	assert.Contains(t, sql, "OR project_members.user_id = ")
}

func TestScopedRepository_RowLevelFiltering(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	owner := testutil.CreateTestUser(t, db, domain.RoleUser)
	projectA := testutil.CreateTestProject(t, db, owner.ID, "A")
	projectB := testutil.CreateTestProject(t, db, owner.ID, "B")

	schedules := repository.NewScopedRepository[domain.CableSchedule](db, access.ResourceCableSchedule)
	entries := repository.NewScopedRepository[domain.CableEntry](db, access.ResourceCableEntry)

	schedA := &domain.CableSchedule{ProjectID: projectA.ID, Name: "A-1"}
	schedB := &domain.CableSchedule{ProjectID: projectB.ID, Name: "B-1"}
	require.NoError(t, schedules.Create(ctx, schedA))
	require.NoError(t, schedules.Create(ctx, schedB))

	entryA := &domain.CableEntry{ScheduleID: schedA.ID, CableTag: "C-A", DesignLength: decimal.NewFromInt(10)}
	entryB := &domain.CableEntry{ScheduleID: schedB.ID, CableTag: "C-B", DesignLength: decimal.NewFromInt(20)}
	require.NoError(t, entries.Create(ctx, entryA))
	require.NoError(t, entries.Create(ctx, entryB))

	onlyA := access.Scope{ProjectIDs: []uuid.UUID{projectA.ID}}

	list, err := entries.List(ctx, onlyA, "cable_tag ASC", nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "C-A", list[0].CableTag)

	got, err := entries.Get(ctx, onlyA, entryB.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "row of another project is invisible")

	affected, err := entries.Update(ctx, onlyA, entryB.ID, map[string]interface{}{"contractor_installed": true})
	require.NoError(t, err)
	assert.Zero(t, affected)

	affected, err = entries.Update(ctx, onlyA, entryA.ID, map[string]interface{}{"contractor_installed": true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	affected, err = entries.Delete(ctx, onlyA, entryB.ID)
	require.NoError(t, err)
	assert.Zero(t, affected)
	assert.Equal(t, int64(2), testutil.CountRows(t, db, &domain.CableEntry{}))

	projectID, ok, err := entries.ResolveProject(ctx, entryB.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, projectB.ID, projectID)

	_, ok, err = entries.ResolveProject(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScopedRepository_CategoryFilter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	owner := testutil.CreateTestUser(t, db, domain.RoleUser)
	project := testutil.CreateTestProject(t, db, owner.ID, "Docs")
	docs := repository.NewScopedRepository[domain.ProjectDocument](db, access.ResourceDocument)

	for _, category := range []string{"drawings", "invoices", "certificates"} {
		require.NoError(t, docs.Create(ctx, &domain.ProjectDocument{ProjectID: project.ID, Category: category, Title: category}))
	}

	list, err := docs.List(ctx, access.Scope{ProjectIDs: []uuid.UUID{project.ID}, Categories: []string{"drawings", "certificates"}}, "title ASC", nil)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "certificates", list[0].Category)
	assert.Equal(t, "drawings", list[1].Category)

	list, err = docs.List(ctx, access.Scope{ProjectIDs: []uuid.UUID{project.ID}, Categories: []string{}}, "", nil)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAccessFactsRepository_AccessibleProjects(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	facts := repository.NewAccessFactsRepository(db)

	alice := testutil.CreateTestUser(t, db, domain.RoleUser)
	bob := testutil.CreateTestUser(t, db, domain.RoleUser)
	own := testutil.CreateTestProject(t, db, alice.ID, "own")
	other := testutil.CreateTestProject(t, db, bob.ID, "other")
	third := testutil.CreateTestProject(t, db, bob.ID, "third")
	testutil.AddTestMember(t, db, other.ID, alice.ID, domain.MemberRoleMember)

	engineer := &domain.ProjectMember{ProjectID: third.ID, UserID: alice.ID, Role: domain.MemberRoleMember}
	engineer.SetPosition(domain.PositionSecondary)
	require.NoError(t, db.Create(engineer).Error)

	ids, err := facts.AccessibleProjects(ctx, alice.ID, domain.MemberRoleMember, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{own.ID, other.ID, third.ID}, ids)

	ids, err = facts.AccessibleProjects(ctx, alice.ID, domain.MemberRoleEditor, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{own.ID}, ids)

	ids, err = facts.AccessibleProjects(ctx, alice.ID, domain.MemberRoleEditor, []domain.Position{domain.PositionPrimary, domain.PositionSecondary})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{own.ID, third.ID}, ids)

	creator, ok, err := facts.ProjectCreator(ctx, other.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, bob.ID, creator)

	m, err := facts.Membership(ctx, own.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestBuildOrderClause(t *testing.T) {
	fields := map[string]string{"changedAt": "changed_at", "entityType": "entity_type"}

	tests := []struct {
		name string
		sort repository.SortConfig
		want string
	}{
		{"default", repository.DefaultSortConfig(), "changed_at DESC"},
		{"known field ascending", repository.SortConfig{Field: "entityType", Order: repository.ParseSortOrder("ASC")}, "entity_type ASC"},
		{"unknown field", repository.SortConfig{Field: "id; DROP TABLE x", Order: repository.SortOrderAsc}, "changed_at ASC"},
		{"garbage order", repository.SortConfig{Field: "changedAt", Order: repository.ParseSortOrder("sideways")}, "changed_at DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, repository.BuildOrderClause(tt.sort, fields, "changed_at"))
		})
	}
}
