package service_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/service"
	"github.com/straye-as/project-access-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberService_Add(t *testing.T) {
	env := newTestEnv(t, access.PolicyScoped)
	owner := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	invitee := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	project := testutil.CreateTestProject(t, env.db, owner.ID, "Hospital")
	ownerCtx := asUser(owner, domain.RoleUser)

	member, err := env.members.Add(ownerCtx, project.ID, &domain.AddMemberRequest{UserID: invitee.ID, Role: domain.MemberRoleEditor})
	require.NoError(t, err)
	require.NotNil(t, member)
	require.NotNil(t, member.InvitedBy)
	assert.Equal(t, owner.ID, *member.InvitedBy)

	assert.Equal(t, int64(1), testutil.CountRows(t, env.db, &domain.Notification{}, "user_id = ? AND type = ?", invitee.ID, domain.NotificationMemberAdded))
	assert.Len(t, env.auditRecords(t, string(access.ResourceProjectMember)), 1)

	t.Run("editors cannot add members", func(t *testing.T) {
		other := testutil.CreateTestUser(t, env.db, domain.RoleUser)
		added, err := env.members.Add(asUser(invitee, domain.RoleUser), project.ID, &domain.AddMemberRequest{UserID: other.ID, Role: domain.MemberRoleMember})
		require.NoError(t, err)
		assert.Nil(t, added)
	})

	t.Run("duplicate membership", func(t *testing.T) {
		_, err := env.members.Add(ownerCtx, project.ID, &domain.AddMemberRequest{UserID: invitee.ID, Role: domain.MemberRoleMember})
		assert.ErrorIs(t, err, service.ErrInvariantViolation)
	})

	t.Run("members see each other", func(t *testing.T) {
		members, err := env.members.List(asUser(invitee, domain.RoleUser), project.ID)
		require.NoError(t, err)
		assert.Len(t, members, 2)
	})

	t.Run("members may leave", func(t *testing.T) {
		removed, err := env.members.Remove(asUser(invitee, domain.RoleUser), member.ID)
		require.NoError(t, err)
		assert.True(t, removed)
	})
}

func TestMemberService_AssignPosition_Unique(t *testing.T) {
	env := newTestEnv(t, access.PolicyScoped)
	owner := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	first := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	second := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	project := testutil.CreateTestProject(t, env.db, owner.ID, "Hospital")
	other := testutil.CreateTestProject(t, env.db, owner.ID, "School")
	ownerCtx := asUser(owner, domain.RoleUser)

	m1 := testutil.AddTestMember(t, env.db, project.ID, first.ID, domain.MemberRoleEditor)
	m2 := testutil.AddTestMember(t, env.db, project.ID, second.ID, domain.MemberRoleEditor)
	m3 := testutil.AddTestMember(t, env.db, other.ID, second.ID, domain.MemberRoleEditor)

	assigned, err := env.members.AssignPosition(ownerCtx, m1.ID, domain.PositionPrimary)
	require.NoError(t, err)
	require.NotNil(t, assigned)
	assert.Equal(t, domain.PositionPrimary, assigned.Position)

	_, err = env.members.AssignPosition(ownerCtx, m2.ID, domain.PositionPrimary)
	assert.ErrorIs(t, err, service.ErrInvariantViolation)

	var reloaded domain.ProjectMember
	require.NoError(t, env.db.First(&reloaded, "id = ?", m2.ID).Error)
	assert.Empty(t, reloaded.Position, "rejected assignment leaves no trace")

	// the same position in another project is fine
	assigned, err = env.members.AssignPosition(ownerCtx, m3.ID, domain.PositionPrimary)
	require.NoError(t, err)
	require.NotNil(t, assigned)

	// reassigning to the current holder is a no-op success
	assigned, err = env.members.AssignPosition(ownerCtx, m1.ID, domain.PositionPrimary)
	require.NoError(t, err)
	require.NotNil(t, assigned)

	// non-exclusive positions may be shared
	for _, id := range []uuid.UUID{m2.ID, m3.ID} {
		assigned, err = env.members.AssignPosition(ownerCtx, id, domain.PositionOversight)
		require.NoError(t, err)
		require.NotNil(t, assigned)
	}

	// freeing the position lets someone else take it
	_, err = env.members.AssignPosition(ownerCtx, m1.ID, domain.PositionAdmin)
	require.NoError(t, err)
	assigned, err = env.members.AssignPosition(ownerCtx, m2.ID, domain.PositionPrimary)
	require.NoError(t, err)
	require.NotNil(t, assigned)

	assert.Equal(t, int64(1), testutil.CountRows(t, env.db, &domain.ProjectMember{}, "project_id = ? AND exclusive_position = ?", project.ID, domain.PositionPrimary))
}
