package service_test

import (
	"testing"

	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactService(t *testing.T) {
	env := newTestEnv(t, access.PolicyScoped)
	user := testutil.CreateTestUser(t, env.db, domain.RoleUser)
	admin := testutil.CreateTestUser(t, env.db, domain.RoleAdmin)
	userCtx := asUser(user, domain.RoleUser)

	sparks, err := env.contacts.Create(userCtx, &domain.CreateContactRequest{Name: "Thandi Nkosi", Company: "Sparks Electrical"})
	require.NoError(t, err)
	require.NotNil(t, sparks)
	_, err = env.contacts.Create(userCtx, &domain.CreateContactRequest{Name: "Pieter Botha", Company: "Cool Air HVAC"})
	require.NoError(t, err)

	page, err := env.contacts.List(userCtx, 1, 10, "sparks")
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	page, err = env.contacts.List(userCtx, 1, 10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	phone := "+27 21 555 0100"
	updated, err := env.contacts.Update(userCtx, sparks.ID, &domain.UpdateContactRequest{Phone: &phone})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, phone, updated.Phone)

	t.Run("portal callers cannot read the directory", func(t *testing.T) {
		page, err := env.contacts.List(asPortal(nil), 1, 10, "")
		require.NoError(t, err)
		assert.Zero(t, page.Total)
	})

	t.Run("only admins delete", func(t *testing.T) {
		deleted, err := env.contacts.Delete(userCtx, sparks.ID)
		require.NoError(t, err)
		assert.False(t, deleted)

		deleted, err = env.contacts.Delete(asUser(admin, domain.RoleAdmin), sparks.ID)
		require.NoError(t, err)
		assert.True(t, deleted)
	})

	records := env.auditRecords(t, string(access.ResourceContact))
	assert.Len(t, records, 4)
}
