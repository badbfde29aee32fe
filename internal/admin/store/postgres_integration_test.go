//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admission/internal/admin/models"
	"admission/pkg/platform/sentinel"
	"admission/pkg/testutil/containers"
)

const adminsDDL = `
CREATE TABLE IF NOT EXISTS admins (
    id            UUID PRIMARY KEY,
    username      TEXT        NOT NULL UNIQUE,
    email         TEXT        NOT NULL UNIQUE,
    password_hash TEXT        NOT NULL,
    full_name     TEXT        NOT NULL,
    role          TEXT        NOT NULL,
    permissions   TEXT[]      NOT NULL DEFAULT '{}',
    is_active     BOOLEAN     NOT NULL DEFAULT TRUE,
    last_login    TIMESTAMPTZ,
    profile_pic   TEXT        NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
)`

func newStore(t *testing.T) *Postgres {
	pc := containers.NewPostgresContainer(t)
	pc.Exec(t, adminsDDL)
	return NewPostgres(pc.DB)
}

func pgAdmin(username string) *models.Admin {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Admin{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@school.example",
		PasswordHash: "$2a$10$fakehash",
		FullName:     "Admin " + username,
		Role:         models.RoleAdmin,
		Permissions: []models.Permission{
			models.PermViewRegistrations,
			models.PermApproveRegistrations,
		},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPostgres_AdminRoundtrip(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	admin := pgAdmin("reviewer1")
	require.NoError(t, st.Create(ctx, admin))

	got, err := st.FindByUsername(ctx, "Reviewer1")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, got.ID)
	assert.Equal(t, models.RoleAdmin, got.Role)
	assert.True(t, got.HasPermission(models.PermApproveRegistrations))
	assert.Nil(t, got.LastLogin)

	dup := pgAdmin("reviewer1")
	dup.ID = uuid.New()
	assert.ErrorIs(t, st.Create(ctx, dup), sentinel.ErrConflict)
}

func TestPostgres_AdminUpdate(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	admin := pgAdmin("reviewer1")
	require.NoError(t, st.Create(ctx, admin))

	lastLogin := time.Now().UTC().Truncate(time.Microsecond)
	admin.LastLogin = &lastLogin
	admin.IsActive = false
	require.NoError(t, st.Update(ctx, admin))

	got, err := st.FindByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.LastLogin)
	assert.WithinDuration(t, lastLogin, *got.LastLogin, time.Second)

	ghost := pgAdmin("ghost")
	assert.ErrorIs(t, st.Update(ctx, ghost), sentinel.ErrNotFound)
}

func TestPostgres_AdminList(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	for _, name := range []string{"bob", "alice"} {
		require.NoError(t, st.Create(ctx, pgAdmin(name)))
	}
	admins, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 2)
	assert.Equal(t, "alice", admins[0].Username)
}
