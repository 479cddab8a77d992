package access_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapforge/snapforge/pkg/access"
	"github.com/snapforge/snapforge/pkg/config"
	"github.com/snapforge/snapforge/pkg/store"
)

func setupResolver(t *testing.T) (*access.Resolver, store.Store) {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s := store.NewStore(log, &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })

	ctx := context.Background()

	for _, u := range []string{"owner", "manager", "editor", "viewer", "stranger"} {
		require.NoError(t, s.CreateUser(ctx, &store.User{
			ID:           u,
			Email:        u + "@example.com",
			PasswordHash: "x:y",
			Role:         store.RoleUser,
			MaxGalleries: 10,
		}))
	}

	require.NoError(t, s.CreateGallery(ctx, &store.Gallery{
		ID:          "g1",
		UserID:      "owner",
		Name:        "Holidays",
		AccessToken: "tok-g1",
	}))

	for userID, role := range map[string]string{
		"manager": store.CollabRoleManager,
		"editor":  store.CollabRoleEditor,
		"viewer":  store.CollabRoleViewer,
	} {
		inv := &store.GalleryInvitation{
			ID:        "inv-" + userID,
			GalleryID: "g1",
			Email:     userID + "@example.com",
			Role:      role,
			InvitedBy: "owner",
			Token:     "token-" + userID,
			ExpiresAt: time.Now().UTC().Add(time.Hour),
		}
		require.NoError(t, s.CreateInvitation(ctx, inv))
		require.NoError(t, s.AcceptInvitation(ctx, inv, &store.GalleryCollaborator{
			ID:        "c-" + userID,
			GalleryID: "g1",
			UserID:    userID,
			Role:      role,
			InvitedBy: "owner",
			InvitedAt: time.Now().UTC(),
		}))
	}

	return access.NewResolver(log, s), s
}

func TestResolver_RoleTable(t *testing.T) {
	t.Parallel()

	resolver, _ := setupResolver(t)
	ctx := context.Background()

	tests := []struct {
		userID string
		want   access.Permissions
	}{
		{
			userID: "owner",
			want: access.Permissions{
				Role: "owner", IsOwner: true,
				CanView: true, CanUpload: true, CanDelete: true,
				CanManageCollaborators: true, CanEditSettings: true,
				CanDeleteGallery: true,
			},
		},
		{
			userID: "manager",
			want: access.Permissions{
				Role:    "manager",
				CanView: true, CanUpload: true, CanDelete: true,
				CanManageCollaborators: true,
			},
		},
		{
			userID: "editor",
			want: access.Permissions{
				Role:    "editor",
				CanView: true, CanUpload: true, CanDelete: true,
			},
		},
		{
			userID: "viewer",
			want: access.Permissions{
				Role:    "viewer",
				CanView: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.userID, func(t *testing.T) {
			perms, err := resolver.Resolve(ctx, tt.userID, "g1")
			require.NoError(t, err)
			require.NotNil(t, perms)
			assert.Equal(t, tt.want, *perms)
		})
	}
}

func TestResolver_NoRelation(t *testing.T) {
	t.Parallel()

	resolver, _ := setupResolver(t)
	ctx := context.Background()

	perms, err := resolver.Resolve(ctx, "stranger", "g1")
	require.NoError(t, err)
	assert.Nil(t, perms)
}

func TestResolver_MissingGallery(t *testing.T) {
	t.Parallel()

	resolver, _ := setupResolver(t)
	ctx := context.Background()

	perms, err := resolver.Resolve(ctx, "owner", "no-such-gallery")
	require.NoError(t, err)
	assert.Nil(t, perms)
}

func TestPermissionsForRole_Unknown(t *testing.T) {
	t.Parallel()

	assert.Nil(t, access.PermissionsForRole("superuser"))
	assert.Nil(t, access.PermissionsForRole(""))
}
