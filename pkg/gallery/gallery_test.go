package gallery_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapforge/snapforge/pkg/access"
	"github.com/snapforge/snapforge/pkg/config"
	"github.com/snapforge/snapforge/pkg/gallery"
	"github.com/snapforge/snapforge/pkg/storage"
	"github.com/snapforge/snapforge/pkg/store"
)

func setupManager(t *testing.T) (*gallery.Manager, store.Store, storage.Store) {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s := store.NewStore(log, &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })

	blobs := storage.NewLocalStore(&config.LocalStorageConfig{Path: t.TempDir()})

	resolver := access.NewResolver(log, s)
	mgr := gallery.NewManager(log, s, blobs, resolver)

	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &store.User{
		ID:           "owner",
		Email:        "owner@example.com",
		PasswordHash: "x:y",
		Role:         store.RoleUser,
		MaxGalleries: 2,
	}))
	require.NoError(t, s.CreateUser(ctx, &store.User{
		ID:           "other",
		Email:        "other@example.com",
		PasswordHash: "x:y",
		Role:         store.RoleUser,
		MaxGalleries: 2,
	}))

	return mgr, s, blobs
}

func TestCreate_QuotaEnforced(t *testing.T) {
	t.Parallel()

	mgr, _, _ := setupManager(t)
	ctx := context.Background()

	g1, err := mgr.Create(ctx, "owner", "First")
	require.NoError(t, err)
	assert.NotEmpty(t, g1.AccessToken)

	_, err = mgr.Create(ctx, "owner", "Second")
	require.NoError(t, err)

	_, err = mgr.Create(ctx, "owner", "Third")
	assert.ErrorIs(t, err, gallery.ErrQuotaExceeded)

	// Another user's quota is independent.
	_, err = mgr.Create(ctx, "other", "Theirs")
	require.NoError(t, err)
}

func TestCreate_InvalidName(t *testing.T) {
	t.Parallel()

	mgr, _, _ := setupManager(t)
	ctx := context.Background()

	_, err := mgr.Create(ctx, "owner", "   ")
	assert.ErrorIs(t, err, gallery.ErrInvalidName)
}

func TestGet_HidesExistence(t *testing.T) {
	t.Parallel()

	mgr, _, _ := setupManager(t)
	ctx := context.Background()

	g, err := mgr.Create(ctx, "owner", "Private")
	require.NoError(t, err)

	// Unrelated user sees the same error as for a missing gallery.
	_, _, err = mgr.Get(ctx, g.ID, "other")
	assert.ErrorIs(t, err, gallery.ErrNotFound)

	_, _, err = mgr.Get(ctx, "missing", "owner")
	assert.ErrorIs(t, err, gallery.ErrNotFound)

	got, perms, err := mgr.Get(ctx, g.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, g.ID, got.ID)
	assert.True(t, perms.IsOwner)
}

func TestGetByAccessToken(t *testing.T) {
	t.Parallel()

	mgr, _, _ := setupManager(t)
	ctx := context.Background()

	g, err := mgr.Create(ctx, "owner", "API")
	require.NoError(t, err)

	got, err := mgr.GetByAccessToken(ctx, g.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, g.ID, got.ID)

	_, err = mgr.GetByAccessToken(ctx, "bogus")
	assert.ErrorIs(t, err, gallery.ErrNotFound)
}

func TestRegenerateAccessToken_InvalidatesOld(t *testing.T) {
	t.Parallel()

	mgr, _, _ := setupManager(t)
	ctx := context.Background()

	g, err := mgr.Create(ctx, "owner", "API")
	require.NoError(t, err)
	oldToken := g.AccessToken

	updated, err := mgr.RegenerateAccessToken(ctx, g.ID, "owner")
	require.NoError(t, err)
	assert.NotEqual(t, oldToken, updated.AccessToken)

	_, err = mgr.GetByAccessToken(ctx, oldToken)
	assert.ErrorIs(t, err, gallery.ErrNotFound)

	got, err := mgr.GetByAccessToken(ctx, updated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, g.ID, got.ID)
}

func TestUpdateSettings(t *testing.T) {
	t.Parallel()

	mgr, _, _ := setupManager(t)
	ctx := context.Background()

	g, err := mgr.Create(ctx, "owner", "Tuned")
	require.NoError(t, err)

	size := 300
	format := "webp"
	updated, err := mgr.UpdateSettings(ctx, g.ID, "owner", gallery.Settings{
		ThumbSize:    &size,
		OutputFormat: &format,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.ThumbSize)
	assert.Equal(t, 300, *updated.ThumbSize)
	require.NotNil(t, updated.OutputFormat)
	assert.Equal(t, "webp", *updated.OutputFormat)
	assert.Nil(t, updated.ThumbQuality, "unset overrides stay nil")

	// Non-owner without canEditSettings is rejected.
	_, err = mgr.UpdateSettings(ctx, g.ID, "other", gallery.Settings{})
	assert.ErrorIs(t, err, gallery.ErrNotFound)

	// Out-of-range values are rejected.
	bad := 500
	_, err = mgr.UpdateSettings(ctx, g.ID, "owner", gallery.Settings{
		ThumbQuality: &bad,
	})
	assert.Error(t, err)

	badFormat := "bmp"
	_, err = mgr.UpdateSettings(ctx, g.ID, "owner", gallery.Settings{
		OutputFormat: &badFormat,
	})
	assert.Error(t, err)
}

func TestDelete_CleansBlobs(t *testing.T) {
	t.Parallel()

	mgr, s, blobs := setupManager(t)
	ctx := context.Background()

	g, err := mgr.Create(ctx, "owner", "Doomed")
	require.NoError(t, err)

	require.NoError(t, blobs.Save(ctx, g.ID+"/img1.jpg", []byte("aaa")))
	require.NoError(t, s.CreateImage(ctx, &store.Image{
		ID:          "img1",
		GalleryID:   g.ID,
		Filename:    "img1.jpg",
		MimeType:    "image/jpeg",
		SizeBytes:   3,
		Width:       1,
		Height:      1,
		StoragePath: g.ID + "/img1.jpg",
		CreatedAt:   time.Now().UTC(),
	}))

	require.NoError(t, mgr.Delete(ctx, g.ID, "owner"))

	_, _, err = mgr.Get(ctx, g.ID, "owner")
	assert.ErrorIs(t, err, gallery.ErrNotFound)

	exists, err := blobs.Exists(ctx, g.ID+"/img1.jpg")
	require.NoError(t, err)
	assert.False(t, exists, "gallery blobs are removed with the gallery")
}

func TestStats(t *testing.T) {
	t.Parallel()

	mgr, s, _ := setupManager(t)
	ctx := context.Background()

	g, err := mgr.Create(ctx, "owner", "Counted")
	require.NoError(t, err)

	for i, size := range []int64{100, 250} {
		require.NoError(t, s.CreateImage(ctx, &store.Image{
			ID:          string(rune('a' + i)),
			GalleryID:   g.ID,
			Filename:    "f.jpg",
			MimeType:    "image/jpeg",
			SizeBytes:   size,
			Width:       1,
			Height:      1,
			StoragePath: g.ID + "/f.jpg",
		}))
	}

	stats, err := mgr.Stats(ctx, g.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.ImageCount)
	assert.Equal(t, int64(350), stats.TotalBytes)
}

func TestList_IncludesRoles(t *testing.T) {
	t.Parallel()

	mgr, s, _ := setupManager(t)
	ctx := context.Background()

	g, err := mgr.Create(ctx, "owner", "Shared")
	require.NoError(t, err)

	inv := &store.GalleryInvitation{
		ID:        "inv1",
		GalleryID: g.ID,
		Email:     "other@example.com",
		Role:      store.CollabRoleEditor,
		InvitedBy: "owner",
		Token:     "tok-inv1",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, s.CreateInvitation(ctx, inv))
	require.NoError(t, s.AcceptInvitation(ctx, inv, &store.GalleryCollaborator{
		ID:        "c1",
		GalleryID: g.ID,
		UserID:    "other",
		Role:      store.CollabRoleEditor,
		InvitedBy: "owner",
	}))

	ownerEntries, err := mgr.List(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, ownerEntries, 1)
	assert.Equal(t, "owner", ownerEntries[0].Role)

	otherEntries, err := mgr.List(ctx, "other")
	require.NoError(t, err)
	require.Len(t, otherEntries, 1)
	assert.Equal(t, store.CollabRoleEditor, otherEntries[0].Role)
	assert.Equal(t, g.ID, otherEntries[0].Gallery.ID)
}
