package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapforge/snapforge/pkg/config"
	"github.com/snapforge/snapforge/pkg/session"
	"github.com/snapforge/snapforge/pkg/store"
)

func setupManager(t *testing.T) (*session.Manager, store.Store) {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s := store.NewStore(log, &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: ":memory:"},
	})

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	t.Cleanup(func() {
		_ = s.Stop()
	})

	return session.NewManager(log, s), s
}

func createUser(t *testing.T, s store.Store) *store.User {
	t.Helper()

	user := &store.User{
		ID:           "user-1",
		Email:        "owner@example.com",
		PasswordHash: "irrelevant",
		Role:         store.RoleUser,
		MaxGalleries: 10,
	}
	require.NoError(t, s.CreateUser(context.Background(), user))

	return user
}

func TestManager_CreateAndValidate(t *testing.T) {
	t.Parallel()

	mgr, s := setupManager(t)
	user := createUser(t, s)
	ctx := context.Background()

	token, created, err := mgr.Create(ctx, user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.NotEqual(t, token, created.ID, "stored ID must be the hash, not the token")

	sess, resolved, err := mgr.Validate(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.NotNil(t, resolved)
	assert.Equal(t, user.ID, resolved.ID)
	assert.Equal(t, created.ID, sess.ID)
}

func TestManager_ValidateUnknownToken(t *testing.T) {
	t.Parallel()

	mgr, _ := setupManager(t)
	ctx := context.Background()

	sess, user, err := mgr.Validate(ctx, "not-a-real-token")
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Nil(t, user)

	sess, user, err = mgr.Validate(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Nil(t, user)
}

func TestManager_ValidateExpiredDeletesRow(t *testing.T) {
	t.Parallel()

	mgr, s := setupManager(t)
	user := createUser(t, s)
	ctx := context.Background()

	token, created, err := mgr.Create(ctx, user.ID)
	require.NoError(t, err)

	// Push the expiry into the past.
	require.NoError(t, s.UpdateSessionExpiry(
		ctx, created.ID, time.Now().UTC().Add(-time.Minute)))

	sess, resolved, err := mgr.Validate(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Nil(t, resolved)

	_, err = s.GetSessionByID(ctx, created.ID)
	assert.Error(t, err, "expired session row should be deleted on detection")
}

func TestManager_SlidingExtension(t *testing.T) {
	t.Parallel()

	mgr, s := setupManager(t)
	user := createUser(t, s)
	ctx := context.Background()

	token, created, err := mgr.Create(ctx, user.ID)
	require.NoError(t, err)

	// Drop remaining lifetime below the extension threshold.
	nearExpiry := time.Now().UTC().Add(24 * time.Hour)
	require.NoError(t, s.UpdateSessionExpiry(ctx, created.ID, nearExpiry))

	sess, _, err := mgr.Validate(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.True(t, sess.ExpiresAt.After(nearExpiry.Add(7*24*time.Hour)),
		"validation should slide the expiry forward by a full lifetime")

	stored, err := s.GetSessionByID(ctx, created.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, sess.ExpiresAt, stored.ExpiresAt, 2*time.Second)
}

func TestManager_NoExtensionWhenFresh(t *testing.T) {
	t.Parallel()

	mgr, s := setupManager(t)
	user := createUser(t, s)
	ctx := context.Background()

	token, created, err := mgr.Create(ctx, user.ID)
	require.NoError(t, err)

	sess, _, err := mgr.Validate(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.WithinDuration(t, created.ExpiresAt, sess.ExpiresAt, 2*time.Second)
}

func TestManager_Invalidate(t *testing.T) {
	t.Parallel()

	mgr, s := setupManager(t)
	user := createUser(t, s)
	ctx := context.Background()

	token, _, err := mgr.Create(ctx, user.ID)
	require.NoError(t, err)

	require.NoError(t, mgr.Invalidate(ctx, token))

	sess, _, err := mgr.Validate(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, sess)

	// Invalidating again is not an error.
	require.NoError(t, mgr.Invalidate(ctx, token))
}

func TestManager_InvalidateAllForUser(t *testing.T) {
	t.Parallel()

	mgr, s := setupManager(t)
	user := createUser(t, s)
	ctx := context.Background()

	token1, _, err := mgr.Create(ctx, user.ID)
	require.NoError(t, err)
	token2, _, err := mgr.Create(ctx, user.ID)
	require.NoError(t, err)

	require.NoError(t, mgr.InvalidateAllForUser(ctx, user.ID))

	for _, token := range []string{token1, token2} {
		sess, _, err := mgr.Validate(ctx, token)
		require.NoError(t, err)
		assert.Nil(t, sess)
	}
}
