package settings_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapforge/snapforge/pkg/config"
	"github.com/snapforge/snapforge/pkg/settings"
	"github.com/snapforge/snapforge/pkg/store"
)

func setupService(t *testing.T) *settings.Service {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s := store.NewStore(log, &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })

	return settings.NewService(log, s)
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	svc := setupService(t)
	ctx := context.Background()

	general, err := svc.General(ctx)
	require.NoError(t, err)
	assert.True(t, general.RegistrationEnabled)
	assert.Equal(t, 10, general.DefaultMaxGalleries)

	images, err := svc.Images(ctx)
	require.NoError(t, err)
	assert.Equal(t, 150, images.ThumbSize)
	assert.Equal(t, int64(50<<20), images.MaxUploadSize)
}

func TestSetAndGet(t *testing.T) {
	t.Parallel()

	svc := setupService(t)
	ctx := context.Background()

	value := json.RawMessage(
		`{"registration_enabled":false,"default_max_galleries":3}`)
	require.NoError(t, svc.SetRaw(ctx, settings.KeyGeneral, value))

	general, err := svc.General(ctx)
	require.NoError(t, err)
	assert.False(t, general.RegistrationEnabled)
	assert.Equal(t, 3, general.DefaultMaxGalleries)

	enabled, err := svc.RegistrationEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	// Overwrite is wholesale, not a merge.
	require.NoError(t, svc.SetRaw(ctx, settings.KeyGeneral,
		json.RawMessage(`{"registration_enabled":true}`)))

	general, err = svc.General(ctx)
	require.NoError(t, err)
	assert.True(t, general.RegistrationEnabled)
	assert.Zero(t, general.DefaultMaxGalleries)
}

func TestSetRaw_Validation(t *testing.T) {
	t.Parallel()

	svc := setupService(t)
	ctx := context.Background()

	err := svc.SetRaw(ctx, "nonsense", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, settings.ErrUnknownKey)

	err = svc.SetRaw(ctx, settings.KeyImages,
		json.RawMessage(`{"thumb_size":"big"}`))
	assert.Error(t, err, "type mismatch is rejected")

	err = svc.SetRaw(ctx, settings.KeyImages,
		json.RawMessage(`{"surprise":1}`))
	assert.Error(t, err, "unknown fields are rejected")
}

func TestGetRaw_UnknownKey(t *testing.T) {
	t.Parallel()

	svc := setupService(t)

	_, err := svc.GetRaw(context.Background(), "other")
	assert.ErrorIs(t, err, settings.ErrUnknownKey)
}
