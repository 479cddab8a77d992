package images_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapforge/snapforge/pkg/config"
	"github.com/snapforge/snapforge/pkg/images"
	"github.com/snapforge/snapforge/pkg/storage"
	"github.com/snapforge/snapforge/pkg/store"
)

func setupService(t *testing.T) (*images.Service, store.Store, storage.Store) {
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

	svc := images.NewService(log, s, blobs, &config.ImagesConfig{
		ThumbSize:     150,
		ThumbQuality:  60,
		MaxUploadSize: 1 << 20,
		AllowedMimeTypes: []string{
			"image/jpeg", "image/png", "image/webp", "image/gif",
		},
	})

	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &store.User{
		ID:           "owner",
		Email:        "owner@example.com",
		PasswordHash: "x:y",
		Role:         store.RoleUser,
		MaxGalleries: 10,
	}))
	require.NoError(t, s.CreateGallery(ctx, &store.Gallery{
		ID:          "g1",
		UserID:      "owner",
		Name:        "Main",
		AccessToken: "tok-g1",
	}))

	return svc, s, blobs
}

func testGallery(t *testing.T, s store.Store) *store.Gallery {
	t.Helper()

	g, err := s.GetGalleryByID(context.Background(), "g1")
	require.NoError(t, err)

	return g
}

func jpegBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}

	buf := new(bytes.Buffer)
	require.NoError(t, jpeg.Encode(buf, img, nil))

	return buf.Bytes()
}

func TestUpload_HappyPath(t *testing.T) {
	t.Parallel()

	svc, s, blobs := setupService(t)
	ctx := context.Background()

	img, err := svc.Upload(ctx, testGallery(t, s), "vacation.jpg", jpegBytes(t, 80, 40))
	require.NoError(t, err)

	assert.Equal(t, "g1", img.GalleryID)
	assert.Equal(t, "vacation.jpg", img.OriginalFilename)
	assert.Equal(t, "image/jpeg", img.MimeType)
	assert.Equal(t, 80, img.Width)
	assert.Equal(t, 40, img.Height)
	assert.Equal(t, "g1/"+img.ID+".jpg", img.StoragePath)

	exists, err := blobs.Exists(ctx, img.StoragePath)
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := svc.Read(ctx, img)
	require.NoError(t, err)
	assert.Equal(t, img.SizeBytes, int64(len(data)))
}

func TestUpload_RejectsOversize(t *testing.T) {
	t.Parallel()

	svc, s, _ := setupService(t)

	big := make([]byte, (1<<20)+1)

	_, err := svc.Upload(context.Background(), testGallery(t, s), "big.jpg", big)
	assert.ErrorIs(t, err, images.ErrTooLarge)
}

func TestUpload_RejectsUnsupportedType(t *testing.T) {
	t.Parallel()

	svc, s, _ := setupService(t)

	_, err := svc.Upload(context.Background(), testGallery(t, s),
		"notes.txt", []byte(strings.Repeat("hello world ", 50)))
	assert.ErrorIs(t, err, images.ErrUnsupportedType)
}

func TestUpload_RejectsUndecodable(t *testing.T) {
	t.Parallel()

	svc, s, _ := setupService(t)

	// Valid JPEG magic bytes, garbage body.
	data := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x00}, 64)...)

	_, err := svc.Upload(context.Background(), testGallery(t, s), "fake.jpg", data)
	assert.ErrorIs(t, err, images.ErrUndecodable)
}

func TestUpload_PreEncodesToGalleryFormat(t *testing.T) {
	t.Parallel()

	svc, s, _ := setupService(t)
	ctx := context.Background()

	format := "jpeg"
	g := testGallery(t, s)
	g.OutputFormat = &format
	require.NoError(t, s.UpdateGallery(ctx, g))

	src := image.NewRGBA(image.Rect(0, 0, 30, 30))
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, src))

	img, err := svc.Upload(ctx, g, "shot.png", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MimeType,
		"stored bytes carry the gallery's configured format")
	assert.True(t, strings.HasSuffix(img.StoragePath, ".jpg"))

	data, err := svc.Read(ctx, img)
	require.NoError(t, err)

	_, decodedFormat, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", decodedFormat)
}

func TestDelete_MissingBlobIsSuccess(t *testing.T) {
	t.Parallel()

	svc, s, blobs := setupService(t)
	ctx := context.Background()

	img, err := svc.Upload(ctx, testGallery(t, s), "a.jpg", jpegBytes(t, 10, 10))
	require.NoError(t, err)

	// Blob vanishes out of band; deletion still removes the row.
	require.NoError(t, blobs.Delete(ctx, img.StoragePath))
	require.NoError(t, svc.Delete(ctx, img.ID, "g1"))

	_, err = svc.Get(ctx, img.ID, "g1")
	assert.ErrorIs(t, err, images.ErrNotFound)
}

func TestDelete_ScopedToGallery(t *testing.T) {
	t.Parallel()

	svc, s, _ := setupService(t)
	ctx := context.Background()

	img, err := svc.Upload(ctx, testGallery(t, s), "a.jpg", jpegBytes(t, 10, 10))
	require.NoError(t, err)

	err = svc.Delete(ctx, img.ID, "other-gallery")
	assert.ErrorIs(t, err, images.ErrNotFound)

	// The image survives the cross-gallery attempt.
	_, err = svc.Get(ctx, img.ID, "g1")
	require.NoError(t, err)
}

func TestBulkDelete_CountsSuccesses(t *testing.T) {
	t.Parallel()

	svc, s, _ := setupService(t)
	ctx := context.Background()

	g := testGallery(t, s)

	var ids []string

	for range 3 {
		img, err := svc.Upload(ctx, g, "b.jpg", jpegBytes(t, 10, 10))
		require.NoError(t, err)

		ids = append(ids, img.ID)
	}

	ids = append(ids, "does-not-exist")

	result, err := svc.BulkDelete(ctx, "g1", ids)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Deleted)
	assert.Equal(t, []string{"does-not-exist"}, result.Failed)

	_, total, err := svc.List(ctx, "g1", 0, 50)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestList_Pagination(t *testing.T) {
	t.Parallel()

	svc, s, _ := setupService(t)
	ctx := context.Background()

	g := testGallery(t, s)

	for range 5 {
		_, err := svc.Upload(ctx, g, "p.jpg", jpegBytes(t, 10, 10))
		require.NoError(t, err)
	}

	page, total, err := svc.List(ctx, "g1", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, page, 2)

	page, _, err = svc.List(ctx, "g1", 4, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestUpdateMetadata_Partial(t *testing.T) {
	t.Parallel()

	svc, s, _ := setupService(t)
	ctx := context.Background()

	img, err := svc.Upload(ctx, testGallery(t, s), "geo.jpg", jpegBytes(t, 10, 10))
	require.NoError(t, err)

	lat, lon := 59.9139, 10.7522
	name := "Oslo"
	updated, err := svc.UpdateMetadata(ctx, img.ID, "g1", images.MetadataPatch{
		Latitude:     &lat,
		Longitude:    &lon,
		LocationName: &name,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Latitude)
	assert.Equal(t, 59.9139, *updated.Latitude)
	assert.Nil(t, updated.TakenAt)

	// Second patch keeps earlier fields.
	taken := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	updated, err = svc.UpdateMetadata(ctx, img.ID, "g1", images.MetadataPatch{
		TakenAt: &taken,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Latitude)
	assert.Equal(t, "Oslo", *updated.LocationName)
	require.NotNil(t, updated.TakenAt)
}

func TestSetTags_CrossGalleryRejected(t *testing.T) {
	t.Parallel()

	svc, s, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, s.CreateGallery(ctx, &store.Gallery{
		ID:          "g2",
		UserID:      "owner",
		Name:        "Second",
		AccessToken: "tok-g2",
	}))

	require.NoError(t, s.CreateTag(ctx, &store.ImageTag{
		ID: "t1", GalleryID: "g1", Name: "sunset",
	}))
	require.NoError(t, s.CreateTag(ctx, &store.ImageTag{
		ID: "t2", GalleryID: "g2", Name: "foreign",
	}))

	img, err := svc.Upload(ctx, testGallery(t, s), "t.jpg", jpegBytes(t, 10, 10))
	require.NoError(t, err)

	tags, err := svc.SetTags(ctx, img.ID, "g1", []string{"t1"})
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "sunset", tags[0].Name)

	_, err = svc.SetTags(ctx, img.ID, "g1", []string{"t2"})
	assert.Error(t, err, "tags from another gallery are rejected")
}
