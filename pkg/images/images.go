// Package images implements upload, delivery reads, metadata updates,
// and deletion of stored images. Authorization happens at the caller;
// every method here takes an already-authorized gallery.
package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"path"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	// Register decoders for DecodeConfig on every allowed upload type.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/chai2010/webp"

	"github.com/snapforge/snapforge/pkg/config"
	"github.com/snapforge/snapforge/pkg/storage"
	"github.com/snapforge/snapforge/pkg/store"
	"github.com/snapforge/snapforge/pkg/transform"
)

var (
	// ErrNotFound is returned for unknown images, or images outside the
	// caller's gallery.
	ErrNotFound = errors.New("image not found")

	// ErrUnsupportedType is returned when the upload is not on the mime
	// allow-list.
	ErrUnsupportedType = errors.New("unsupported image type")

	// ErrTooLarge is returned when the upload exceeds the size ceiling.
	ErrTooLarge = errors.New("upload exceeds maximum size")

	// ErrUndecodable is returned when the bytes do not decode as the
	// claimed image type.
	ErrUndecodable = errors.New("image data could not be decoded")
)

// MetadataPatch carries optional location and capture-time updates.
// Nil fields are left unchanged.
type MetadataPatch struct {
	Latitude     *float64   `json:"latitude"`
	Longitude    *float64   `json:"longitude"`
	Altitude     *float64   `json:"altitude"`
	LocationName *string    `json:"location_name"`
	TakenAt      *time.Time `json:"taken_at"`
}

// BulkResult reports a bulk delete: per-id success and the total count.
type BulkResult struct {
	Deleted int      `json:"deleted"`
	Failed  []string `json:"failed,omitempty"`
}

// Service implements image operations for authorized galleries.
type Service struct {
	log     logrus.FieldLogger
	store   store.Store
	blobs   storage.Store
	cfg     *config.ImagesConfig
	allowed map[string]bool
}

// NewService creates an image service.
func NewService(
	log logrus.FieldLogger,
	s store.Store,
	blobs storage.Store,
	cfg *config.ImagesConfig,
) *Service {
	allowed := make(map[string]bool, len(cfg.AllowedMimeTypes))
	for _, m := range cfg.AllowedMimeTypes {
		allowed[m] = true
	}

	return &Service{
		log:     log.WithField("component", "images"),
		store:   s,
		blobs:   blobs,
		cfg:     cfg,
		allowed: allowed,
	}
}

// Upload validates, optionally pre-encodes, and persists an image into
// the gallery. Validation happens before any side effect; a failed row
// insert rolls the blob back so neither side survives alone.
func (s *Service) Upload(
	ctx context.Context,
	gallery *store.Gallery,
	originalFilename string,
	data []byte,
) (*store.Image, error) {
	if int64(len(data)) > s.cfg.MaxUploadSize {
		return nil, ErrTooLarge
	}

	mimeType := http.DetectContentType(data)
	if !s.allowed[mimeType] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	width, height := cfg.Width, cfg.Height
	format := transform.FormatForMIME(mimeType)

	// Pre-encode into the gallery's configured output format so fetches
	// without transform parameters hit the passthrough path.
	if gallery.OutputFormat != nil && *gallery.OutputFormat != transform.FormatOriginal {
		params := transform.Resolve(transform.Defaults(), transform.FromGallery(gallery))

		result, err := transform.Render(data, mimeType,
			transform.Request{Format: *gallery.OutputFormat}, params)
		if err != nil {
			return nil, fmt.Errorf("pre-encoding upload: %w", err)
		}

		data = result.Data
		mimeType = result.MIMEType
		format = result.Format
		width, height = result.Width, result.Height
	}

	id := uuid.NewString()
	filename := id + "." + extensionFor(format)
	storagePath := gallery.ID + "/" + filename

	if err := s.blobs.Save(ctx, storagePath, data); err != nil {
		return nil, fmt.Errorf("saving blob: %w", err)
	}

	img := &store.Image{
		ID:               id,
		GalleryID:        gallery.ID,
		Filename:         filename,
		OriginalFilename: path.Base(originalFilename),
		MimeType:         mimeType,
		SizeBytes:        int64(len(data)),
		Width:            width,
		Height:           height,
		StoragePath:      storagePath,
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.store.CreateImage(ctx, img); err != nil {
		if delErr := s.blobs.Delete(ctx, storagePath); delErr != nil {
			s.log.WithError(delErr).WithField("path", storagePath).
				Error("Failed to roll back blob after row insert failure")
		}

		return nil, fmt.Errorf("creating image row: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"image":   id,
		"gallery": gallery.ID,
		"bytes":   len(data),
	}).Info("Image uploaded")

	return img, nil
}

// Get returns the metadata row, scoped to a gallery when galleryID is
// non-empty.
func (s *Service) Get(
	ctx context.Context, imageID, galleryID string,
) (*store.Image, error) {
	img, err := s.store.GetImageByID(ctx, imageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	if galleryID != "" && img.GalleryID != galleryID {
		return nil, ErrNotFound
	}

	return img, nil
}

// Read returns the stored bytes for an image.
func (s *Service) Read(ctx context.Context, img *store.Image) ([]byte, error) {
	data, err := s.blobs.Read(ctx, img.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", img.StoragePath, err)
	}

	return data, nil
}

// List returns a page of the gallery's images plus the total count.
func (s *Service) List(
	ctx context.Context, galleryID string, offset, limit int,
) ([]store.Image, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	if offset < 0 {
		offset = 0
	}

	total, err := s.store.CountImagesByGallery(ctx, galleryID)
	if err != nil {
		return nil, 0, err
	}

	imgs, err := s.store.ListImagesByGallery(ctx, galleryID, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	return imgs, total, nil
}

// Delete removes an image, blob first. A missing blob is success; any
// other blob error aborts before the row is touched, so a row never
// points at deleted data.
func (s *Service) Delete(ctx context.Context, imageID, galleryID string) error {
	img, err := s.Get(ctx, imageID, galleryID)
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, img.StoragePath); err != nil {
		return fmt.Errorf("deleting blob %s: %w", img.StoragePath, err)
	}

	if err := s.store.DeleteImage(ctx, img.ID); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"image":   imageID,
		"gallery": img.GalleryID,
	}).Info("Image deleted")

	return nil
}

// BulkDelete deletes a set of images concurrently and reports per-id
// outcomes. One failure does not stop the rest.
func (s *Service) BulkDelete(
	ctx context.Context, galleryID string, imageIDs []string,
) (*BulkResult, error) {
	var deleted atomic.Int64

	failures := make([]string, len(imageIDs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, id := range imageIDs {
		g.Go(func() error {
			if err := s.Delete(ctx, id, galleryID); err != nil {
				s.log.WithError(err).WithField("image", id).
					Warn("Bulk delete: image failed")

				failures[i] = id

				return nil
			}

			deleted.Add(1)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &BulkResult{Deleted: int(deleted.Load())}

	for _, id := range failures {
		if id != "" {
			result.Failed = append(result.Failed, id)
		}
	}

	return result, nil
}

// UpdateMetadata applies a partial metadata update.
func (s *Service) UpdateMetadata(
	ctx context.Context, imageID, galleryID string, patch MetadataPatch,
) (*store.Image, error) {
	img, err := s.Get(ctx, imageID, galleryID)
	if err != nil {
		return nil, err
	}

	if patch.Latitude != nil {
		img.Latitude = patch.Latitude
	}

	if patch.Longitude != nil {
		img.Longitude = patch.Longitude
	}

	if patch.Altitude != nil {
		img.Altitude = patch.Altitude
	}

	if patch.LocationName != nil {
		img.LocationName = patch.LocationName
	}

	if patch.TakenAt != nil {
		img.TakenAt = patch.TakenAt
	}

	if err := s.store.UpdateImage(ctx, img); err != nil {
		return nil, err
	}

	return img, nil
}

// ListTags returns the tags assigned to an image.
func (s *Service) ListTags(
	ctx context.Context, imageID, galleryID string,
) ([]store.ImageTag, error) {
	if _, err := s.Get(ctx, imageID, galleryID); err != nil {
		return nil, err
	}

	return s.store.ListTagsByImage(ctx, imageID)
}

// SetTags replaces the image's tag assignments. Every tag must belong
// to the image's gallery.
func (s *Service) SetTags(
	ctx context.Context, imageID, galleryID string, tagIDs []string,
) ([]store.ImageTag, error) {
	img, err := s.Get(ctx, imageID, galleryID)
	if err != nil {
		return nil, err
	}

	for _, tagID := range tagIDs {
		tag, err := s.store.GetTagByID(ctx, tagID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("unknown tag %s", tagID)
			}

			return nil, err
		}

		if tag.GalleryID != img.GalleryID {
			return nil, fmt.Errorf("tag %s belongs to another gallery", tagID)
		}
	}

	if err := s.store.ReplaceImageTags(ctx, imageID, tagIDs); err != nil {
		return nil, err
	}

	return s.store.ListTagsByImage(ctx, imageID)
}

func extensionFor(format string) string {
	switch format {
	case transform.FormatJPEG:
		return "jpg"
	case transform.FormatPNG:
		return "png"
	case transform.FormatWebP:
		return "webp"
	case transform.FormatAVIF:
		return "avif"
	case transform.FormatGIF:
		return "gif"
	default:
		return "bin"
	}
}
