// Package gallery manages gallery lifecycle: creation under the owner's
// quota, settings updates, access-token rotation, and deletion including
// blob cleanup.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/snapforge/snapforge/pkg/access"
	"github.com/snapforge/snapforge/pkg/auth"
	"github.com/snapforge/snapforge/pkg/storage"
	"github.com/snapforge/snapforge/pkg/store"
)

var (
	// ErrNotFound is returned for unknown galleries and for galleries the
	// requester may not see; the two are indistinguishable on purpose.
	ErrNotFound = errors.New("gallery not found")

	// ErrForbidden is returned when the requester can see the gallery but
	// lacks the permission the operation requires.
	ErrForbidden = errors.New("access denied")

	// ErrQuotaExceeded is returned when the owner is at MaxGalleries.
	ErrQuotaExceeded = errors.New("gallery quota exceeded")

	// ErrInvalidName is returned for empty or overlong names.
	ErrInvalidName = errors.New("invalid gallery name")
)

const maxNameLength = 200

// Entry pairs a gallery with the requester's role in listings.
type Entry struct {
	Gallery store.Gallery `json:"gallery"`
	Role    string        `json:"role"`
}

// Stats summarizes a gallery's stored images.
type Stats struct {
	ImageCount int64 `json:"image_count"`
	TotalBytes int64 `json:"total_bytes"`
}

// Settings carries the nullable per-gallery processing overrides for
// Update. Nil fields are left untouched only at the transport layer;
// here the whole override block is written as given.
type Settings struct {
	ThumbSize           *int    `json:"thumb_size"`
	ThumbQuality        *int    `json:"thumb_quality"`
	ImageQuality        *int    `json:"image_quality"`
	OutputFormat        *string `json:"output_format"`
	ResizeMethod        *string `json:"resize_method"`
	JPEGQuality         *int    `json:"jpeg_quality"`
	WebPQuality         *int    `json:"webp_quality"`
	AVIFQuality         *int    `json:"avif_quality"`
	PNGCompressionLevel *int    `json:"png_compression_level"`
	Effort              *int    `json:"effort"`
	ChromaSubsampling   *string `json:"chroma_subsampling"`
	StripMetadata       *bool   `json:"strip_metadata"`
	AutoOrient          *bool   `json:"auto_orient"`
}

// Manager implements gallery operations.
type Manager struct {
	log    logrus.FieldLogger
	store  store.Store
	blobs  storage.Store
	access *access.Resolver
}

// NewManager creates a gallery manager.
func NewManager(
	log logrus.FieldLogger,
	s store.Store,
	blobs storage.Store,
	resolver *access.Resolver,
) *Manager {
	return &Manager{
		log:    log.WithField("component", "gallery"),
		store:  s,
		blobs:  blobs,
		access: resolver,
	}
}

// Create makes a new gallery owned by userID, enforcing the user's
// gallery quota. The access token is generated immediately so API access
// works without a separate provisioning step.
func (m *Manager) Create(
	ctx context.Context, userID, name string,
) (*store.Gallery, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return nil, ErrInvalidName
	}

	user, err := m.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	count, err := m.store.CountGalleriesByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	if count >= int64(user.MaxGalleries) {
		return nil, ErrQuotaExceeded
	}

	token, err := auth.NewAccessToken()
	if err != nil {
		return nil, fmt.Errorf("generating access token: %w", err)
	}

	gallery := &store.Gallery{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		AccessToken: token,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	if err := m.store.CreateGallery(ctx, gallery); err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"gallery": gallery.ID,
		"user":    userID,
	}).Info("Gallery created")

	return gallery, nil
}

// Get returns a gallery together with the requester's permissions.
// Unknown galleries and galleries the requester has no relation to both
// return ErrNotFound.
func (m *Manager) Get(
	ctx context.Context, galleryID, requesterID string,
) (*store.Gallery, *access.Permissions, error) {
	perms, err := m.access.Resolve(ctx, requesterID, galleryID)
	if err != nil {
		return nil, nil, err
	}

	if perms == nil {
		return nil, nil, ErrNotFound
	}

	gallery, err := m.store.GetGalleryByID(ctx, galleryID)
	if err != nil {
		return nil, nil, err
	}

	return gallery, perms, nil
}

// GetByAccessToken resolves a bearer capability token to its gallery.
func (m *Manager) GetByAccessToken(
	ctx context.Context, token string,
) (*store.Gallery, error) {
	gallery, err := m.store.GetGalleryByAccessToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return gallery, nil
}

// List returns every gallery the user owns or collaborates on, with the
// user's role attached to each entry.
func (m *Manager) List(ctx context.Context, userID string) ([]Entry, error) {
	owned, err := m.store.ListGalleriesByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(owned))
	for _, g := range owned {
		entries = append(entries, Entry{Gallery: g, Role: access.RoleOwner})
	}

	collabs, err := m.store.ListCollaborationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, c := range collabs {
		g, err := m.store.GetGalleryByID(ctx, c.GalleryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}

			return nil, err
		}

		entries = append(entries, Entry{Gallery: *g, Role: c.Role})
	}

	return entries, nil
}

// Rename changes the gallery name. Requires canEditSettings.
func (m *Manager) Rename(
	ctx context.Context, galleryID, requesterID, name string,
) (*store.Gallery, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return nil, ErrInvalidName
	}

	gallery, err := m.requireSettings(ctx, galleryID, requesterID)
	if err != nil {
		return nil, err
	}

	gallery.Name = name
	gallery.UpdatedAt = time.Now().UTC()

	if err := m.store.UpdateGallery(ctx, gallery); err != nil {
		return nil, err
	}

	return gallery, nil
}

// UpdateSettings replaces the gallery's processing overrides. Requires
// canEditSettings.
func (m *Manager) UpdateSettings(
	ctx context.Context, galleryID, requesterID string, settings Settings,
) (*store.Gallery, error) {
	if err := validateSettings(settings); err != nil {
		return nil, err
	}

	gallery, err := m.requireSettings(ctx, galleryID, requesterID)
	if err != nil {
		return nil, err
	}

	gallery.ThumbSize = settings.ThumbSize
	gallery.ThumbQuality = settings.ThumbQuality
	gallery.ImageQuality = settings.ImageQuality
	gallery.OutputFormat = settings.OutputFormat
	gallery.ResizeMethod = settings.ResizeMethod
	gallery.JPEGQuality = settings.JPEGQuality
	gallery.WebPQuality = settings.WebPQuality
	gallery.AVIFQuality = settings.AVIFQuality
	gallery.PNGCompressionLevel = settings.PNGCompressionLevel
	gallery.Effort = settings.Effort
	gallery.ChromaSubsampling = settings.ChromaSubsampling
	gallery.StripMetadata = settings.StripMetadata
	gallery.AutoOrient = settings.AutoOrient
	gallery.UpdatedAt = time.Now().UTC()

	if err := m.store.UpdateGallery(ctx, gallery); err != nil {
		return nil, err
	}

	return gallery, nil
}

// RegenerateAccessToken replaces the gallery's capability token. The old
// token stops working the moment the row is written.
func (m *Manager) RegenerateAccessToken(
	ctx context.Context, galleryID, requesterID string,
) (*store.Gallery, error) {
	gallery, err := m.requireSettings(ctx, galleryID, requesterID)
	if err != nil {
		return nil, err
	}

	token, err := auth.NewAccessToken()
	if err != nil {
		return nil, fmt.Errorf("generating access token: %w", err)
	}

	gallery.AccessToken = token
	gallery.UpdatedAt = time.Now().UTC()

	if err := m.store.UpdateGallery(ctx, gallery); err != nil {
		return nil, err
	}

	m.log.WithField("gallery", galleryID).Info("Access token regenerated")

	return gallery, nil
}

// Delete removes the gallery, its rows, and its blobs. Requires
// canDeleteGallery. Blob cleanup failures are logged, not fatal: the
// rows are already gone and the prefix delete can be retried out of
// band.
func (m *Manager) Delete(
	ctx context.Context, galleryID, requesterID string,
) error {
	perms, err := m.access.Resolve(ctx, requesterID, galleryID)
	if err != nil {
		return err
	}

	if perms == nil {
		return ErrNotFound
	}

	if !perms.CanDeleteGallery {
		return ErrForbidden
	}

	if err := m.store.DeleteGallery(ctx, galleryID); err != nil {
		return err
	}

	if err := m.blobs.DeletePrefix(ctx, galleryID+"/"); err != nil {
		m.log.WithError(err).WithField("gallery", galleryID).
			Warn("Failed to delete gallery blobs")
	}

	m.log.WithField("gallery", galleryID).Info("Gallery deleted")

	return nil
}

// Stats returns the gallery's image count and total stored bytes.
func (m *Manager) Stats(
	ctx context.Context, galleryID, requesterID string,
) (*Stats, error) {
	perms, err := m.access.Resolve(ctx, requesterID, galleryID)
	if err != nil {
		return nil, err
	}

	if perms == nil {
		return nil, ErrNotFound
	}

	count, err := m.store.CountImagesByGallery(ctx, galleryID)
	if err != nil {
		return nil, err
	}

	total, err := m.store.SumImageSizesByGallery(ctx, galleryID)
	if err != nil {
		return nil, err
	}

	return &Stats{ImageCount: count, TotalBytes: total}, nil
}

// requireSettings loads the gallery after checking canEditSettings.
func (m *Manager) requireSettings(
	ctx context.Context, galleryID, requesterID string,
) (*store.Gallery, error) {
	perms, err := m.access.Resolve(ctx, requesterID, galleryID)
	if err != nil {
		return nil, err
	}

	if perms == nil {
		return nil, ErrNotFound
	}

	if !perms.CanEditSettings {
		return nil, ErrForbidden
	}

	return m.store.GetGalleryByID(ctx, galleryID)
}

func validateSettings(s Settings) error {
	checkRange := func(name string, v *int, lo, hi int) error {
		if v != nil && (*v < lo || *v > hi) {
			return fmt.Errorf("%s must be between %d and %d", name, lo, hi)
		}

		return nil
	}

	for _, check := range []error{
		checkRange("thumb_size", s.ThumbSize, 16, 1024),
		checkRange("thumb_quality", s.ThumbQuality, 1, 100),
		checkRange("image_quality", s.ImageQuality, 1, 100),
		checkRange("jpeg_quality", s.JPEGQuality, 1, 100),
		checkRange("webp_quality", s.WebPQuality, 1, 100),
		checkRange("avif_quality", s.AVIFQuality, 1, 100),
		checkRange("png_compression_level", s.PNGCompressionLevel, 0, 9),
		checkRange("effort", s.Effort, 0, 10),
	} {
		if check != nil {
			return check
		}
	}

	if s.OutputFormat != nil {
		switch *s.OutputFormat {
		case "original", "jpeg", "webp", "avif", "png":
		default:
			return fmt.Errorf("invalid output format %q", *s.OutputFormat)
		}
	}

	if s.ChromaSubsampling != nil {
		switch *s.ChromaSubsampling {
		case "420", "422", "444":
		default:
			return fmt.Errorf("invalid chroma subsampling %q", *s.ChromaSubsampling)
		}
	}

	return nil
}
