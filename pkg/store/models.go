package store

import (
	"time"
)

// User role constants.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Collaborator role constants.
const (
	CollabRoleViewer  = "viewer"
	CollabRoleEditor  = "editor"
	CollabRoleManager = "manager"
)

// User represents a registered account. The first registered user becomes
// an admin.
type User struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"not null;default:user" json:"role"`
	MaxGalleries int       `gorm:"not null;default:10" json:"max_galleries"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Session represents an active login. The ID is the SHA-256 hash of the
// bearer token; the plaintext token is never persisted.
type Session struct {
	ID        string    `gorm:"primaryKey" json:"-"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Gallery is a named image collection with its own capability token and
// nullable processing overrides (nil means "use the system default").
type Gallery struct {
	ID          string `gorm:"primaryKey" json:"id"`
	UserID      string `gorm:"index;not null" json:"user_id"`
	Name        string `gorm:"not null" json:"name"`
	AccessToken string `gorm:"uniqueIndex;not null" json:"-"`

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

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Image is the metadata row for a stored blob. Pixel data lives in blob
// storage under StoragePath.
type Image struct {
	ID               string `gorm:"primaryKey" json:"id"`
	GalleryID        string `gorm:"index;not null" json:"gallery_id"`
	Filename         string `gorm:"not null" json:"filename"`
	OriginalFilename string `gorm:"not null" json:"original_filename"`
	MimeType         string `gorm:"not null" json:"mime_type"`
	SizeBytes        int64  `gorm:"not null" json:"size_bytes"`
	Width            int    `gorm:"not null" json:"width"`
	Height           int    `gorm:"not null" json:"height"`
	StoragePath      string `gorm:"not null" json:"-"`

	Latitude     *float64   `json:"latitude"`
	Longitude    *float64   `json:"longitude"`
	Altitude     *float64   `json:"altitude"`
	LocationName *string    `json:"location_name"`
	TakenAt      *time.Time `json:"taken_at"`

	CreatedAt time.Time `json:"created_at"`
}

// GalleryCollaborator grants a non-owner user a role on a gallery.
type GalleryCollaborator struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	GalleryID  string    `gorm:"uniqueIndex:idx_collab_gallery_user;not null" json:"gallery_id"`
	UserID     string    `gorm:"uniqueIndex:idx_collab_gallery_user;not null" json:"user_id"`
	Role       string    `gorm:"not null" json:"role"`
	InvitedBy  string    `gorm:"not null" json:"invited_by"`
	InvitedAt  time.Time `json:"invited_at"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// GalleryInvitation is a pending, single-use, email-targeted invite. It is
// deleted on acceptance, cancellation, or expiry detection.
type GalleryInvitation struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	GalleryID string    `gorm:"index;not null" json:"gallery_id"`
	Email     string    `gorm:"index;not null" json:"email"`
	Role      string    `gorm:"not null" json:"role"`
	InvitedBy string    `gorm:"not null" json:"invited_by"`
	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ImageTag is a gallery-scoped label.
type ImageTag struct {
	ID        string  `gorm:"primaryKey" json:"id"`
	GalleryID string  `gorm:"index;not null" json:"gallery_id"`
	Name      string  `gorm:"not null" json:"name"`
	Color     *string `json:"color"`
}

// ImageTagAssignment links an image to a tag.
type ImageTagAssignment struct {
	ImageID string `gorm:"primaryKey" json:"image_id"`
	TagID   string `gorm:"primaryKey" json:"tag_id"`
}

// Setting is a process-wide JSON-valued configuration row.
type Setting struct {
	Key   string `gorm:"primaryKey" json:"key"`
	Value string `gorm:"not null" json:"value"`
}
