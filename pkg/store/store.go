// Package store provides relational persistence for all snapforge
// resources behind a single interface with a Start/Stop lifecycle.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/snapforge/snapforge/pkg/config"
)

// Store provides persistence for snapforge resources.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// Users.
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CountUsers(ctx context.Context) (int64, error)
	UpdateUser(ctx context.Context, user *User) error
	DeleteUser(ctx context.Context, id string) error

	// Sessions. IDs are hashed tokens.
	CreateSession(ctx context.Context, session *Session) error
	GetSessionByID(ctx context.Context, id string) (*Session, error)
	UpdateSessionExpiry(ctx context.Context, id string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, id string) error
	DeleteSessionsByUser(ctx context.Context, userID string) error
	DeleteExpiredSessions(ctx context.Context) error

	// Galleries.
	CreateGallery(ctx context.Context, gallery *Gallery) error
	GetGalleryByID(ctx context.Context, id string) (*Gallery, error)
	GetGalleryByAccessToken(ctx context.Context, token string) (*Gallery, error)
	ListGalleriesByOwner(ctx context.Context, userID string) ([]Gallery, error)
	CountGalleriesByOwner(ctx context.Context, userID string) (int64, error)
	UpdateGallery(ctx context.Context, gallery *Gallery) error
	DeleteGallery(ctx context.Context, id string) error

	// Images.
	CreateImage(ctx context.Context, image *Image) error
	GetImageByID(ctx context.Context, id string) (*Image, error)
	ListImagesByGallery(ctx context.Context, galleryID string, offset, limit int) ([]Image, error)
	CountImagesByGallery(ctx context.Context, galleryID string) (int64, error)
	SumImageSizesByGallery(ctx context.Context, galleryID string) (int64, error)
	UpdateImage(ctx context.Context, image *Image) error
	DeleteImage(ctx context.Context, id string) error

	// Collaborators.
	GetCollaborator(ctx context.Context, galleryID, userID string) (*GalleryCollaborator, error)
	ListCollaboratorsByGallery(ctx context.Context, galleryID string) ([]GalleryCollaborator, error)
	ListCollaborationsByUser(ctx context.Context, userID string) ([]GalleryCollaborator, error)
	UpdateCollaboratorRole(ctx context.Context, galleryID, userID, role string) error
	DeleteCollaborator(ctx context.Context, galleryID, userID string) error

	// Invitations.
	CreateInvitation(ctx context.Context, inv *GalleryInvitation) error
	GetInvitationByID(ctx context.Context, id string) (*GalleryInvitation, error)
	GetInvitationByToken(ctx context.Context, token string) (*GalleryInvitation, error)
	GetInvitationByGalleryEmail(ctx context.Context, galleryID, email string) (*GalleryInvitation, error)
	ListInvitationsByGallery(ctx context.Context, galleryID string) ([]GalleryInvitation, error)
	ListInvitationsByEmail(ctx context.Context, email string) ([]GalleryInvitation, error)
	DeleteInvitation(ctx context.Context, id string) error
	DeleteExpiredInvitations(ctx context.Context) error

	// AcceptInvitation atomically creates the collaborator record and
	// deletes the invitation. A crash can never leave both or neither.
	AcceptInvitation(ctx context.Context, inv *GalleryInvitation, collab *GalleryCollaborator) error

	// Tags.
	CreateTag(ctx context.Context, tag *ImageTag) error
	GetTagByID(ctx context.Context, id string) (*ImageTag, error)
	ListTagsByGallery(ctx context.Context, galleryID string) ([]ImageTag, error)
	UpdateTag(ctx context.Context, tag *ImageTag) error
	DeleteTag(ctx context.Context, id string) error
	AssignTag(ctx context.Context, imageID, tagID string) error
	UnassignTag(ctx context.Context, imageID, tagID string) error
	ReplaceImageTags(ctx context.Context, imageID string, tagIDs []string) error
	ListTagsByImage(ctx context.Context, imageID string) ([]ImageTag, error)
	CountImagesByTag(ctx context.Context, tagID string) (int64, error)

	// Settings.
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new Store backed by the configured database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(
		&User{},
		&Session{},
		&Gallery{},
		&Image{},
		&GalleryCollaborator{},
		&GalleryInvitation{},
		&ImageTag{},
		&ImageTagAssignment{},
		&Setting{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("Database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// --- User CRUD ---

func (s *store) CreateUser(ctx context.Context, user *User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	return nil
}

func (s *store) GetUserByID(
	ctx context.Context, id string,
) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error; err != nil {
		return nil, fmt.Errorf("getting user by id: %w", err)
	}

	return &user, nil
}

func (s *store) GetUserByEmail(
	ctx context.Context, email string,
) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error; err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}

	return &user, nil
}

func (s *store) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	return users, nil
}

func (s *store) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&User{}).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}

	return count, nil
}

func (s *store) UpdateUser(ctx context.Context, user *User) error {
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("updating user: %w", err)
	}

	return nil
}

func (s *store) DeleteUser(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&User{}).Error; err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	return nil
}

// --- Session CRUD ---

func (s *store) CreateSession(
	ctx context.Context, session *Session,
) error {
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	return nil
}

func (s *store) GetSessionByID(
	ctx context.Context, id string,
) (*Session, error) {
	var session Session
	if err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&session).Error; err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}

	return &session, nil
}

func (s *store) UpdateSessionExpiry(
	ctx context.Context, id string, expiresAt time.Time,
) error {
	if err := s.db.WithContext(ctx).
		Model(&Session{}).
		Where("id = ?", id).
		Update("expires_at", expiresAt).Error; err != nil {
		return fmt.Errorf("updating session expiry: %w", err)
	}

	return nil
}

func (s *store) DeleteSession(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&Session{}).Error; err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	return nil
}

func (s *store) DeleteSessionsByUser(
	ctx context.Context, userID string,
) error {
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&Session{}).Error; err != nil {
		return fmt.Errorf("deleting user sessions: %w", err)
	}

	return nil
}

func (s *store) DeleteExpiredSessions(ctx context.Context) error {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", time.Now().UTC()).
		Delete(&Session{})
	if result.Error != nil {
		return fmt.Errorf("deleting expired sessions: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.log.WithField("count", result.RowsAffected).
			Debug("Cleaned up expired sessions")
	}

	return nil
}

// --- Gallery CRUD ---

func (s *store) CreateGallery(
	ctx context.Context, gallery *Gallery,
) error {
	if err := s.db.WithContext(ctx).Create(gallery).Error; err != nil {
		return fmt.Errorf("creating gallery: %w", err)
	}

	return nil
}

func (s *store) GetGalleryByID(
	ctx context.Context, id string,
) (*Gallery, error) {
	var gallery Gallery
	if err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&gallery).Error; err != nil {
		return nil, fmt.Errorf("getting gallery: %w", err)
	}

	return &gallery, nil
}

func (s *store) GetGalleryByAccessToken(
	ctx context.Context, token string,
) (*Gallery, error) {
	var gallery Gallery
	if err := s.db.WithContext(ctx).
		Where("access_token = ?", token).
		First(&gallery).Error; err != nil {
		return nil, fmt.Errorf("getting gallery by access token: %w", err)
	}

	return &gallery, nil
}

func (s *store) ListGalleriesByOwner(
	ctx context.Context, userID string,
) ([]Gallery, error) {
	var galleries []Gallery
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&galleries).Error; err != nil {
		return nil, fmt.Errorf("listing galleries: %w", err)
	}

	return galleries, nil
}

func (s *store) CountGalleriesByOwner(
	ctx context.Context, userID string,
) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&Gallery{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting galleries: %w", err)
	}

	return count, nil
}

func (s *store) UpdateGallery(
	ctx context.Context, gallery *Gallery,
) error {
	if err := s.db.WithContext(ctx).Save(gallery).Error; err != nil {
		return fmt.Errorf("updating gallery: %w", err)
	}

	return nil
}

// DeleteGallery removes the gallery and all dependent rows in one
// transaction. Blob cleanup is the caller's responsibility.
func (s *store) DeleteGallery(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("tag_id IN (?)", tx.
				Model(&ImageTag{}).
				Select("id").
				Where("gallery_id = ?", id),
			).
			Delete(&ImageTagAssignment{}).Error; err != nil {
			return fmt.Errorf("deleting tag assignments: %w", err)
		}

		for _, model := range []any{
			&ImageTag{},
			&Image{},
			&GalleryCollaborator{},
			&GalleryInvitation{},
		} {
			if err := tx.
				Where("gallery_id = ?", id).
				Delete(model).Error; err != nil {
				return fmt.Errorf("deleting gallery children: %w", err)
			}
		}

		if err := tx.
			Where("id = ?", id).
			Delete(&Gallery{}).Error; err != nil {
			return fmt.Errorf("deleting gallery: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting gallery %s: %w", id, err)
	}

	return nil
}

// --- Image CRUD ---

func (s *store) CreateImage(ctx context.Context, image *Image) error {
	if err := s.db.WithContext(ctx).Create(image).Error; err != nil {
		return fmt.Errorf("creating image: %w", err)
	}

	return nil
}

func (s *store) GetImageByID(
	ctx context.Context, id string,
) (*Image, error) {
	var image Image
	if err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&image).Error; err != nil {
		return nil, fmt.Errorf("getting image: %w", err)
	}

	return &image, nil
}

func (s *store) ListImagesByGallery(
	ctx context.Context, galleryID string, offset, limit int,
) ([]Image, error) {
	var images []Image
	if err := s.db.WithContext(ctx).
		Where("gallery_id = ?", galleryID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&images).Error; err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}

	return images, nil
}

func (s *store) CountImagesByGallery(
	ctx context.Context, galleryID string,
) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&Image{}).
		Where("gallery_id = ?", galleryID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting images: %w", err)
	}

	return count, nil
}

func (s *store) SumImageSizesByGallery(
	ctx context.Context, galleryID string,
) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).
		Model(&Image{}).
		Where("gallery_id = ?", galleryID).
		Select("COALESCE(SUM(size_bytes), 0)").
		Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("summing image sizes: %w", err)
	}

	return total, nil
}

func (s *store) UpdateImage(ctx context.Context, image *Image) error {
	if err := s.db.WithContext(ctx).Save(image).Error; err != nil {
		return fmt.Errorf("updating image: %w", err)
	}

	return nil
}

func (s *store) DeleteImage(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("image_id = ?", id).
			Delete(&ImageTagAssignment{}).Error; err != nil {
			return err
		}

		return tx.Where("id = ?", id).Delete(&Image{}).Error
	})
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}

	return nil
}

// --- Collaborator CRUD ---

func (s *store) GetCollaborator(
	ctx context.Context, galleryID, userID string,
) (*GalleryCollaborator, error) {
	var collab GalleryCollaborator
	if err := s.db.WithContext(ctx).
		Where("gallery_id = ? AND user_id = ?", galleryID, userID).
		First(&collab).Error; err != nil {
		return nil, fmt.Errorf("getting collaborator: %w", err)
	}

	return &collab, nil
}

func (s *store) ListCollaboratorsByGallery(
	ctx context.Context, galleryID string,
) ([]GalleryCollaborator, error) {
	var collabs []GalleryCollaborator
	if err := s.db.WithContext(ctx).
		Where("gallery_id = ?", galleryID).
		Order("accepted_at ASC").
		Find(&collabs).Error; err != nil {
		return nil, fmt.Errorf("listing collaborators: %w", err)
	}

	return collabs, nil
}

func (s *store) ListCollaborationsByUser(
	ctx context.Context, userID string,
) ([]GalleryCollaborator, error) {
	var collabs []GalleryCollaborator
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&collabs).Error; err != nil {
		return nil, fmt.Errorf("listing collaborations: %w", err)
	}

	return collabs, nil
}

func (s *store) UpdateCollaboratorRole(
	ctx context.Context, galleryID, userID, role string,
) error {
	if err := s.db.WithContext(ctx).
		Model(&GalleryCollaborator{}).
		Where("gallery_id = ? AND user_id = ?", galleryID, userID).
		Update("role", role).Error; err != nil {
		return fmt.Errorf("updating collaborator role: %w", err)
	}

	return nil
}

func (s *store) DeleteCollaborator(
	ctx context.Context, galleryID, userID string,
) error {
	if err := s.db.WithContext(ctx).
		Where("gallery_id = ? AND user_id = ?", galleryID, userID).
		Delete(&GalleryCollaborator{}).Error; err != nil {
		return fmt.Errorf("deleting collaborator: %w", err)
	}

	return nil
}

// --- Invitation CRUD ---

func (s *store) CreateInvitation(
	ctx context.Context, inv *GalleryInvitation,
) error {
	if err := s.db.WithContext(ctx).Create(inv).Error; err != nil {
		return fmt.Errorf("creating invitation: %w", err)
	}

	return nil
}

func (s *store) GetInvitationByID(
	ctx context.Context, id string,
) (*GalleryInvitation, error) {
	var inv GalleryInvitation
	if err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&inv).Error; err != nil {
		return nil, fmt.Errorf("getting invitation: %w", err)
	}

	return &inv, nil
}

func (s *store) GetInvitationByToken(
	ctx context.Context, token string,
) (*GalleryInvitation, error) {
	var inv GalleryInvitation
	if err := s.db.WithContext(ctx).
		Where("token = ?", token).
		First(&inv).Error; err != nil {
		return nil, fmt.Errorf("getting invitation by token: %w", err)
	}

	return &inv, nil
}

func (s *store) GetInvitationByGalleryEmail(
	ctx context.Context, galleryID, email string,
) (*GalleryInvitation, error) {
	var inv GalleryInvitation
	if err := s.db.WithContext(ctx).
		Where("gallery_id = ? AND email = ?", galleryID, email).
		First(&inv).Error; err != nil {
		return nil, fmt.Errorf("getting invitation by gallery/email: %w", err)
	}

	return &inv, nil
}

func (s *store) ListInvitationsByGallery(
	ctx context.Context, galleryID string,
) ([]GalleryInvitation, error) {
	var invs []GalleryInvitation
	if err := s.db.WithContext(ctx).
		Where("gallery_id = ?", galleryID).
		Order("created_at ASC").
		Find(&invs).Error; err != nil {
		return nil, fmt.Errorf("listing invitations: %w", err)
	}

	return invs, nil
}

func (s *store) ListInvitationsByEmail(
	ctx context.Context, email string,
) ([]GalleryInvitation, error) {
	var invs []GalleryInvitation
	if err := s.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at ASC").
		Find(&invs).Error; err != nil {
		return nil, fmt.Errorf("listing invitations by email: %w", err)
	}

	return invs, nil
}

func (s *store) DeleteInvitation(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&GalleryInvitation{}).Error; err != nil {
		return fmt.Errorf("deleting invitation: %w", err)
	}

	return nil
}

func (s *store) DeleteExpiredInvitations(ctx context.Context) error {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", time.Now().UTC()).
		Delete(&GalleryInvitation{})
	if result.Error != nil {
		return fmt.Errorf(
			"deleting expired invitations: %w", result.Error,
		)
	}

	if result.RowsAffected > 0 {
		s.log.WithField("count", result.RowsAffected).
			Debug("Cleaned up expired invitations")
	}

	return nil
}

func (s *store) AcceptInvitation(
	ctx context.Context,
	inv *GalleryInvitation,
	collab *GalleryCollaborator,
) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(collab).Error; err != nil {
			return fmt.Errorf("creating collaborator: %w", err)
		}

		result := tx.Where("id = ?", inv.ID).Delete(&GalleryInvitation{})
		if result.Error != nil {
			return fmt.Errorf("deleting invitation: %w", result.Error)
		}

		// The invitation must still exist when we consume it, otherwise
		// a concurrent accept won the race and this one must roll back.
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("accepting invitation: %w", err)
	}

	return nil
}

// --- Tag CRUD ---

func (s *store) CreateTag(ctx context.Context, tag *ImageTag) error {
	if err := s.db.WithContext(ctx).Create(tag).Error; err != nil {
		return fmt.Errorf("creating tag: %w", err)
	}

	return nil
}

func (s *store) GetTagByID(
	ctx context.Context, id string,
) (*ImageTag, error) {
	var tag ImageTag
	if err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&tag).Error; err != nil {
		return nil, fmt.Errorf("getting tag: %w", err)
	}

	return &tag, nil
}

func (s *store) ListTagsByGallery(
	ctx context.Context, galleryID string,
) ([]ImageTag, error) {
	var tags []ImageTag
	if err := s.db.WithContext(ctx).
		Where("gallery_id = ?", galleryID).
		Order("name ASC").
		Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}

	return tags, nil
}

func (s *store) UpdateTag(ctx context.Context, tag *ImageTag) error {
	if err := s.db.WithContext(ctx).Save(tag).Error; err != nil {
		return fmt.Errorf("updating tag: %w", err)
	}

	return nil
}

// DeleteTag removes the tag and all of its assignments.
func (s *store) DeleteTag(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("tag_id = ?", id).
			Delete(&ImageTagAssignment{}).Error; err != nil {
			return err
		}

		return tx.Where("id = ?", id).Delete(&ImageTag{}).Error
	})
	if err != nil {
		return fmt.Errorf("deleting tag: %w", err)
	}

	return nil
}

func (s *store) AssignTag(
	ctx context.Context, imageID, tagID string,
) error {
	assignment := &ImageTagAssignment{ImageID: imageID, TagID: tagID}

	if err := s.db.WithContext(ctx).
		Where("image_id = ? AND tag_id = ?", imageID, tagID).
		FirstOrCreate(assignment).Error; err != nil {
		return fmt.Errorf("assigning tag: %w", err)
	}

	return nil
}

func (s *store) UnassignTag(
	ctx context.Context, imageID, tagID string,
) error {
	if err := s.db.WithContext(ctx).
		Where("image_id = ? AND tag_id = ?", imageID, tagID).
		Delete(&ImageTagAssignment{}).Error; err != nil {
		return fmt.Errorf("unassigning tag: %w", err)
	}

	return nil
}

func (s *store) ReplaceImageTags(
	ctx context.Context, imageID string, tagIDs []string,
) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("image_id = ?", imageID).
			Delete(&ImageTagAssignment{}).Error; err != nil {
			return err
		}

		for _, tagID := range tagIDs {
			if err := tx.Create(&ImageTagAssignment{
				ImageID: imageID,
				TagID:   tagID,
			}).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("replacing image tags: %w", err)
	}

	return nil
}

func (s *store) ListTagsByImage(
	ctx context.Context, imageID string,
) ([]ImageTag, error) {
	var tags []ImageTag
	if err := s.db.WithContext(ctx).
		Joins(
			"JOIN image_tag_assignments ON "+
				"image_tag_assignments.tag_id = image_tags.id",
		).
		Where("image_tag_assignments.image_id = ?", imageID).
		Order("image_tags.name ASC").
		Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("listing image tags: %w", err)
	}

	return tags, nil
}

func (s *store) CountImagesByTag(
	ctx context.Context, tagID string,
) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&ImageTagAssignment{}).
		Where("tag_id = ?", tagID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting tagged images: %w", err)
	}

	return count, nil
}

// --- Settings ---

func (s *store) GetSetting(
	ctx context.Context, key string,
) (string, error) {
	var setting Setting
	if err := s.db.WithContext(ctx).
		Where("key = ?", key).
		First(&setting).Error; err != nil {
		return "", fmt.Errorf("getting setting %q: %w", key, err)
	}

	return setting.Value, nil
}

func (s *store) SetSetting(ctx context.Context, key, value string) error {
	setting := &Setting{Key: key, Value: value}

	if err := s.db.WithContext(ctx).
		Where("key = ?", key).
		Assign(Setting{Value: value}).
		FirstOrCreate(setting).Error; err != nil {
		return fmt.Errorf("setting %q: %w", key, err)
	}

	return nil
}
