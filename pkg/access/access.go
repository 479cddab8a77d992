// Package access resolves what a user may do with a gallery. The role
// table here is the single authority; handlers check individual flags
// rather than roles.
package access

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/snapforge/snapforge/pkg/store"
)

// Permissions is the resolved capability set of a user for one gallery.
type Permissions struct {
	Role                   string `json:"role"`
	IsOwner                bool   `json:"is_owner"`
	CanView                bool   `json:"can_view"`
	CanUpload              bool   `json:"can_upload"`
	CanDelete              bool   `json:"can_delete"`
	CanManageCollaborators bool   `json:"can_manage_collaborators"`
	CanEditSettings        bool   `json:"can_edit_settings"`
	CanDeleteGallery       bool   `json:"can_delete_gallery"`
}

// RoleOwner is the implicit role of a gallery's owner. It never appears
// in collaborator rows.
const RoleOwner = "owner"

// PermissionsForRole maps a role name to its capability set. Unknown
// roles yield nil.
func PermissionsForRole(role string) *Permissions {
	switch role {
	case RoleOwner:
		return &Permissions{
			Role:                   RoleOwner,
			IsOwner:                true,
			CanView:                true,
			CanUpload:              true,
			CanDelete:              true,
			CanManageCollaborators: true,
			CanEditSettings:        true,
			CanDeleteGallery:       true,
		}
	case store.CollabRoleManager:
		return &Permissions{
			Role:                   store.CollabRoleManager,
			CanView:                true,
			CanUpload:              true,
			CanDelete:              true,
			CanManageCollaborators: true,
		}
	case store.CollabRoleEditor:
		return &Permissions{
			Role:      store.CollabRoleEditor,
			CanView:   true,
			CanUpload: true,
			CanDelete: true,
		}
	case store.CollabRoleViewer:
		return &Permissions{
			Role:    store.CollabRoleViewer,
			CanView: true,
		}
	default:
		return nil
	}
}

// Resolver answers permission queries against the store.
type Resolver struct {
	log   logrus.FieldLogger
	store store.Store
}

// NewResolver creates a permission resolver.
func NewResolver(log logrus.FieldLogger, s store.Store) *Resolver {
	return &Resolver{
		log:   log.WithField("component", "access"),
		store: s,
	}
}

// Resolve returns the user's permissions for a gallery, or nil when the
// gallery does not exist or the user has no relation to it.
func (r *Resolver) Resolve(
	ctx context.Context, userID, galleryID string,
) (*Permissions, error) {
	gallery, err := r.store.GetGalleryByID(ctx, galleryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	if gallery.UserID == userID {
		return PermissionsForRole(RoleOwner), nil
	}

	collab, err := r.store.GetCollaborator(ctx, galleryID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return PermissionsForRole(collab.Role), nil
}
