package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/snapforge/snapforge/pkg/access"
	"github.com/snapforge/snapforge/pkg/store"
)

// resolveGalleryPerms resolves the session user's permissions for the
// routed gallery and writes the error response when access is missing.
func (s *server) resolveGalleryPerms(
	w http.ResponseWriter, r *http.Request,
	check func(*access.Permissions) bool,
) (galleryID string, ok bool) {
	user := userFromContext(r.Context())
	galleryID = chi.URLParam(r, "id")

	perms, err := s.access.Resolve(r.Context(), user.ID, galleryID)
	if err != nil {
		s.internalError(w, err, "resolving permissions")

		return "", false
	}

	if perms == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{"gallery not found"})

		return "", false
	}

	if !check(perms) {
		writeJSON(w, http.StatusForbidden, errorResponse{"access denied"})

		return "", false
	}

	return galleryID, true
}

func (s *server) handleListTags(w http.ResponseWriter, r *http.Request) {
	galleryID, ok := s.resolveGalleryPerms(w, r,
		func(p *access.Permissions) bool { return p.CanView })
	if !ok {
		return
	}

	tags, err := s.store.ListTagsByGallery(r.Context(), galleryID)
	if err != nil {
		s.internalError(w, err, "listing tags")

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (s *server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	galleryID, ok := s.resolveGalleryPerms(w, r,
		func(p *access.Permissions) bool { return p.CanUpload })
	if !ok {
		return
	}

	var req struct {
		Name  string  `json:"name"`
		Color *string `json:"color"`
	}

	if !decodeJSON(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"tag name is required"})

		return
	}

	tag := &store.ImageTag{
		ID:        uuid.NewString(),
		GalleryID: galleryID,
		Name:      req.Name,
		Color:     req.Color,
	}

	if err := s.store.CreateTag(r.Context(), tag); err != nil {
		s.internalError(w, err, "creating tag")

		return
	}

	writeJSON(w, http.StatusCreated, tag)
}

func (s *server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	galleryID, ok := s.resolveGalleryPerms(w, r,
		func(p *access.Permissions) bool { return p.CanUpload })
	if !ok {
		return
	}

	tag, ok := s.galleryTag(w, r, galleryID)
	if !ok {
		return
	}

	var req struct {
		Name  *string `json:"name"`
		Color *string `json:"color"`
	}

	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeJSON(w, http.StatusBadRequest,
				errorResponse{"tag name cannot be empty"})

			return
		}

		tag.Name = name
	}

	if req.Color != nil {
		tag.Color = req.Color
	}

	if err := s.store.UpdateTag(r.Context(), tag); err != nil {
		s.internalError(w, err, "updating tag")

		return
	}

	writeJSON(w, http.StatusOK, tag)
}

func (s *server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	// Tag deletion destroys assignments, so it needs delete rights.
	galleryID, ok := s.resolveGalleryPerms(w, r,
		func(p *access.Permissions) bool { return p.CanDelete })
	if !ok {
		return
	}

	tag, ok := s.galleryTag(w, r, galleryID)
	if !ok {
		return
	}

	if err := s.store.DeleteTag(r.Context(), tag.ID); err != nil {
		s.internalError(w, err, "deleting tag")

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// galleryTag loads the routed tag and verifies it belongs to the
// gallery.
func (s *server) galleryTag(
	w http.ResponseWriter, r *http.Request, galleryID string,
) (*store.ImageTag, bool) {
	tag, err := s.store.GetTagByID(r.Context(), chi.URLParam(r, "tagId"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{"tag not found"})

			return nil, false
		}

		s.internalError(w, err, "loading tag")

		return nil, false
	}

	if tag.GalleryID != galleryID {
		writeJSON(w, http.StatusNotFound, errorResponse{"tag not found"})

		return nil, false
	}

	return tag, true
}
