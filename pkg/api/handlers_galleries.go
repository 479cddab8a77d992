package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/snapforge/snapforge/pkg/gallery"
)

// writeGalleryError maps gallery service errors to HTTP responses.
func (s *server) writeGalleryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gallery.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{"gallery not found"})
	case errors.Is(err, gallery.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{"access denied"})
	case errors.Is(err, gallery.ErrQuotaExceeded):
		writeJSON(w, http.StatusForbidden, errorResponse{"gallery quota exceeded"})
	case errors.Is(err, gallery.ErrInvalidName):
		writeJSON(w, http.StatusBadRequest, errorResponse{"invalid gallery name"})
	default:
		s.internalError(w, err, "gallery operation")
	}
}

func (s *server) handleListGalleries(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	entries, err := s.galleries.List(r.Context(), user.ID)
	if err != nil {
		s.internalError(w, err, "listing galleries")

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"galleries": entries})
}

func (s *server) handleCreateGallery(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req struct {
		Name string `json:"name"`
	}

	if !decodeJSON(w, r, &req) {
		return
	}

	g, err := s.galleries.Create(r.Context(), user.ID, req.Name)
	if err != nil {
		s.writeGalleryError(w, err)

		return
	}

	// The access token is included once on creation so the caller can
	// store it.
	writeJSON(w, http.StatusCreated, map[string]any{
		"gallery":      g,
		"access_token": g.AccessToken,
	})
}

func (s *server) handleGetGallery(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	g, perms, err := s.galleries.Get(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		s.writeGalleryError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"gallery":     g,
		"permissions": perms,
	})
}

func (s *server) handleUpdateGallery(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req struct {
		Name string `json:"name"`
	}

	if !decodeJSON(w, r, &req) {
		return
	}

	g, err := s.galleries.Rename(
		r.Context(), chi.URLParam(r, "id"), user.ID, req.Name)
	if err != nil {
		s.writeGalleryError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"gallery": g})
}

func (s *server) handleUpdateGallerySettings(
	w http.ResponseWriter, r *http.Request,
) {
	user := userFromContext(r.Context())

	var req gallery.Settings
	if !decodeJSON(w, r, &req) {
		return
	}

	g, err := s.galleries.UpdateSettings(
		r.Context(), chi.URLParam(r, "id"), user.ID, req)
	if err != nil {
		if errors.Is(err, gallery.ErrNotFound) ||
			errors.Is(err, gallery.ErrForbidden) {
			s.writeGalleryError(w, err)

			return
		}

		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"gallery": g})
}

func (s *server) handleRegenerateToken(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	g, err := s.galleries.RegenerateAccessToken(
		r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		s.writeGalleryError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": g.AccessToken,
	})
}

func (s *server) handleDeleteGallery(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	if err := s.galleries.Delete(
		r.Context(), chi.URLParam(r, "id"), user.ID); err != nil {
		s.writeGalleryError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleGalleryStats(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	stats, err := s.galleries.Stats(
		r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		s.writeGalleryError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, stats)
}
