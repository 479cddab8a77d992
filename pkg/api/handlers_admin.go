package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/snapforge/snapforge/pkg/settings"
	"github.com/snapforge/snapforge/pkg/store"
)

// --- Settings ---

func (s *server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	raw, err := s.settings.GetRaw(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		if errors.Is(err, settings.ErrUnknownKey) {
			writeJSON(w, http.StatusNotFound,
				errorResponse{"unknown settings key"})

			return
		}

		s.internalError(w, err, "loading settings")

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(raw); err != nil {
		s.log.WithError(err).Debug("Failed to write settings response")
	}
}

func (s *server) handleSetSettings(w http.ResponseWriter, r *http.Request) {
	var value json.RawMessage
	if !decodeJSON(w, r, &value) {
		return
	}

	if err := s.settings.SetRaw(
		r.Context(), chi.URLParam(r, "key"), value); err != nil {
		if errors.Is(err, settings.ErrUnknownKey) {
			writeJSON(w, http.StatusNotFound,
				errorResponse{"unknown settings key"})

			return
		}

		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- User management ---

func (s *server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.internalError(w, err, "listing users")

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

type updateUserRequest struct {
	Role         *string `json:"role"`
	MaxGalleries *int    `json:"max_galleries"`
}

func (s *server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.store.GetUserByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{"user not found"})

			return
		}

		s.internalError(w, err, "loading user")

		return
	}

	if req.Role != nil {
		if *req.Role != store.RoleAdmin && *req.Role != store.RoleUser {
			writeJSON(w, http.StatusBadRequest,
				errorResponse{"role must be \"admin\" or \"user\""})

			return
		}

		user.Role = *req.Role
	}

	if req.MaxGalleries != nil {
		if *req.MaxGalleries < 0 {
			writeJSON(w, http.StatusBadRequest,
				errorResponse{"max_galleries cannot be negative"})

			return
		}

		user.MaxGalleries = *req.MaxGalleries
	}

	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		s.internalError(w, err, "updating user")

		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (s *server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor := userFromContext(r.Context())
	targetID := chi.URLParam(r, "id")

	if actor.ID == targetID {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"cannot delete your own account"})

		return
	}

	if _, err := s.store.GetUserByID(r.Context(), targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{"user not found"})

			return
		}

		s.internalError(w, err, "loading user")

		return
	}

	// Owned galleries go with the account, blobs included.
	galleries, err := s.store.ListGalleriesByOwner(r.Context(), targetID)
	if err != nil {
		s.internalError(w, err, "listing user galleries")

		return
	}

	for _, g := range galleries {
		if err := s.store.DeleteGallery(r.Context(), g.ID); err != nil {
			s.internalError(w, err, "deleting user gallery")

			return
		}

		if err := s.blobs.DeletePrefix(r.Context(), g.ID+"/"); err != nil {
			s.log.WithError(err).WithField("gallery", g.ID).
				Warn("Failed to delete gallery blobs")
		}
	}

	if err := s.sessions.InvalidateAllForUser(r.Context(), targetID); err != nil {
		s.internalError(w, err, "deleting user sessions")

		return
	}

	if err := s.store.DeleteUser(r.Context(), targetID); err != nil {
		s.internalError(w, err, "deleting user")

		return
	}

	w.WriteHeader(http.StatusNoContent)
}
