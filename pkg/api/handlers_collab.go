package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/snapforge/snapforge/pkg/collab"
	"github.com/snapforge/snapforge/pkg/store"
)

// writeCollabError maps collaborator/invitation errors to HTTP responses.
func (s *server) writeCollabError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, collab.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{"access denied"})
	case errors.Is(err, collab.ErrGalleryNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{"gallery not found"})
	case errors.Is(err, collab.ErrInvitationNotFound):
		writeJSON(w, http.StatusNotFound,
			errorResponse{"invitation not found or expired"})
	case errors.Is(err, collab.ErrCollaboratorNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{"collaborator not found"})
	case errors.Is(err, collab.ErrOwnerInvite),
		errors.Is(err, collab.ErrAlreadyCollaborator),
		errors.Is(err, collab.ErrEmailMismatch),
		errors.Is(err, collab.ErrInvalidRole):
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})
	default:
		s.internalError(w, err, "collaboration operation")
	}
}

func (s *server) handleListCollaborators(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	collabs, err := s.collab.ListCollaborators(
		r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		s.writeCollabError(w, err)

		return
	}

	// Enrich with the collaborator's email for display.
	type entry struct {
		store.GalleryCollaborator
		Email string `json:"email"`
	}

	entries := make([]entry, 0, len(collabs))

	for _, c := range collabs {
		e := entry{GalleryCollaborator: c}

		if u, err := s.store.GetUserByID(r.Context(), c.UserID); err == nil {
			e.Email = u.Email
		}

		entries = append(entries, e)
	}

	writeJSON(w, http.StatusOK, map[string]any{"collaborators": entries})
}

func (s *server) handleUpdateCollaborator(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req struct {
		Role string `json:"role"`
	}

	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.collab.UpdateRole(
		r.Context(),
		chi.URLParam(r, "id"),
		chi.URLParam(r, "userId"),
		req.Role,
		user.ID,
	); err != nil {
		s.writeCollabError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleRemoveCollaborator(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	if err := s.collab.Remove(
		r.Context(),
		chi.URLParam(r, "id"),
		chi.URLParam(r, "userId"),
		user.ID,
	); err != nil {
		s.writeCollabError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleListInvitations(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	invs, err := s.collab.ListPendingInvitations(
		r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		s.writeCollabError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"invitations": invs})
}

// handleMyInvitations lists pending invitations addressed to the
// signed-in account's email.
func (s *server) handleMyInvitations(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	invs, err := s.collab.ListInvitationsForEmail(r.Context(), user.Email)
	if err != nil {
		s.internalError(w, err, "listing invitations")

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"invitations": invs})
}

func (s *server) handleInvite(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}

	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.collab.Invite(
		r.Context(), chi.URLParam(r, "id"), req.Email, req.Role, user.ID)
	if err != nil {
		s.writeCollabError(w, err)

		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (s *server) handleCancelInvitation(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	if err := s.collab.Cancel(
		r.Context(), chi.URLParam(r, "inviteId"), user.ID); err != nil {
		s.writeCollabError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleGetInvitation(w http.ResponseWriter, r *http.Request) {
	inv, err := s.collab.GetByToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.writeCollabError(w, err)

		return
	}

	g, err := s.store.GetGalleryByID(r.Context(), inv.GalleryID)
	if err != nil {
		s.internalError(w, err, "loading invitation gallery")

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"invitation":   inv,
		"gallery_name": g.Name,
	})
}

func (s *server) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	c, err := s.collab.Accept(r.Context(), chi.URLParam(r, "token"), user.ID)
	if err != nil {
		s.writeCollabError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"collaborator": c})
}
