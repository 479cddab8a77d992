package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/snapforge/snapforge/pkg/auth"
	"github.com/snapforge/snapforge/pkg/collab"
	"github.com/snapforge/snapforge/pkg/session"
	"github.com/snapforge/snapforge/pkg/store"
)

const minPasswordLength = 8

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleRegister creates a new account. The first account becomes admin
// and is always allowed; later signups honor the registration toggle.
func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	email := collab.NormalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"valid email is required"})

		return
	}

	if len(req.Password) < minPasswordLength {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"password must be at least 8 characters"})

		return
	}

	count, err := s.store.CountUsers(r.Context())
	if err != nil {
		s.internalError(w, err, "counting users")

		return
	}

	general, err := s.settings.General(r.Context())
	if err != nil {
		s.internalError(w, err, "loading general settings")

		return
	}

	if count > 0 && !general.RegistrationEnabled {
		writeJSON(w, http.StatusForbidden,
			errorResponse{"registration is disabled"})

		return
	}

	if _, err := s.store.GetUserByEmail(r.Context(), email); err == nil {
		writeJSON(w, http.StatusConflict,
			errorResponse{"email is already registered"})

		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.internalError(w, err, "checking existing email")

		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.internalError(w, err, "hashing password")

		return
	}

	role := store.RoleUser
	if count == 0 {
		role = store.RoleAdmin
	}

	user := &store.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		MaxGalleries: general.DefaultMaxGalleries,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		s.internalError(w, err, "creating user")

		return
	}

	s.log.WithFields(map[string]any{
		"user": user.ID,
		"role": role,
	}).Info("User registered")

	s.issueSession(w, r, user, http.StatusCreated)
}

// handleLogin authenticates email/password credentials and creates a
// session.
func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"email and password are required"})

		return
	}

	user, err := s.store.GetUserByEmail(
		r.Context(), collab.NormalizeEmail(req.Email))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized,
			errorResponse{"invalid credentials"})

		return
	}

	if !auth.VerifyPassword(req.Password, user.PasswordHash) {
		writeJSON(w, http.StatusUnauthorized,
			errorResponse{"invalid credentials"})

		return
	}

	s.issueSession(w, r, user, http.StatusOK)
}

// handleLogout destroys the current session.
func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if err := s.sessions.Invalidate(r.Context(), cookie.Value); err != nil {
			s.log.WithError(err).Warn("Failed to invalidate session")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMe returns the currently authenticated user.
func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized,
			errorResponse{"not authenticated"})

		return
	}

	writeJSON(w, http.StatusOK, user)
}

// issueSession creates a session for the user and sets the cookie.
func (s *server) issueSession(
	w http.ResponseWriter, r *http.Request, user *store.User, status int,
) {
	token, _, err := s.sessions.Create(r.Context(), user.ID)
	if err != nil {
		s.internalError(w, err, "creating session")

		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   isSecureRequest(r),
		MaxAge:   int(session.TTL.Seconds()),
	})

	writeJSON(w, status, map[string]any{"user": user})
}

// internalError logs err and writes a generic 500 without internal
// detail.
func (s *server) internalError(w http.ResponseWriter, err error, action string) {
	s.log.WithError(err).Error("Internal error: " + action)
	writeJSON(w, http.StatusInternalServerError,
		errorResponse{"internal error"})
}
