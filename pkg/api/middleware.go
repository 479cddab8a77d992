package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/snapforge/snapforge/pkg/store"
)

type contextKey string

const (
	userContextKey    contextKey = "user"
	galleryContextKey contextKey = "gallery"
)

const sessionCookieName = "session"

// requestLogger logs incoming HTTP requests.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		s.log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("remote", r.RemoteAddr).
			WithField("duration", time.Since(start)).
			Debug("Request handled")
	})
}

// requireSession validates the session cookie and injects the user into
// the request context.
func (s *server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized,
				errorResponse{"authentication required"})

			return
		}

		_, user, err := s.sessions.Validate(r.Context(), cookie.Value)
		if err != nil {
			s.log.WithError(err).Error("Session validation failed")
			writeJSON(w, http.StatusInternalServerError,
				errorResponse{"internal error"})

			return
		}

		if user == nil {
			writeJSON(w, http.StatusUnauthorized,
				errorResponse{"invalid or expired session"})

			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireGalleryToken authenticates a gallery capability token. The
// header must carry exactly the Bearer scheme; anything else is
// rejected before any store lookup.
func (s *server) requireGalleryToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized,
				errorResponse{"bearer token required"})

			return
		}

		g, err := s.galleries.GetByAccessToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized,
				errorResponse{"invalid token"})

			return
		}

		ctx := context.WithValue(r.Context(), galleryContextKey, g)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole checks that the authenticated user has the specified role.
func (s *server) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := userFromContext(r.Context())
			if user == nil || user.Role != role {
				writeJSON(w, http.StatusForbidden,
					errorResponse{"insufficient permissions"})

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// userFromContext extracts the authenticated user from the request context.
func userFromContext(ctx context.Context) *store.User {
	user, _ := ctx.Value(userContextKey).(*store.User)

	return user
}

// galleryFromContext extracts the token-authenticated gallery from the
// request context.
func galleryFromContext(ctx context.Context) *store.Gallery {
	g, _ := ctx.Value(galleryContextKey).(*store.Gallery)

	return g
}

// isSecureRequest reports whether the client connection is HTTPS,
// directly or via a reverse proxy's forwarded-proto header.
func isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}

	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
