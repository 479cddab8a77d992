package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/snapforge/snapforge/pkg/store"
)

// buildRouter constructs the chi router with all routes and middleware.
func (s *server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.corsMiddleware())

	r.Get("/health", s.handleHealth)

	// Public image delivery.
	r.Get("/i/{imageID}", s.handleDeliver)

	// Bearer-token image API, scoped to one gallery per token.
	r.Route("/api/images", func(r chi.Router) {
		r.Use(s.requireGalleryToken)

		if s.cfg.Server.RateLimit.Enabled {
			r.Use(s.rateLimitMiddleware(s.cfg.Server.RateLimit.API))
		}

		r.Get("/", s.handleAPIListImages)
		r.Delete("/", s.handleAPIBulkDelete)
		r.Post("/upload", s.handleAPIUpload)
		r.Get("/{id}", s.handleAPIGetImage)
		r.Delete("/{id}", s.handleAPIDeleteImage)
		r.Patch("/{id}/metadata", s.handleAPIUpdateMetadata)
		r.Get("/{id}/tags", s.handleAPIListImageTags)
		r.Post("/{id}/tags", s.handleAPISetImageTags)
	})

	// Session-cookie authenticated surface.
	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if s.cfg.Server.RateLimit.Enabled {
				r.Use(s.rateLimitMiddleware(s.cfg.Server.RateLimit.Auth))
			}

			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)

			r.Group(func(r chi.Router) {
				r.Use(s.requireSession)
				r.Get("/me", s.handleMe)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			// Galleries.
			r.Get("/galleries", s.handleListGalleries)
			r.Post("/galleries", s.handleCreateGallery)

			r.Route("/galleries/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetGallery)
				r.Patch("/", s.handleUpdateGallery)
				r.Delete("/", s.handleDeleteGallery)
				r.Get("/stats", s.handleGalleryStats)
				r.Put("/settings", s.handleUpdateGallerySettings)
				r.Post("/token", s.handleRegenerateToken)

				// Collaborators. POST is an invite alias so API
				// clients can manage membership from one prefix.
				r.Get("/collaborators", s.handleListCollaborators)
				r.Post("/collaborators", s.handleInvite)
				r.Patch("/collaborators/{userId}", s.handleUpdateCollaborator)
				r.Delete("/collaborators/{userId}", s.handleRemoveCollaborator)

				// Invitations.
				r.Get("/invite", s.handleListInvitations)
				r.Post("/invite", s.handleInvite)
				r.Delete("/invite/{inviteId}", s.handleCancelInvitation)

				// Tags.
				r.Get("/tags", s.handleListTags)
				r.Post("/tags", s.handleCreateTag)
				r.Patch("/tags/{tagId}", s.handleUpdateTag)
				r.Delete("/tags/{tagId}", s.handleDeleteTag)
			})

			// Invitations addressed to the signed-in account, and
			// acceptance by token.
			r.Get("/invitations", s.handleMyInvitations)
			r.Post("/invitations/{token}/accept", s.handleAcceptInvitation)
		})

		// Viewing an invitation needs no session: the token is the
		// capability, and the invitee may not have an account yet.
		r.Get("/invitations/{token}", s.handleGetInvitation)

		// Admin endpoints.
		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireSession)
			r.Use(s.requireRole(store.RoleAdmin))

			r.Get("/settings/{key}", s.handleGetSettings)
			r.Put("/settings/{key}", s.handleSetSettings)

			r.Get("/users", s.handleListUsers)
			r.Patch("/users/{id}", s.handleUpdateUser)
			r.Delete("/users/{id}", s.handleDeleteUser)
		})
	})

	return r
}

// corsMiddleware returns a CORS handler configured from the server
// config.
func (s *server) corsMiddleware() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	origins := s.cfg.Server.CORSOrigins

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// Reflect the requesting origin so credentials work from any origin.
		opts.AllowOriginFunc = func(_ *http.Request, _ string) bool {
			return true
		}
	} else {
		opts.AllowedOrigins = origins
	}

	return cors.Handler(opts)
}
