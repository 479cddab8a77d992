// Package api exposes the HTTP surface: session-cookie authenticated
// gallery management, bearer-token image APIs, and public image
// delivery.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/snapforge/snapforge/pkg/access"
	"github.com/snapforge/snapforge/pkg/collab"
	"github.com/snapforge/snapforge/pkg/config"
	"github.com/snapforge/snapforge/pkg/gallery"
	"github.com/snapforge/snapforge/pkg/images"
	"github.com/snapforge/snapforge/pkg/mailer"
	"github.com/snapforge/snapforge/pkg/session"
	"github.com/snapforge/snapforge/pkg/settings"
	"github.com/snapforge/snapforge/pkg/storage"
	"github.com/snapforge/snapforge/pkg/store"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = 15 * time.Minute
)

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.Config
	store      store.Store
	blobs      storage.Store
	sessions   *session.Manager
	access     *access.Resolver
	collab     *collab.Manager
	galleries  *gallery.Manager
	images     *images.Service
	settings   *settings.Service
	httpServer *http.Server
	wg         sync.WaitGroup
	done       chan struct{}
}

// NewServer creates a new API server.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.Config,
) Server {
	return &server{
		log:  log.WithField("component", "api"),
		cfg:  cfg,
		done: make(chan struct{}),
	}
}

// Start initializes the store, blob storage, and services, then starts
// the HTTP server and the expiry sweeps.
func (s *server) Start(ctx context.Context) error {
	s.store = store.NewStore(s.log, &s.cfg.Database)
	if err := s.store.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	blobs, err := newBlobStore(&s.cfg.Storage)
	if err != nil {
		return fmt.Errorf("initializing blob storage: %w", err)
	}

	s.blobs = blobs

	s.sessions = session.NewManager(s.log, s.store)
	s.access = access.NewResolver(s.log, s.store)
	s.settings = settings.NewService(s.log, s.store)

	m, err := mailer.NewMailer(s.log, &s.cfg.SMTP, s.cfg.Global.BaseURL)
	if err != nil {
		return fmt.Errorf("initializing mailer: %w", err)
	}

	s.collab = collab.NewManager(s.log, s.store, s.access, m)
	s.galleries = gallery.NewManager(s.log, s.store, s.blobs, s.access)
	s.images = images.NewService(s.log, s.store, s.blobs, &s.cfg.Images)

	router := s.buildRouter()

	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Expiry sweeps for sessions and invitations.
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.sessions.CleanupExpired(ctx); err != nil {
					s.log.WithError(err).
						Warn("Failed to clean expired sessions")
				}

				if err := s.store.DeleteExpiredInvitations(ctx); err != nil {
					s.log.WithError(err).
						Warn("Failed to clean expired invitations")
				}
			case <-s.done:
				return
			}
		}
	}()

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Listen, err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.cfg.Server.Listen).
			Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server and closes the store.
func (s *server) Stop() error {
	close(s.done)

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	if s.store != nil {
		if err := s.store.Stop(); err != nil {
			return fmt.Errorf("stopping store: %w", err)
		}
	}

	s.log.Info("API server stopped")

	return nil
}

// newBlobStore selects the configured blob backend.
func newBlobStore(cfg *config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "local":
		if cfg.Local == nil {
			return nil, fmt.Errorf("local storage selected but not configured")
		}

		return storage.NewLocalStore(cfg.Local), nil
	case "s3":
		if cfg.S3 == nil {
			return nil, fmt.Errorf("s3 storage selected but not configured")
		}

		return storage.NewS3Store(cfg.S3), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
