// Package session manages opaque bearer-token login sessions. Tokens are
// handed to clients in plaintext exactly once; only their SHA-256 hash is
// stored, so a database leak cannot be replayed as a session.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/snapforge/snapforge/pkg/auth"
	"github.com/snapforge/snapforge/pkg/store"
)

const (
	// TTL is the session lifetime from issuance or extension.
	TTL = 30 * 24 * time.Hour

	// extendThreshold is the remaining lifetime below which validation
	// slides the expiry forward by a full TTL.
	extendThreshold = TTL / 2
)

// Manager creates, validates, and invalidates sessions.
type Manager struct {
	log   logrus.FieldLogger
	store store.Store
}

// NewManager creates a session manager on top of the given store.
func NewManager(log logrus.FieldLogger, s store.Store) *Manager {
	return &Manager{
		log:   log.WithField("component", "session"),
		store: s,
	}
}

// Create issues a new session for the user and returns the plaintext
// bearer token. The token is not recoverable afterwards.
func (m *Manager) Create(
	ctx context.Context, userID string,
) (string, *store.Session, error) {
	token, err := auth.NewSessionToken()
	if err != nil {
		return "", nil, fmt.Errorf("generating session token: %w", err)
	}

	session := &store.Session{
		ID:        auth.HashSessionToken(token),
		UserID:    userID,
		ExpiresAt: time.Now().UTC().Add(TTL),
	}

	if err := m.store.CreateSession(ctx, session); err != nil {
		return "", nil, err
	}

	return token, session, nil
}

// Validate resolves a bearer token to its session and owning user.
// Invalid, unknown, or expired tokens yield (nil, nil, nil); expired rows
// are deleted on detection. When less than half the lifetime remains the
// expiry is extended by a full TTL before returning.
func (m *Manager) Validate(
	ctx context.Context, token string,
) (*store.Session, *store.User, error) {
	if token == "" {
		return nil, nil, nil
	}

	id := auth.HashSessionToken(token)

	session, err := m.store.GetSessionByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}

		return nil, nil, err
	}

	now := time.Now().UTC()

	if !now.Before(session.ExpiresAt) {
		if err := m.store.DeleteSession(ctx, id); err != nil {
			m.log.WithError(err).Warn("Failed to delete expired session")
		}

		return nil, nil, nil
	}

	if session.ExpiresAt.Sub(now) < extendThreshold {
		newExpiry := now.Add(TTL)
		if err := m.store.UpdateSessionExpiry(ctx, id, newExpiry); err != nil {
			return nil, nil, err
		}

		session.ExpiresAt = newExpiry
	}

	user, err := m.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Orphaned session; the owning user is gone.
			_ = m.store.DeleteSession(ctx, id)

			return nil, nil, nil
		}

		return nil, nil, err
	}

	return session, user, nil
}

// Invalidate deletes the session for a bearer token. Unknown tokens are
// not an error.
func (m *Manager) Invalidate(ctx context.Context, token string) error {
	return m.store.DeleteSession(ctx, auth.HashSessionToken(token))
}

// InvalidateAllForUser deletes every session belonging to the user. Used
// on credential rotation.
func (m *Manager) InvalidateAllForUser(
	ctx context.Context, userID string,
) error {
	return m.store.DeleteSessionsByUser(ctx, userID)
}

// CleanupExpired removes all expired sessions. Safe to run at any cadence
// concurrently with request handling.
func (m *Manager) CleanupExpired(ctx context.Context) error {
	return m.store.DeleteExpiredSessions(ctx)
}
