// Package collab manages gallery collaborators and the invitation
// lifecycle that creates them. Invitations are single-use, email-bound,
// and expire after a fixed window.
package collab

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/snapforge/snapforge/pkg/access"
	"github.com/snapforge/snapforge/pkg/auth"
	"github.com/snapforge/snapforge/pkg/store"
)

// InviteTTL is how long an invitation stays acceptable.
const InviteTTL = 7 * 24 * time.Hour

var (
	// ErrForbidden is returned when the requester lacks the permission
	// the operation requires, or has no relation to the gallery at all.
	ErrForbidden = errors.New("access denied")

	// ErrGalleryNotFound is returned for operations on unknown galleries.
	ErrGalleryNotFound = errors.New("gallery not found")

	// ErrInvitationNotFound covers unknown and expired invitations alike
	// so callers cannot probe which it was.
	ErrInvitationNotFound = errors.New("invitation not found or expired")

	// ErrOwnerInvite is returned when the invitee is the gallery owner.
	ErrOwnerInvite = errors.New("cannot invite the gallery owner")

	// ErrAlreadyCollaborator is returned when the invitee already has a
	// collaborator record on the gallery.
	ErrAlreadyCollaborator = errors.New("user is already a collaborator")

	// ErrEmailMismatch is returned when the accepting account's email
	// does not match the invitation target.
	ErrEmailMismatch = errors.New("invitation was issued to a different email address")

	// ErrInvalidRole is returned for roles outside viewer/editor/manager.
	ErrInvalidRole = errors.New("invalid collaborator role")

	// ErrCollaboratorNotFound is returned when the targeted collaborator
	// record does not exist.
	ErrCollaboratorNotFound = errors.New("collaborator not found")
)

// Notifier delivers invitation emails. Implementations must tolerate
// being called with SMTP unconfigured.
type Notifier interface {
	SendInvitation(ctx context.Context, n InvitationNotice) error
}

// InvitationNotice carries everything a notification template needs.
type InvitationNotice struct {
	Email        string
	GalleryName  string
	InviterEmail string
	Role         string
	AcceptURL    string
	ExistingUser bool
}

// InviteResult is returned by Invite. ExistingUser selects the
// notification template; AcceptURL is relative to the public base URL.
type InviteResult struct {
	Invitation   *store.GalleryInvitation `json:"invitation"`
	ExistingUser bool                     `json:"existing_user"`
	AcceptURL    string                   `json:"accept_url"`
}

// Manager implements the collaborator and invitation operations.
type Manager struct {
	log      logrus.FieldLogger
	store    store.Store
	access   *access.Resolver
	notifier Notifier
}

// NewManager creates a collaborator manager. notifier may be nil, in
// which case no emails are sent.
func NewManager(
	log logrus.FieldLogger,
	s store.Store,
	resolver *access.Resolver,
	notifier Notifier,
) *Manager {
	return &Manager{
		log:      log.WithField("component", "collab"),
		store:    s,
		access:   resolver,
		notifier: notifier,
	}
}

func validRole(role string) bool {
	switch role {
	case store.CollabRoleViewer, store.CollabRoleEditor, store.CollabRoleManager:
		return true
	}

	return false
}

// NormalizeEmail trims whitespace and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (m *Manager) requirePermission(
	ctx context.Context,
	userID, galleryID string,
	check func(*access.Permissions) bool,
) error {
	perms, err := m.access.Resolve(ctx, userID, galleryID)
	if err != nil {
		return err
	}

	if perms == nil || !check(perms) {
		return ErrForbidden
	}

	return nil
}

// Invite creates a pending invitation for an email address. A pending
// invitation for the same (gallery, email) pair is superseded, not
// stacked. The notification email is best-effort.
func (m *Manager) Invite(
	ctx context.Context,
	galleryID, email, role, inviterID string,
) (*InviteResult, error) {
	if !validRole(role) {
		return nil, ErrInvalidRole
	}

	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email address")
	}

	gallery, err := m.store.GetGalleryByID(ctx, galleryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGalleryNotFound
		}

		return nil, err
	}

	if err := m.requirePermission(ctx, inviterID, galleryID,
		func(p *access.Permissions) bool { return p.CanManageCollaborators },
	); err != nil {
		return nil, err
	}

	owner, err := m.store.GetUserByID(ctx, gallery.UserID)
	if err != nil {
		return nil, err
	}

	if NormalizeEmail(owner.Email) == email {
		return nil, ErrOwnerInvite
	}

	existingUser := false

	invitee, err := m.store.GetUserByEmail(ctx, email)

	switch {
	case err == nil:
		existingUser = true

		if _, err := m.store.GetCollaborator(ctx, galleryID, invitee.ID); err == nil {
			return nil, ErrAlreadyCollaborator
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Unregistered invitee; the invitation still works once they
		// sign up with this address.
	default:
		return nil, err
	}

	if prev, err := m.store.GetInvitationByGalleryEmail(ctx, galleryID, email); err == nil {
		if err := m.store.DeleteInvitation(ctx, prev.ID); err != nil {
			return nil, fmt.Errorf("superseding pending invitation: %w", err)
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	token, err := auth.NewInviteToken()
	if err != nil {
		return nil, fmt.Errorf("generating invitation token: %w", err)
	}

	inv := &store.GalleryInvitation{
		ID:        uuid.NewString(),
		GalleryID: galleryID,
		Email:     email,
		Role:      role,
		InvitedBy: inviterID,
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(InviteTTL),
		CreatedAt: time.Now().UTC(),
	}

	if err := m.store.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}

	result := &InviteResult{
		Invitation:   inv,
		ExistingUser: existingUser,
		AcceptURL:    "/invitations/" + token,
	}

	if m.notifier != nil {
		inviter, err := m.store.GetUserByID(ctx, inviterID)
		inviterEmail := ""

		if err == nil {
			inviterEmail = inviter.Email
		}

		notice := InvitationNotice{
			Email:        email,
			GalleryName:  gallery.Name,
			InviterEmail: inviterEmail,
			Role:         role,
			AcceptURL:    result.AcceptURL,
			ExistingUser: existingUser,
		}

		if err := m.notifier.SendInvitation(ctx, notice); err != nil {
			m.log.WithError(err).WithField("email", email).
				Warn("Failed to send invitation email")
		}
	}

	return result, nil
}

// Accept turns an invitation into a collaborator record. The accepting
// account's email must match the invitation target. Insert and delete
// happen in one store transaction.
func (m *Manager) Accept(
	ctx context.Context, token, userID string,
) (*store.GalleryCollaborator, error) {
	inv, err := m.store.GetInvitationByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}

		return nil, err
	}

	if !time.Now().UTC().Before(inv.ExpiresAt) {
		if err := m.store.DeleteInvitation(ctx, inv.ID); err != nil {
			m.log.WithError(err).Warn("Failed to delete expired invitation")
		}

		return nil, ErrInvitationNotFound
	}

	user, err := m.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if NormalizeEmail(user.Email) != NormalizeEmail(inv.Email) {
		return nil, ErrEmailMismatch
	}

	if _, err := m.store.GetCollaborator(ctx, inv.GalleryID, userID); err == nil {
		// Duplicate accept; drop the stale invitation.
		if err := m.store.DeleteInvitation(ctx, inv.ID); err != nil {
			m.log.WithError(err).Warn("Failed to delete stale invitation")
		}

		return nil, ErrAlreadyCollaborator
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	collab := &store.GalleryCollaborator{
		ID:         uuid.NewString(),
		GalleryID:  inv.GalleryID,
		UserID:     userID,
		Role:       inv.Role,
		InvitedBy:  inv.InvitedBy,
		InvitedAt:  inv.CreatedAt,
		AcceptedAt: time.Now().UTC(),
	}

	if err := m.store.AcceptInvitation(ctx, inv, collab); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Lost the race with a concurrent accept or cancellation.
			return nil, ErrInvitationNotFound
		}

		return nil, err
	}

	return collab, nil
}

// GetByToken resolves an invitation for display before the user decides
// to accept. Expired invitations yield ErrInvitationNotFound without
// being deleted; the read path does not mutate.
func (m *Manager) GetByToken(
	ctx context.Context, token string,
) (*store.GalleryInvitation, error) {
	inv, err := m.store.GetInvitationByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}

		return nil, err
	}

	if !time.Now().UTC().Before(inv.ExpiresAt) {
		return nil, ErrInvitationNotFound
	}

	return inv, nil
}

// Cancel deletes a pending invitation.
func (m *Manager) Cancel(
	ctx context.Context, invitationID, requesterID string,
) error {
	inv, err := m.store.GetInvitationByID(ctx, invitationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvitationNotFound
		}

		return err
	}

	if err := m.requirePermission(ctx, requesterID, inv.GalleryID,
		func(p *access.Permissions) bool { return p.CanManageCollaborators },
	); err != nil {
		return err
	}

	return m.store.DeleteInvitation(ctx, inv.ID)
}

// UpdateRole changes an existing collaborator's role.
func (m *Manager) UpdateRole(
	ctx context.Context, galleryID, targetUserID, role, requesterID string,
) error {
	if !validRole(role) {
		return ErrInvalidRole
	}

	if err := m.requirePermission(ctx, requesterID, galleryID,
		func(p *access.Permissions) bool { return p.CanManageCollaborators },
	); err != nil {
		return err
	}

	if _, err := m.store.GetCollaborator(ctx, galleryID, targetUserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCollaboratorNotFound
		}

		return err
	}

	return m.store.UpdateCollaboratorRole(ctx, galleryID, targetUserID, role)
}

// Remove deletes a collaborator record. A collaborator may always remove
// themself; removing anyone else requires canManageCollaborators.
func (m *Manager) Remove(
	ctx context.Context, galleryID, targetUserID, requesterID string,
) error {
	if requesterID != targetUserID {
		if err := m.requirePermission(ctx, requesterID, galleryID,
			func(p *access.Permissions) bool { return p.CanManageCollaborators },
		); err != nil {
			return err
		}
	}

	if _, err := m.store.GetCollaborator(ctx, galleryID, targetUserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCollaboratorNotFound
		}

		return err
	}

	return m.store.DeleteCollaborator(ctx, galleryID, targetUserID)
}

// ListCollaborators returns the gallery's collaborator records.
func (m *Manager) ListCollaborators(
	ctx context.Context, galleryID, requesterID string,
) ([]store.GalleryCollaborator, error) {
	if err := m.requirePermission(ctx, requesterID, galleryID,
		func(p *access.Permissions) bool { return p.CanView },
	); err != nil {
		return nil, err
	}

	return m.store.ListCollaboratorsByGallery(ctx, galleryID)
}

// ListPendingInvitations returns the gallery's pending invitations.
func (m *Manager) ListPendingInvitations(
	ctx context.Context, galleryID, requesterID string,
) ([]store.GalleryInvitation, error) {
	if err := m.requirePermission(ctx, requesterID, galleryID,
		func(p *access.Permissions) bool { return p.CanManageCollaborators },
	); err != nil {
		return nil, err
	}

	return m.store.ListInvitationsByGallery(ctx, galleryID)
}

// ListInvitationsForEmail returns pending invitations addressed to an
// email, for surfacing on the invitee's own account.
func (m *Manager) ListInvitationsForEmail(
	ctx context.Context, email string,
) ([]store.GalleryInvitation, error) {
	return m.store.ListInvitationsByEmail(ctx, NormalizeEmail(email))
}
