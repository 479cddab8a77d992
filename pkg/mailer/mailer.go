// Package mailer sends invitation notifications over SMTP. With SMTP
// disabled it logs the message instead, which keeps local setups
// working without a relay.
package mailer

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"

	"github.com/snapforge/snapforge/pkg/collab"
	"github.com/snapforge/snapforge/pkg/config"
)

var existingUserTemplate = template.Must(template.New("existing").Parse(
	`Hello,

{{.InviterEmail}} invited you to the gallery "{{.GalleryName}}" as {{.Role}}.

Sign in and open {{.AcceptURL}} to accept the invitation.
It expires in 7 days.
`))

var newUserTemplate = template.Must(template.New("new").Parse(
	`Hello,

{{.InviterEmail}} invited you to the gallery "{{.GalleryName}}" as {{.Role}}.

You don't have an account yet. Register with this email address, then
open {{.AcceptURL}} to accept the invitation.
It expires in 7 days.
`))

// Compile-time interface check.
var _ collab.Notifier = (*Mailer)(nil)

// Mailer delivers notification emails through a configured SMTP relay.
type Mailer struct {
	log     logrus.FieldLogger
	cfg     *config.SMTPConfig
	baseURL string
	client  *mail.Client
}

// NewMailer creates a mailer. With SMTP disabled the mailer is inert
// and only logs. baseURL prefixes relative accept URLs in outgoing
// mail.
func NewMailer(
	log logrus.FieldLogger, cfg *config.SMTPConfig, baseURL string,
) (*Mailer, error) {
	m := &Mailer{
		log:     log.WithField("component", "mailer"),
		cfg:     cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
	}

	if !cfg.Enabled {
		return m, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}

	if cfg.StartTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating SMTP client: %w", err)
	}

	m.client = client

	return m, nil
}

// SendInvitation emails an invitation notice, choosing the template by
// whether the invitee already has an account.
func (m *Mailer) SendInvitation(
	ctx context.Context, n collab.InvitationNotice,
) error {
	acceptURL := m.baseURL + n.AcceptURL

	if m.client == nil {
		m.log.WithFields(logrus.Fields{
			"email":      n.Email,
			"gallery":    n.GalleryName,
			"accept_url": acceptURL,
		}).Info("SMTP disabled, logging invitation instead of sending")

		return nil
	}

	tmpl := newUserTemplate
	if n.ExistingUser {
		tmpl = existingUserTemplate
	}

	body := new(strings.Builder)
	if err := tmpl.Execute(body, struct {
		collab.InvitationNotice
		AcceptURL string
	}{n, acceptURL}); err != nil {
		return fmt.Errorf("rendering invitation email: %w", err)
	}

	msg := mail.NewMsg()

	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("setting sender: %w", err)
	}

	if err := msg.To(n.Email); err != nil {
		return fmt.Errorf("setting recipient: %w", err)
	}

	msg.Subject(fmt.Sprintf("Invitation to gallery %q", n.GalleryName))
	msg.SetBodyString(mail.TypeTextPlain, body.String())

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending invitation email: %w", err)
	}

	m.log.WithField("email", n.Email).Info("Invitation email sent")

	return nil
}
