package mailer

import (
	"context"
	"net/url"
	"strings"
	"time"

	"noyel/internal/account"
	"noyel/internal/kdo"
	"noyel/internal/models"
	"noyel/pkg/mail"
	"noyel/pkg/render"
)

const (
	templateVerifyEmail   = "verify_email"
	templateInvitation    = "invitation"
	templatePasswordReset = "password_reset"
)

var (
	_ account.Mailer = (*Notifier)(nil)
	_ kdo.Mailer     = (*Notifier)(nil)
)

// NotifierOptions describes the site named in emails.
type NotifierOptions struct {
	SiteName string
	SiteURL  string
	ResetTTL time.Duration
}

// Notifier renders account and invitation emails and hands them to an Outbox.
type Notifier struct {
	engine   *render.Engine
	outbox   Outbox
	siteName string
	siteURL  string
	resetTTL time.Duration
	now      func() time.Time
}

func NewNotifier(engine *render.Engine, outbox Outbox, opts NotifierOptions) *Notifier {
	return &Notifier{
		engine:   engine,
		outbox:   outbox,
		siteName: opts.SiteName,
		siteURL:  strings.TrimRight(opts.SiteURL, "/"),
		resetTTL: opts.ResetTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (n *Notifier) link(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return n.siteURL + "/" + strings.Join(escaped, "/")
}

func (n *Notifier) deliver(ctx context.Context, template, to string, data map[string]any) error {
	data["SiteName"] = n.siteName
	data["SiteURL"] = n.siteURL
	subject, body, err := n.engine.RenderMessage(template, data)
	if err != nil {
		return err
	}
	return n.outbox.Deliver(ctx, mail.Message{Template: template, To: to, Subject: subject, Body: body})
}

func (n *Notifier) SendVerification(ctx context.Context, user models.User, address models.EmailAddress, token string) error {
	return n.deliver(ctx, templateVerifyEmail, address.Email, map[string]any{
		"Name":  user.Name(),
		"Email": address.Email,
		"Link":  n.link("account", "emails", "verify", address.Email, token),
	})
}

func (n *Notifier) SendPasswordReset(ctx context.Context, user models.User, address models.EmailAddress, uidb64, token string) error {
	return n.deliver(ctx, templatePasswordReset, address.Email, map[string]any{
		"Name":    user.Name(),
		"Expires": n.now().Add(n.resetTTL).Format("2006-01-02 15:04 MST"),
		"Link":    n.link("account", "password", "reset", uidb64, token),
	})
}

func (n *Notifier) SendInvitation(ctx context.Context, invitation models.Invitation, present models.Present, sender models.User) error {
	return n.deliver(ctx, templateInvitation, invitation.SentTo, map[string]any{
		"SenderName":   sender.Name(),
		"PresentTitle": present.Title,
		"Token":        invitation.Token,
		"Link":         n.link("invitations", invitation.Token, "redeem"),
	})
}
