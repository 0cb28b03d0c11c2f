package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lumia-app/lumia/internal/markdown"
	"github.com/resend/resend-go/v2"
)

type EmailService struct {
	client    *resend.Client
	fromEmail string
	isDev     bool
	clientURL string
	appName   string
	markdown  *markdown.Renderer
}

// NewEmailService returns a Resend-backed sender. In development, or
// without an API key, mails are only logged.
func NewEmailService(apiKey, fromEmail, clientURL, appName string, isDev bool) *EmailService {
	var client *resend.Client
	if apiKey != "" && !isDev {
		client = resend.NewClient(apiKey)
	}

	return &EmailService{
		client:    client,
		fromEmail: fromEmail,
		isDev:     isDev,
		clientURL: clientURL,
		appName:   appName,
		markdown:  markdown.NewRenderer(),
	}
}

func (s *EmailService) SendCircleInvitation(ctx context.Context, email InvitationEmail) error {
	inviteURL := fmt.Sprintf("%s/invitations/%s", s.clientURL, email.Token)
	subject, body := circleInvitationEmailTemplate(email.InviterName, email.CircleName, email.CircleDescription, inviteURL, s.appName)

	about, err := s.markdown.Render(email.CircleDescription)
	if err != nil {
		slog.Warn("failed to render circle description", "error", err)
		about = ""
	}
	html, err := circleInvitationEmailHTML(email.InviterName, email.CircleName, about, inviteURL, s.appName)
	if err != nil {
		return fmt.Errorf("failed to render invitation email: %w", err)
	}

	return s.send(ctx, "circle_invitation", email.To, subject, body, html, inviteURL)
}

func (s *EmailService) SendWelcomeEmail(ctx context.Context, to, name string) error {
	subject, body := welcomeEmailTemplate(name, s.clientURL, s.appName)

	return s.send(ctx, "welcome", to, subject, body, "", s.clientURL)
}

// send delivers a plain text mail with an optional HTML alternative.
func (s *EmailService) send(ctx context.Context, kind, to, subject, body, html, link string) error {
	if s.isDev {
		slog.Info("email sent (dev mode)", "type", kind, "to", to, "subject", subject, "url", link)
		return nil
	}

	if s.client == nil {
		return fmt.Errorf("email service not configured (missing RESEND_API_KEY)")
	}

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{to},
		Subject: subject,
		Text:    body,
		Html:    html,
	}

	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send %s email: %w", kind, err)
	}

	slog.Info("email sent", "type", kind, "to", to)
	return nil
}
