package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrEmailDisabled is returned by Send when the deployment has no SMTP
// configuration.
var ErrEmailDisabled = errors.New("email sending disabled")

// EmailRequest is one outbound notification email. Text is the plaintext
// alternative for clients that do not render HTML.
type EmailRequest struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// EmailService sends notification emails. A deployment without SMTP
// configuration reports Enabled() == false and the dispatcher skips
// composing emails entirely.
type EmailService interface {
	Enabled() bool
	Send(ctx context.Context, req *EmailRequest) error
}

// EmailConfig tunes the SMTP email service. The service is enabled only when
// every connection field is set.
type EmailConfig struct {
	Host          string
	Port          string
	Username      string
	Password      string
	From          string
	RatePerSecond int
}

type smtpEmailService struct {
	cfg     EmailConfig
	enabled bool
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewSMTPEmailService creates the production email service.
func NewSMTPEmailService(cfg EmailConfig, log zerolog.Logger) EmailService {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 10
	}
	enabled := cfg.Host != "" && cfg.Port != "" && cfg.Username != "" && cfg.Password != "" && cfg.From != ""
	if !enabled {
		log.Warn().Msg("email service disabled: missing SMTP configuration")
	}
	return &smtpEmailService{
		cfg:     cfg,
		enabled: enabled,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RatePerSecond),
		log:     log,
	}
}

func (s *smtpEmailService) Enabled() bool {
	return s.enabled
}

func (s *smtpEmailService) Send(ctx context.Context, req *EmailRequest) error {
	if !s.enabled {
		return ErrEmailDisabled
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{req.To}, buildMessage(s.cfg.From, req)); err != nil {
		return fmt.Errorf("send email to %s: %w", req.To, err)
	}
	s.log.Debug().Str("to", req.To).Str("subject", req.Subject).Msg("email sent")
	return nil
}

const altBoundary = "relay-alt-boundary"

// buildMessage assembles the raw RFC 822 message: multipart/alternative when
// both bodies are present, a single HTML part otherwise.
func buildMessage(from string, req *EmailRequest) []byte {
	var msg strings.Builder
	fmt.Fprintf(&msg, "To: %s\r\n", req.To)
	fmt.Fprintf(&msg, "From: Relay <%s>\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", req.Subject)
	msg.WriteString("MIME-Version: 1.0\r\n")

	if req.Text == "" {
		msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
		msg.WriteString(req.HTML)
		return []byte(msg.String())
	}

	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", altBoundary)
	fmt.Fprintf(&msg, "--%s\r\n", altBoundary)
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(req.Text)
	fmt.Fprintf(&msg, "\r\n--%s\r\n", altBoundary)
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(req.HTML)
	fmt.Fprintf(&msg, "\r\n--%s--\r\n", altBoundary)
	return []byte(msg.String())
}

var messageEmailTemplate = template.Must(template.New("message").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, Helvetica, Arial, sans-serif; color: #2e3338; margin: 0; padding: 24px;">
  <div style="max-width: 520px; margin: 0 auto;">
    <h2 style="font-size: 17px; margin: 0 0 12px;">{{.Title}}</h2>
    <p style="font-size: 15px; line-height: 1.5; margin: 0 0 20px;">{{.Body}}</p>
    <p style="margin: 0 0 28px;">
      <a href="{{.Link}}" style="background: #5865f2; color: #ffffff; text-decoration: none; padding: 10px 18px; border-radius: 4px; font-size: 14px;">Open in Relay</a>
    </p>
    <p style="font-size: 12px; color: #8a9099; margin: 0;">
      You received this because email notifications are enabled in your Relay settings.
    </p>
  </div>
</body>
</html>`))

type messageEmailData struct {
	Title string
	Body  string
	Link  string
}

// RenderMessageEmail renders the HTML body for a new-message notification.
func RenderMessageEmail(title, body, link string) (string, error) {
	var buf bytes.Buffer
	if err := messageEmailTemplate.Execute(&buf, messageEmailData{Title: title, Body: body, Link: link}); err != nil {
		return "", fmt.Errorf("render message email: %w", err)
	}
	return buf.String(), nil
}
