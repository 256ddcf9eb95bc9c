// Package mailer delivers the portal's outbound account emails: the
// invitation sent when an admin creates a user (carrying the one-time
// temporary password) and the password-reset message (carrying the reset
// link). Delivery is plain-text SMTP. When notifications are disabled or no
// SMTP host is configured, New returns a no-op implementation so callers can
// always send without checking deployment state.
package mailer

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/portal-boost/portal/internal/config"
)

// Mailer sends account lifecycle emails.
type Mailer interface {
	// SendInvitation emails a newly created user their temporary password.
	SendInvitation(toEmail, fullName, tempPassword, loginURL string) error
	// SendPasswordReset emails a reset link. validFor is shown to the
	// recipient so they know how long the link works.
	SendPasswordReset(toEmail, fullName, resetURL string, validFor time.Duration) error
}

// New returns an SMTP-backed Mailer, or a no-op one when notifications are
// disabled or the SMTP host is not configured.
func New(cfg *config.NotificationsConfig) Mailer {
	if !cfg.Enabled || cfg.SMTP.Host == "" {
		return nopMailer{}
	}
	return &SMTPMailer{cfg: &cfg.SMTP}
}

type nopMailer struct{}

func (nopMailer) SendInvitation(_, _, _, _ string) error                  { return nil }
func (nopMailer) SendPasswordReset(_, _, _ string, _ time.Duration) error { return nil }

// SMTPMailer sends mail through a configured SMTP relay.
type SMTPMailer struct {
	cfg *config.SMTPConfig
}

// NewSMTPMailer creates an SMTPMailer from explicit SMTP settings.
func NewSMTPMailer(cfg *config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) SendInvitation(toEmail, fullName, tempPassword, loginURL string) error {
	subject := "Your portal account is ready"
	body := invitationBody(fullName, tempPassword, loginURL)
	return m.send(toEmail, subject, body)
}

func (m *SMTPMailer) SendPasswordReset(toEmail, fullName, resetURL string, validFor time.Duration) error {
	subject := "Reset your portal password"
	body := passwordResetBody(fullName, resetURL, validFor)
	return m.send(toEmail, subject, body)
}

func invitationBody(fullName, tempPassword, loginURL string) string {
	return strings.Join([]string{
		fmt.Sprintf("Hello %s,", fullName),
		"",
		"An account has been created for you on the reporting portal.",
		"",
		fmt.Sprintf("Sign in at %s with this temporary password:", loginURL),
		"",
		fmt.Sprintf("    %s", tempPassword),
		"",
		"You will be asked to choose a new password on first sign-in.",
		"",
		"— Reporting Portal",
	}, "\r\n")
}

func passwordResetBody(fullName, resetURL string, validFor time.Duration) string {
	minutes := int(validFor.Minutes())
	return strings.Join([]string{
		fmt.Sprintf("Hello %s,", fullName),
		"",
		"A password reset was requested for your portal account.",
		"",
		"Open the link below to choose a new password:",
		"",
		fmt.Sprintf("    %s", resetURL),
		"",
		fmt.Sprintf("The link is valid for %d minute(s). If you did not request a reset, ignore this email; your password is unchanged.", minutes),
		"",
		"— Reporting Portal",
	}, "\r\n")
}

// send composes the RFC 5322 envelope and delivers via SMTP, upgrading to TLS
// per the configuration.
func (m *SMTPMailer) send(toEmail, subject, body string) error {
	headers := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n",
		m.cfg.From, toEmail, subject,
	)
	msg := []byte(headers + body + "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)

	if m.cfg.UseTLS {
		return sendMailTLS(addr, m.cfg.Host, auth, m.cfg.From, []string{toEmail}, msg)
	}
	return smtp.SendMail(addr, auth, m.cfg.From, []string{toEmail}, msg)
}

// sendMailTLS connects via implicit TLS (port 465 / SMTPS) and sends a message.
// Use this when UseTLS=true and the port is 465; for port 587 STARTTLS,
// smtp.SendMail handles the upgrade automatically — but we call this path for
// both so the config is unambiguous: UseTLS=true always means an encrypted connection.
func sendMailTLS(addr, host string, auth smtp.Auth, from string, to []string, msg []byte) error {
	tlsConfig := &tls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		// Fall back to STARTTLS via the standard smtp.SendMail path (port 587 pattern)
		return smtp.SendMail(addr, auth, from, to, msg)
	}
	defer conn.Close()

	hostname, _, _ := net.SplitHostPort(addr)
	c, err := smtp.NewClient(conn, hostname)
	if err != nil {
		return fmt.Errorf("smtp new client: %w", err)
	}
	defer c.Quit() //nolint:errcheck

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, addr := range to {
		if err := c.Rcpt(addr); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", addr, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	return w.Close()
}
