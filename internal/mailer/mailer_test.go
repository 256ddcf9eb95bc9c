package mailer

import (
	"strings"
	"testing"
	"time"

	"github.com/portal-boost/portal/internal/config"
)

// ---------------------------------------------------------------------------
// New — backend selection
// ---------------------------------------------------------------------------

func TestNew_DisabledReturnsNop(t *testing.T) {
	cfg := &config.NotificationsConfig{Enabled: false, SMTP: config.SMTPConfig{Host: "smtp.example.com"}}
	m := New(cfg)
	if _, ok := m.(nopMailer); !ok {
		t.Errorf("expected nopMailer when disabled, got %T", m)
	}
}

func TestNew_NoHostReturnsNop(t *testing.T) {
	cfg := &config.NotificationsConfig{Enabled: true}
	m := New(cfg)
	if _, ok := m.(nopMailer); !ok {
		t.Errorf("expected nopMailer when no SMTP host, got %T", m)
	}
}

func TestNew_ConfiguredReturnsSMTP(t *testing.T) {
	cfg := &config.NotificationsConfig{Enabled: true, SMTP: config.SMTPConfig{Host: "smtp.example.com", Port: 587}}
	m := New(cfg)
	if _, ok := m.(*SMTPMailer); !ok {
		t.Errorf("expected *SMTPMailer, got %T", m)
	}
}

func TestNopMailer_SendsAreNoops(t *testing.T) {
	m := New(&config.NotificationsConfig{})
	if err := m.SendInvitation("a@example.com", "A", "secret", "https://portal"); err != nil {
		t.Errorf("SendInvitation: %v", err)
	}
	if err := m.SendPasswordReset("a@example.com", "A", "https://portal/reset?t=x", 15*time.Minute); err != nil {
		t.Errorf("SendPasswordReset: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Message composition
// ---------------------------------------------------------------------------

func TestInvitationBody(t *testing.T) {
	body := invitationBody("Alice", "tmp-pass-123", "https://portal.example.com")
	for _, want := range []string{"Hello Alice,", "tmp-pass-123", "https://portal.example.com", "temporary password"} {
		if !strings.Contains(body, want) {
			t.Errorf("invitation body missing %q", want)
		}
	}
	if !strings.Contains(body, "\r\n") {
		t.Error("expected CRLF line endings")
	}
}

func TestPasswordResetBody(t *testing.T) {
	body := passwordResetBody("Bob", "https://portal.example.com/reset-password?token=abc", 15*time.Minute)
	for _, want := range []string{"Hello Bob,", "https://portal.example.com/reset-password?token=abc", "15 minute(s)"} {
		if !strings.Contains(body, want) {
			t.Errorf("reset body missing %q", want)
		}
	}
	if strings.Contains(body, "password is changed") {
		t.Error("unexpected phrasing")
	}
}
