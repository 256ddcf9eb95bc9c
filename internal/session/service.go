// Package session implements the portal's authentication core: password
// login, opaque server-side session tokens, forced password changes, and the
// email-based reset flow. Handlers and middleware deal in raw token strings;
// cookie signing and transport are the HTTP layer's concern.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/portal-boost/portal/internal/auth"
	"github.com/portal-boost/portal/internal/config"
	"github.com/portal-boost/portal/internal/db/models"
	"github.com/portal-boost/portal/internal/db/repositories"
	"github.com/portal-boost/portal/internal/mailer"
	"github.com/portal-boost/portal/internal/safego"
	"github.com/portal-boost/portal/internal/telemetry"
)

var (
	// ErrInvalidCredentials is returned for every login failure: unknown
	// email, disabled account, no password set, or wrong password. Callers
	// must not distinguish these to the client.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionInvalid is returned when a token is unknown, expired, or
	// belongs to a deactivated account.
	ErrSessionInvalid = errors.New("session invalid")

	// ErrResetTokenInvalid is returned when a reset token is unknown,
	// already used, or expired. Callers must not distinguish these.
	ErrResetTokenInvalid = errors.New("reset token invalid")

	// ErrEmailTaken is returned when creating a user with an email that
	// already exists (compared case-insensitively).
	ErrEmailTaken = errors.New("email already in use")

	// ErrUserNotFound is returned by user-targeted operations when the
	// profile does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// Service coordinates profiles, sessions, and outbound account email.
type Service struct {
	users    *repositories.UserRepository
	sessions *repositories.SessionRepository
	mail     mailer.Mailer
	cfg      *config.AuthConfig

	// publicURL is the externally visible base URL used in reset links
	// and invitation emails.
	publicURL string
}

// NewService creates a session Service.
func NewService(
	users *repositories.UserRepository,
	sessions *repositories.SessionRepository,
	mail mailer.Mailer,
	cfg *config.AuthConfig,
	publicURL string,
) *Service {
	return &Service{
		users:     users,
		sessions:  sessions,
		mail:      mail,
		cfg:       cfg,
		publicURL: publicURL,
	}
}

// Login verifies an email/password pair and mints a new session. The email is
// matched case-insensitively. Every failure mode collapses to
// ErrInvalidCredentials; the caller learns nothing about which check failed.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}
	if user == nil || !user.IsActive || !user.Password.Valid {
		telemetry.LoginAttemptsTotal.WithLabelValues("failure").Inc()
		return nil, "", ErrInvalidCredentials
	}

	if err := auth.VerifyPassword(user.Password.String, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			telemetry.LoginAttemptsTotal.WithLabelValues("failure").Inc()
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("verify password: %w", err)
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		return nil, "", fmt.Errorf("generate session token: %w", err)
	}

	sess := &models.Session{
		ID:        token,
		UserID:    user.ID,
		ExpiresAt: time.Now().UTC().Add(s.cfg.SessionTTL),
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return nil, "", fmt.Errorf("create session: %w", err)
	}

	telemetry.LoginAttemptsTotal.WithLabelValues("success").Inc()

	// Record the login timestamp off the request path; a failure here must
	// not fail the login.
	userID := user.ID
	safego.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.users.TouchLastAccess(ctx, userID, time.Now().UTC()); err != nil {
			slog.Warn("failed to record last access", "user_id", userID, "error", err)
		}
	})

	return user, token, nil
}

// Validate resolves a session token to its user. Expired sessions are deleted
// on sight; sessions of deactivated accounts are treated as invalid too.
func (s *Service) Validate(ctx context.Context, token string) (*models.SessionWithUser, error) {
	if token == "" {
		return nil, ErrSessionInvalid
	}

	sw, err := s.sessions.GetSessionWithUser(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if sw == nil {
		return nil, ErrSessionInvalid
	}

	if sw.Session.Expired(time.Now().UTC()) {
		if err := s.sessions.DeleteSession(ctx, token); err != nil {
			slog.Warn("failed to delete expired session", "error", err)
		}
		return nil, ErrSessionInvalid
	}

	if !sw.User.IsActive {
		return nil, ErrSessionInvalid
	}

	return sw, nil
}

// Logout deletes the session. Unknown tokens are a no-op: logout always
// succeeds.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.DeleteSession(ctx, token)
}

// ChangePassword verifies the current password and stores a new one, clearing
// the forced-change flag. Used both for voluntary changes and for the
// first-login change of a temporary password.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user == nil || !user.Password.Valid {
		return ErrInvalidCredentials
	}

	if err := auth.VerifyPassword(user.Password.String, currentPassword); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("verify password: %w", err)
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	ok, err := s.users.SetPassword(ctx, userID, hash)
	if err != nil {
		return fmt.Errorf("store password: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	return nil
}

// RequestPasswordReset issues a reset token and emails the reset link. The
// outcome is identical whether or not the email maps to an account: callers
// always report success, so the endpoint cannot be used to probe for
// registered addresses. Email delivery happens off the request path; a
// delivery failure is logged and counted but never surfaced.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil
	}

	token, err := auth.GenerateResetToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	expires := time.Now().UTC().Add(s.cfg.ResetTokenTTL)
	if err := s.users.SetResetToken(ctx, user.ID, token, expires); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	resetURL := s.publicURL + "/reset-password?token=" + url.QueryEscape(token)
	toEmail, fullName := user.Email, user.FullName
	validFor := s.cfg.ResetTokenTTL
	safego.Go(func() {
		if err := s.mail.SendPasswordReset(toEmail, fullName, resetURL, validFor); err != nil {
			telemetry.ResetEmailFailuresTotal.Inc()
			slog.Error("failed to send password reset email", "error", err)
		}
	})

	return nil
}

// ConfirmPasswordReset redeems a reset token and stores the new password. The
// token is single-use: redemption clears it in the same statement that stores
// the hash, so a replay can never match again.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	ok, err := s.users.RedeemResetToken(ctx, token, hash, time.Now())
	if err != nil {
		return fmt.Errorf("redeem reset token: %w", err)
	}
	if !ok {
		return ErrResetTokenInvalid
	}
	return nil
}

// CreateUser creates a profile with a generated temporary password and sends
// the invitation email. The temporary password is returned so an admin can
// relay it out-of-band when email is not configured; it is never stored in
// plaintext. The new account starts with must_change_password set.
func (s *Service) CreateUser(ctx context.Context, input *models.CreateUserInput) (*models.User, string, error) {
	existing, err := s.users.GetUserByEmail(ctx, input.Email)
	if err != nil {
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, "", ErrEmailTaken
	}

	tempPassword, err := auth.GenerateTempPassword()
	if err != nil {
		return nil, "", fmt.Errorf("generate temporary password: %w", err)
	}
	hash, err := auth.HashPassword(tempPassword)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	role := input.Role
	if role == "" {
		role = models.RoleUser
	}

	user := &models.User{
		Email:              input.Email,
		FullName:           input.FullName,
		Role:               role,
		MustChangePassword: true,
		IsActive:           true,
	}
	user.Password.String = hash
	user.Password.Valid = true

	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	toEmail, fullName := user.Email, user.FullName
	loginURL := s.publicURL
	safego.Go(func() {
		if err := s.mail.SendInvitation(toEmail, fullName, tempPassword, loginURL); err != nil {
			slog.Error("failed to send invitation email", "email", toEmail, "error", err)
		}
	})

	return user, tempPassword, nil
}

// ResetUserPassword generates a fresh temporary password for an existing
// account and forces a change on next login. Used by admins to recover locked
// accounts. All existing sessions for the user are revoked.
func (s *Service) ResetUserPassword(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return "", ErrUserNotFound
	}

	tempPassword, err := auth.GenerateTempPassword()
	if err != nil {
		return "", fmt.Errorf("generate temporary password: %w", err)
	}
	hash, err := auth.HashPassword(tempPassword)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	ok, err := s.users.SetTempPassword(ctx, userID, hash)
	if err != nil {
		return "", fmt.Errorf("store temporary password: %w", err)
	}
	if !ok {
		return "", ErrUserNotFound
	}

	if err := s.sessions.DeleteSessionsForUser(ctx, userID); err != nil {
		slog.Warn("failed to revoke sessions after password reset", "user_id", userID, "error", err)
	}

	toEmail, fullName := user.Email, user.FullName
	loginURL := s.publicURL
	safego.Go(func() {
		if err := s.mail.SendInvitation(toEmail, fullName, tempPassword, loginURL); err != nil {
			slog.Error("failed to send password email", "email", toEmail, "error", err)
		}
	})

	return tempPassword, nil
}

// DeactivateUser disables an account and revokes all of its sessions so
// access ends immediately rather than at next expiry.
func (s *Service) DeactivateUser(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	user.IsActive = false
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	return s.sessions.DeleteSessionsForUser(ctx, userID)
}
