package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/portal-boost/portal/internal/db/models"
)

var sessionJoinCols = []string{
	"id", "user_id", "expires_at", "created_at",
	"p_id", "email", "password", "full_name", "role", "must_change_password",
	"reset_token", "reset_token_expires", "is_active", "last_access", "p_created_at", "p_updated_at",
}

func sampleSessionRow(token string, expiresAt time.Time) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(sessionJoinCols).
		AddRow(token, testUserID.String(), expiresAt, now,
			testUserID.String(), "alice@example.com", "$2a$12$hash", "Alice", "user", false,
			nil, nil, true, nil, now, now)
}

func newSessionRepo(t *testing.T) (*SessionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSessionRepository(db), mock
}

// ---------------------------------------------------------------------------
// CreateSession
// ---------------------------------------------------------------------------

func TestCreateSession_Success(t *testing.T) {
	repo, mock := newSessionRepo(t)
	mock.ExpectExec("INSERT INTO sessions").
		WillReturnResult(sqlmock.NewResult(1, 1))

	session := &models.Session{
		ID:        "aabbccdd",
		UserID:    testUserID,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	if err := repo.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestCreateSession_DBError(t *testing.T) {
	repo, mock := newSessionRepo(t)
	mock.ExpectExec("INSERT INTO sessions").
		WillReturnError(errDB)

	session := &models.Session{ID: "aabbccdd", UserID: testUserID}
	if err := repo.CreateSession(context.Background(), session); err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// GetSessionWithUser
// ---------------------------------------------------------------------------

func TestGetSessionWithUser_Found(t *testing.T) {
	repo, mock := newSessionRepo(t)
	mock.ExpectQuery("SELECT.*FROM sessions s.*JOIN profiles p").
		WithArgs("aabbccdd").
		WillReturnRows(sampleSessionRow("aabbccdd", time.Now().Add(time.Hour)))

	sw, err := repo.GetSessionWithUser(context.Background(), "aabbccdd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sw == nil {
		t.Fatal("expected session, got nil")
	}
	if sw.Session.ID != "aabbccdd" {
		t.Errorf("Session.ID = %s, want aabbccdd", sw.Session.ID)
	}
	if sw.User.Email != "alice@example.com" {
		t.Errorf("User.Email = %s, want alice@example.com", sw.User.Email)
	}
}

func TestGetSessionWithUser_NotFound(t *testing.T) {
	repo, mock := newSessionRepo(t)
	mock.ExpectQuery("SELECT.*FROM sessions s.*JOIN profiles p").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(sessionJoinCols))

	sw, err := repo.GetSessionWithUser(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sw != nil {
		t.Errorf("expected nil for unknown token, got %v", sw)
	}
}

func TestGetSessionWithUser_ExpiredRowStillReturned(t *testing.T) {
	repo, mock := newSessionRepo(t)
	past := time.Now().Add(-time.Hour)
	mock.ExpectQuery("SELECT.*FROM sessions s.*JOIN profiles p").
		WithArgs("stale").
		WillReturnRows(sampleSessionRow("stale", past))

	sw, err := repo.GetSessionWithUser(context.Background(), "stale")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sw == nil {
		t.Fatal("expected row back; expiry is the caller's decision")
	}
	if !sw.Session.Expired(time.Now()) {
		t.Error("expected Expired() to report true")
	}
}

func TestGetSessionWithUser_DBError(t *testing.T) {
	repo, mock := newSessionRepo(t)
	mock.ExpectQuery("SELECT.*FROM sessions s.*JOIN profiles p").
		WillReturnError(errDB)

	_, err := repo.GetSessionWithUser(context.Background(), "aabbccdd")
	if err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// DeleteSession / DeleteSessionsForUser
// ---------------------------------------------------------------------------

func TestDeleteSession_Success(t *testing.T) {
	repo, mock := newSessionRepo(t)
	mock.ExpectExec("DELETE FROM sessions WHERE id").
		WithArgs("aabbccdd").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.DeleteSession(context.Background(), "aabbccdd"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteSession_UnknownTokenIsNoop(t *testing.T) {
	repo, mock := newSessionRepo(t)
	mock.ExpectExec("DELETE FROM sessions WHERE id").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.DeleteSession(context.Background(), "missing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteSessionsForUser_Success(t *testing.T) {
	repo, mock := newSessionRepo(t)
	mock.ExpectExec("DELETE FROM sessions WHERE user_id").
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := repo.DeleteSessionsForUser(context.Background(), testUserID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// DeleteExpired / CountActive
// ---------------------------------------------------------------------------

func TestDeleteExpired_ReturnsCount(t *testing.T) {
	repo, mock := newSessionRepo(t)
	mock.ExpectExec("DELETE FROM sessions WHERE expires_at").
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.DeleteExpired(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Errorf("deleted = %d, want 7", n)
	}
}

func TestDeleteExpired_DBError(t *testing.T) {
	repo, mock := newSessionRepo(t)
	mock.ExpectExec("DELETE FROM sessions WHERE expires_at").
		WillReturnError(errDB)

	_, err := repo.DeleteExpired(context.Background(), time.Now())
	if err == nil {
		t.Error("expected error, got nil")
	}
}

func TestCountActive_Success(t *testing.T) {
	repo, mock := newSessionRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM sessions WHERE expires_at").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := repo.CountActive(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Errorf("active = %d, want 4", n)
	}
}
