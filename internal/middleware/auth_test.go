package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/portal-boost/portal/internal/config"
	"github.com/portal-boost/portal/internal/db/repositories"
	"github.com/portal-boost/portal/internal/mailer"
	"github.com/portal-boost/portal/internal/session"
)

func testAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{
		SessionTTL:        24 * time.Hour,
		SessionCookieName: "portal_session",
		SessionSecret:     "0123456789abcdef0123456789abcdef",
		CookieSecure:      false,
		ResetTokenTTL:     15 * time.Minute,
	}
}

func newAuthTestStack(t *testing.T) (*SessionCookie, *session.Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := testAuthConfig()
	svc := session.NewService(
		repositories.NewUserRepository(db),
		repositories.NewSessionRepository(db),
		mailer.New(&config.NotificationsConfig{}),
		cfg,
		"https://portal.example.com",
	)
	return NewSessionCookie(cfg), svc, mock
}

func validSessionRows() *sqlmock.Rows {
	cols := []string{"id", "user_id", "expires_at", "created_at",
		"p_id", "email", "password", "full_name", "role", "must_change_password",
		"reset_token", "reset_token_expires", "is_active", "last_access", "p_created_at", "p_updated_at"}
	now := time.Now()
	return sqlmock.NewRows(cols).
		AddRow("tok123", "11111111-1111-1111-1111-111111111111", now.Add(time.Hour), now,
			"11111111-1111-1111-1111-111111111111", "alice@example.com", "$2a$12$hash", "Alice", "admin", false,
			nil, nil, true, nil, now, now)
}

func authTestRouter(cookie *SessionCookie, svc *session.Service) *gin.Engine {
	router := gin.New()
	router.GET("/me", SessionAuthMiddleware(cookie, svc), func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"email": user.Email})
	})
	return router
}

// ---------------------------------------------------------------------------
// SessionCookie
// ---------------------------------------------------------------------------

func TestSessionCookie_RoundTrip(t *testing.T) {
	cookie := NewSessionCookie(testAuthConfig())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if err := cookie.Set(c, "tok123"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	setCookie := w.Header().Get("Set-Cookie")
	if !strings.Contains(setCookie, "portal_session=") {
		t.Fatalf("Set-Cookie = %q, want portal_session", setCookie)
	}
	if !strings.Contains(setCookie, "HttpOnly") {
		t.Error("cookie must be HttpOnly")
	}
	if strings.Contains(setCookie, "tok123") {
		t.Error("raw token must not appear in the cookie value")
	}

	// Feed the cookie back through a fresh request.
	w2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(w2)
	c2.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c2.Request.Header.Set("Cookie", strings.Split(setCookie, ";")[0])

	token, err := cookie.Read(c2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if token != "tok123" {
		t.Errorf("token = %q, want tok123", token)
	}
}

func TestSessionCookie_RejectsTamperedValue(t *testing.T) {
	cookie := NewSessionCookie(testAuthConfig())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("Cookie", "portal_session=forged-value")

	if _, err := cookie.Read(c); err == nil {
		t.Error("expected error for unsigned cookie value")
	}
}

func TestSessionCookie_DifferentSecretCannotRead(t *testing.T) {
	cookieA := NewSessionCookie(testAuthConfig())

	cfgB := testAuthConfig()
	cfgB.SessionSecret = "ffffffffffffffffffffffffffffffff"
	cookieB := NewSessionCookie(cfgB)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if err := cookieA.Set(c, "tok123"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	setCookie := w.Header().Get("Set-Cookie")

	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	c2.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c2.Request.Header.Set("Cookie", strings.Split(setCookie, ";")[0])

	if _, err := cookieB.Read(c2); err == nil {
		t.Error("cookie signed with one secret must not verify under another")
	}
}

// ---------------------------------------------------------------------------
// SessionAuthMiddleware
// ---------------------------------------------------------------------------

func TestSessionAuth_NoCookie(t *testing.T) {
	cookie, svc, _ := newAuthTestStack(t)
	router := authTestRouter(cookie, svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestSessionAuth_ValidSession(t *testing.T) {
	cookie, svc, mock := newAuthTestStack(t)
	mock.ExpectQuery("SELECT.*FROM sessions s.*JOIN profiles p").
		WithArgs("tok123").
		WillReturnRows(validSessionRows())

	router := authTestRouter(cookie, svc)

	// Mint a signed cookie the way the login handler would.
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if err := cookie.Set(c, "tok123"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	signed := strings.Split(rec.Header().Get("Set-Cookie"), ";")[0]

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Cookie", signed)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "alice@example.com") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestSessionAuth_UnknownToken(t *testing.T) {
	cookie, svc, mock := newAuthTestStack(t)
	cols := []string{"id", "user_id", "expires_at", "created_at",
		"p_id", "email", "password", "full_name", "role", "must_change_password",
		"reset_token", "reset_token_expires", "is_active", "last_access", "p_created_at", "p_updated_at"}
	mock.ExpectQuery("SELECT.*FROM sessions s.*JOIN profiles p").
		WillReturnRows(sqlmock.NewRows(cols))

	router := authTestRouter(cookie, svc)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	_ = cookie.Set(c, "ghost-token")
	signed := strings.Split(rec.Header().Get("Set-Cookie"), ";")[0]

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Cookie", signed)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	// The dead cookie should be cleared.
	if !strings.Contains(w.Header().Get("Set-Cookie"), "portal_session=;") {
		t.Errorf("expected cookie clear, got %q", w.Header().Get("Set-Cookie"))
	}
}

func TestSessionAuth_ForgedCookie(t *testing.T) {
	cookie, svc, _ := newAuthTestStack(t)
	router := authTestRouter(cookie, svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Cookie", "portal_session=forged")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
