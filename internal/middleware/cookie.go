// cookie.go wraps the signed session cookie. The cookie value is the opaque
// session token run through an HMAC-signed securecookie encoding, so a client
// cannot fabricate or tamper with token values; the server still treats the
// decoded token as untrusted until the session store confirms it.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/securecookie"
	"github.com/portal-boost/portal/internal/config"
)

// SessionCookie encodes, decodes, and manages the portal session cookie.
type SessionCookie struct {
	codec  *securecookie.SecureCookie
	name   string
	secure bool
	maxAge int
}

// NewSessionCookie builds the cookie codec from the auth configuration. The
// session secret keys the HMAC; no encryption key is used because the token
// is already an opaque random value with nothing to hide.
func NewSessionCookie(cfg *config.AuthConfig) *SessionCookie {
	codec := securecookie.New([]byte(cfg.SessionSecret), nil)
	codec.MaxAge(int(cfg.SessionTTL.Seconds()))
	return &SessionCookie{
		codec:  codec,
		name:   cfg.SessionCookieName,
		secure: cfg.CookieSecure,
		maxAge: int(cfg.SessionTTL.Seconds()),
	}
}

// Read extracts and verifies the session token from the request cookie.
func (sc *SessionCookie) Read(c *gin.Context) (string, error) {
	raw, err := c.Cookie(sc.name)
	if err != nil {
		return "", err
	}
	var token string
	if err := sc.codec.Decode(sc.name, raw, &token); err != nil {
		return "", err
	}
	return token, nil
}

// Set writes the signed session cookie. HttpOnly and SameSite=Lax always;
// Secure per configuration so local development over plain HTTP works.
func (sc *SessionCookie) Set(c *gin.Context, token string) error {
	encoded, err := sc.codec.Encode(sc.name, token)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sc.name, encoded, sc.maxAge, "/", "", sc.secure, true)
	return nil
}

// Clear expires the session cookie.
func (sc *SessionCookie) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sc.name, "", -1, "/", "", sc.secure, true)
}
