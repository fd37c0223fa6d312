package scraper

import (
	"strings"

	"github.com/jgoulah/waterdelta/internal/apperr"
)

// authCookieName is the portal's long-lived login cookie
const authCookieName = "auth_session"

// Credentials are the account details used to log in to the portal
type Credentials struct {
	Email     string
	Password  string
	AuthToken string // value of the long-lived auth_session cookie
}

// Validate fails with an *apperr.ConfigError naming the first empty field
func (c Credentials) Validate() error {
	switch {
	case strings.TrimSpace(c.Email) == "":
		return &apperr.ConfigError{Field: "email", Message: "is required"}
	case strings.TrimSpace(c.Password) == "":
		return &apperr.ConfigError{Field: "password", Message: "is required"}
	case strings.TrimSpace(c.AuthToken) == "":
		return &apperr.ConfigError{Field: "auth_token", Message: "is required"}
	}
	return nil
}

// SessionCookie is the authentication state sent with every request: the
// long-lived auth token plus the short-lived session id the server hands out.
// It is a value; Apply returns an updated copy instead of mutating.
type SessionCookie struct {
	AuthToken string
	Name      string // session cookie name, e.g. PHPSESSID
	ID        string
}

// NewSessionCookie returns a cookie with no session id yet
func NewSessionCookie(authToken, name string) SessionCookie {
	return SessionCookie{AuthToken: authToken, Name: name}
}

// SessionID returns the latest session identifier, empty if none was issued
func (c SessionCookie) SessionID() string {
	return c.ID
}

// Header renders the Cookie request header
func (c SessionCookie) Header() string {
	if c.ID == "" {
		return authCookieName + "=" + c.AuthToken
	}
	return authCookieName + "=" + c.AuthToken + "; " + c.Name + "=" + c.ID
}

// Apply looks for a new session id among Set-Cookie header values. It returns
// the cookie carrying that id and true, or the cookie unchanged and false.
func (c SessionCookie) Apply(setCookies []string) (SessionCookie, bool) {
	id := sessionIDFrom(setCookies, c.Name)
	if id == "" {
		return c, false
	}
	c.ID = id
	return c, true
}

// sessionIDFrom returns the value of the first Set-Cookie entry whose name
// starts with prefix, e.g. "PHPSESSID=abc; path=/" yields "abc".
func sessionIDFrom(setCookies []string, prefix string) string {
	for _, raw := range setCookies {
		raw = strings.TrimSpace(raw)
		if !strings.HasPrefix(raw, prefix) {
			continue
		}
		pair, _, _ := strings.Cut(raw, ";")
		_, value, _ := strings.Cut(pair, "=")
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}
