package auth

import (
	"errors"
	"net/http"
	"time"
)

// CookieName carries the dashboard login token. It is separate from the
// story session cookie.
const CookieName = "storybook_dashboard"

// ErrNoCookie is returned when the request carries no dashboard cookie.
var ErrNoCookie = errors.New("auth: dashboard cookie not found")

// CookieConfig holds the attributes of the dashboard cookie.
type CookieConfig struct {
	Name     string
	MaxAge   time.Duration
	Secure   bool
	SameSite http.SameSite
	Path     string
}

// DefaultCookieConfig is HTTP-only, SameSite=Strict and scoped to /.
func DefaultCookieConfig(ttl time.Duration) CookieConfig {
	return CookieConfig{
		Name:     CookieName,
		MaxAge:   ttl,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	}
}

func (c CookieConfig) issue(token string) *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     c.Path,
		MaxAge:   int(c.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}

// clear returns a cookie that makes the browser drop the token.
func (c CookieConfig) clear() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     c.Path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}

func (c CookieConfig) parse(r *http.Request) (string, error) {
	cookie, err := r.Cookie(c.Name)
	if err != nil || cookie.Value == "" {
		return "", ErrNoCookie
	}
	return cookie.Value, nil
}
