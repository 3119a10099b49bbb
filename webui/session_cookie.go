package webui

import (
	"net/http"
	"time"

	"storybook/session"
)

// SessionCookieName is the cookie that binds a browser to its story.
const SessionCookieName = "storybook_session"

// sessionBinder resolves the caller's session from the cookie, creating
// one when the cookie is missing, malformed or expired.
type sessionBinder struct {
	store  *session.Store
	secure bool
}

func (b sessionBinder) bind(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	var id string
	if c, err := r.Cookie(SessionCookieName); err == nil {
		id = c.Value
	}

	sess, created, err := b.store.GetOrCreate(id)
	if err != nil {
		return nil, err
	}
	if created || id != sess.ID() {
		http.SetCookie(w, b.cookie(sess.ID(), b.store.TTL()))
	}
	return sess, nil
}

func (b sessionBinder) cookie(id string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   b.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
