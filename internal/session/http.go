package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	CookieName = "reelcraft_session"
	HeaderName = "X-Session-ID"
)

// ID returns the caller's session id from the header or the cookie.
func ID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(HeaderName)); id != "" {
		return id
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// Ensure returns the caller's session id, issuing a new cookie when the
// request carries none.
func Ensure(w http.ResponseWriter, r *http.Request, ttl time.Duration) string {
	if id := ID(r); id != "" {
		return id
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set(HeaderName, id)
	return id
}
