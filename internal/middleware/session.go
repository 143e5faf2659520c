package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// SessionCookieName carries the browser's editing session id.
	SessionCookieName = "pixelmagic_session"

	// SessionCookieMaxAge bounds how long a browser keeps its session id.
	SessionCookieMaxAge = 24 * time.Hour
)

type sessionKey struct{}

// Session makes sure every request carries a session id, minting a cookie
// when the browser has none or sent a malformed one.
func Session(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if cookie, err := r.Cookie(SessionCookieName); err == nil {
				if parsed, err := uuid.Parse(cookie.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   int(SessionCookieMaxAge.Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
					Secure:   secure,
				})
			}
			next.ServeHTTP(w, r.WithContext(ContextWithSessionID(r.Context(), id)))
		})
	}
}

// SessionIDFromContext returns the session id stored by Session.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionKey{}).(string); ok {
		return v
	}
	return ""
}

// ContextWithSessionID stores a session id on ctx.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, id)
}
