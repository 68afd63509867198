package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/parisxmas/fsdash/internal/session"
	"go.uber.org/zap"
)

// CookieName holds the signed session token.
const CookieName = "fsdash_session"

// SetCookie issues a signed cookie for sessionID.
func SetCookie(w http.ResponseWriter, secret, sessionID string, ttl time.Duration, secure bool) error {
	token, err := GenerateToken(secret, sessionID, ttl)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionID returns the session id carried by a valid cookie, or "".
func SessionID(r *http.Request, secret string) string {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return ""
	}
	claims, err := ValidateToken(secret, c.Value)
	if err != nil {
		return ""
	}
	return claims.SessionID
}

// Middleware admits only requests with an authenticated session and puts the
// session into the request context. Page requests are redirected to /login,
// /api requests get a 401.
func Middleware(secret string, mgr *session.Manager, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := mgr.Load(r.Context(), SessionID(r, secret))
			if err != nil {
				if !errors.Is(err, session.ErrNoSession) {
					log.Warn("session load failed", zap.Error(err))
				}
				if strings.HasPrefix(r.URL.Path, "/api/") {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnauthorized)
					w.Write([]byte(`{"error":"unauthorized"}`))
					return
				}
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), s)))
		})
	}
}
