package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dukerupert/moodtracker/internal/auth"
	"github.com/dukerupert/moodtracker/internal/model"
)

const SessionCookieName = "moodtracker_session"

type SessionLookup interface {
	GetByToken(ctx context.Context, token string) (*model.Session, error)
}

// RequireAuth validates the session cookie and populates AuthContext.
// Browser routes are redirected to /login; API and websocket routes get 401.
func RequireAuth(sessions SessionLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromRequest(r, sessions)
			if sess == nil {
				unauthorized(w, r)
				return
			}

			ac := auth.AuthContext{
				UserID:    sess.UserID,
				SessionID: sess.ID,
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// SessionFromRequest returns the live session named by the request's cookie,
// or nil.
func SessionFromRequest(r *http.Request, sessions SessionLookup) *model.Session {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	sess, err := sessions.GetByToken(r.Context(), cookie.Value)
	if err != nil {
		return nil
	}
	return sess
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/ws" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"authentication required"}`))
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
