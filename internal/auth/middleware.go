package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"clientboard-backend/internal/analytics"
	"clientboard-backend/internal/apperr"
	"clientboard-backend/internal/repository"
	"clientboard-backend/internal/web"
)

const SessionCookie = "session"

type ctxKey string

const (
	userIDKey   ctxKey = "user_id"
	usernameKey ctxKey = "username"
)

type Middleware struct {
	secret []byte
	users  *repository.UserRepository
}

// New builds the auth middleware. When users is non-nil every token is also
// checked against an existing account.
func New(secret []byte, users *repository.UserRepository) Middleware {
	return Middleware{secret: secret, users: users}
}

// Identify attaches the caller's user id to the context when the request
// carries a valid bearer token or session cookie. It never rejects.
func (m Middleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := analytics.WithEnvelope(r.Context(), analytics.FromRequest(r))

		if tokenString := tokenFromRequest(r); tokenString != "" {
			if userID, err := ParseToken(m.secret, tokenString); err == nil {
				username := ""
				ok := true
				if m.users != nil {
					u, err := m.users.GetByID(ctx, userID)
					if err != nil {
						ok = false
						if !apperr.IsNotFound(err) {
							web.WriteError(w, r, err)
							return
						}
					}
					username = u.Username
				}
				if ok {
					ctx = WithUser(ctx, userID, username)
				}
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Wrap rejects requests without an identified user. Browser requests are
// sent to the login form; API callers get a 401 JSON body. A form post is
// not replayed after login, so its next page is the dashboard.
func (m Middleware) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); ok {
			next(w, r)
			return
		}

		if !wantsJSON(r) {
			target := "/login/"
			if r.Method == http.MethodGet {
				target += "?next=" + url.QueryEscape(r.URL.RequestURI())
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		web.WriteJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false,
			"error":   "authentication required",
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func wantsJSON(r *http.Request) bool {
	return r.Header.Get("Authorization") != "" ||
		strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") ||
		strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.HasPrefix(r.URL.Path, "/auth/")
}

func WithUser(ctx context.Context, userID int64, username string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, usernameKey, username)
}

// UserIDFromContext is the only view of the caller the rest of the
// application gets.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	uid, ok := ctx.Value(userIDKey).(int64)
	return uid, ok && uid > 0
}

func UsernameFromContext(ctx context.Context) string {
	v, _ := ctx.Value(usernameKey).(string)
	return v
}
