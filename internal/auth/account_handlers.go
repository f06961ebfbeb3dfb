package auth

import (
	"net/http"

	"clientboard-backend/internal/analytics"
	"clientboard-backend/internal/web"
)

func LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Bearer tokens are stateless; the client drops its copy. Browser
		// sessions lose the cookie here.
		clearSessionCookie(w, r)
		web.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
		})
	}
}

// DeleteAccountHandler removes the caller and everything they own.
func DeleteAccountHandler(svc *Service, events *analytics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := svc.DeleteAccount(r.Context(), uid); err != nil {
			web.WriteError(w, r, err)
			return
		}
		// recorded after the purge so the event outlives the account
		events.Record(r.Context(), uid, analytics.EventAccountDeleted, nil)

		clearSessionCookie(w, r)
		web.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
		})
	}
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, token string, remember bool) {
	c := &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		c.MaxAge = int(RememberTTL.Seconds())
	}
	http.SetCookie(w, c)
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
