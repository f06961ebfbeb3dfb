package auth

import (
	"errors"
	"net/http"

	"clientboard-backend/internal/web"
)

func RegisterHandler(svc *Service, secret []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := web.ReadFields(r)
		if err != nil {
			web.WriteError(w, r, err)
			return
		}

		confirm := f.Get("password_confirm")
		if confirm == "" {
			// API clients usually send the password once
			confirm = f.Get("password")
		}

		u, err := svc.Register(r.Context(), RegisterInput{
			Username:        f.Get("username"),
			Email:           f.Get("email"),
			Password:        f.Get("password"),
			PasswordConfirm: confirm,
		})
		if err != nil {
			web.WriteError(w, r, err)
			return
		}

		token, err := GenerateToken(secret, u.ID, SessionTTL)
		if err != nil {
			web.WriteError(w, r, err)
			return
		}

		web.WriteJSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"user_id": u.ID,
			"token":   token,
		})
	}
}

func LoginHandler(svc *Service, secret []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := web.ReadFields(r)
		if err != nil {
			web.WriteError(w, r, err)
			return
		}

		identifier := f.Get("email")
		if identifier == "" {
			identifier = f.Get("username")
		}

		u, err := svc.Login(r.Context(), identifier, f.Get("password"))
		if errors.Is(err, ErrInvalidCredentials) {
			web.WriteJSON(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"error":   "invalid login",
			})
			return
		}
		if err != nil {
			web.WriteError(w, r, err)
			return
		}

		ttl := SessionTTL
		if f.Get("remember_me") != "" {
			ttl = RememberTTL
		}
		token, err := GenerateToken(secret, u.ID, ttl)
		if err != nil {
			web.WriteError(w, r, err)
			return
		}

		web.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"user_id": u.ID,
			"token":   token,
		})
	}
}

func MeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		u, err := svc.User(r.Context(), uid)
		if err != nil {
			web.WriteError(w, r, err)
			return
		}

		web.WriteJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"user_id":  u.ID,
			"username": u.Username,
			"email":    u.Email,
		})
	}
}
