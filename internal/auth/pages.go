package auth

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"clientboard-backend/internal/apperr"
	"clientboard-backend/internal/web"
)

// Pages serves the browser login, registration and password reset forms.
// publicURL prefixes the links put in reset mails.
type Pages struct {
	svc       *Service
	rn        *web.Renderer
	secret    []byte
	publicURL string
}

func NewPages(svc *Service, rn *web.Renderer, secret []byte, publicURL string) *Pages {
	return &Pages{svc: svc, rn: rn, secret: secret, publicURL: publicURL}
}

func (p *Pages) Login(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserIDFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if r.Method != http.MethodPost {
		p.rn.Render(w, http.StatusOK, "login", web.Page{
			Title:   "Log in",
			Flashes: web.PopFlash(w, r),
			Form:    map[string]string{"next": r.URL.Query().Get("next")},
		})
		return
	}

	f, err := web.ReadFields(r)
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	form := map[string]string{"email": strings.TrimSpace(f.Get("email")), "next": f.Get("next")}

	u, err := p.svc.Login(r.Context(), f.Get("email"), f.Get("password"))
	if err != nil {
		msg := "Invalid email/username or password."
		var ve *apperr.ValidationError
		switch {
		case errors.As(err, &ve):
			msg = ve.Message
		case !errors.Is(err, ErrInvalidCredentials):
			log.Printf("[ERROR] login rid=%s: %v", web.RequestID(r.Context()), err)
			msg = "Login failed, please try again."
		}
		p.rn.Render(w, http.StatusOK, "login", web.Page{
			Title:   "Log in",
			Flashes: []web.Flash{web.Error(msg)},
			Form:    form,
		})
		return
	}

	remember := f.Get("remember_me") == "on"
	ttl := SessionTTL
	if remember {
		ttl = RememberTTL
	}
	token, err := GenerateToken(p.secret, u.ID, ttl)
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	setSessionCookie(w, r, token, remember)
	web.SetFlash(w, web.Success(fmt.Sprintf("Welcome back, %s!", u.Username)))
	http.Redirect(w, r, safeNext(f.Get("next")), http.StatusSeeOther)
}

func (p *Pages) Register(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserIDFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if r.Method != http.MethodPost {
		p.rn.Render(w, http.StatusOK, "register", web.Page{Title: "Register", Flashes: web.PopFlash(w, r)})
		return
	}

	f, err := web.ReadFields(r)
	if err != nil {
		web.WriteError(w, r, err)
		return
	}

	_, err = p.svc.Register(r.Context(), RegisterInput{
		Username:        f.Get("username"),
		Email:           f.Get("email"),
		Password:        f.Get("password"),
		PasswordConfirm: f.Get("password_confirm"),
	})
	if err != nil {
		p.rn.Render(w, http.StatusOK, "register", web.Page{
			Title:   "Register",
			Flashes: flashesFor(r, err, "Error creating account."),
			Form: map[string]string{
				"username": strings.TrimSpace(f.Get("username")),
				"email":    strings.TrimSpace(f.Get("email")),
			},
		})
		return
	}

	web.SetFlash(w, web.Success("Account created successfully! Please log in."))
	http.Redirect(w, r, "/login/", http.StatusSeeOther)
}

func (p *Pages) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserIDFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if r.Method != http.MethodPost {
		p.rn.Render(w, http.StatusOK, "forgot_password", web.Page{Title: "Reset password", Flashes: web.PopFlash(w, r)})
		return
	}

	f, err := web.ReadFields(r)
	if err != nil {
		web.WriteError(w, r, err)
		return
	}

	if err := p.svc.RequestPasswordReset(r.Context(), f.Get("identifier"), p.publicURL); err != nil {
		p.rn.Render(w, http.StatusOK, "forgot_password", web.Page{
			Title:   "Reset password",
			Flashes: flashesFor(r, err, "Password reset failed."),
			Form:    map[string]string{"identifier": strings.TrimSpace(f.Get("identifier"))},
		})
		return
	}

	web.SetFlash(w, web.Success("If an account matches, a reset link is on its way. Check your email."))
	http.Redirect(w, r, "/login/", http.StatusSeeOther)
}

// ResetPassword shows the new password form for a mailed token and applies it.
func (p *Pages) ResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		p.rn.Render(w, http.StatusOK, "reset_password", web.Page{
			Title:   "Choose a new password",
			Flashes: web.PopFlash(w, r),
			Form:    map[string]string{"token": r.URL.Query().Get("token")},
		})
		return
	}

	f, err := web.ReadFields(r)
	if err != nil {
		web.WriteError(w, r, err)
		return
	}

	if err := p.svc.ResetPassword(r.Context(), f.Get("token"), f.Get("new_password"), f.Get("confirm_password")); err != nil {
		p.rn.Render(w, http.StatusOK, "reset_password", web.Page{
			Title:   "Choose a new password",
			Flashes: flashesFor(r, err, "Password reset failed."),
			Form:    map[string]string{"token": f.Get("token")},
		})
		return
	}

	clearSessionCookie(w, r)
	web.SetFlash(w, web.Success("Password updated successfully. Please log in with your new password."))
	http.Redirect(w, r, "/login/", http.StatusSeeOther)
}

func (p *Pages) Logout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w, r)
	web.SetFlash(w, web.Success("You have been logged out successfully."))
	http.Redirect(w, r, "/login/", http.StatusSeeOther)
}

func flashesFor(r *http.Request, err error, fallback string) []web.Flash {
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		log.Printf("[ERROR] %s rid=%s: %v", r.URL.Path, web.RequestID(r.Context()), err)
		return []web.Flash{web.Error(fallback)}
	}
	problems := ve.Problems
	if len(problems) == 0 {
		problems = []string{ve.Message}
	}
	out := make([]web.Flash, 0, len(problems))
	for _, p := range problems {
		out = append(out, web.Error(p))
	}
	return out
}

// safeNext only follows local absolute paths. Browsers drop tabs and
// newlines and treat backslashes as slashes, so any of those is refused.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/"
	}
	for _, c := range next {
		if c < 0x20 || c == 0x7f || c == '\\' {
			return "/"
		}
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return "/"
	}
	return next
}
