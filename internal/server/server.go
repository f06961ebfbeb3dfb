// Package server wires handlers, middleware and routes into one http.Handler.
package server

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"clientboard-backend/internal/analytics"
	"clientboard-backend/internal/auth"
	"clientboard-backend/internal/clients"
	"clientboard-backend/internal/dashboard"
	"clientboard-backend/internal/mail"
	"clientboard-backend/internal/repository"
	"clientboard-backend/internal/tasks"
	"clientboard-backend/internal/web"
)

type Options struct {
	DB          *sql.DB
	Secret      []byte
	Mailer      mail.Mailer
	CORSOrigins []string
	RateLimiter *auth.RateLimiter

	// PublicURL is the scheme and host put in password reset links.
	PublicURL string

	// BcryptCost overrides the password hashing cost when non-zero.
	BcryptCost int
}

func New(opts Options) (http.Handler, error) {
	rn, err := web.NewRenderer()
	if err != nil {
		return nil, err
	}

	limiter := opts.RateLimiter
	if limiter == nil {
		limiter = auth.NewRateLimiter(2, 5)
	}

	users := repository.NewUserRepository(opts.DB)
	events := analytics.NewRecorder(opts.DB)
	authSvc := auth.NewService(users, opts.Mailer)
	if opts.BcryptCost > 0 {
		authSvc.WithCost(opts.BcryptCost)
	}
	authm := auth.New(opts.Secret, users)
	publicURL := opts.PublicURL
	if publicURL == "" {
		publicURL = "http://localhost:8080"
	}
	pages := auth.NewPages(authSvc, rn, opts.Secret, publicURL)

	clientSvc := clients.NewService(opts.DB, events)
	taskSvc := tasks.NewService(opts.DB, events)
	board := dashboard.NewBuilder(opts.DB)

	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", web.StaticHandler())).Methods(http.MethodGet)

	// dashboard
	r.HandleFunc("/", authm.Wrap(dashboard.PageHandler(board, rn, events))).Methods(http.MethodGet)
	r.HandleFunc("/api/dashboard/", authm.Wrap(dashboard.JSONHandler(board))).Methods(http.MethodGet)

	// clients and tasks
	r.HandleFunc("/client/create/", authm.Wrap(clients.CreateClientHandler(clientSvc))).Methods(http.MethodPost)
	r.HandleFunc("/client/delete/{id}/", authm.Wrap(clients.DeleteClientHandler(clientSvc))).Methods(http.MethodPost)
	r.HandleFunc("/client/{client_id}/task/create/", authm.Wrap(tasks.CreateTaskHandler(taskSvc))).Methods(http.MethodPost)
	r.HandleFunc("/task/toggle/{id}/", authm.Wrap(tasks.ToggleTaskHandler(taskSvc))).Methods(http.MethodPost)
	r.HandleFunc("/task/delete/{id}/", authm.Wrap(tasks.DeleteTaskHandler(taskSvc))).Methods(http.MethodPost)

	// browser auth pages
	r.HandleFunc("/login/", limiter.Limit(pages.Login)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/register/", limiter.Limit(pages.Register)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/forgot-password/", limiter.Limit(pages.ForgotPassword)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/reset-password/", limiter.Limit(pages.ResetPassword)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/logout/", pages.Logout).Methods(http.MethodPost)

	// token API
	r.HandleFunc("/auth/register", limiter.Limit(auth.RegisterHandler(authSvc, opts.Secret))).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", limiter.Limit(auth.LoginHandler(authSvc, opts.Secret))).Methods(http.MethodPost)
	r.HandleFunc("/auth/me", authm.Wrap(auth.MeHandler(authSvc))).Methods(http.MethodGet)
	r.HandleFunc("/auth/logout", auth.LogoutHandler()).Methods(http.MethodPost)
	r.HandleFunc("/auth/delete-account", authm.Wrap(auth.DeleteAccountHandler(authSvc, events))).Methods(http.MethodPost)

	c := cors.New(corsOptions(opts.CORSOrigins))

	var h http.Handler = r
	h = authm.Identify(h)
	h = c.Handler(h)
	h = web.AccessLog(h)
	h = web.RequestIDs(h)
	return h, nil
}

// corsOptions only allows credentialed cross-origin calls when the allowed
// origins are listed explicitly. A wildcard admits any origin anonymously.
func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	credentials := true
	for _, o := range origins {
		if o == "*" {
			credentials = false
			break
		}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Platform", "X-App-Version", "X-Session-Id", "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: credentials,
	}
}
