package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"

	"clientboard-backend/internal/auth"
	"clientboard-backend/internal/config"
	"clientboard-backend/internal/db"
	"clientboard-backend/internal/mail"
	"clientboard-backend/internal/repository"
	"clientboard-backend/internal/server"
)

func newRootCmd() *cobra.Command {
	cfg := config.Load()

	cmd := &cobra.Command{
		Use:          "api",
		Short:        "Clientboard HTTP server and maintenance commands",
		SilenceUsage: true,
		// no subcommand => serve
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.AddCommand(
		newServeCmd(cfg),
		newMigrateCmd(cfg),
		newCreateUserCmd(cfg),
	)
	return cmd
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Apply the schema and start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}
}

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbx, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer dbx.Close()
			log.Printf("[INFO] schema up to date (%s)", cfg.DBDriver)
			return nil
		},
	}
}

func newCreateUserCmd(cfg *config.Config) *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "createuser",
		Short: "Register an account from the command line",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbx, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer dbx.Close()

			svc := auth.NewService(repository.NewUserRepository(dbx), newMailer(cfg))
			u, err := svc.Register(cmd.Context(), auth.RegisterInput{
				Username:        username,
				Email:           email,
				Password:        password,
				PasswordConfirm: password,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d)\n", u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account username")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (at least 8 characters)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	dbx, err := db.Connect(cfg.DBDriver, cfg.ConnString(), db.PoolOptions{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
		MaxIdleTime:  cfg.DBMaxIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.DBDriver, err)
	}
	if err := db.Migrate(ctx, dbx, cfg.DBDriver); err != nil {
		dbx.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return dbx, nil
}

func newMailer(cfg *config.Config) mail.Mailer {
	if cfg.SMTPHost == "" {
		return mail.LogMailer{}
	}
	return mail.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPSender)
}

func jwtSecret(cfg *config.Config) ([]byte, error) {
	if cfg.JWTSecret != "" {
		return []byte(cfg.JWTSecret), nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	log.Printf("[WARN] JWT_SECRET is not set; using a random secret, sessions end on restart")
	return []byte(hex.EncodeToString(b)), nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbx, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer dbx.Close()
	log.Printf("[INFO] connected to %s", cfg.DBDriver)

	secret, err := jwtSecret(cfg)
	if err != nil {
		return err
	}

	handler, err := server.New(server.Options{
		DB:          dbx,
		Secret:      secret,
		Mailer:      newMailer(cfg),
		CORSOrigins: cfg.CORSOrigins,
		RateLimiter: auth.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		PublicURL:   cfg.PublicURL,
	})
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return err
	}
	if cfg.HTTPMaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.HTTPMaxConns)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("[INFO] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
