package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"clientboard-backend/internal/apperr"
	"clientboard-backend/internal/db"
	"clientboard-backend/internal/mail"
	"clientboard-backend/internal/models"
	"clientboard-backend/internal/repository"
)

var ErrInvalidCredentials = errors.New("invalid email/username or password")

// ResetTTL bounds how long a mailed reset link stays valid.
const ResetTTL = time.Hour

const msgResetLinkInvalid = "This reset link is invalid or has expired."

// Service owns accounts: registration, login, mailed password reset and
// account deletion.
type Service struct {
	users  *repository.UserRepository
	mailer mail.Mailer
	cost   int
}

func NewService(users *repository.UserRepository, mailer mail.Mailer) *Service {
	if mailer == nil {
		mailer = mail.LogMailer{}
	}
	return &Service{users: users, mailer: mailer, cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	PasswordConfirm string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	v := newValidator()
	v.checkCond(username != "", "username", "Username is required.")
	v.checkCond(len(username) <= 150, "username", "Username must be at most 150 characters.")
	if !v.failed("username") {
		taken, err := s.users.ExistsUsername(ctx, username)
		if err != nil {
			return models.User{}, err
		}
		v.checkCond(!taken, "username", "Username already exists.")
	}

	v.checkCond(email != "", "email", "Email is required.")
	v.checkCond(emailRegexp.MatchString(email), "email", "Email must be a valid email address.")
	if !v.failed("email") {
		taken, err := s.users.ExistsEmail(ctx, email)
		if err != nil {
			return models.User{}, err
		}
		v.checkCond(!taken, "email", "Email already registered.")
	}

	v.checkPassword("password", in.Password, in.PasswordConfirm, "Password")
	if v.hasErrors() {
		return models.User{}, v.toError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return models.User{}, err
	}

	u := models.User{Username: username, Email: email, PasswordHash: string(hash)}
	if err := s.users.Create(ctx, &u); err != nil {
		if db.IsUniqueViolation(err) {
			return models.User{}, apperr.Validation("username", "Username or email already registered.")
		}
		return models.User{}, err
	}

	if err := s.mailer.Send(u.Email, mail.TemplateWelcome, map[string]string{
		"Username": u.Username,
		"Email":    u.Email,
	}); err != nil {
		log.Printf("[WARN] welcome mail user_id=%d: %v", u.ID, err)
	}

	return u, nil
}

// Login accepts an email address or a username.
func (s *Service) Login(ctx context.Context, identifier, password string) (models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return models.User{}, apperr.Validation("credentials", "Please fill in all fields.")
	}

	u, err := s.users.GetByIdentifier(ctx, identifier)
	if apperr.IsNotFound(err) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// RequestPasswordReset mails a single-use reset link to the account matching
// identifier. Unknown accounts also return nil.
func (s *Service) RequestPasswordReset(ctx context.Context, identifier, baseURL string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return apperr.Validation("identifier", "Please enter your email or username.")
	}

	u, err := s.users.GetByIdentifier(ctx, identifier)
	if apperr.IsNotFound(err) {
		log.Printf("[INFO] password reset requested for an unknown account")
		return nil
	}
	if err != nil {
		return err
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	if err := s.users.CreatePasswordReset(ctx, u.ID, hashResetToken(token), time.Now().UTC().Add(ResetTTL)); err != nil {
		return err
	}

	link := strings.TrimRight(baseURL, "/") + "/reset-password/?token=" + url.QueryEscape(token)
	if err := s.mailer.Send(u.Email, mail.TemplatePasswordReset, map[string]string{
		"Username": u.Username,
		"ResetURL": link,
	}); err != nil {
		log.Printf("[WARN] reset mail user_id=%d: %v", u.ID, err)
	}
	return nil
}

// ResetPassword redeems a mailed reset token and sets the new password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword, confirm string) error {
	token = strings.TrimSpace(token)

	v := newValidator()
	v.checkCond(token != "", "token", msgResetLinkInvalid)
	v.checkCond(newPassword != "" && confirm != "", "password", "Please enter and confirm your new password.")
	v.checkPassword("password", newPassword, confirm, "New password")
	if v.hasErrors() {
		return v.toError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return err
	}
	uid, err := s.users.RedeemPasswordReset(ctx, hashResetToken(token), string(hash), time.Now().UTC())
	if apperr.IsNotFound(err) {
		return apperr.Validation("token", msgResetLinkInvalid)
	}
	if err != nil {
		return err
	}

	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(u.Email, mail.TemplatePasswordChanged, map[string]string{
		"Username":  u.Username,
		"ChangedAt": time.Now().UTC().Format(time.RFC1123),
	}); err != nil {
		log.Printf("[WARN] password notice user_id=%d: %v", u.ID, err)
	}
	return nil
}

// newResetToken returns 32 random bytes, URL-safe encoded.
func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *Service) User(ctx context.Context, id int64) (models.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) DeleteAccount(ctx context.Context, id int64) error {
	return s.users.DeleteAccount(ctx, id)
}
