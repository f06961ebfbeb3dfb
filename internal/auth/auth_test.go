package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"clientboard-backend/internal/apperr"
	"clientboard-backend/internal/mail"
	"clientboard-backend/internal/repository"
	"clientboard-backend/internal/testutil"
)

var testSecret = []byte("test-secret")

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
	data []any
}

func (m *recordingMailer) Send(to, templateName string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+" "+templateName)
	m.data = append(m.data, data)
	return nil
}

// resetToken pulls the token out of the last reset link mailed.
func (m *recordingMailer) resetToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if !strings.HasSuffix(m.sent[i], " "+mail.TemplatePasswordReset) {
			continue
		}
		link := m.data[i].(map[string]string)["ResetURL"]
		u, err := url.Parse(link)
		if err != nil {
			t.Fatalf("bad reset link %q: %v", link, err)
		}
		return u.Query().Get("token")
	}
	t.Fatalf("no reset mail in %v", m.sent)
	return ""
}

func newTestService(t *testing.T) (*Service, *recordingMailer, *repository.UserRepository) {
	t.Helper()
	dbx := testutil.NewDB(t)
	users := repository.NewUserRepository(dbx)
	m := &recordingMailer{}
	return NewService(users, m).WithCost(bcrypt.MinCost), m, users
}

func TestToken_RoundTrip(t *testing.T) {
	tok, err := GenerateToken(testSecret, 42, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	uid, err := ParseToken(testSecret, tok)
	if err != nil || uid != 42 {
		t.Fatalf("ParseToken: %d, %v", uid, err)
	}
	if _, err := ParseToken([]byte("other"), tok); err == nil {
		t.Fatalf("expected error for wrong secret")
	}
}

func TestToken_Expired(t *testing.T) {
	tok, err := GenerateToken(testSecret, 42, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseToken(testSecret, tok); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestService_RegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "", Email: "bad", Password: "short", PasswordConfirm: "short"})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	want := []string{"Username is required.", "Email must be a valid email address.", "Password must be at least 8 characters long."}
	if len(ve.Problems) != len(want) {
		t.Fatalf("unexpected problems: %v", ve.Problems)
	}
	for i := range want {
		if ve.Problems[i] != want[i] {
			t.Fatalf("problem %d: got %q want %q", i, ve.Problems[i], want[i])
		}
	}

	_, err = svc.Register(ctx, RegisterInput{Username: "a", Email: "a@example.com", Password: "password1", PasswordConfirm: "password2"})
	if !errors.As(err, &ve) || ve.Message != "Passwords do not match." {
		t.Fatalf("expected mismatch error, got %v", err)
	}
}

func TestService_RegisterLoginAndDuplicates(t *testing.T) {
	svc, mailer, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "Alice@Example.com", Password: "password1", PasswordConfirm: "password1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(mailer.sent) != 1 || !strings.HasPrefix(mailer.sent[0], "alice@example.com ") {
		t.Fatalf("expected welcome mail, got %v", mailer.sent)
	}

	_, err = svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "password1", PasswordConfirm: "password1"})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || len(ve.Problems) != 2 {
		t.Fatalf("expected duplicate username and email, got %v", err)
	}

	for _, id := range []string{"alice", "alice@example.com", " ALICE@example.com "} {
		got, err := svc.Login(ctx, id, "password1")
		if err != nil || got.ID != u.ID {
			t.Fatalf("Login(%q): %+v, %v", id, got, err)
		}
	}
	if _, err := svc.Login(ctx, "alice", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "password1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
}

func TestService_RequestPasswordReset(t *testing.T) {
	svc, mailer, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "password1", PasswordConfirm: "password1"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := svc.RequestPasswordReset(ctx, " ", "https://board.example"); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for empty identifier, got %v", err)
	}
	if err := svc.RequestPasswordReset(ctx, "ghost", "https://board.example"); err != nil {
		t.Fatalf("unknown account should not be reported, got %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("no mail expected for an unknown account, got %v", mailer.sent)
	}

	if err := svc.RequestPasswordReset(ctx, "alice", "https://board.example/"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	link := mailer.data[1].(map[string]string)["ResetURL"]
	if !strings.HasPrefix(link, "https://board.example/reset-password/?token=") {
		t.Fatalf("unexpected reset link %q", link)
	}
	if mailer.sent[1] != "alice@example.com "+mail.TemplatePasswordReset {
		t.Fatalf("reset mail went to %q", mailer.sent[1])
	}
}

func TestService_ResetPassword(t *testing.T) {
	svc, mailer, users := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "password1", PasswordConfirm: "password1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	// knowing the username alone is not enough
	if err := svc.ResetPassword(ctx, "alice", "password2", "password2"); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error without a mailed token, got %v", err)
	}

	if err := svc.RequestPasswordReset(ctx, "alice@example.com", "http://localhost:8080"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	token := mailer.resetToken(t)

	if err := svc.ResetPassword(ctx, token, "password2", "password3"); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for mismatch, got %v", err)
	}
	if err := svc.ResetPassword(ctx, token, "password2", "password2"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "password1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still works: %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "password2"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
	if last := mailer.sent[len(mailer.sent)-1]; last != "alice@example.com "+mail.TemplatePasswordChanged {
		t.Fatalf("expected password notice, got %v", mailer.sent)
	}

	var ve *apperr.ValidationError
	if err := svc.ResetPassword(ctx, token, "password4", "password4"); !errors.As(err, &ve) || ve.Message != msgResetLinkInvalid {
		t.Fatalf("reset token was reusable: %v", err)
	}

	if err := users.CreatePasswordReset(ctx, u.ID, hashResetToken("stale"), time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("CreatePasswordReset: %v", err)
	}
	if err := svc.ResetPassword(ctx, "stale", "password4", "password4"); !apperr.IsValidation(err) {
		t.Fatalf("expired token accepted: %v", err)
	}
}

func TestMiddleware_WrapRejectsAnonymous(t *testing.T) {
	m := New(testSecret, nil)
	h := m.Identify(m.Wrap(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := UserIDFromContext(r.Context())
		if uid != 7 {
			t.Errorf("unexpected uid %d", uid)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?q=a", nil))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login/?next=%2F%3Fq%3Da" {
		t.Fatalf("expected redirect to login, got %d %q", rr.Code, rr.Header().Get("Location"))
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/task/toggle/1/", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/client/delete/3/", nil)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login/" {
		t.Fatalf("expected expired form post to go to login, got %d %q", rr.Code, rr.Header().Get("Location"))
	}

	tok, _ := GenerateToken(testSecret, 7, time.Hour)
	req = httptest.NewRequest(http.MethodPost, "/task/toggle/1/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected bearer token to pass, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/task/toggle/1/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tok})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected session cookie to pass, got %d", rr.Code)
	}
}

func TestMiddleware_DeletedUserIsAnonymous(t *testing.T) {
	dbx := testutil.NewDB(t)
	users := repository.NewUserRepository(dbx)
	uid := testutil.CreateUser(t, dbx, "alice")
	if err := users.DeleteAccount(context.Background(), uid); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	m := New(testSecret, users)
	h := m.Identify(m.Wrap(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("handler should not run for a deleted user")
	}))

	tok, _ := GenerateToken(testSecret, uid, time.Hour)
	req := httptest.NewRequest(http.MethodPost, "/client/create/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRateLimiter_PerIPAndSweep(t *testing.T) {
	l := NewRateLimiter(1, 2)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	if !l.Allow("1.1.1.1") || !l.Allow("1.1.1.1") {
		t.Fatalf("burst should allow two requests")
	}
	if l.Allow("1.1.1.1") {
		t.Fatalf("third request should be limited")
	}
	if !l.Allow("2.2.2.2") {
		t.Fatalf("other IPs have their own bucket")
	}

	now = now.Add(10 * time.Minute)
	l.Allow("3.3.3.3")
	if got := l.size(); got != 1 {
		t.Fatalf("expected idle limiters swept, %d left", got)
	}
}

func TestSafeNext(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/?q=a", "/?q=a"},
		{"/%09/evil.com", "/%09/evil.com"},
		{"//evil.example", "/"},
		{"https://evil.io", "/"},
		{"/\\evil", "/"},
		{"/\t/evil.com", "/"},
		{"/\n/evil.com", "/"},
		{"/\r/evil.com", "/"},
		{"/ok\x7f", "/"},
		{"evil.com/", "/"},
	}
	for _, tc := range cases {
		if got := safeNext(tc.in); got != tc.want {
			t.Fatalf("safeNext(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
