package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clientboard-backend/internal/apperr"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{apperr.Validation("name", "Client name is required"), http.StatusBadRequest, "Client name is required"},
		{fmt.Errorf("wrapped: %w", apperr.ErrNotFound), http.StatusNotFound, "Not found"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range cases {
		status, msg := StatusFor(tc.err)
		if status != tc.status || msg != tc.msg {
			t.Fatalf("StatusFor(%v) = %d %q", tc.err, status, msg)
		}
	}
}

func TestReadFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Acme","remember_me":true,"n":3,"skip":false}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	f, err := ReadFields(req)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if f.Get("name") != "Acme" || f.Get("remember_me") != "on" || f.Get("n") != "3" || f.Get("skip") != "" {
		t.Fatalf("json fields: %v", f)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("title=Send+invoice"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	f, err = ReadFields(req)
	if err != nil || f.Get("title") != "Send invoice" {
		t.Fatalf("form: %v %v", f, err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	if _, err := ReadFields(req); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for bad json, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Content-Type", "application/json")
	if f, err := ReadFields(req); err != nil || len(f) != 0 {
		t.Fatalf("empty body: %v %v", f, err)
	}
}

func TestFlashRoundTrip(t *testing.T) {
	set := httptest.NewRecorder()
	SetFlash(set, Success(`Client "Acme" deleted`), Error("oops"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range set.Result().Cookies() {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	got := PopFlash(rr, req)
	if len(got) != 2 || got[0].Text != `Client "Acme" deleted` || got[1].Level != "error" {
		t.Fatalf("flashes: %+v", got)
	}
	cleared := rr.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
		t.Fatalf("flash cookie not cleared: %+v", cleared)
	}

	if got := PopFlash(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)); got != nil {
		t.Fatalf("expected no flashes, got %+v", got)
	}
}

func TestRenderer(t *testing.T) {
	rn, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	rr := httptest.NewRecorder()
	rn.Render(rr, http.StatusOK, "register", Page{
		Title:   "Register",
		Flashes: []Flash{Error("Passwords do not match.")},
		Form:    map[string]string{"username": "<alice>"},
	})
	body := rr.Body.String()
	if rr.Code != http.StatusOK || !strings.Contains(body, "Passwords do not match.") || !strings.Contains(body, "&lt;alice&gt;") {
		t.Fatalf("register page: %d %s", rr.Code, body)
	}

	rr = httptest.NewRecorder()
	rn.Render(rr, http.StatusOK, "missing", Page{})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("unknown page: %d", rr.Code)
	}
}

func TestRequestIDs(t *testing.T) {
	var seen string
	h := RequestIDs(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "not-a-uuid")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if seen == "" || seen == "not-a-uuid" || rr.Header().Get("X-Request-Id") != seen {
		t.Fatalf("expected fresh id, got %q", seen)
	}

	const id = "7f1c2c4e-5d7b-4b8e-9a51-0c3f7b9f1e22"
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", id)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != id {
		t.Fatalf("expected inbound id kept, got %q", seen)
	}
}
