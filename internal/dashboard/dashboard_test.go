package dashboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clientboard-backend/internal/analytics"
	"clientboard-backend/internal/auth"
	"clientboard-backend/internal/clients"
	"clientboard-backend/internal/tasks"
	"clientboard-backend/internal/testutil"
	"clientboard-backend/internal/web"
)

func TestBuild_EmptyUser(t *testing.T) {
	dbx := testutil.NewDB(t)
	alice := testutil.CreateUser(t, dbx, "alice")
	bob := testutil.CreateUser(t, dbx, "bob")
	ctx := context.Background()

	cs := clients.NewService(dbx, nil)
	ts := tasks.NewService(dbx, nil)
	c, _ := cs.Create(ctx, alice, "Acme")
	if _, err := ts.Create(ctx, alice, c.ID, "Draft contract"); err != nil {
		t.Fatalf("create task: %v", err)
	}

	v, err := NewBuilder(dbx).Build(ctx, bob, "")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if v.GlobalCompletion != 0 || v.GlobalRemaining != 0 || len(v.Clients) != 0 || v.TotalTasks != 0 {
		t.Fatalf("expected empty dashboard, got %+v", v)
	}
}

func TestBuild_PerClientAndGlobal(t *testing.T) {
	dbx := testutil.NewDB(t)
	uid := testutil.CreateUser(t, dbx, "alice")
	ctx := context.Background()

	cs := clients.NewService(dbx, nil)
	ts := tasks.NewService(dbx, nil)

	beta, _ := cs.Create(ctx, uid, "Beta")
	acme, _ := cs.Create(ctx, uid, "Acme")
	if _, err := cs.Create(ctx, uid, "Empty Co"); err != nil {
		t.Fatalf("create client: %v", err)
	}

	a1, _ := ts.Create(ctx, uid, acme.ID, "Draft contract")
	if _, err := ts.Create(ctx, uid, acme.ID, "Send invoice"); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := ts.Toggle(ctx, uid, a1.Task.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := ts.Create(ctx, uid, beta.ID, "Kickoff"); err != nil {
		t.Fatalf("create task: %v", err)
	}

	v, err := NewBuilder(dbx).Build(ctx, uid, "")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if v.TotalClients != 3 || len(v.Clients) != 3 {
		t.Fatalf("clients: %+v", v)
	}
	names := []string{v.Clients[0].Name, v.Clients[1].Name, v.Clients[2].Name}
	if strings.Join(names, ",") != "Acme,Beta,Empty Co" {
		t.Fatalf("ordering: %v", names)
	}

	if got := v.Clients[0]; got.TotalTasks != 2 || got.CompletionPercentage != 50 || len(got.Tasks) != 2 {
		t.Fatalf("Acme: %+v", got)
	}
	if got := v.Clients[0].Tasks[0].Title; got != "Send invoice" {
		t.Fatalf("newest task first, got %q", got)
	}
	if got := v.Clients[2]; got.TotalTasks != 0 || got.CompletionPercentage != 0 || got.RemainingPercentage != 0 || got.Tasks == nil {
		t.Fatalf("Empty Co: %+v", got)
	}

	if v.TotalTasks != 3 || v.CompletedTasks != 1 || v.PendingTasks != 2 || v.GlobalCompletion != 33 || v.GlobalRemaining != 67 {
		t.Fatalf("global: %+v", v)
	}

	filtered, err := NewBuilder(dbx).Build(ctx, uid, "  aCM ")
	if err != nil {
		t.Fatalf("Build filtered: %v", err)
	}
	if len(filtered.Clients) != 1 || filtered.Clients[0].Name != "Acme" || filtered.Query != "aCM" {
		t.Fatalf("filtered: %+v", filtered)
	}
	if filtered.TotalTasks != 3 || filtered.TotalClients != 3 {
		t.Fatalf("filter must not change totals: %+v", filtered)
	}
}

func TestPageHandler_RendersAndConsumesFlash(t *testing.T) {
	dbx := testutil.NewDB(t)
	uid := testutil.CreateUser(t, dbx, "alice")
	ctx := context.Background()

	if _, err := clients.NewService(dbx, nil).Create(ctx, uid, "Acme <b>"); err != nil {
		t.Fatalf("create client: %v", err)
	}

	rn, err := web.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	h := PageHandler(NewBuilder(dbx), rn, analytics.NewRecorder(dbx))

	flash := httptest.NewRecorder()
	web.SetFlash(flash, web.Success("hello there"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range flash.Result().Cookies() {
		req.AddCookie(c)
	}
	req = req.WithContext(auth.WithUser(req.Context(), uid, "alice"))
	rr := httptest.NewRecorder()
	h(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Acme &lt;b&gt;", "hello there", "alice"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q", want)
		}
	}
	if strings.Contains(body, "Acme <b>") {
		t.Fatalf("client name was not escaped")
	}

	var n int
	if err := dbx.QueryRow(`SELECT COUNT(*) FROM analytics_events WHERE event_name = $1`, analytics.EventDashboardViewed).Scan(&n); err != nil || n != 1 {
		t.Fatalf("dashboard_viewed events: %d, %v", n, err)
	}
}

func TestJSONHandler(t *testing.T) {
	dbx := testutil.NewDB(t)
	uid := testutil.CreateUser(t, dbx, "alice")

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/", nil)
	req = req.WithContext(auth.WithUser(req.Context(), uid, "alice"))
	rr := httptest.NewRecorder()
	JSONHandler(NewBuilder(dbx))(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"clients":[]`) || !strings.Contains(rr.Body.String(), `"global_completion":0`) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}
