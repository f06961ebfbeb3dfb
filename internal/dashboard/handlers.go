package dashboard

import (
	"net/http"

	"clientboard-backend/internal/analytics"
	"clientboard-backend/internal/auth"
	"clientboard-backend/internal/web"
)

func PageHandler(b *Builder, rn *web.Renderer, events *analytics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		v, err := b.Build(r.Context(), uid, r.URL.Query().Get("q"))
		if err != nil {
			web.WriteError(w, r, err)
			return
		}

		events.Record(r.Context(), uid, analytics.EventDashboardViewed, map[string]any{
			"total_clients": v.TotalClients,
			"total_tasks":   v.TotalTasks,
		})

		rn.Render(w, http.StatusOK, "dashboard", web.Page{
			Title:    "Dashboard",
			Username: auth.UsernameFromContext(r.Context()),
			Flashes:  web.PopFlash(w, r),
			Data:     v,
		})
	}
}

func JSONHandler(b *Builder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		v, err := b.Build(r.Context(), uid, r.URL.Query().Get("q"))
		if err != nil {
			web.WriteError(w, r, err)
			return
		}

		web.WriteJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"dashboard": v,
		})
	}
}
