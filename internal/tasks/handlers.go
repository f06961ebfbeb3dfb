package tasks

import (
	"net/http"

	"clientboard-backend/internal/auth"
	"clientboard-backend/internal/clients"
	"clientboard-backend/internal/web"
)

func CreateTaskHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		clientID, err := clients.PathID(r, "client_id")
		if err != nil {
			web.WriteError(w, r, err)
			return
		}

		f, err := web.ReadFields(r)
		if err != nil {
			web.WriteError(w, r, err)
			return
		}

		res, err := svc.Create(r.Context(), uid, clientID, f.Get("title"))
		if err != nil {
			web.WriteError(w, r, err)
			return
		}

		web.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"task":    res.Task,
			"client":  res.Client,
		})
	}
}

func ToggleTaskHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		id, err := clients.PathID(r, "id")
		if err != nil {
			web.WriteError(w, r, err)
			return
		}

		res, err := svc.Toggle(r.Context(), uid, id)
		if err != nil {
			web.WriteError(w, r, err)
			return
		}

		web.WriteJSON(w, http.StatusOK, map[string]any{
			"success":      true,
			"is_completed": res.IsCompleted,
			"client":       res.Client,
			"global":       res.Global,
		})
	}
}

func DeleteTaskHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		id, err := clients.PathID(r, "id")
		if err != nil {
			web.WriteError(w, r, err)
			return
		}

		res, err := svc.Delete(r.Context(), uid, id)
		if err != nil {
			web.WriteError(w, r, err)
			return
		}

		web.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"client":  res.Client,
		})
	}
}
