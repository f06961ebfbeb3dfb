package clients

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"clientboard-backend/internal/apperr"
	"clientboard-backend/internal/auth"
	"clientboard-backend/internal/web"
)

func CreateClientHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		f, err := web.ReadFields(r)
		if err != nil {
			web.WriteError(w, r, err)
			return
		}

		c, err := svc.Create(r.Context(), uid, f.Get("name"))
		if err != nil {
			web.WriteError(w, r, err)
			return
		}

		web.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"client":  c,
		})
	}
}

// DeleteClientHandler is a plain form post; it answers with a redirect back
// to the dashboard.
func DeleteClientHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		id, err := PathID(r, "id")
		if err != nil {
			web.WriteError(w, r, err)
			return
		}

		name, err := svc.Delete(r.Context(), uid, id)
		if err != nil {
			web.WriteError(w, r, err)
			return
		}

		web.SetFlash(w, web.Success(fmt.Sprintf(`Client "%s" and all its tasks deleted successfully!`, name)))
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// PathID reads a positive integer route variable. Malformed ids are reported
// as not found, same as ids owned by someone else.
func PathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.ErrNotFound
	}
	return id, nil
}
