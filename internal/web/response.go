package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"

	"clientboard-backend/internal/apperr"
)

const maxBodyBytes = 1 << 20

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[WARN] encode response: %v", err)
	}
}

// WriteError maps err to a status code and writes {success:false, error}.
// Unknown errors are logged and reported generically.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[ERROR] %s %s rid=%s: %v", r.Method, r.URL.Path, RequestID(r.Context()), err)
	}
	WriteJSON(w, status, map[string]any{
		"success": false,
		"error":   msg,
	})
}

func StatusFor(err error) (int, string) {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case apperr.IsNotFound(err):
		return http.StatusNotFound, "Not found"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// Fields holds request parameters from either a form post or a JSON object.
type Fields map[string]string

func (f Fields) Get(key string) string {
	return f[key]
}

// ReadFields parses a form-encoded, multipart or JSON request body.
// JSON scalars are converted to their string form.
func ReadFields(r *http.Request) (Fields, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "application/json" {
		if ct == "multipart/form-data" {
			if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
				return nil, apperr.Validation("body", "invalid form")
			}
		} else if err := r.ParseForm(); err != nil {
			return nil, apperr.Validation("body", "invalid form")
		}
		out := Fields{}
		for k, v := range r.Form {
			if len(v) > 0 {
				out[k] = v[0]
			}
		}
		return out, nil
	}

	var raw map[string]any
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, apperr.Validation("body", "invalid json")
	}
	out := Fields{}
	for k, v := range raw {
		switch x := v.(type) {
		case nil:
		case string:
			out[k] = x
		case bool:
			if x {
				out[k] = "on"
			}
		default:
			out[k] = strings.TrimSpace(fmt.Sprint(x))
		}
	}
	return out, nil
}
