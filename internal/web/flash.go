package web

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const flashCookie = "flash"

type Flash struct {
	Level string `json:"level"` // success|error|info
	Text  string `json:"text"`
}

func Success(text string) Flash { return Flash{Level: "success", Text: text} }
func Error(text string) Flash   { return Flash{Level: "error", Text: text} }

// SetFlash stores messages for the next rendered page.
func SetFlash(w http.ResponseWriter, msgs ...Flash) {
	if len(msgs) == 0 {
		return
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(b),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopFlash returns pending messages and clears the cookie.
func PopFlash(w http.ResponseWriter, r *http.Request) []Flash {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var msgs []Flash
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil
	}
	return msgs
}
