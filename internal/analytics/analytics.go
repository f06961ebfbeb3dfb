package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	EventClientCreated   = "client_created"
	EventClientDeleted   = "client_deleted"
	EventTaskCreated     = "task_created"
	EventTaskToggled     = "task_toggled"
	EventTaskDeleted     = "task_deleted"
	EventDashboardViewed = "dashboard_viewed"
	EventAccountDeleted  = "account_deleted"
)

type ctxKey string

const envelopeKey ctxKey = "analytics_envelope"

// Envelope is what we store with every event.
type Envelope struct {
	UserID       int64
	SessionID    string
	Platform     string
	AppVersion   string
	DeviceLocale string
	SourceKey    string
}

// FromRequest extracts event envelope fields from request headers.
func FromRequest(r *http.Request) Envelope {
	platform := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Platform")))
	switch platform {
	case "ios", "android", "web":
	default:
		platform = "unknown"
	}

	locale := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if locale == "" {
		locale = strings.TrimSpace(r.Header.Get("X-Device-Locale"))
	}

	return Envelope{
		SessionID:    strings.TrimSpace(r.Header.Get("X-Session-Id")),
		Platform:     platform,
		AppVersion:   strings.TrimSpace(r.Header.Get("X-App-Version")),
		DeviceLocale: locale,
		SourceKey:    SourceEventKeyFromRequest(r),
	}
}

// SourceEventKeyFromRequest reads the optional client idempotency key.
func SourceEventKeyFromRequest(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get("Idempotency-Key")); k != "" {
		return k
	}
	return strings.TrimSpace(r.Header.Get("X-Source-Event-Key"))
}

func WithEnvelope(ctx context.Context, env Envelope) context.Context {
	return context.WithValue(ctx, envelopeKey, env)
}

func EnvelopeFromContext(ctx context.Context) Envelope {
	env, _ := ctx.Value(envelopeKey).(Envelope)
	if env.Platform == "" {
		env.Platform = "unknown"
	}
	return env
}

// Recorder writes events to analytics_events. A nil Recorder drops events.
type Recorder struct {
	db *sql.DB
}

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Record stores one event for userID using the envelope carried by ctx.
// Failures are logged and never surface to the caller.
func (rec *Recorder) Record(ctx context.Context, userID int64, eventName string, props map[string]any) {
	if rec == nil || rec.db == nil || eventName == "" || userID == 0 {
		return
	}

	env := EnvelopeFromContext(ctx)
	env.UserID = userID
	if err := Log(ctx, rec.db, env, eventName, props); err != nil {
		log.Printf("[WARN] analytics %s user_id=%d: %v", eventName, userID, err)
	}
}

// Log inserts one analytics event. Callers pass sanitized props only: no raw
// client names or task titles.
func Log(ctx context.Context, db *sql.DB, env Envelope, eventName string, props any) error {
	if props == nil {
		props = map[string]any{}
	}
	b, err := json.Marshal(props)
	if err != nil {
		return err
	}

	// duplicate source_event_key -> do nothing
	_, err = db.ExecContext(ctx, `
		INSERT INTO analytics_events (
			event_name, event_time,
			user_id, session_id,
			platform, app_version, device_locale,
			source_event_key,
			properties
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (source_event_key) DO NOTHING
	`, eventName, time.Now().UTC(),
		env.UserID, nullIfEmpty(env.SessionID),
		env.Platform, env.AppVersion, nullIfEmpty(env.DeviceLocale),
		nullIfEmpty(env.SourceKey),
		string(b),
	)
	return err
}

func nullIfEmpty(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
