package db

import (
	"context"
	"database/sql"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS clients (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name       VARCHAR(200) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id           BIGSERIAL PRIMARY KEY,
		client_id    BIGINT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		title        VARCHAR(500) NOT NULL,
		is_completed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS tasks_client_id_idx ON tasks (client_id)`,
	`CREATE TABLE IF NOT EXISTS analytics_events (
		id               BIGSERIAL PRIMARY KEY,
		event_name       TEXT NOT NULL,
		event_time       TIMESTAMPTZ NOT NULL,
		user_id          BIGINT NOT NULL,
		session_id       TEXT,
		platform         TEXT NOT NULL,
		app_version      TEXT NOT NULL,
		device_locale    TEXT,
		source_event_key TEXT UNIQUE,
		properties       JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS password_resets (
		token_hash TEXT PRIMARY KEY,
		user_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS password_resets_user_id_idx ON password_resets (user_id)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS clients (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (user_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id    INTEGER NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		title        TEXT NOT NULL,
		is_completed BOOLEAN NOT NULL DEFAULT 0,
		created_at   TIMESTAMP NOT NULL,
		updated_at   TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS tasks_client_id_idx ON tasks (client_id)`,
	`CREATE TABLE IF NOT EXISTS analytics_events (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		event_name       TEXT NOT NULL,
		event_time       TIMESTAMP NOT NULL,
		user_id          INTEGER NOT NULL,
		session_id       TEXT,
		platform         TEXT NOT NULL,
		app_version      TEXT NOT NULL,
		device_locale    TEXT,
		source_event_key TEXT UNIQUE,
		properties       TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS password_resets (
		token_hash TEXT PRIMARY KEY,
		user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS password_resets_user_id_idx ON password_resets (user_id)`,
}

// Migrate creates every table the application needs. It is idempotent.
func Migrate(ctx context.Context, dbx *sql.DB, driver string) error {
	var stmts []string
	switch driver {
	case DriverPostgres:
		stmts = postgresSchema
	case DriverSQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("unsupported db driver %q", driver)
	}

	for i, stmt := range stmts {
		if _, err := dbx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
