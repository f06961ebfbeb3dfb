// Package testutil sets up throwaway SQLite databases for package tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"clientboard-backend/internal/config"
	"clientboard-backend/internal/db"
	"clientboard-backend/internal/models"
	"clientboard-backend/internal/repository"
)

// NewDB returns a migrated database that is closed when the test ends.
func NewDB(t testing.TB) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	dbx, err := db.Connect(db.DriverSQLite, config.SQLiteDSN(path), db.PoolOptions{})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { dbx.Close() })

	if err := db.Migrate(context.Background(), dbx, db.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return dbx
}

// CreateUser inserts a user with a placeholder hash and returns its id.
func CreateUser(t testing.TB, dbx *sql.DB, username string) int64 {
	t.Helper()

	u := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
	}
	if err := repository.NewUserRepository(dbx).Create(context.Background(), &u); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u.ID
}
