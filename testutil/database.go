// Package testutil provides shared helpers for tests that need a database.
package testutil

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/poshstock/poshstock/config"
	"github.com/poshstock/poshstock/database"
	"github.com/poshstock/poshstock/models"
)

// SetupTestDB opens a migrated in-memory SQLite database that is closed
// when the test finishes.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{URL: "sqlite::memory:"})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}

// CreateUser inserts a user with a placeholder password hash.
func CreateUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	u := &models.User{Email: email, PasswordHash: "x"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("failed to seed user %q: %v", email, err)
	}
	return u
}
