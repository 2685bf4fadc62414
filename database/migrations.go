package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/poshstock/poshstock/models"
)

// Migration is one schema or data change, applied at most once.
type Migration struct {
	Up          func(*gorm.DB) error
	Description string
	Version     int
}

// SchemaMigration records an applied migration.
type SchemaMigration struct {
	Version   int `gorm:"primaryKey;autoIncrement:false"`
	AppliedAt time.Time
}

func (SchemaMigration) TableName() string {
	return "schema_migrations"
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.User{}, &models.Session{}, &models.Category{}, &models.Item{})
		},
	},
	{
		Version:     2,
		Description: "Add sold price to items",
		Up: func(tx *gorm.DB) error {
			m := tx.Migrator()
			if m.HasColumn(&models.Item{}, "SoldPrice") {
				return nil
			}
			return m.AddColumn(&models.Item{}, "SoldPrice")
		},
	},
	{
		Version:     3,
		Description: "Backfill purchase prices and normalise emails",
		Up: func(tx *gorm.DB) error {
			if err := tx.Exec("UPDATE items SET purchase_price = 0 WHERE purchase_price IS NULL").Error; err != nil {
				return err
			}
			return tx.Exec("UPDATE users SET email = LOWER(TRIM(email))").Error
		},
	},
}

// LatestVersion is the schema version Migrate brings a database to.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// CurrentVersion returns the highest applied migration, or 0.
func CurrentVersion(ctx context.Context, db *gorm.DB) (int, error) {
	if err := db.WithContext(ctx).AutoMigrate(&SchemaMigration{}); err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations: %w", err)
	}
	var version int
	err := db.WithContext(ctx).Model(&SchemaMigration{}).
		Select("COALESCE(MAX(version), 0)").
		Scan(&version).Error
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies all pending migrations, each in its own transaction.
func Migrate(ctx context.Context, db *gorm.DB) error {
	current, err := CurrentVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= current {
			continue
		}

		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if upErr := migration.Up(tx); upErr != nil {
				return upErr
			}
			return tx.Create(&SchemaMigration{Version: migration.Version, AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}
	return nil
}
