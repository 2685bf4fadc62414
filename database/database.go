// Package database opens the gorm connection and keeps the schema current.
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/poshstock/poshstock/config"
)

// Dialector picks the gorm driver for a database URL. postgres:// and
// postgresql:// URLs are converted to a libpq DSN; sqlite: URLs name a file
// (or :memory:). Anything else is passed to the postgres driver as a DSN.
func Dialector(url string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		dsn, err := pq.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse database url: %w", err)
		}
		return postgres.Open(dsn), nil
	case strings.HasPrefix(url, "sqlite:"):
		path := strings.TrimPrefix(strings.TrimPrefix(url, "sqlite:"), "//")
		if path == "" {
			return nil, fmt.Errorf("sqlite url %q has no path", url)
		}
		if path != ":memory:" && !strings.HasPrefix(path, "file:") {
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0750); err != nil {
					return nil, fmt.Errorf("create database directory: %w", err)
				}
			}
			path += "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
		}
		return sqlite.Open(path), nil
	default:
		return postgres.Open(url), nil
	}
}

// Open connects to the configured database and verifies the connection.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := Dialector(cfg.URL)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}
	if dialector.Name() == "sqlite" {
		// SQLite doesn't benefit from multiple connections, and recycling
		// the only connection would drop an in-memory database.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
