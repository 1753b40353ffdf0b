package db

import (
	"fmt"
	"log"
	"strings"

	"collab-editor/internal/config"
	"collab-editor/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormDB wraps the GORM database instance
type GormDB struct {
	*gorm.DB
}

// NewGorm opens the relational store selected by DOCUMENT_STORE and migrates it.
// Learning: The same repositories run on Postgres in production and on SQLite
// for local development, because GORM hides the dialect differences
// (ON CONFLICT upserts are supported by both).
func NewGorm(cfg *config.Config) (*GormDB, error) {
	var dialector gorm.Dialector
	switch cfg.DocumentStore {
	case config.StoreSQLite:
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		dialector = postgres.Open(cfg.DatabaseURL())
	}

	db, err := Open(dialector, cfg.DBLogLevel)
	if err != nil {
		return nil, err
	}

	if cfg.DocumentStore == config.StoreSQLite {
		// SQLite allows a single writer; serialise through one connection
		sqlDB, err := db.DB.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	log.Printf("✓ Database (%s) connected and migrated successfully", dialector.Name())

	return db, nil
}

// Open connects with the given dialector and runs migrations
func Open(dialector gorm.Dialector, logLevel string) (*GormDB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(parseLogLevel(logLevel)),
		// Map driver-specific unique violations to gorm.ErrDuplicatedKey
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return &GormDB{db}, nil
}

// Migrate creates or updates the schema
// Learning: GORM automatically creates/updates tables based on struct definitions
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Document{},
		&models.User{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *GormDB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info // Shows SQL queries
	default:
		return logger.Warn
	}
}
