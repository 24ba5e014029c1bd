package dbhelper

import (
	"fmt"
	"os"
	"time"

	"outfitapi/config"
	"outfitapi/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to postgres and migrates the history tables.
func Open(cfg config.DB) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Minute * 5)

	if err := Migrate(db, &models.OutfitGeneration{}); err != nil {
		return nil, err
	}
	return db, nil
}

func SetupDB(cfg config.DB) *gorm.DB {
	db, err := Open(cfg)
	if err != nil {
		panic(err)
	}
	return db
}

// SetupTestDB connects to the local test database. DB_* variables override the defaults.
func SetupTestDB() (*gorm.DB, error) {
	return Open(config.DB{
		Username: envOr("DB_USERNAME", "outfit"),
		Password: envOr("DB_PASSWORD", "outfit"),
		Host:     envOr("DB_HOST", "localhost"),
		Port:     envOr("DB_PORT", "5432"),
		Name:     envOr("DB_NAME", "outfit_test"),
	})
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
