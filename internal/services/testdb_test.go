package services

import (
	"testing"

	"eve-trader/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a fresh in-memory database with the pipeline schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.ItemType{},
		&models.MarketPrice{},
		&models.MarketPriceHistory{},
		&models.FetchJob{},
		&models.AppraisalRecord{},
	); err != nil {
		t.Fatalf("migrating test schema: %v", err)
	}
	return db
}
