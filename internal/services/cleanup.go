package services

import (
	"fmt"
	"log"
	"time"

	"eve-trader/internal/models"

	"gorm.io/gorm"
)

// Cleanup deletes price history past the retention window and expired
// appraisal records. Hard deletes by cutoff timestamp; no archival.
type Cleanup struct {
	db            *gorm.DB
	retentionDays int
}

func NewCleanup(db *gorm.DB, retentionDays int) *Cleanup {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &Cleanup{db: db, retentionDays: retentionDays}
}

// Run deletes expired rows and returns the total number removed.
func (c *Cleanup) Run() (int64, error) {
	now := time.Now()
	cutoff := retentionCutoff(now, c.retentionDays)

	res := c.db.Where("recorded_at < ?", cutoff).Delete(&models.MarketPriceHistory{})
	if res.Error != nil {
		return 0, fmt.Errorf("history cleanup failed: %w", res.Error)
	}
	deleted := res.RowsAffected

	res = c.db.Where("expires_at < ?", now).Delete(&models.AppraisalRecord{})
	if res.Error != nil {
		return deleted, fmt.Errorf("appraisal cleanup failed: %w", res.Error)
	}
	deleted += res.RowsAffected

	log.Printf("[Cleanup] Deleted %d expired rows (history cutoff %s)", deleted, cutoff.Format("2006-01-02"))
	return deleted, nil
}

func retentionCutoff(now time.Time, retentionDays int) time.Time {
	return now.AddDate(0, 0, -retentionDays)
}
