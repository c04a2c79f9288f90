package models

import (
	"time"
)

// Fetch job status values
const (
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// RegionAll is the synthetic region identifier used by batch fetches and the
// historical backfill.
const RegionAll = "all"

// ItemType represents reference metadata for a tradable item type.
// Rows are created lazily the first time a price references an unknown type
// and refreshed whenever newer metadata is fetched; the pipeline never
// deletes them.
type ItemType struct {
	TypeID         int64     `json:"type_id" gorm:"primaryKey;autoIncrement:false"`
	Name           string    `json:"name" gorm:"not null"`
	GroupID        int64     `json:"group_id" gorm:"index"`
	CategoryID     int64     `json:"category_id" gorm:"index"`
	Volume         float64   `json:"volume"`
	PackagedVolume float64   `json:"packaged_volume"`
	PortionSize    int       `json:"portion_size"`
	IconID         int64     `json:"icon_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MarketPrice is the current best-bid/best-ask snapshot for one item type in
// one region. Exactly one row per (type_id, region_id); overwritten in place
// on every successful fetch cycle.
type MarketPrice struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	TypeID     int64     `json:"type_id" gorm:"uniqueIndex:idx_type_region;not null"`
	RegionID   int64     `json:"region_id" gorm:"uniqueIndex:idx_type_region;not null"`
	BuyPrice   float64   `json:"buy_price"`
	SellPrice  float64   `json:"sell_price"`
	BuyVolume  int64     `json:"buy_volume"`
	SellVolume int64     `json:"sell_volume"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MarketPriceHistory is an immutable timestamped copy of snapshot values,
// one row per (type_id, region_id, recorded_at). Inserted, never updated.
type MarketPriceHistory struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	TypeID     int64     `json:"type_id" gorm:"index:idx_hist_type_region;not null"`
	RegionID   int64     `json:"region_id" gorm:"index:idx_hist_type_region;not null"`
	BuyPrice   float64   `json:"buy_price"`
	SellPrice  float64   `json:"sell_price"`
	BuyVolume  int64     `json:"buy_volume"`
	SellVolume int64     `json:"sell_volume"`
	RecordedAt time.Time `json:"recorded_at" gorm:"index;not null"`
	CreatedAt  time.Time `json:"created_at"`
}

// FetchJob is the durable audit record for one pipeline run. Created in
// running state, transitions exactly once to completed or failed and is
// immutable afterward.
type FetchJob struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	JobID        string     `json:"job_id" gorm:"uniqueIndex;not null"`
	RegionID     string     `json:"region_id" gorm:"index;not null"` // region id or "all"
	Status       string     `json:"status" gorm:"index;default:'running'"`
	ItemCount    int        `json:"item_count"`
	ErrorMessage string     `json:"error_message" gorm:"type:text"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at" gorm:"index"`
}

// AppraisalRecord is a shareable appraisal produced by downstream tooling.
// The pipeline does not create these; it only owns their retention and
// deletes expired rows during cleanup.
type AppraisalRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Code      string    `json:"code" gorm:"uniqueIndex;not null"`
	Payload   string    `json:"payload" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index"`
}
