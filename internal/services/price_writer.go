package services

import (
	"fmt"
	"time"

	"eve-trader/internal/models"
	"eve-trader/internal/services/esi"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PriceWriter persists price aggregates: the current snapshot is upserted by
// (type, region) while history is append-only. Calling WritePrice twice with
// the same key leaves one snapshot row and two history rows; each call is a
// genuinely new observation on the live path.
type PriceWriter struct {
	db *gorm.DB
}

func NewPriceWriter(db *gorm.DB) *PriceWriter {
	return &PriceWriter{db: db}
}

// WritePrice upserts the MarketPrice snapshot and appends one history row
// stamped with observedAt.
func (w *PriceWriter) WritePrice(typeID, regionID int64, agg PriceAggregate, observedAt time.Time) error {
	snapshot := models.MarketPrice{
		TypeID:     typeID,
		RegionID:   regionID,
		BuyPrice:   agg.BuyPrice,
		SellPrice:  agg.SellPrice,
		BuyVolume:  agg.BuyVolume,
		SellVolume: agg.SellVolume,
	}
	err := w.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "type_id"}, {Name: "region_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"buy_price", "sell_price", "buy_volume", "sell_volume", "updated_at",
		}),
	}).Create(&snapshot).Error
	if err != nil {
		return fmt.Errorf("snapshot upsert failed for type %d region %d: %w", typeID, regionID, err)
	}

	history := models.MarketPriceHistory{
		TypeID:     typeID,
		RegionID:   regionID,
		BuyPrice:   agg.BuyPrice,
		SellPrice:  agg.SellPrice,
		BuyVolume:  agg.BuyVolume,
		SellVolume: agg.SellVolume,
		RecordedAt: observedAt,
	}
	if err := w.db.Create(&history).Error; err != nil {
		return fmt.Errorf("history append failed for type %d region %d: %w", typeID, regionID, err)
	}
	return nil
}

// TrackedTypesByRegion returns every (type, region) pair present in the
// snapshot table, grouped by region. This is the backfill's work list.
func (w *PriceWriter) TrackedTypesByRegion() (map[int64][]int64, error) {
	var rows []models.MarketPrice
	if err := w.db.Select("type_id", "region_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading tracked types failed: %w", err)
	}
	byRegion := make(map[int64][]int64)
	for _, row := range rows {
		byRegion[row.RegionID] = append(byRegion[row.RegionID], row.TypeID)
	}
	return byRegion, nil
}

// ExistingHistoryDates returns the set of calendar dates ("2006-01-02", UTC)
// already recorded for one type+region.
func (w *PriceWriter) ExistingHistoryDates(typeID, regionID int64) (map[string]bool, error) {
	var stamps []time.Time
	err := w.db.Model(&models.MarketPriceHistory{}).
		Where("type_id = ? AND region_id = ?", typeID, regionID).
		Pluck("recorded_at", &stamps).Error
	if err != nil {
		return nil, fmt.Errorf("loading history dates failed for type %d region %d: %w", typeID, regionID, err)
	}
	dates := make(map[string]bool, len(stamps))
	for _, ts := range stamps {
		dates[ts.UTC().Format("2006-01-02")] = true
	}
	return dates, nil
}

// InsertHistoryBatch appends history rows in one batch insert.
func (w *PriceWriter) InsertHistoryBatch(rows []models.MarketPriceHistory) error {
	if len(rows) == 0 {
		return nil
	}
	if err := w.db.CreateInBatches(rows, 500).Error; err != nil {
		return fmt.Errorf("history batch insert failed: %w", err)
	}
	return nil
}

// filterNewDays keeps only the days whose calendar date is not yet recorded.
func filterNewDays(days []esi.HistoryDay, existing map[string]bool) []esi.HistoryDay {
	var fresh []esi.HistoryDay
	for _, day := range days {
		if !existing[day.Date] {
			fresh = append(fresh, day)
		}
	}
	return fresh
}

// historyPrices derives snapshot-shaped prices from a daily aggregate. The
// upstream history endpoint has no per-side breakdown, so the lowest trade
// stands in for the ask (falling back to the average when non-positive) and
// the average for the bid.
func historyPrices(day esi.HistoryDay) (buyPrice, sellPrice float64) {
	sellPrice = day.Lowest
	if sellPrice <= 0 {
		sellPrice = day.Average
	}
	return day.Average, sellPrice
}

// buildHistoryRows converts a filtered daily series into history rows. Days
// with an unparseable date are dropped. Volume is split evenly between sides;
// a documented approximation, not upstream fact.
func buildHistoryRows(typeID, regionID int64, days []esi.HistoryDay) []models.MarketPriceHistory {
	rows := make([]models.MarketPriceHistory, 0, len(days))
	for _, day := range days {
		recordedAt, err := time.ParseInLocation("2006-01-02", day.Date, time.UTC)
		if err != nil {
			continue
		}
		buyPrice, sellPrice := historyPrices(day)
		rows = append(rows, models.MarketPriceHistory{
			TypeID:     typeID,
			RegionID:   regionID,
			BuyPrice:   buyPrice,
			SellPrice:  sellPrice,
			BuyVolume:  day.Volume / 2,
			SellVolume: day.Volume - day.Volume/2,
			RecordedAt: recordedAt,
		})
	}
	return rows
}
