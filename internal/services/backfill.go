package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"eve-trader/internal/models"
	"eve-trader/internal/services/esi"
)

type historySource interface {
	MarketHistory(ctx context.Context, regionID, typeID int64) ([]esi.HistoryDay, error)
}

type historyStore interface {
	TrackedTypesByRegion() (map[int64][]int64, error)
	ExistingHistoryDates(typeID, regionID int64) (map[string]bool, error)
	InsertHistoryBatch(rows []models.MarketPriceHistory) error
}

// BackfillConfig holds the pacing knobs for a backfill run.
type BackfillConfig struct {
	RateLimitCooldown time.Duration // single cooldown-and-retry per type
	ProgressEvery     int
}

func DefaultBackfillConfig() BackfillConfig {
	return BackfillConfig{
		RateLimitCooldown: 60 * time.Second,
		ProgressEvery:     100,
	}
}

// Backfill walks every tracked type across all tracked regions, pulls the
// roughly year-long daily series and inserts only the calendar dates not yet
// recorded. Long-running; intended for manual, occasional use.
type Backfill struct {
	cfg      BackfillConfig
	source   historySource
	store    historyStore
	jobs     jobLog
	progress *ProgressPublisher
}

func NewBackfill(cfg BackfillConfig, source historySource, store historyStore, jobs jobLog, progress *ProgressPublisher) *Backfill {
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 100
	}
	return &Backfill{
		cfg:      cfg,
		source:   source,
		store:    store,
		jobs:     jobs,
		progress: progress,
	}
}

// Run executes the whole backfill under a synthetic "all" job and returns the
// number of history rows inserted.
func (b *Backfill) Run(ctx context.Context) (int, error) {
	job, err := b.jobs.Start(models.RegionAll)
	if err != nil {
		return 0, err
	}

	byRegion, err := b.store.TrackedTypesByRegion()
	if err != nil {
		_ = b.jobs.Fail(job, err)
		return 0, err
	}
	total := 0
	for _, typeIDs := range byRegion {
		total += len(typeIDs)
	}
	log.Printf("[Backfill] Starting: %d types across %d regions", total, len(byRegion))

	snap := &ProgressSnapshot{
		JobID:      job.JobID,
		RegionID:   models.RegionAll,
		RegionName: "All Regions",
		Phase:      PhaseProcessingTypes,
		TotalTypes: total,
		StartedAt:  job.StartedAt,
	}
	b.progress.Publish(snap)

	processed, inserted, errCount := 0, 0, 0
	for regionID, typeIDs := range byRegion {
		for _, typeID := range typeIDs {
			processed++

			n, err := b.backfillType(ctx, regionID, typeID)
			if err != nil {
				errCount++
				log.Printf("[Backfill] Type %d region %d failed: %v", typeID, regionID, err)
			} else {
				inserted += n
			}

			if processed%b.cfg.ProgressEvery == 0 {
				snap.CurrentType = processed
				snap.Success = inserted
				snap.Errors = errCount
				b.progress.Publish(snap)
				log.Printf("[Backfill] Progress: %d/%d types, %d rows inserted, %d errors", processed, total, inserted, errCount)
			}
		}
	}

	if err := b.jobs.Complete(job, inserted); err != nil {
		return inserted, err
	}
	snap.CurrentType = processed
	snap.Success = inserted
	snap.Errors = errCount
	snap.Phase = PhaseCompleted
	b.progress.Publish(snap)
	log.Printf("[Backfill] Done: %d rows inserted, %d errors", inserted, errCount)
	return inserted, nil
}

// backfillType fetches and ingests the series for one type+region. A rate
// limit gets exactly one cooldown-and-retry; backfill favors forward progress
// over completeness of any single type.
func (b *Backfill) backfillType(ctx context.Context, regionID, typeID int64) (int, error) {
	days, err := b.source.MarketHistory(ctx, regionID, typeID)
	if errors.Is(err, esi.ErrRateLimited) {
		log.Printf("[Backfill] Rate limited on type %d, cooling down %v", typeID, b.cfg.RateLimitCooldown)
		time.Sleep(b.cfg.RateLimitCooldown)
		days, err = b.source.MarketHistory(ctx, regionID, typeID)
	}
	if err != nil {
		return 0, fmt.Errorf("history fetch failed: %w", err)
	}

	existing, err := b.store.ExistingHistoryDates(typeID, regionID)
	if err != nil {
		return 0, err
	}
	rows := buildHistoryRows(typeID, regionID, filterNewDays(days, existing))
	if err := b.store.InsertHistoryBatch(rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
