package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"eve-trader/internal/config"
	"eve-trader/internal/models"
	"eve-trader/internal/services/esi"
)

type orderSource interface {
	MarketOrders(ctx context.Context, regionID int64, page int) ([]esi.MarketOrder, int, error)
}

type typeResolver interface {
	Ensure(ctx context.Context, typeID int64) error
}

type priceSink interface {
	WritePrice(typeID, regionID int64, agg PriceAggregate, observedAt time.Time) error
}

type jobLog interface {
	Start(regionID string) (*models.FetchJob, error)
	Complete(job *models.FetchJob, itemCount int) error
	Fail(job *models.FetchJob, runErr error) error
	IsFresh(regionID string, window time.Duration) (bool, error)
}

// FetcherConfig holds the pacing knobs for a region fetch.
type FetcherConfig struct {
	PageDelay         time.Duration // pause between order pages
	RateLimitCooldown time.Duration // pause before retrying an error-limited page
	RegionDelay       time.Duration // pause between regions in a batch run
	FreshnessWindow   time.Duration // batch gate: skip regions fetched this recently
	ProgressEvery     int           // per-type progress cadence
}

func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		PageDelay:         100 * time.Millisecond,
		RateLimitCooldown: 60 * time.Second,
		RegionDelay:       5 * time.Second,
		FreshnessWindow:   150 * time.Minute,
		ProgressEvery:     100,
	}
}

// MarketFetcher drives one region fetch end to end: paginated order download,
// order book aggregation, reference resolution and snapshot/history writes,
// with the job record and the progress stream maintained throughout.
type MarketFetcher struct {
	cfg      FetcherConfig
	regions  []int64
	source   orderSource
	resolver typeResolver
	sink     priceSink
	jobs     jobLog
	progress *ProgressPublisher
}

func NewMarketFetcher(cfg FetcherConfig, regions []int64, source orderSource, resolver typeResolver, sink priceSink, jobs jobLog, progress *ProgressPublisher) *MarketFetcher {
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 100
	}
	return &MarketFetcher{
		cfg:      cfg,
		regions:  regions,
		source:   source,
		resolver: resolver,
		sink:     sink,
		jobs:     jobs,
		progress: progress,
	}
}

// FetchRegion runs one full fetch cycle for the region and returns the number
// of types persisted. It always runs; the freshness gate applies only to
// FetchAllRegions.
func (f *MarketFetcher) FetchRegion(ctx context.Context, regionID int64) (int, error) {
	job, err := f.jobs.Start(strconv.FormatInt(regionID, 10))
	if err != nil {
		return 0, err
	}

	snap := &ProgressSnapshot{
		JobID:      job.JobID,
		RegionID:   job.RegionID,
		RegionName: config.RegionName(regionID),
		Phase:      PhaseFetchingOrders,
		StartedAt:  job.StartedAt,
	}
	f.progress.Publish(snap)

	success, err := f.runCycle(ctx, regionID, snap)
	if err != nil {
		log.Printf("[Market Fetcher] Region %d fetch failed: %v", regionID, err)
		snap.Phase = PhaseFailed
		f.progress.Publish(snap)
		if failErr := f.jobs.Fail(job, err); failErr != nil {
			log.Printf("[Market Fetcher] Could not record job failure: %v", failErr)
		}
		return 0, err
	}

	if err := f.jobs.Complete(job, success); err != nil {
		return success, err
	}
	snap.Phase = PhaseCompleted
	f.progress.Publish(snap)
	log.Printf("[Market Fetcher] Region %d done: %d types saved, %d errors", regionID, success, snap.Errors)
	return success, nil
}

func (f *MarketFetcher) runCycle(ctx context.Context, regionID int64, snap *ProgressSnapshot) (int, error) {
	orders, err := f.fetchAllOrders(ctx, regionID, snap)
	if err != nil {
		return 0, err
	}

	aggregates := AggregateOrders(orders)
	log.Printf("[Market Fetcher] Region %d: %d orders across %d types", regionID, len(orders), len(aggregates))

	snap.Phase = PhaseProcessingTypes
	snap.TotalTypes = len(aggregates)
	snap.CurrentType = 0
	f.progress.Publish(snap)

	observedAt := time.Now()
	processed, success, errCount := 0, 0, 0
	for typeID, agg := range aggregates {
		processed++
		if err := f.persistType(ctx, typeID, regionID, agg, observedAt); err != nil {
			errCount++
			log.Printf("[Market Fetcher] Skipping type %d: %v", typeID, err)
		} else {
			success++
		}
		if processed%f.cfg.ProgressEvery == 0 {
			snap.CurrentType = processed
			snap.Success = success
			snap.Errors = errCount
			f.progress.Publish(snap)
		}
	}

	snap.CurrentType = processed
	snap.Success = success
	snap.Errors = errCount
	return success, nil
}

// persistType resolves reference metadata first so the referential ordering
// (ItemType before any price row) holds, then writes snapshot and history.
func (f *MarketFetcher) persistType(ctx context.Context, typeID, regionID int64, agg PriceAggregate, observedAt time.Time) error {
	if err := f.resolver.Ensure(ctx, typeID); err != nil {
		return err
	}
	return f.sink.WritePrice(typeID, regionID, agg, observedAt)
}

// fetchAllOrders walks the paginated order book sequentially. A rate-limited
// page is retried after the cooldown for as long as it takes; any other
// failure is fatal for the run.
func (f *MarketFetcher) fetchAllOrders(ctx context.Context, regionID int64, snap *ProgressSnapshot) ([]esi.MarketOrder, error) {
	var all []esi.MarketOrder
	page, totalPages := 1, 1
	for page <= totalPages {
		orders, pages, err := f.source.MarketOrders(ctx, regionID, page)
		if errors.Is(err, esi.ErrRateLimited) {
			log.Printf("[Market Fetcher] Region %d page %d rate limited, cooling down %v", regionID, page, f.cfg.RateLimitCooldown)
			time.Sleep(f.cfg.RateLimitCooldown)
			continue
		}
		if err != nil {
			return nil, err
		}

		totalPages = pages
		all = append(all, orders...)
		snap.CurrentPage = page
		snap.TotalPages = totalPages
		f.progress.Publish(snap)

		page++
		if page <= totalPages {
			time.Sleep(f.cfg.PageDelay)
		}
	}
	return all, nil
}

// FetchAllRegions runs a freshness-gated fetch over every tracked region,
// one at a time with a fixed delay in between. A failed region does not stop
// the batch.
func (f *MarketFetcher) FetchAllRegions(ctx context.Context) error {
	var errs []error
	for _, regionID := range f.regions {
		fresh, err := f.jobs.IsFresh(strconv.FormatInt(regionID, 10), f.cfg.FreshnessWindow)
		if err != nil {
			return err
		}
		if fresh {
			log.Printf("[Market Fetcher] Region %d still fresh, skipping", regionID)
			continue
		}

		if _, err := f.FetchRegion(ctx, regionID); err != nil {
			errs = append(errs, fmt.Errorf("region %d: %w", regionID, err))
		}
		// let the upstream breathe after a multi-page fetch, success or not
		time.Sleep(f.cfg.RegionDelay)
	}
	return errors.Join(errs...)
}
