package services

import (
	"context"
	"fmt"
	"testing"

	"eve-trader/internal/models"
	"eve-trader/internal/services/esi"
)

type fakeHistorySource struct {
	series      map[string][]esi.HistoryDay // "region:type" -> series
	rateLimitOn map[string]int              // key -> rate-limit responses before success
	calls       map[string]int
}

func (s *fakeHistorySource) MarketHistory(_ context.Context, regionID, typeID int64) ([]esi.HistoryDay, error) {
	key := fmt.Sprintf("%d:%d", regionID, typeID)
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[key]++
	if s.rateLimitOn[key] > 0 {
		s.rateLimitOn[key]--
		return nil, esi.ErrRateLimited
	}
	return s.series[key], nil
}

type fakeHistoryStore struct {
	tracked  map[int64][]int64
	existing map[string]map[string]bool // "type:region" -> recorded dates
	inserted []models.MarketPriceHistory
}

func (s *fakeHistoryStore) TrackedTypesByRegion() (map[int64][]int64, error) {
	return s.tracked, nil
}

func (s *fakeHistoryStore) ExistingHistoryDates(typeID, regionID int64) (map[string]bool, error) {
	dates := s.existing[fmt.Sprintf("%d:%d", typeID, regionID)]
	if dates == nil {
		dates = map[string]bool{}
	}
	return dates, nil
}

func (s *fakeHistoryStore) InsertHistoryBatch(rows []models.MarketPriceHistory) error {
	s.inserted = append(s.inserted, rows...)
	return nil
}

func testBackfillConfig() BackfillConfig {
	return BackfillConfig{RateLimitCooldown: 0, ProgressEvery: 100}
}

func daySeries(dates ...string) []esi.HistoryDay {
	days := make([]esi.HistoryDay, 0, len(dates))
	for _, date := range dates {
		days = append(days, esi.HistoryDay{Date: date, Average: 5, Highest: 6, Lowest: 4, Volume: 100})
	}
	return days
}

func TestBackfill_DeduplicatesDates(t *testing.T) {
	incoming := daySeries(
		"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05",
		"2024-01-06", "2024-01-07", "2024-01-08", "2024-01-09", "2024-01-10",
	)
	source := &fakeHistorySource{series: map[string][]esi.HistoryDay{"10000002:34": incoming}}
	store := &fakeHistoryStore{
		tracked: map[int64][]int64{10000002: {34}},
		existing: map[string]map[string]bool{
			"34:10000002": {
				"2024-01-01": true, "2024-01-02": true, "2024-01-03": true,
				"2024-01-04": true, "2024-01-05": true,
			},
		},
	}
	jobs := &fakeJobLog{}
	backfill := NewBackfill(testBackfillConfig(), source, store, jobs, nil)

	inserted, err := backfill.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted != 5 {
		t.Errorf("inserted = %d, want 5 (days 06..10 only)", inserted)
	}
	if len(store.inserted) != 5 {
		t.Fatalf("store holds %d rows, want 5", len(store.inserted))
	}
	for i, row := range store.inserted {
		wantDate := fmt.Sprintf("2024-01-%02d", i+6)
		if got := row.RecordedAt.UTC().Format("2006-01-02"); got != wantDate {
			t.Errorf("row %d date = %s, want %s", i, got, wantDate)
		}
	}

	job := jobs.started[0]
	if job.RegionID != models.RegionAll {
		t.Errorf("job region = %s, want %s (synthetic batch id)", job.RegionID, models.RegionAll)
	}
	if job.Status != models.JobStatusCompleted || job.ItemCount != 5 {
		t.Errorf("job = %s/%d, want completed/5", job.Status, job.ItemCount)
	}
}

func TestBackfill_RerunInsertsNothing(t *testing.T) {
	incoming := daySeries("2024-01-01", "2024-01-02")
	source := &fakeHistorySource{series: map[string][]esi.HistoryDay{"10000002:34": incoming}}
	store := &fakeHistoryStore{
		tracked: map[int64][]int64{10000002: {34}},
		existing: map[string]map[string]bool{
			"34:10000002": {"2024-01-01": true, "2024-01-02": true},
		},
	}
	backfill := NewBackfill(testBackfillConfig(), source, store, &fakeJobLog{}, nil)

	inserted, err := backfill.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted != 0 {
		t.Errorf("inserted = %d, want 0 on identical rerun", inserted)
	}
	if len(store.inserted) != 0 {
		t.Errorf("store holds %d rows, want 0", len(store.inserted))
	}
}

func TestBackfill_RateLimitRetriedOnce(t *testing.T) {
	source := &fakeHistorySource{
		series:      map[string][]esi.HistoryDay{"10000002:34": daySeries("2024-01-01")},
		rateLimitOn: map[string]int{"10000002:34": 1},
	}
	store := &fakeHistoryStore{tracked: map[int64][]int64{10000002: {34}}}
	backfill := NewBackfill(testBackfillConfig(), source, store, &fakeJobLog{}, nil)

	inserted, err := backfill.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted != 1 {
		t.Errorf("inserted = %d, want 1 after single retry", inserted)
	}
	if source.calls["10000002:34"] != 2 {
		t.Errorf("history fetched %d times, want 2", source.calls["10000002:34"])
	}
}

func TestBackfill_PersistentRateLimitSkipsType(t *testing.T) {
	source := &fakeHistorySource{
		series: map[string][]esi.HistoryDay{
			"10000002:34": daySeries("2024-01-01"),
			"10000002:35": daySeries("2024-01-01"),
		},
		rateLimitOn: map[string]int{"10000002:34": 2},
	}
	store := &fakeHistoryStore{tracked: map[int64][]int64{10000002: {34, 35}}}
	jobs := &fakeJobLog{}
	backfill := NewBackfill(testBackfillConfig(), source, store, jobs, nil)

	inserted, err := backfill.Run(context.Background())
	if err != nil {
		t.Fatalf("a rate-limited type must not fail the run: %v", err)
	}
	if inserted != 1 {
		t.Errorf("inserted = %d, want 1 (type 34 skipped, 35 ingested)", inserted)
	}
	if source.calls["10000002:34"] != 2 {
		t.Errorf("type 34 fetched %d times, want 2 (no unbounded retry)", source.calls["10000002:34"])
	}
	if jobs.started[0].Status != models.JobStatusCompleted {
		t.Errorf("job status = %s, want completed", jobs.started[0].Status)
	}
}
