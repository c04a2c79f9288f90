package services

import (
	"errors"
	"testing"
	"time"

	"eve-trader/internal/models"
)

func TestJobLifecycle(t *testing.T) {
	db := newTestDB(t)
	tracker := NewJobTracker(db)

	job, err := tracker.Start("10000002")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if job.JobID == "" {
		t.Error("job has no id")
	}

	var row models.FetchJob
	if err := db.First(&row, "job_id = ?", job.JobID).Error; err != nil {
		t.Fatalf("loading started job: %v", err)
	}
	if row.Status != models.JobStatusRunning {
		t.Errorf("status = %q, want running", row.Status)
	}

	if err := tracker.Complete(job, 1543); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := db.First(&row, "job_id = ?", job.JobID).Error; err != nil {
		t.Fatalf("loading completed job: %v", err)
	}
	if row.Status != models.JobStatusCompleted || row.ItemCount != 1543 {
		t.Errorf("row = {%q %d}, want {completed 1543}", row.Status, row.ItemCount)
	}
	if row.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
}

func TestTerminalJobStaysImmutable(t *testing.T) {
	db := newTestDB(t)
	tracker := NewJobTracker(db)

	job, err := tracker.Start("10000002")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := tracker.Complete(job, 10); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	// a late failure report must not rewrite the finished row
	if err := tracker.Fail(job, errors.New("stale worker")); err != nil {
		t.Fatalf("Fail on terminal job: %v", err)
	}
	var row models.FetchJob
	if err := db.First(&row, "job_id = ?", job.JobID).Error; err != nil {
		t.Fatalf("loading job: %v", err)
	}
	if row.Status != models.JobStatusCompleted || row.ErrorMessage != "" || row.ItemCount != 10 {
		t.Errorf("row = {%q %q %d}, want untouched {completed \"\" 10}", row.Status, row.ErrorMessage, row.ItemCount)
	}

	// and the same the other way around
	failed, err := tracker.Start("10000043")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := tracker.Fail(failed, errors.New("upstream down")); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if err := tracker.Complete(failed, 99); err != nil {
		t.Fatalf("Complete on terminal job: %v", err)
	}
	row = models.FetchJob{}
	if err := db.First(&row, "job_id = ?", failed.JobID).Error; err != nil {
		t.Fatalf("loading job: %v", err)
	}
	if row.Status != models.JobStatusFailed || row.ItemCount != 0 {
		t.Errorf("row = {%q %d}, want untouched {failed 0}", row.Status, row.ItemCount)
	}
}

func TestLatestCompletedAndFreshness(t *testing.T) {
	db := newTestDB(t)
	tracker := NewJobTracker(db)

	fresh, err := tracker.IsFresh("10000002", 150*time.Minute)
	if err != nil {
		t.Fatalf("IsFresh with no jobs: %v", err)
	}
	if fresh {
		t.Error("region with no completed job reported fresh")
	}

	// an old run first, then a recent one; the recent one must win
	old := time.Now().Add(-3 * time.Hour)
	if err := db.Create(&models.FetchJob{
		JobID: "old-run", RegionID: "10000002", Status: models.JobStatusCompleted,
		ItemCount: 5, StartedAt: old, CompletedAt: &old,
	}).Error; err != nil {
		t.Fatalf("seeding old job: %v", err)
	}

	fresh, err = tracker.IsFresh("10000002", 150*time.Minute)
	if err != nil {
		t.Fatalf("IsFresh: %v", err)
	}
	if fresh {
		t.Error("3h-old completion reported fresh within 150m")
	}

	job, err := tracker.Start("10000002")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := tracker.Complete(job, 20); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	latest, err := tracker.LatestCompleted("10000002")
	if err != nil {
		t.Fatalf("LatestCompleted: %v", err)
	}
	if latest == nil || latest.JobID != job.JobID {
		t.Fatalf("latest = %v, want the just-completed job", latest)
	}
	fresh, err = tracker.IsFresh("10000002", 150*time.Minute)
	if err != nil {
		t.Fatalf("IsFresh: %v", err)
	}
	if !fresh {
		t.Error("just-completed run not reported fresh")
	}
}
