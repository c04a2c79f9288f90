package services

import (
	"errors"
	"fmt"
	"time"

	"eve-trader/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobTracker owns the durable FetchJob lifecycle: created running, completed
// or failed exactly once, immutable afterward. It is also the freshness
// gate's source of truth.
type JobTracker struct {
	db *gorm.DB
}

func NewJobTracker(db *gorm.DB) *JobTracker {
	return &JobTracker{db: db}
}

// Start creates a FetchJob row in running state.
func (t *JobTracker) Start(regionID string) (*models.FetchJob, error) {
	job := &models.FetchJob{
		JobID:     uuid.NewString(),
		RegionID:  regionID,
		Status:    models.JobStatusRunning,
		StartedAt: time.Now(),
	}
	if err := t.db.Create(job).Error; err != nil {
		return nil, fmt.Errorf("creating fetch job for region %s failed: %w", regionID, err)
	}
	return job, nil
}

// Complete marks the job completed with its final item count.
func (t *JobTracker) Complete(job *models.FetchJob, itemCount int) error {
	now := time.Now()
	job.Status = models.JobStatusCompleted
	job.ItemCount = itemCount
	job.CompletedAt = &now
	// the status guard keeps terminal rows immutable
	if err := t.db.Model(&models.FetchJob{}).
		Where("job_id = ? AND status = ?", job.JobID, models.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":       models.JobStatusCompleted,
			"item_count":   itemCount,
			"completed_at": now,
		}).Error; err != nil {
		return fmt.Errorf("completing job %s failed: %w", job.JobID, err)
	}
	return nil
}

// Fail marks the job failed with the captured error message.
func (t *JobTracker) Fail(job *models.FetchJob, runErr error) error {
	now := time.Now()
	job.Status = models.JobStatusFailed
	job.ErrorMessage = runErr.Error()
	job.CompletedAt = &now
	if err := t.db.Model(&models.FetchJob{}).
		Where("job_id = ? AND status = ?", job.JobID, models.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":        models.JobStatusFailed,
			"error_message": runErr.Error(),
			"completed_at":  now,
		}).Error; err != nil {
		return fmt.Errorf("failing job %s failed: %w", job.JobID, err)
	}
	return nil
}

// LatestCompleted returns the most recently completed job for the region, or
// nil when none exists.
func (t *JobTracker) LatestCompleted(regionID string) (*models.FetchJob, error) {
	var job models.FetchJob
	err := t.db.Where("region_id = ? AND status = ?", regionID, models.JobStatusCompleted).
		Order("completed_at DESC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading latest completed job for region %s failed: %w", regionID, err)
	}
	return &job, nil
}

// IsFresh reports whether the region's latest completed job finished within
// the window. Advisory: only the batch fetch consults it.
func (t *JobTracker) IsFresh(regionID string, window time.Duration) (bool, error) {
	job, err := t.LatestCompleted(regionID)
	if err != nil {
		return false, err
	}
	return freshWithin(job, time.Now(), window), nil
}

// Recent returns the newest jobs, most recent first.
func (t *JobTracker) Recent(limit int) ([]models.FetchJob, error) {
	var jobs []models.FetchJob
	if err := t.db.Order("started_at DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("loading recent jobs failed: %w", err)
	}
	return jobs, nil
}

func freshWithin(job *models.FetchJob, now time.Time, window time.Duration) bool {
	if job == nil || job.CompletedAt == nil {
		return false
	}
	return now.Sub(*job.CompletedAt) <= window
}
