package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Progress phases as seen by polling consumers.
const (
	PhaseFetchingOrders  = "fetching_orders"
	PhaseProcessingTypes = "processing_types"
	PhaseCompleted       = "completed"
	PhaseFailed          = "failed"
)

// ProgressKey is the well-known key holding the latest progress snapshot.
const ProgressKey = "market:fetch:progress"

const (
	progressTTL = time.Hour
	// terminal snapshots linger briefly so pollers can observe them
	terminalTTL = 30 * time.Second
)

// ProgressSnapshot is the ephemeral, advisory progress record. If the key is
// absent the durable FetchJob row is the source of truth.
type ProgressSnapshot struct {
	JobID       string    `json:"job_id"`
	RegionID    string    `json:"region_id"`
	RegionName  string    `json:"region_name"`
	Phase       string    `json:"phase"`
	CurrentPage int       `json:"current_page"`
	TotalPages  int       `json:"total_pages"`
	CurrentType int       `json:"current_type"`
	TotalTypes  int       `json:"total_types"`
	Success     int       `json:"success"`
	Errors      int       `json:"errors"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProgressPublisher writes progress snapshots to the fast shared store.
// Strictly best-effort: store failures are swallowed and never block a run.
type ProgressPublisher struct {
	client *redis.Client
}

func NewProgressPublisher(client *redis.Client) *ProgressPublisher {
	return &ProgressPublisher{client: client}
}

// Publish stores the snapshot under the well-known key. Terminal phases get a
// short store-native TTL instead of an in-process removal timer, so they
// expire even if this process dies first.
func (p *ProgressPublisher) Publish(snap *ProgressSnapshot) {
	if p == nil || p.client == nil || snap == nil {
		return
	}
	snap.UpdatedAt = time.Now()

	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	ttl := progressTTL
	if snap.Phase == PhaseCompleted || snap.Phase == PhaseFailed {
		ttl = terminalTTL
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = p.client.Set(ctx, ProgressKey, data, ttl).Err()
}

// Current returns the latest snapshot, or nil when no run is in progress.
func (p *ProgressPublisher) Current(ctx context.Context) (*ProgressSnapshot, error) {
	if p == nil || p.client == nil {
		return nil, nil
	}
	data, err := p.client.Get(ctx, ProgressKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap ProgressSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
