package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"eve-trader/internal/models"
	"eve-trader/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

// APIHandler exposes the pipeline's trigger surface and read-only access to
// the stored prices. Triggers start a run in the background and respond
// immediately; progress is observed via the ephemeral store.
type APIHandler struct {
	db       *gorm.DB
	fetcher  *services.MarketFetcher
	backfill *services.Backfill
	cleanup  *services.Cleanup
	jobs     *services.JobTracker
	progress *services.ProgressPublisher

	// concurrent triggers for the same scope are rejected, not queued
	mu     sync.Mutex
	active map[string]bool
}

func SetupRoutes(r *gin.RouterGroup, db *gorm.DB, fetcher *services.MarketFetcher, backfill *services.Backfill, cleanup *services.Cleanup, jobs *services.JobTracker, progress *services.ProgressPublisher) *APIHandler {
	handler := &APIHandler{
		db:       db,
		fetcher:  fetcher,
		backfill: backfill,
		cleanup:  cleanup,
		jobs:     jobs,
		progress: progress,
		active:   make(map[string]bool),
	}

	market := r.Group("/market")
	{
		market.POST("/fetch", handler.StartFetchAll)
		market.POST("/fetch/:region", handler.StartFetchRegion)
		market.POST("/backfill", handler.StartBackfill)
		market.POST("/cleanup", handler.RunCleanup)

		market.GET("/progress", handler.GetProgress)
		market.GET("/progress/ws", handler.ProgressWS)
		market.GET("/jobs", handler.ListJobs)

		market.GET("/prices/:region", handler.ListPrices)
		market.GET("/prices/:region/:type", handler.GetPrice)
		market.GET("/history/:region/:type", handler.GetHistory)
	}

	return handler
}

// tryAcquire marks a trigger scope busy; false means a run is already active.
func (h *APIHandler) tryAcquire(scope string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active[scope] {
		return false
	}
	h.active[scope] = true
	return true
}

func (h *APIHandler) release(scope string) {
	h.mu.Lock()
	delete(h.active, scope)
	h.mu.Unlock()
}

// StartFetchAll kicks off the freshness-gated batch fetch over all tracked
// regions.
func (h *APIHandler) StartFetchAll(c *gin.Context) {
	if !h.tryAcquire(models.RegionAll) {
		c.JSON(http.StatusConflict, gin.H{"error": "a batch fetch is already running"})
		return
	}
	go func() {
		defer h.release(models.RegionAll)
		if err := h.fetcher.FetchAllRegions(context.Background()); err != nil {
			log.Printf("[API] Batch fetch finished with error: %v", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// StartFetchRegion kicks off an explicit single-region fetch, bypassing the
// freshness gate.
func (h *APIHandler) StartFetchRegion(c *gin.Context) {
	regionID, err := strconv.ParseInt(c.Param("region"), 10, 64)
	if err != nil || regionID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid region id"})
		return
	}

	scope := "region:" + c.Param("region")
	if !h.tryAcquire(scope) {
		c.JSON(http.StatusConflict, gin.H{"error": "a fetch for this region is already running"})
		return
	}
	go func() {
		defer h.release(scope)
		if _, err := h.fetcher.FetchRegion(context.Background(), regionID); err != nil {
			log.Printf("[API] Region %d fetch finished with error: %v", regionID, err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "started", "region_id": regionID})
}

// StartBackfill kicks off the historical backfill.
func (h *APIHandler) StartBackfill(c *gin.Context) {
	if !h.tryAcquire("backfill") {
		c.JSON(http.StatusConflict, gin.H{"error": "a backfill is already running"})
		return
	}
	go func() {
		defer h.release("backfill")
		if _, err := h.backfill.Run(context.Background()); err != nil {
			log.Printf("[API] Backfill finished with error: %v", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// RunCleanup deletes expired rows synchronously and reports the count.
func (h *APIHandler) RunCleanup(c *gin.Context) {
	deleted, err := h.cleanup.Run()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// GetProgress returns the latest ephemeral progress snapshot. An absent key
// means no run is in progress, not an error.
func (h *APIHandler) GetProgress(c *gin.Context) {
	snap, err := h.progress.Current(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "progress store unavailable"})
		return
	}
	if snap == nil {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": true, "progress": snap})
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ProgressWS relays the ephemeral progress key over a websocket, polling once
// per second. Pure convenience for dashboards; the store stays the contract.
func (h *APIHandler) ProgressWS(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		snap, err := h.progress.Current(c.Request.Context())
		if err != nil {
			continue
		}
		payload := gin.H{"active": snap != nil}
		if snap != nil {
			payload["progress"] = snap
		}
		if err := conn.WriteJSON(payload); err != nil {
			return
		}
	}
}

// ListJobs returns the most recent fetch jobs, newest first.
func (h *APIHandler) ListJobs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 50
	}
	jobs, err := h.jobs.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// ListPrices returns every current snapshot for a region.
func (h *APIHandler) ListPrices(c *gin.Context) {
	regionID, err := strconv.ParseInt(c.Param("region"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid region id"})
		return
	}
	var prices []models.MarketPrice
	if err := h.db.Where("region_id = ?", regionID).Find(&prices).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"region_id": regionID, "prices": prices})
}

// GetPrice returns the current snapshot for one type in one region.
func (h *APIHandler) GetPrice(c *gin.Context) {
	regionID, err1 := strconv.ParseInt(c.Param("region"), 10, 64)
	typeID, err2 := strconv.ParseInt(c.Param("type"), 10, 64)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid region or type id"})
		return
	}
	var price models.MarketPrice
	err := h.db.Where("region_id = ? AND type_id = ?", regionID, typeID).First(&price).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot for this type and region"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, price)
}

// GetHistory returns history rows for one type in one region, oldest first,
// optionally bounded by ?days=N.
func (h *APIHandler) GetHistory(c *gin.Context) {
	regionID, err1 := strconv.ParseInt(c.Param("region"), 10, 64)
	typeID, err2 := strconv.ParseInt(c.Param("type"), 10, 64)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid region or type id"})
		return
	}

	query := h.db.Where("region_id = ? AND type_id = ?", regionID, typeID)
	if days, err := strconv.Atoi(c.Query("days")); err == nil && days > 0 {
		query = query.Where("recorded_at >= ?", time.Now().AddDate(0, 0, -days))
	}

	var rows []models.MarketPriceHistory
	if err := query.Order("recorded_at ASC").Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"region_id": regionID, "type_id": typeID, "history": rows})
}
