package main

import (
	"log"
	"net/http"

	"eve-trader/internal/api"
	"eve-trader/internal/config"
	"eve-trader/internal/database"
	"eve-trader/internal/services"
	"eve-trader/internal/services/esi"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Ephemeral progress store; the pipeline runs fine without it
	var redisClient *redis.Client
	if opts, err := redis.ParseURL(cfg.RedisURL); err == nil {
		redisClient = redis.NewClient(opts)
	} else {
		log.Printf("Invalid REDIS_URL, progress publishing disabled: %v", err)
	}

	esiClient := esi.NewClient(cfg.ESIBaseURL, cfg.ESIUserAgent)
	progress := services.NewProgressPublisher(redisClient)
	jobs := services.NewJobTracker(db)
	writer := services.NewPriceWriter(db)
	resolver := services.NewTypeResolver(db, esiClient)

	fetcherCfg := services.DefaultFetcherConfig()
	fetcherCfg.FreshnessWindow = cfg.FreshnessWindow
	fetcher := services.NewMarketFetcher(fetcherCfg, cfg.TrackedRegions, esiClient, resolver, writer, jobs, progress)
	backfill := services.NewBackfill(services.DefaultBackfillConfig(), esiClient, writer, jobs, progress)
	cleanup := services.NewCleanup(db, cfg.HistoryRetention)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api.SetupRoutes(r.Group("/api"), db, fetcher, backfill, cleanup, jobs, progress)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
