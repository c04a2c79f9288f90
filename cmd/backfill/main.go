package main

import (
	"context"
	"log"

	"eve-trader/internal/config"
	"eve-trader/internal/database"
	"eve-trader/internal/services"
	"eve-trader/internal/services/esi"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// One-shot historical backfill. Blocks until every tracked type in every
// tracked region has been attempted; expect hours on a full catalog.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}

	var redisClient *redis.Client
	if opts, err := redis.ParseURL(cfg.RedisURL); err == nil {
		redisClient = redis.NewClient(opts)
	}

	esiClient := esi.NewClient(cfg.ESIBaseURL, cfg.ESIUserAgent)
	progress := services.NewProgressPublisher(redisClient)
	jobs := services.NewJobTracker(db)
	writer := services.NewPriceWriter(db)

	backfill := services.NewBackfill(services.DefaultBackfillConfig(), esiClient, writer, jobs, progress)

	inserted, err := backfill.Run(context.Background())
	if err != nil {
		log.Fatalf("Backfill failed: %v", err)
	}
	log.Printf("Backfill complete: %d history rows inserted", inserted)
}
