package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eve-trader/internal/config"
	"eve-trader/internal/database"
	"eve-trader/internal/services"
	"eve-trader/internal/services/esi"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

var (
	fetchInterval = flag.Duration("interval", 30*time.Minute, "delay between batch fetch attempts")
	runOnce       = flag.Bool("once", false, "run a single batch fetch and exit")
)

func main() {
	flag.Parse()

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
	resolver := services.NewTypeResolver(db, esiClient)

	fetcherCfg := services.DefaultFetcherConfig()
	fetcherCfg.FreshnessWindow = cfg.FreshnessWindow
	fetcher := services.NewMarketFetcher(fetcherCfg, cfg.TrackedRegions, esiClient, resolver, writer, jobs, progress)

	log.Printf("[Daemon] Started (PID %d), tracking %d regions, interval %v", os.Getpid(), len(cfg.TrackedRegions), *fetchInterval)

	if *runOnce {
		if err := fetcher.FetchAllRegions(context.Background()); err != nil {
			log.Fatalf("[Daemon] Batch fetch failed: %v", err)
		}
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*fetchInterval)
	defer ticker.Stop()

	// first pass immediately, then on the ticker
	if err := fetcher.FetchAllRegions(context.Background()); err != nil {
		log.Printf("[Daemon] Batch fetch failed: %v", err)
	}

	for {
		select {
		case <-sigChan:
			log.Println("[Daemon] Shutdown signal received, exiting")
			return
		case <-ticker.C:
			if err := fetcher.FetchAllRegions(context.Background()); err != nil {
				log.Printf("[Daemon] Batch fetch failed: %v", err)
			}
		}
	}
}
