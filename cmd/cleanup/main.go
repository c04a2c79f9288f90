package main

import (
	"flag"
	"log"

	"eve-trader/internal/config"
	"eve-trader/internal/database"
	"eve-trader/internal/services"

	"github.com/joho/godotenv"
)

var retentionDays = flag.Int("retention", 0, "history retention in days (0 = config default)")

// One-shot retention cleanup.
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

	days := cfg.HistoryRetention
	if *retentionDays > 0 {
		days = *retentionDays
	}

	deleted, err := services.NewCleanup(db, days).Run()
	if err != nil {
		log.Fatalf("Cleanup failed: %v", err)
	}
	log.Printf("Cleanup complete: %d rows deleted", deleted)
}
