package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL string
	RedisURL    string
	Port        string
	Environment string

	// ESI市场API配置
	ESIBaseURL   string
	ESIUserAgent string

	// Regions whose order books the pipeline tracks
	TrackedRegions []int64

	FreshnessWindow  time.Duration // skip refetch when last completed job is younger
	HistoryRetention int           // days of price history kept by cleanup
}

// Region is one tracked market venue.
type Region struct {
	ID   int64
	Name string
}

// Major trade hub regions tracked by default. Adding a region here covers
// both the default tracking list and its display name.
var regionCatalog = []Region{
	{10000002, "The Forge"},   // Jita
	{10000043, "Domain"},      // Amarr
	{10000030, "Heimatar"},    // Rens
	{10000032, "Sinq Laison"}, // Dodixie
	{10000042, "Metropolis"},  // Hek
}

var defaultRegions = func() []int64 {
	ids := make([]int64, len(regionCatalog))
	for i, region := range regionCatalog {
		ids[i] = region.ID
	}
	return ids
}()

// RegionName returns a human-readable region name, falling back to the id.
func RegionName(regionID int64) string {
	for _, region := range regionCatalog {
		if region.ID == regionID {
			return region.Name
		}
	}
	return strconv.FormatInt(regionID, 10)
}

func Load() *Config {
	// Default MySQL connection string
	defaultDSN := "root:password@tcp(127.0.0.1:3306)/eve_trader?charset=utf8mb4&parseTime=True&loc=Local"

	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", defaultDSN),
		RedisURL:    getEnv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		ESIBaseURL:   getEnv("ESI_BASE_URL", "https://esi.evetech.net/latest"),
		ESIUserAgent: getEnv("ESI_USER_AGENT", "eve-trader market pipeline"),

		TrackedRegions: getRegions("TRACKED_REGIONS"),

		FreshnessWindow:  getDuration("FRESHNESS_WINDOW", 150*time.Minute),
		HistoryRetention: getInt("HISTORY_RETENTION_DAYS", 90),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getRegions parses a comma-separated region id list, e.g. "10000002,10000043".
func getRegions(key string) []int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultRegions
	}
	var regions []int64
	for _, part := range strings.Split(value, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id == 0 {
			continue
		}
		regions = append(regions, id)
	}
	if len(regions) == 0 {
		return defaultRegions
	}
	return regions
}
