// Package config provides centralized default values for the Habilidade server
package config

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		file, err := os.Open(".env")
		if err != nil {
			return
		}
		defer file.Close()

		log.Println("Loading configuration overrides from .env file...")
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseFloat(valStr, 64); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%g (default: %g)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Cache Sizing
	MemoryCacheMaxEntries  int
	StorageCacheMaxEntries int

	// Cache TTLs
	PostsListTTL  time.Duration
	SearchTTL     time.Duration
	SinglePostTTL time.Duration
	CategoriesTTL time.Duration

	// Invalidation
	InvalidationDrainInterval time.Duration
	InvalidationBatchSize     int

	// Maintenance
	MaintenanceInterval     time.Duration
	MonitorInterval         time.Duration
	CleanupInterval         time.Duration
	CleanupVerbose          bool
	HitRateRewarmThreshold  float64
	MemoryPressureThreshold float64

	// Deferred loading
	GateScrollThreshold float64
	GateIdleFallback    time.Duration
	GateSessionTTL      time.Duration
	GateCleanupInterval time.Duration
	GAMeasurementID     string

	// Analytics
	AnalyticsBatchSize    int
	AnalyticsBatchTimeout time.Duration
	AnalyticsMaxStored    int
	AnalyticsDevMode      bool
	AnalyticsCollectorURL string

	// Image processing
	ImageMaxFileSize     int64
	ImageBatchSize       int
	ImageBatchDelay      time.Duration
	ImageRecordRetention time.Duration
	MediaBasePath        string

	// Persistence
	ContentDBPath string
	CacheDBPath   string

	// Auth
	JWTSecret         string
	AdminPasswordHash string
	TokenTTL          time.Duration

	// Prefetch
	PopularPrefetchLimit int
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Cache Sizing
	MemoryCacheMaxEntries = getEnvInt("MEMORY_CACHE_MAX_ENTRIES", 50)
	StorageCacheMaxEntries = getEnvInt("STORAGE_CACHE_MAX_ENTRIES", 100)

	// Cache TTLs
	PostsListTTL = getEnvDuration("POSTS_LIST_TTL", 5*time.Minute)
	SearchTTL = getEnvDuration("SEARCH_TTL", 2*time.Minute)
	SinglePostTTL = getEnvDuration("SINGLE_POST_TTL", 1*time.Hour)
	CategoriesTTL = getEnvDuration("CATEGORIES_TTL", 30*time.Minute)

	// Invalidation
	InvalidationDrainInterval = getEnvDuration("INVALIDATION_DRAIN_INTERVAL", 2*time.Second)
	InvalidationBatchSize = getEnvInt("INVALIDATION_BATCH_SIZE", 20)

	// Maintenance
	MaintenanceInterval = getEnvDuration("MAINTENANCE_INTERVAL", 15*time.Minute)
	MonitorInterval = getEnvDuration("MONITOR_INTERVAL", 5*time.Minute)
	CleanupInterval = time.Duration(getEnvInt("CACHE_CLEANUP_INTERVAL_MINUTES", 30)) * time.Minute
	CleanupVerbose = getEnvBool("CACHE_CLEANUP_VERBOSE", false)
	HitRateRewarmThreshold = getEnvFloat("HIT_RATE_REWARM_THRESHOLD", 60.0)
	MemoryPressureThreshold = getEnvFloat("MEMORY_PRESSURE_THRESHOLD", 90.0)

	// Deferred loading
	GateScrollThreshold = getEnvFloat("GATE_SCROLL_THRESHOLD", 0.25)
	GateIdleFallback = getEnvDuration("GATE_IDLE_FALLBACK", 2*time.Second)
	GateSessionTTL = getEnvDuration("GATE_SESSION_TTL", 30*time.Minute)
	GateCleanupInterval = getEnvDuration("GATE_CLEANUP_INTERVAL", 5*time.Minute)
	GAMeasurementID = getEnvString("GA_MEASUREMENT_ID", "")

	// Analytics
	AnalyticsBatchSize = getEnvInt("ANALYTICS_BATCH_SIZE", 10)
	AnalyticsBatchTimeout = getEnvDuration("ANALYTICS_BATCH_TIMEOUT", 5*time.Second)
	AnalyticsMaxStored = getEnvInt("ANALYTICS_MAX_STORED", 1000)
	AnalyticsDevMode = getEnvBool("ANALYTICS_DEV_MODE", true)
	AnalyticsCollectorURL = getEnvString("ANALYTICS_COLLECTOR_URL", "")

	// Image processing
	ImageMaxFileSize = int64(getEnvInt("IMAGE_MAX_FILE_SIZE_MB", 10)) * 1024 * 1024
	ImageBatchSize = getEnvInt("IMAGE_BATCH_SIZE", 5)
	ImageBatchDelay = getEnvDuration("IMAGE_BATCH_DELAY", 100*time.Millisecond)
	ImageRecordRetention = getEnvDuration("IMAGE_RECORD_RETENTION", 60*time.Second)
	MediaBasePath = getEnvString("MEDIA_BASE_PATH", "media")

	// Persistence
	ContentDBPath = getEnvString("CONTENT_DB_PATH", "data/content.db")
	CacheDBPath = getEnvString("CACHE_DB_PATH", "data/cache.db")

	// Auth
	JWTSecret = getEnvString("JWT_SECRET", "")
	AdminPasswordHash = getEnvString("ADMIN_PASSWORD_HASH", "")
	TokenTTL = getEnvDuration("TOKEN_TTL", 12*time.Hour)

	// Prefetch
	PopularPrefetchLimit = getEnvInt("POPULAR_PREFETCH_LIMIT", 5)
}
