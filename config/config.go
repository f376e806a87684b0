package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

const DefaultCacheSubDir = "card_cache"

const (
	defaultThumbnailMaxWidth  = 360
	defaultThumbnailMaxHeight = 480
	defaultHideThreshold      = 3
	defaultCacheQuotaBytes    = 64 << 20 // 64 MiB per collector
	defaultThumbQuotaBytes    = 8 << 20  // 8 MiB per collector
	defaultMaxUploadBytes     = 10 << 20 // 10 MiB per image
	defaultMinImageWidth      = 200
	defaultMinImageHeight     = 200
	defaultRebuildQueueSize   = 100
	defaultNumRebuildWorkers  = 2
	defaultClassifierTimeout  = 10 // seconds
)

type Config struct {
	// database path
	DatabasePath string

	// media storage configuration
	MediaStoragePath string // primary root for shared images and cache blobs
	CacheStoragePath string // full-calculated path for per-collector caches

	// thumbnail bounds (logical pixels, aspect-preserving, never upscaled)
	ThumbnailMaxWidth  int
	ThumbnailMaxHeight int

	// per-collector cache quotas
	CacheQuotaBytes int64
	ThumbQuotaBytes int64

	// moderation
	HideThreshold int64

	// upload acceptance policy
	MaxUploadBytes int64
	MinImageWidth  int
	MinImageHeight int

	// external image classifier; empty disables classification
	ClassifierURL         string
	ClassifierTimeoutSecs int

	// bcrypt hash of the admin key protecting moderation actions; empty
	// leaves the admin surface open (development only)
	AdminKeyHash string

	// thumbnail rebuild worker settings
	RebuildQueueSize  int
	NumRebuildWorkers int
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvInt64OrDefault(envVar string, defaultVal int64) int64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseInt(valStr, 10, 64)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	dbPath := getEnvOrDefault("DATABASE_PATH", "cards.db")

	mediaStorage := getEnvOrDefault("MEDIA_STORAGE_PATH", filepath.Join(".", "media_storage"))
	absMediaStorage, err := filepath.Abs(mediaStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", mediaStorage, err)
	}

	cacheSubDir := getEnvOrDefault("CACHE_SUBDIR", DefaultCacheSubDir)
	absCachePath := filepath.Join(absMediaStorage, cacheSubDir)

	cfg := Config{
		DatabasePath:          dbPath,
		MediaStoragePath:      absMediaStorage,
		CacheStoragePath:      absCachePath,
		ThumbnailMaxWidth:     getEnvIntOrDefault("THUMBNAIL_MAX_WIDTH", defaultThumbnailMaxWidth),
		ThumbnailMaxHeight:    getEnvIntOrDefault("THUMBNAIL_MAX_HEIGHT", defaultThumbnailMaxHeight),
		CacheQuotaBytes:       getEnvInt64OrDefault("CACHE_QUOTA_BYTES", defaultCacheQuotaBytes),
		ThumbQuotaBytes:       getEnvInt64OrDefault("THUMB_QUOTA_BYTES", defaultThumbQuotaBytes),
		HideThreshold:         getEnvInt64OrDefault("HIDE_THRESHOLD", defaultHideThreshold),
		MaxUploadBytes:        getEnvInt64OrDefault("MAX_UPLOAD_BYTES", defaultMaxUploadBytes),
		MinImageWidth:         getEnvIntOrDefault("MIN_IMAGE_WIDTH", defaultMinImageWidth),
		MinImageHeight:        getEnvIntOrDefault("MIN_IMAGE_HEIGHT", defaultMinImageHeight),
		ClassifierURL:         os.Getenv("CLASSIFIER_URL"),
		ClassifierTimeoutSecs: getEnvIntOrDefault("CLASSIFIER_TIMEOUT_SECS", defaultClassifierTimeout),
		AdminKeyHash:          os.Getenv("ADMIN_KEY_HASH"),
		RebuildQueueSize:      getEnvIntOrDefault("REBUILD_QUEUE_SIZE", defaultRebuildQueueSize),
		NumRebuildWorkers:     getEnvIntOrDefault("NUM_REBUILD_WORKERS", defaultNumRebuildWorkers),
	}

	return cfg, nil
}
