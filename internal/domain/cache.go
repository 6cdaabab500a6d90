package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: a local LRU always, Redis behind it when
// configured. Screening is deterministic, so a report cached under its
// input digest is always safe to serve.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetReport retrieves a cached screening report by input digest.
	// Returns nil, nil if not cached.
	GetReport(ctx context.Context, digest string) (*ScreeningReport, error)

	// SetReport caches a finished report under its input digest.
	SetReport(ctx context.Context, digest string, report *ScreeningReport, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns the
	// new value. Used for rolling screening-volume stats.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `yaml:"type"`

	// Local LRU cache settings
	LocalMaxSize int `yaml:"local_max_size"`
	LocalTTL     int `yaml:"local_ttl"` // seconds

	// Redis settings
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// Two-phase settings
	EnableTwoPhase bool `yaml:"enable_two_phase"` // check local first, then Redis
}
