// Package config defines service configuration and its loading.
package config

import (
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// DatabasePath points at the SQLite collaborator database.
	// Empty runs against a seeded in-memory store.
	DatabasePath string `koanf:"database_path"`

	// ThemeCount is the requested number of latent themes.
	ThemeCount int `koanf:"theme_count" validate:"min=1,max=50"`

	// MaxIterations caps multiplicative update steps per factorization.
	MaxIterations int `koanf:"max_iterations" validate:"min=1"`

	// Tolerance stops a factorization early once the relative improvement drops below it.
	Tolerance float64 `koanf:"tolerance" validate:"min=0"`

	SimilarTopN         int     `koanf:"similar_top_n" validate:"min=1"`
	TopImagesPerTheme   int     `koanf:"top_images_per_theme" validate:"min=1"`
	HotTakesLimit       int     `koanf:"hot_takes_limit" validate:"min=1"`
	DigestPerCategory   int     `koanf:"digest_per_category" validate:"min=1"`
	PopularityLimit     int     `koanf:"popularity_limit" validate:"min=1"`
	DivergenceThreshold float64 `koanf:"divergence_threshold" validate:"min=0"`

	// MaxRows and MaxColumns reject categories too large to analyse at all (0 disables).
	MaxRows    int `koanf:"max_rows" validate:"min=0"`
	MaxColumns int `koanf:"max_columns" validate:"min=0"`

	// AsyncCellThreshold is the rows*columns size above which analyze must run as a job (0 disables).
	AsyncCellThreshold int `koanf:"async_cell_threshold" validate:"min=0"`

	// RatingCacheSize bounds the ranking rating memo cache.
	RatingCacheSize int `koanf:"rating_cache_size" validate:"min=0"`

	// JobQueueSize bounds pending background analyses.
	JobQueueSize int `koanf:"job_queue_size" validate:"min=1"`

	// WorkerCount sets the number of analysis workers.
	WorkerCount int `koanf:"worker_count" validate:"min=1"`

	// JobRetention is how long finished job results stay pollable.
	JobRetention time.Duration `koanf:"job_retention" validate:"min=1s"`

	// DigestConcurrency bounds categories analysed in parallel.
	DigestConcurrency int `koanf:"digest_concurrency" validate:"min=1"`

	// Seed* size the demo dataset used when DatabasePath is empty.
	SeedUsers    int `koanf:"seed_users" validate:"min=0"`
	SeedImages   int `koanf:"seed_images" validate:"min=0"`
	SeedRankings int `koanf:"seed_rankings" validate:"min=0"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		ThemeCount:          3,
		MaxIterations:       500,
		Tolerance:           1e-4,
		SimilarTopN:         3,
		TopImagesPerTheme:   5,
		HotTakesLimit:       8,
		DigestPerCategory:   3,
		PopularityLimit:     8,
		DivergenceThreshold: 1.0,
		MaxRows:             2000,
		MaxColumns:          5000,
		AsyncCellThreshold:  250_000,
		RatingCacheSize:     10_000,
		JobQueueSize:        64,
		WorkerCount:         2,
		JobRetention:        10 * time.Minute,
		DigestConcurrency:   4,
		SeedUsers:           12,
		SeedImages:          24,
		SeedRankings:        30,
	}
}
