// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. A local '.env' file,
when present, is loaded by cmd/api before [Load] is called.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, Storage) via constructors.
  - Optional Infrastructure: PostgreSQL and Redis are enabled only when their URL is set.
*/
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Storage Drivers

const (
	// StorageLocal keeps canonical artifacts on the local filesystem.
	StorageLocal = "local"

	// StorageS3 keeps canonical artifacts in an S3-compatible bucket.
	StorageS3 = "s3"
)

// # Configuration Schema

// Config holds all runtime configuration for the Atelier media server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL). Empty selects the in-memory record store.
	DatabaseURL string `env:"DATABASE_URL"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./migrations"`

	// Key-Value store (Redis). Empty selects process-local record locks.
	RedisURL string `env:"REDIS_URL"`

	// JWTSecret signs and verifies HS256 bearer tokens for mutating routes.
	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`

	// Artifact storage
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"local"`
	UploadDir     string `env:"UPLOAD_DIR"     envDefault:"./uploads"`

	// Object Storage (S3-compatible)
	S3Bucket          string        `env:"S3_BUCKET"`
	S3Region          string        `env:"S3_REGION"   envDefault:"auto"`
	S3Endpoint        string        `env:"S3_ENDPOINT"`
	S3AccessKeyID     string        `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string        `env:"S3_SECRET_ACCESS_KEY"`
	S3Timeout         time.Duration `env:"S3_TIMEOUT"  envDefault:"30s"`

	// Derivative cache and transcoding
	ScratchDir           string `env:"SCRATCH_DIR"           envDefault:"./temp"`
	CacheCapacity        int    `env:"CACHE_CAPACITY"        envDefault:"100"`
	TranscodeConcurrency int    `env:"TRANSCODE_CONCURRENCY"`
	SweepSchedule        string `env:"SWEEP_SCHEDULE"        envDefault:"@every 10m"`

	// Cross-Origin Resource Sharing (comma-separated origins)
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.TranscodeConcurrency <= 0 {
		cfg.TranscodeConcurrency = runtime.NumCPU()
	}

	return cfg, nil
}

// validate rejects combinations that env tags cannot express.
func (c *Config) validate() error {
	switch c.StorageDriver {
	case StorageLocal:
	case StorageS3:
		if c.S3Bucket == "" || c.S3Endpoint == "" {
			return fmt.Errorf("config: STORAGE_DRIVER=s3 requires S3_BUCKET and S3_ENDPOINT")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.CacheCapacity < 1 {
		return fmt.Errorf("config: CACHE_CAPACITY must be at least 1")
	}

	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AllowedOrigins returns the trimmed, non-empty entries of EXTRA_ORIGINS.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.ExtraOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
