// Package config provides unified configuration for the clickstream
// transform job.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full configuration for one transform run.
type Config struct {
	// SourcePrefix is the object prefix holding raw input files,
	// organized as year=YYYY/month=MM/day=DD subtrees.
	SourcePrefix string `json:"source_prefix" yaml:"source_prefix"`

	// TargetPrefix is the object prefix receiving transformed shards.
	TargetPrefix string `json:"target_prefix" yaml:"target_prefix"`

	// QuarantinePrefix is the object prefix receiving rejected payloads.
	QuarantinePrefix string `json:"quarantine_prefix" yaml:"quarantine_prefix"`

	// DatabaseName is the logical catalog database the job output is
	// associated with. Consumed by the external cataloging
	// collaborator; recorded in the manifest.
	DatabaseName string `json:"database_name" yaml:"database_name"`

	// DataDir is the base directory for local work files.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Parse configuration
	Parse ParseConfig `json:"parse" yaml:"parse"`

	// Write configuration
	Write WriteConfig `json:"write" yaml:"write"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// ParseConfig holds input-stage configuration.
type ParseConfig struct {
	// Concurrency is the number of source files parsed in parallel.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// DownloadDir is the directory source files are downloaded to.
	DownloadDir string `json:"download_dir" yaml:"download_dir"`

	// DownloadConcurrency is the number of parallel downloads.
	DownloadConcurrency int `json:"download_concurrency" yaml:"download_concurrency"`
}

// WriteConfig holds output-stage configuration.
type WriteConfig struct {
	// ShardDir is the directory shards are built in before upload.
	ShardDir string `json:"shard_dir" yaml:"shard_dir"`

	// Concurrency is the number of partitions written in parallel.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// MaxRowsPerShard splits a partition into multiple shards once a
	// shard reaches this many rows. Zero means a single shard per
	// partition per run.
	MaxRowsPerShard int `json:"max_rows_per_shard" yaml:"max_rows_per_shard"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (required for MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		SourcePrefix:     "raw",
		TargetPrefix:     "transformed",
		QuarantinePrefix: "errors/quarantine",
		DatabaseName:     "clickstream",
		DataDir:          "./data/clickstream",
		Parse: ParseConfig{
			Concurrency:         8,
			DownloadConcurrency: 8,
		},
		Write: WriteConfig{
			Concurrency:     4,
			MaxRowsPerShard: 0,
		},
		Storage: StorageConfig{
			Type: "local",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/clickstream"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}
	if c.Parse.DownloadDir == "" {
		c.Parse.DownloadDir = filepath.Join(c.DataDir, "downloads")
	}
	if c.Write.ShardDir == "" {
		c.Write.ShardDir = filepath.Join(c.DataDir, "shards")
	}
	if c.Parse.Concurrency <= 0 {
		c.Parse.Concurrency = 8
	}
	if c.Parse.DownloadConcurrency <= 0 {
		c.Parse.DownloadConcurrency = 8
	}
	if c.Write.Concurrency <= 0 {
		c.Write.Concurrency = 4
	}
}

// ManifestPath returns the path to the commit catalog database.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.DataDir, "manifest.db")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.SourcePrefix == "" {
		return fmt.Errorf("source_prefix is required")
	}
	if c.TargetPrefix == "" {
		return fmt.Errorf("target_prefix is required")
	}
	if c.DatabaseName == "" {
		return fmt.Errorf("database_name is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}
	if c.Write.MaxRowsPerShard < 0 {
		return fmt.Errorf("write.max_rows_per_shard must be >= 0, got %d", c.Write.MaxRowsPerShard)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the CLICKSTREAM_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("CLICKSTREAM_SOURCE_PREFIX"); v != "" {
		cfg.SourcePrefix = v
	}
	if v := os.Getenv("CLICKSTREAM_TARGET_PREFIX"); v != "" {
		cfg.TargetPrefix = v
	}
	if v := os.Getenv("CLICKSTREAM_QUARANTINE_PREFIX"); v != "" {
		cfg.QuarantinePrefix = v
	}
	if v := os.Getenv("CLICKSTREAM_DATABASE_NAME"); v != "" {
		cfg.DatabaseName = v
	}
	if v := os.Getenv("CLICKSTREAM_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Parse configuration
	if v := os.Getenv("CLICKSTREAM_PARSE_CONCURRENCY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Parse.Concurrency)
	}
	if v := os.Getenv("CLICKSTREAM_DOWNLOAD_CONCURRENCY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Parse.DownloadConcurrency)
	}

	// Write configuration
	if v := os.Getenv("CLICKSTREAM_WRITE_CONCURRENCY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Write.Concurrency)
	}
	if v := os.Getenv("CLICKSTREAM_MAX_ROWS_PER_SHARD"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Write.MaxRowsPerShard)
	}

	// Storage configuration
	if v := os.Getenv("CLICKSTREAM_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("CLICKSTREAM_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("CLICKSTREAM_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("CLICKSTREAM_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("CLICKSTREAM_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("CLICKSTREAM_S3_USE_PATH_STYLE"); v != "" {
		cfg.Storage.S3.UsePathStyle = v == "true" || v == "1"
	}
}

// EnsureDirectories creates all required local directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Parse.DownloadDir,
		c.Write.ShardDir,
	}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// RunTimeout is the default upper bound a caller may apply to a whole
// run; the engine itself imposes no per-record timeout.
const RunTimeout = 2 * time.Hour
