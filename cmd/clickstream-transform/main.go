// Package main implements the clickstream-transform job binary. It
// runs one batch transform over the configured source tree and exits
// nonzero on any fatal error, committing no partial output.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/config"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/manifest"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/report"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/run"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/storage"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML or JSON config file")
		source      = flag.String("source", "", "Source object prefix holding raw input files")
		target      = flag.String("target", "", "Target object prefix for transformed output")
		database    = flag.String("database", "", "Logical catalog database name for the output")
		quarantine  = flag.String("quarantine", "", "Object prefix for rejected payloads")
		dataDir     = flag.String("data-dir", "", "Base directory for local work files")
		storageType = flag.String("storage", "", "Storage backend: local or s3")
		timeout     = flag.Duration("timeout", config.RunTimeout, "Upper bound on run duration")
	)
	flag.Parse()

	cfg := loadConfig(*configPath)
	config.LoadFromEnv(cfg)

	// Flags override config file and environment.
	if *source != "" {
		cfg.SourcePrefix = *source
	}
	if *target != "" {
		cfg.TargetPrefix = *target
	}
	if *database != "" {
		cfg.DatabaseName = *database
	}
	if *quarantine != "" {
		cfg.QuarantinePrefix = *quarantine
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *storageType != "" {
		cfg.Storage.Type = *storageType
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := buildStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	catalog, err := manifest.NewCatalog(cfg.ManifestPath())
	if err != nil {
		log.Fatalf("Failed to initialize commit catalog: %v", err)
	}
	defer catalog.Close()

	started := time.Now()
	runner := run.NewRunner(cfg, store, catalog)
	qualityReport, err := runner.Run(ctx)
	if err != nil {
		log.Fatalf("Run failed after %s: %v", time.Since(started).Round(time.Millisecond), err)
	}

	report.RenderSummary(os.Stdout, qualityReport)
	log.Printf("Job completed successfully in %s", time.Since(started).Round(time.Millisecond))
}

func loadConfig(path string) *config.Config {
	if path == "" {
		return config.DefaultConfig()
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func buildStorage(ctx context.Context, cfg *config.Config) (storage.ObjectStorage, error) {
	switch cfg.Storage.Type {
	case "s3":
		return storage.NewS3Storage(ctx, cfg.Storage.S3.Bucket, storage.S3Config{
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
		})
	default:
		return storage.NewLocalStorage(cfg.Storage.Path)
	}
}
