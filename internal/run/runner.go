// Package run orchestrates one transform run: source discovery,
// parallel parse and validation, session sequencing, enrichment,
// partitioned writing, and the commit of the result. A run is the unit
// of atomicity; it either registers a full set of output partitions
// and emits a report, or it fails and registers nothing.
package run

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/config"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/enrich"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/errors"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/manifest"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/parser"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/quarantine"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/report"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/session"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/storage"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/validator"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/writer"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/pkg/types"
)

// Runner executes transform runs against a configured storage backend
// and commit catalog.
type Runner struct {
	cfg     *config.Config
	store   storage.ObjectStorage
	catalog *manifest.Catalog
}

// NewRunner creates a runner. The catalog connection is owned by the
// caller.
func NewRunner(cfg *config.Config, store storage.ObjectStorage, catalog *manifest.Catalog) *Runner {
	return &Runner{
		cfg:     cfg,
		store:   store,
		catalog: catalog,
	}
}

// Run executes one full transform run and returns the finalized
// quality report. Any returned error is fatal: no partition swap was
// registered and no report was emitted.
func (r *Runner) Run(ctx context.Context) (*types.QualityReport, error) {
	runID := uuid.New().String()
	startedAt := time.Now().UTC()

	log.Printf("Starting transform run %s", runID)
	log.Printf("Source: %s", r.cfg.SourcePrefix)
	log.Printf("Target: %s", r.cfg.TargetPrefix)
	log.Printf("Database: %s", r.cfg.DatabaseName)

	reporter := report.NewReporter(runID, startedAt)
	sink := quarantine.NewSink(r.store, r.cfg.QuarantinePrefix, r.cfg.DataDir, runID)

	// Discover and download source files.
	sourceFiles, err := r.discoverSources(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("Discovered %d source files", len(sourceFiles))

	downloader := storage.NewBatchDownloader(r.store, r.cfg.Parse.DownloadConcurrency, r.cfg.Parse.DownloadDir)
	downloaded, err := downloader.Download(ctx, sourceFiles)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeSourceUnreadable,
			"failed to download source files", err)
	}
	if len(downloaded.Errors) > 0 {
		for path, derr := range downloaded.Errors {
			log.Printf("Download failed for %s: %v", path, derr)
		}
		return nil, errors.NewStorageError(errors.CodeSourceUnreadable,
			fmt.Sprintf("%d source files could not be downloaded", len(downloaded.Errors)), nil)
	}

	// Parse and validate, one goroutine per file.
	validated, err := r.parseAndValidate(ctx, sourceFiles, downloaded.LocalPaths, reporter, sink)
	if err != nil {
		return nil, err
	}

	// The events table keys on event_id, so repeated ids must be
	// resolved before sequencing and writing.
	accepted, duplicates := dedupeEvents(validated)
	for _, dup := range duplicates {
		sink.AddDuplicate(dup)
		reporter.RecordRejected(types.ReasonDuplicateEventID)
	}
	for _, rec := range accepted {
		reporter.RecordAccepted(rec)
	}
	if len(duplicates) > 0 {
		log.Printf("Dropped %d records with duplicate event ids", len(duplicates))
	}
	total, acceptedCount, rejectedCount := reporter.Counts()
	log.Printf("Parsed %d records: %d accepted, %d rejected", total, acceptedCount, rejectedCount)

	// Sequence sessions and enrich.
	sequencer := session.NewSequencer(r.cfg.Parse.Concurrency)
	sequenced, err := sequencer.Sequence(ctx, accepted)
	if err != nil {
		return nil, errors.NewInternalError("session sequencing failed", err)
	}

	enricher := enrich.NewEnricher(startedAt)
	enriched := enricher.EnrichAll(sequenced)

	// Build and upload shards.
	pw := writer.NewPartitionedWriter(r.store, r.cfg.Write.ShardDir, r.cfg.TargetPrefix,
		r.cfg.Write.Concurrency, r.cfg.Write.MaxRowsPerShard)
	shards, err := pw.Write(ctx, enriched)
	if err != nil {
		return nil, err
	}
	log.Printf("Wrote %d shards across %d partitions", len(shards), countPartitions(shards))

	// Divert rejects before committing; a run that cannot account for
	// its rejects is not complete.
	if n := sink.Count(); n > 0 {
		log.Printf("Quarantining %d rejected payloads", n)
	}
	if err := sink.Flush(ctx); err != nil {
		return nil, err
	}

	// Commit: swap the touched partitions and retire prior shards.
	finishedAt := time.Now().UTC()
	superseded, err := r.catalog.CommitRun(ctx, manifest.RunRecord{
		RunID:           runID,
		DatabaseName:    r.cfg.DatabaseName,
		StartedAt:       startedAt,
		FinishedAt:      finishedAt,
		TotalRecords:    total,
		AcceptedRecords: acceptedCount,
		RejectedRecords: rejectedCount,
	}, shards)
	if err != nil {
		return nil, err
	}
	r.collectSuperseded(ctx, superseded)

	// The commit succeeded; the report may now describe the run.
	qualityReport := reporter.Finalize(finishedAt, partitionPrefixes(shards))
	if err := report.Publish(ctx, r.store, r.cfg.DataDir, r.cfg.TargetPrefix, qualityReport); err != nil {
		return nil, err
	}

	log.Printf("Run %s committed in %s", runID, finishedAt.Sub(startedAt).Round(time.Millisecond))
	return qualityReport, nil
}

// discoverSources lists the input files under the source prefix.
// Objects under underscore-prefixed directories (such as _reports) are
// not input data.
func (r *Runner) discoverSources(ctx context.Context) ([]string, error) {
	objects, err := r.store.ListObjects(ctx, r.cfg.SourcePrefix)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeSourceUnreadable,
			fmt.Sprintf("failed to list source prefix %s", r.cfg.SourcePrefix), err)
	}

	var files []string
	for _, object := range objects {
		if hasHiddenSegment(object) {
			continue
		}
		files = append(files, object)
	}
	sort.Strings(files)
	return files, nil
}

func hasHiddenSegment(objectPath string) bool {
	for _, segment := range strings.Split(objectPath, "/") {
		if strings.HasPrefix(segment, "_") || strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}

// parseAndValidate decodes and validates every source file in
// parallel, returning the surviving records. Per-record failures are
// diverted to the reporter and quarantine sink; only source read
// failures abort. Accepted records are not counted here because the
// duplicate pass may still reject some of them.
func (r *Runner) parseAndValidate(ctx context.Context, sourceFiles []string, localPaths map[string]string,
	reporter *report.Reporter, sink *quarantine.Sink) ([]*types.ValidatedRecord, error) {

	var mu sync.Mutex
	var accepted []*types.ValidatedRecord

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Parse.Concurrency)

	for _, sourceFile := range sourceFiles {
		sourceFile := sourceFile
		localPath := localPaths[sourceFile]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			records, failures, err := parser.ParseLocalFile(sourceFile, localPath)
			if err != nil {
				return err
			}

			var fileAccepted []*types.ValidatedRecord
			var fileRejections []types.Rejection
			for _, raw := range records {
				rec, rejection := validator.Validate(raw)
				if rejection != nil {
					fileRejections = append(fileRejections, *rejection)
					continue
				}
				fileAccepted = append(fileAccepted, rec)
			}

			// Only per-record decode failures may be diverted; anything
			// classified fatal aborts the run instead.
			for _, failure := range failures {
				if perr := failure.Error(); errors.IsFatal(perr) {
					return perr
				}
				sink.AddCorrupt(failure.Source, failure.Offset, failure.Payload)
			}
			for _, rejection := range fileRejections {
				sink.AddRejection(rejection)
			}
			if len(fileRejections) > 0 {
				log.Printf("Rejected %d records from %s, first: %v",
					len(fileRejections), sourceFile, validator.RejectionError(&fileRejections[0]))
			}

			mu.Lock()
			accepted = append(accepted, fileAccepted...)
			mu.Unlock()

			reporter.RecordSourceFile()
			for range failures {
				reporter.RecordRejected(types.ReasonCorruptRecord)
			}
			for _, rejection := range fileRejections {
				reporter.RecordRejected(rejection.Reason)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return accepted, nil
}

// dedupeEvents resolves repeated event ids across the whole run. The
// record that comes first in (timestamp, event_id, session_id,
// user_id) order survives, so reruns over the same input always keep
// the same one; the rest are returned for rejection accounting.
func dedupeEvents(records []*types.ValidatedRecord) (unique, duplicates []*types.ValidatedRecord) {
	sorted := append([]*types.ValidatedRecord(nil), records...)
	sort.Slice(sorted, func(a, b int) bool {
		if !sorted[a].Timestamp.Equal(sorted[b].Timestamp) {
			return sorted[a].Timestamp.Before(sorted[b].Timestamp)
		}
		if sorted[a].EventID != sorted[b].EventID {
			return sorted[a].EventID < sorted[b].EventID
		}
		if sorted[a].SessionID != sorted[b].SessionID {
			return sorted[a].SessionID < sorted[b].SessionID
		}
		return sorted[a].UserID < sorted[b].UserID
	})

	seen := make(map[string]bool, len(sorted))
	for _, rec := range sorted {
		if seen[rec.EventID] {
			duplicates = append(duplicates, rec)
			continue
		}
		seen[rec.EventID] = true
		unique = append(unique, rec)
	}
	return unique, duplicates
}

// collectSuperseded deletes retired shard objects after the catalog
// swap. Failures are logged, not fatal: the catalog no longer points
// at these objects, so a leaked file is an operator cleanup, not a
// correctness problem.
func (r *Runner) collectSuperseded(ctx context.Context, objectPaths []string) {
	for _, objectPath := range objectPaths {
		if err := r.store.Delete(ctx, objectPath); err != nil {
			log.Printf("Failed to delete superseded object %s: %v", objectPath, err)
		}
	}
}

func countPartitions(shards []*writer.ShardInfo) int {
	keys := make(map[string]bool)
	for _, shard := range shards {
		keys[shard.Key.String()] = true
	}
	return len(keys)
}

func partitionPrefixes(shards []*writer.ShardInfo) []string {
	keys := make(map[string]bool)
	var prefixes []string
	for _, shard := range shards {
		prefix := shard.Key.Prefix()
		if !keys[prefix] {
			keys[prefix] = true
			prefixes = append(prefixes, prefix)
		}
	}
	sort.Strings(prefixes)
	return prefixes
}
