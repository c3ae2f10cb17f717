// Package manifest manages the commit catalog: which shards are the
// committed output of each date partition. The catalog is the
// authority for the overwrite-by-partition contract — a run's shards
// become visible in one transaction that also retires every shard the
// run supersedes, so reruns never accumulate duplicates and a failed
// run leaves the previous commit intact.
package manifest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/errors"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/writer"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/pkg/types"
)

// RunRecord summarizes one completed run for the catalog.
type RunRecord struct {
	RunID           string
	DatabaseName    string
	StartedAt       time.Time
	FinishedAt      time.Time
	TotalRecords    int64
	AcceptedRecords int64
	RejectedRecords int64
}

// ShardRecord is a committed shard as stored in the catalog.
type ShardRecord struct {
	ShardID      string
	DatabaseName string
	PartitionKey string
	ObjectPath   string
	MetaObject   string
	RunID        string
	RowCount     int64
	SizeBytes    int64
	MinEventTime *int64
	MaxEventTime *int64
	CreatedAt    time.Time
}

// Catalog is the SQLite-backed commit catalog.
type Catalog struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

var schemaSQL = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		database_name TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		total_records INTEGER NOT NULL,
		accepted_records INTEGER NOT NULL,
		rejected_records INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS shards (
		shard_id TEXT PRIMARY KEY,
		database_name TEXT NOT NULL,
		partition_key TEXT NOT NULL,
		object_path TEXT NOT NULL,
		meta_object_path TEXT NOT NULL,
		run_id TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		size_bytes INTEGER NOT NULL,
		min_event_time INTEGER,
		max_event_time INTEGER,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_shards_partition
		ON shards(database_name, partition_key)`,
}

// NewCatalog opens (creating if needed) the commit catalog database.
func NewCatalog(dbPath string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.NewManifestError(errors.CodeCatalogUnavailable,
			"failed to open catalog database", err)
	}
	db.SetMaxOpenConns(1) // Single writer

	for _, stmt := range schemaSQL {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errors.NewManifestError(errors.CodeCatalogUnavailable,
				"failed to initialize catalog schema", err)
		}
	}

	return &Catalog{db: db, dbPath: dbPath}, nil
}

// CommitRun makes a run's shards the committed output of every
// partition the run touched, in a single transaction. It returns the
// object paths of the superseded shards (and sidecars) so the caller
// can garbage-collect them from storage after the swap.
func (c *Catalog) CommitRun(ctx context.Context, run RunRecord, shards []*writer.ShardInfo) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewManifestError(errors.CodeSwapFailed,
			"failed to begin commit transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, database_name, started_at, finished_at,
			total_records, accepted_records, rejected_records)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.DatabaseName,
		run.StartedAt.UnixNano(), run.FinishedAt.UnixNano(),
		run.TotalRecords, run.AcceptedRecords, run.RejectedRecords,
	); err != nil {
		return nil, errors.NewManifestError(errors.CodeSwapFailed,
			"failed to record run", err)
	}

	// Collect the partitions this run replaces.
	touched := make(map[string]bool)
	for _, shard := range shards {
		touched[shard.Key.String()] = true
	}

	var superseded []string
	for key := range touched {
		rows, err := tx.QueryContext(ctx,
			`SELECT object_path, meta_object_path FROM shards
			 WHERE database_name = ? AND partition_key = ?`,
			run.DatabaseName, key)
		if err != nil {
			return nil, errors.NewManifestError(errors.CodeSwapFailed,
				fmt.Sprintf("failed to find prior shards for partition %s", key), err)
		}
		for rows.Next() {
			var objectPath, metaPath string
			if err := rows.Scan(&objectPath, &metaPath); err != nil {
				rows.Close()
				return nil, errors.NewManifestError(errors.CodeSwapFailed,
					"failed to scan prior shard", err)
			}
			superseded = append(superseded, objectPath, metaPath)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, errors.NewManifestError(errors.CodeSwapFailed,
				"failed to iterate prior shards", err)
		}
		rows.Close()

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM shards WHERE database_name = ? AND partition_key = ?`,
			run.DatabaseName, key); err != nil {
			return nil, errors.NewManifestError(errors.CodeSwapFailed,
				fmt.Sprintf("failed to retire prior shards for partition %s", key), err)
		}
	}

	for _, shard := range shards {
		minT := shard.MinEventTime.UnixNano()
		maxT := shard.MaxEventTime.UnixNano()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO shards (shard_id, database_name, partition_key,
				object_path, meta_object_path, run_id,
				row_count, size_bytes, min_event_time, max_event_time, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			shard.ShardID, run.DatabaseName, shard.Key.String(),
			shard.ObjectPath, shard.MetaObject, run.RunID,
			shard.RowCount, shard.SizeBytes, minT, maxT,
			shard.CreatedAt.UnixNano(),
		); err != nil {
			return nil, errors.NewManifestError(errors.CodeSwapFailed,
				fmt.Sprintf("failed to register shard %s", shard.ShardID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewManifestError(errors.CodeSwapFailed,
			"failed to commit partition swap", err)
	}
	return superseded, nil
}

// ListShards returns the committed shards of one partition.
func (c *Catalog) ListShards(ctx context.Context, database string, key types.PartitionKey) ([]*ShardRecord, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT shard_id, database_name, partition_key, object_path,
			meta_object_path, run_id, row_count, size_bytes,
			min_event_time, max_event_time, created_at
		 FROM shards
		 WHERE database_name = ? AND partition_key = ?
		 ORDER BY shard_id`,
		database, key.String())
	if err != nil {
		return nil, errors.NewManifestError(errors.CodeCatalogUnavailable,
			"failed to query shards", err)
	}
	defer rows.Close()

	var records []*ShardRecord
	for rows.Next() {
		var rec ShardRecord
		var createdAt int64
		if err := rows.Scan(
			&rec.ShardID, &rec.DatabaseName, &rec.PartitionKey,
			&rec.ObjectPath, &rec.MetaObject, &rec.RunID,
			&rec.RowCount, &rec.SizeBytes,
			&rec.MinEventTime, &rec.MaxEventTime, &createdAt,
		); err != nil {
			return nil, errors.NewManifestError(errors.CodeCatalogUnavailable,
				"failed to scan shard record", err)
		}
		rec.CreatedAt = time.Unix(0, createdAt).UTC()
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewManifestError(errors.CodeCatalogUnavailable,
			"failed to iterate shard records", err)
	}
	return records, nil
}

// ListRuns returns all recorded runs ordered by start time.
func (c *Catalog) ListRuns(ctx context.Context, database string) ([]*RunRecord, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT run_id, database_name, started_at, finished_at,
			total_records, accepted_records, rejected_records
		 FROM runs WHERE database_name = ? ORDER BY started_at`,
		database)
	if err != nil {
		return nil, errors.NewManifestError(errors.CodeCatalogUnavailable,
			"failed to query runs", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		var rec RunRecord
		var startedAt, finishedAt int64
		if err := rows.Scan(
			&rec.RunID, &rec.DatabaseName, &startedAt, &finishedAt,
			&rec.TotalRecords, &rec.AcceptedRecords, &rec.RejectedRecords,
		); err != nil {
			return nil, errors.NewManifestError(errors.CodeCatalogUnavailable,
				"failed to scan run record", err)
		}
		rec.StartedAt = time.Unix(0, startedAt).UTC()
		rec.FinishedAt = time.Unix(0, finishedAt).UTC()
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewManifestError(errors.CodeCatalogUnavailable,
			"failed to iterate run records", err)
	}
	return records, nil
}

// Close closes the catalog database.
func (c *Catalog) Close() error {
	return c.db.Close()
}
