// Package writer serializes enriched records into columnar SQLite
// shards grouped by date partition, with metadata sidecars for
// downstream pruning.
package writer

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/bloom"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/pkg/types"
)

// ShardInfo describes one built shard and its sidecar.
type ShardInfo struct {
	ShardID      string
	Key          types.PartitionKey
	LocalPath    string
	MetaPath     string
	ObjectPath   string
	MetaObject   string
	RowCount     int64
	SizeBytes    int64
	MinEventTime time.Time
	MaxEventTime time.Time
	CreatedAt    time.Time
}

const createEventsTableSQL = `
	CREATE TABLE events (
		event_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		event_category TEXT NOT NULL,
		event_timestamp INTEGER NOT NULL,
		processed_timestamp INTEGER NOT NULL,
		event_date TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		day INTEGER NOT NULL,
		hour INTEGER NOT NULL,
		event_sequence INTEGER NOT NULL,
		is_session_start INTEGER NOT NULL,
		has_product_data INTEGER NOT NULL,
		has_price_data INTEGER NOT NULL,
		page_url TEXT,
		product_id TEXT,
		product_name TEXT,
		product_category TEXT,
		price REAL,
		quantity INTEGER,
		device_type TEXT,
		referrer TEXT
	) WITHOUT ROWID
`

const insertEventSQL = `
	INSERT INTO events (
		event_id, user_id, session_id, event_type, event_category,
		event_timestamp, processed_timestamp, event_date,
		year, month, day, hour,
		event_sequence, is_session_start, has_product_data, has_price_data,
		page_url, product_id, product_name, product_category,
		price, quantity, device_type, referrer
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// shardIndexes cover the session replay and per-user scan patterns the
// downstream query collaborators use.
var shardIndexes = []string{
	"CREATE INDEX idx_events_session_seq ON events(session_id, event_sequence)",
	"CREATE INDEX idx_events_user_time ON events(user_id, event_timestamp)",
}

// BuildShard writes one SQLite shard for a partition's rows. Rows are
// inserted in (timestamp, event_id) order so a rerun over the same
// input produces an identical table.
func BuildShard(ctx context.Context, outputDir string, key types.PartitionKey, rows []*types.EnrichedRecord) (*ShardInfo, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("writer: cannot build shard with no rows")
	}

	sort.Slice(rows, func(a, b int) bool {
		if !rows[a].Timestamp.Equal(rows[b].Timestamp) {
			return rows[a].Timestamp.Before(rows[b].Timestamp)
		}
		return rows[a].EventID < rows[b].EventID
	})

	shardID := fmt.Sprintf("clickstream-%s-%s", key.String(), uuid.New().String()[:8])
	createdAt := time.Now().UTC()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("writer: failed to create output directory: %w", err)
	}
	shardPath := filepath.Clean(filepath.Join(outputDir, shardID+".sqlite"))

	db, err := sql.Open("sqlite3", shardPath)
	if err != nil {
		return nil, fmt.Errorf("writer: failed to create shard database: %w", err)
	}
	defer db.Close()

	// WAL speeds up the bulk insert; the shard is switched back to
	// DELETE mode before upload so it ships as a single immutable file.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("writer: failed to set journal mode: %w", err)
	}

	if _, err := db.ExecContext(ctx, createEventsTableSQL); err != nil {
		return nil, fmt.Errorf("writer: failed to create events table: %w", err)
	}
	for _, idx := range shardIndexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return nil, fmt.Errorf("writer: failed to create index: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("writer: failed to begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertEventSQL)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("writer: failed to prepare insert statement: %w", err)
	}

	stats := newStatsTracker()
	for _, row := range rows {
		var price interface{}
		if row.Price != nil {
			price = *row.Price
		}
		var quantity interface{}
		if row.Quantity != nil {
			quantity = *row.Quantity
		}

		_, err := stmt.ExecContext(ctx,
			row.EventID, row.UserID, row.SessionID, row.EventType, string(row.EventCategory),
			row.Timestamp.UnixNano(), row.ProcessedTimestamp.UnixNano(), row.EventDate,
			row.Year, row.Month, row.Day, row.Hour,
			row.EventSequence, boolInt(row.IsSessionStart), boolInt(row.HasProductData), boolInt(row.HasPriceData),
			nullString(row.PageURL), nullString(row.ProductID), nullString(row.ProductName), nullString(row.ProductCategory),
			price, quantity, nullString(row.DeviceType), nullString(row.Referrer),
		)
		if err != nil {
			stmt.Close()
			tx.Rollback()
			return nil, fmt.Errorf("writer: failed to insert row %s: %w", row.EventID, err)
		}
		stats.update(row)
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("writer: failed to commit shard transaction: %w", err)
	}

	// Checkpoint and switch to DELETE mode so the shard is one file.
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, fmt.Errorf("writer: failed to checkpoint WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		return nil, fmt.Errorf("writer: failed to finalize journal mode: %w", err)
	}
	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("writer: failed to close shard database: %w", err)
	}

	fileInfo, err := os.Stat(shardPath)
	if err != nil {
		return nil, fmt.Errorf("writer: failed to stat shard file: %w", err)
	}

	info := &ShardInfo{
		ShardID:      shardID,
		Key:          key,
		LocalPath:    shardPath,
		RowCount:     int64(len(rows)),
		SizeBytes:    fileInfo.Size(),
		MinEventTime: stats.minEventTime,
		MaxEventTime: stats.maxEventTime,
		CreatedAt:    createdAt,
	}

	metaPath, err := writeSidecar(shardPath, info, rows)
	if err != nil {
		return nil, err
	}
	info.MetaPath = metaPath

	return info, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullString maps empty optional strings to NULL so absence stays
// distinguishable from an empty value in the output schema.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// statsTracker tracks shard-level min/max event time during the insert
// pass.
type statsTracker struct {
	minEventTime time.Time
	maxEventTime time.Time
}

func newStatsTracker() *statsTracker {
	return &statsTracker{}
}

func (s *statsTracker) update(row *types.EnrichedRecord) {
	if s.minEventTime.IsZero() || row.Timestamp.Before(s.minEventTime) {
		s.minEventTime = row.Timestamp
	}
	if s.maxEventTime.IsZero() || row.Timestamp.After(s.maxEventTime) {
		s.maxEventTime = row.Timestamp
	}
}

// buildFilters builds the sidecar bloom filters over user and session
// identifiers.
func buildFilters(rows []*types.EnrichedRecord) (users, sessions *bloom.Filter) {
	users = bloom.NewWithEstimates(len(rows), 0.01)
	sessions = bloom.NewWithEstimates(len(rows), 0.01)
	seenUsers := make(map[string]bool, len(rows))
	seenSessions := make(map[string]bool, len(rows))

	for _, row := range rows {
		if !seenUsers[row.UserID] {
			seenUsers[row.UserID] = true
			users.Add(row.UserID)
		}
		if row.SessionID != "" && !seenSessions[row.SessionID] {
			seenSessions[row.SessionID] = true
			sessions.Add(row.SessionID)
		}
	}
	return users, sessions
}
