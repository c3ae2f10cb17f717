package writer

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/errors"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/storage"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/pkg/types"
)

// PartitionedWriter builds and uploads columnar shards grouped by date
// partition. Partitions proceed in parallel; writes to the same
// partition key are serialized by a per-key lock so shard files within
// a partition never collide.
type PartitionedWriter struct {
	store           storage.ObjectStorage
	shardDir        string
	targetPrefix    string
	concurrency     int
	maxRowsPerShard int

	keyLocks map[string]*sync.Mutex
	lockMu   sync.Mutex
}

// NewPartitionedWriter creates a writer staging shards in shardDir and
// uploading them under targetPrefix. maxRowsPerShard of zero means one
// shard per partition per run.
func NewPartitionedWriter(store storage.ObjectStorage, shardDir, targetPrefix string, concurrency, maxRowsPerShard int) *PartitionedWriter {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &PartitionedWriter{
		store:           store,
		shardDir:        shardDir,
		targetPrefix:    targetPrefix,
		concurrency:     concurrency,
		maxRowsPerShard: maxRowsPerShard,
		keyLocks:        make(map[string]*sync.Mutex),
	}
}

// Write groups records by partition key, builds one or more shards per
// partition, and uploads shard plus sidecar for each. It returns the
// infos for every uploaded shard; any failure is fatal for the run and
// nothing gets registered as committed.
func (w *PartitionedWriter) Write(ctx context.Context, records []*types.EnrichedRecord) ([]*ShardInfo, error) {
	if len(records) == 0 {
		return nil, nil
	}

	groups := make(map[types.PartitionKey][]*types.EnrichedRecord)
	for _, rec := range records {
		key := rec.Partition()
		groups[key] = append(groups[key], rec)
	}

	keys := make([]types.PartitionKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a].Less(keys[b]) })

	var mu sync.Mutex
	var infos []*ShardInfo

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for _, key := range keys {
		key := key
		rows := groups[key]
		g.Go(func() error {
			built, err := w.writePartition(ctx, key, rows)
			if err != nil {
				return err
			}
			mu.Lock()
			infos = append(infos, built...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(infos, func(a, b int) bool { return infos[a].ObjectPath < infos[b].ObjectPath })
	return infos, nil
}

// writePartition builds and uploads all shards for one partition key.
func (w *PartitionedWriter) writePartition(ctx context.Context, key types.PartitionKey, rows []*types.EnrichedRecord) ([]*ShardInfo, error) {
	lock := w.keyLock(key.String())
	lock.Lock()
	defer lock.Unlock()

	// Order the whole partition before chunking so shard boundaries are
	// deterministic across reruns.
	sort.Slice(rows, func(a, b int) bool {
		if !rows[a].Timestamp.Equal(rows[b].Timestamp) {
			return rows[a].Timestamp.Before(rows[b].Timestamp)
		}
		return rows[a].EventID < rows[b].EventID
	})

	var infos []*ShardInfo
	for _, chunk := range splitRows(rows, w.maxRowsPerShard) {
		info, err := BuildShard(ctx, w.shardDir, key, chunk)
		if err != nil {
			return nil, errors.NewWriteError(errors.CodeShardBuildFailed,
				fmt.Sprintf("failed to build shard for partition %s", key.Prefix()), err)
		}

		info.ObjectPath = fmt.Sprintf("%s/%s/%s.sqlite", w.targetPrefix, key.Prefix(), info.ShardID)
		info.MetaObject = fmt.Sprintf("%s/%s/%s.meta.json", w.targetPrefix, key.Prefix(), info.ShardID)

		if err := w.store.Upload(ctx, info.LocalPath, info.ObjectPath); err != nil {
			return nil, errors.NewStorageError(errors.CodeTargetUnwritable,
				fmt.Sprintf("failed to upload shard %s", info.ObjectPath), err)
		}
		if err := w.store.Upload(ctx, info.MetaPath, info.MetaObject); err != nil {
			return nil, errors.NewStorageError(errors.CodeTargetUnwritable,
				fmt.Sprintf("failed to upload sidecar %s", info.MetaObject), err)
		}

		// Staged files are no longer needed once uploaded.
		os.Remove(info.LocalPath)
		os.Remove(info.MetaPath)

		infos = append(infos, info)
	}
	return infos, nil
}

// splitRows splits a partition's rows into shard-sized chunks.
func splitRows(rows []*types.EnrichedRecord, maxRows int) [][]*types.EnrichedRecord {
	if maxRows <= 0 || len(rows) <= maxRows {
		return [][]*types.EnrichedRecord{rows}
	}
	var chunks [][]*types.EnrichedRecord
	for start := 0; start < len(rows); start += maxRows {
		end := start + maxRows
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}

// keyLock returns the lock for a partition key, creating one if needed.
func (w *PartitionedWriter) keyLock(key string) *sync.Mutex {
	w.lockMu.Lock()
	defer w.lockMu.Unlock()
	lock, ok := w.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		w.keyLocks[key] = lock
	}
	return lock
}
