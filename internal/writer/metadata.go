package writer

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/bloom"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/pkg/types"
)

// MetadataSidecar is the .meta.json written next to every shard. The
// external catalog and query collaborators read it to prune shards
// without opening them.
type MetadataSidecar struct {
	ShardID      string                       `json:"shard_id"`
	Partition    types.PartitionKey           `json:"partition"`
	RowCount     int64                        `json:"row_count"`
	SizeBytes    int64                        `json:"size_bytes"`
	MinEventTime int64                        `json:"min_event_time"`
	MaxEventTime int64                        `json:"max_event_time"`
	CreatedAt    int64                        `json:"created_at"`
	BloomFilters map[string]*bloom.Serialized `json:"bloom_filters"`
}

// writeSidecar generates and writes the metadata sidecar for a shard,
// returning the sidecar's local path.
func writeSidecar(shardPath string, info *ShardInfo, rows []*types.EnrichedRecord) (string, error) {
	users, sessions := buildFilters(rows)

	userFilter, err := users.Serialize()
	if err != nil {
		return "", fmt.Errorf("writer: failed to serialize user filter: %w", err)
	}
	sessionFilter, err := sessions.Serialize()
	if err != nil {
		return "", fmt.Errorf("writer: failed to serialize session filter: %w", err)
	}

	sidecar := &MetadataSidecar{
		ShardID:      info.ShardID,
		Partition:    info.Key,
		RowCount:     info.RowCount,
		SizeBytes:    info.SizeBytes,
		MinEventTime: info.MinEventTime.UnixNano(),
		MaxEventTime: info.MaxEventTime.UnixNano(),
		CreatedAt:    info.CreatedAt.UnixNano(),
		BloomFilters: map[string]*bloom.Serialized{
			"user_id":    userFilter,
			"session_id": sessionFilter,
		},
	}

	data, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return "", fmt.Errorf("writer: failed to marshal sidecar: %w", err)
	}

	metaPath := shardPath[:len(shardPath)-len(".sqlite")] + ".meta.json"
	if err := os.WriteFile(metaPath, data, 0644); err != nil {
		return "", fmt.Errorf("writer: failed to write sidecar: %w", err)
	}
	return metaPath, nil
}

// ReadSidecar loads a sidecar from disk, used by tests and tooling.
func ReadSidecar(path string) (*MetadataSidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("writer: failed to read sidecar: %w", err)
	}
	var sidecar MetadataSidecar
	if err := json.Unmarshal(data, &sidecar); err != nil {
		return nil, fmt.Errorf("writer: failed to decode sidecar: %w", err)
	}
	return &sidecar, nil
}
