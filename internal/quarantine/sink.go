// Package quarantine diverts rejected raw payloads to an operator
// inspection sink. Every rejected record leaves the run annotated with
// its reason code; nothing is discarded silently.
package quarantine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/golang/snappy"

	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/errors"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/storage"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/pkg/types"
)

// Entry is one quarantined payload as written to the sink.
type Entry struct {
	Reason types.ReasonCode `json:"reason"`
	Source string           `json:"source"`
	Offset int64            `json:"offset"`

	// Record holds the decoded fields for validation rejects.
	Record map[string]interface{} `json:"record,omitempty"`

	// Payload holds the raw bytes for payloads that never decoded.
	Payload string `json:"payload,omitempty"`
}

// Sink accumulates quarantine entries for one run and flushes them to
// object storage grouped by reason code.
type Sink struct {
	store   storage.ObjectStorage
	prefix  string
	workDir string
	runID   string

	mu      sync.Mutex
	entries map[types.ReasonCode][]Entry
}

// NewSink creates a quarantine sink for one run.
func NewSink(store storage.ObjectStorage, prefix, workDir, runID string) *Sink {
	return &Sink{
		store:   store,
		prefix:  prefix,
		workDir: workDir,
		runID:   runID,
		entries: make(map[types.ReasonCode][]Entry),
	}
}

// AddRejection records a validation rejection.
func (s *Sink) AddRejection(rej types.Rejection) {
	s.add(Entry{
		Reason: rej.Reason,
		Source: rej.Record.Source,
		Offset: rej.Record.Offset,
		Record: rej.Record.Fields,
	})
}

// AddDuplicate records a validated record dropped because its
// event_id was already taken by an earlier record in the run.
func (s *Sink) AddDuplicate(rec *types.ValidatedRecord) {
	s.add(Entry{
		Reason: types.ReasonDuplicateEventID,
		Source: rec.Source,
		Offset: rec.Offset,
		Record: map[string]interface{}{
			types.FieldEventID:   rec.EventID,
			types.FieldUserID:    rec.UserID,
			types.FieldSessionID: rec.SessionID,
			types.FieldEventType: rec.EventType,
			types.FieldTimestamp: rec.Timestamp.Format(time.RFC3339),
		},
	})
}

// AddCorrupt records a payload that could not be decoded at all.
func (s *Sink) AddCorrupt(source string, offset int64, payload []byte) {
	s.add(Entry{
		Reason:  types.ReasonCorruptRecord,
		Source:  source,
		Offset:  offset,
		Payload: string(payload),
	})
}

func (s *Sink) add(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.Reason] = append(s.entries[e.Reason], e)
}

// Count returns the number of entries accumulated so far.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, batch := range s.entries {
		n += len(batch)
	}
	return n
}

// Flush writes one snappy-compressed NDJSON object per reason code to
// the quarantine prefix. An empty sink flushes nothing.
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	batches := s.entries
	s.entries = make(map[types.ReasonCode][]Entry)
	s.mu.Unlock()

	reasons := make([]string, 0, len(batches))
	for reason := range batches {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)

	for _, reason := range reasons {
		batch := batches[types.ReasonCode(reason)]
		if len(batch) == 0 {
			continue
		}
		if err := s.flushBatch(ctx, reason, batch); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) flushBatch(ctx context.Context, reason string, batch []Entry) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, entry := range batch {
		if err := enc.Encode(entry); err != nil {
			return errors.NewInternalError("failed to encode quarantine entry", err)
		}
	}

	compressed := snappy.Encode(nil, buf.Bytes())

	localName := fmt.Sprintf("quarantine-%s-%s.ndjson.snappy", s.runID, reason)
	localPath := filepath.Join(s.workDir, localName)
	if err := os.WriteFile(localPath, compressed, 0644); err != nil {
		return errors.NewInternalError("failed to stage quarantine batch", err)
	}
	defer os.Remove(localPath)

	objectPath := fmt.Sprintf("%s/reason=%s/run-%s.ndjson.snappy", s.prefix, reason, s.runID)
	if err := s.store.Upload(ctx, localPath, objectPath); err != nil {
		return errors.NewStorageError(errors.CodeTargetUnwritable,
			fmt.Sprintf("failed to upload quarantine batch %s", objectPath), err)
	}
	return nil
}
