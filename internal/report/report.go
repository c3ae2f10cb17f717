// Package report accumulates run-level data quality counts and emits
// the final QualityReport. The reporter observes every stage; its
// counts satisfy accepted + rejected == total for every completed run.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/errors"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/storage"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/pkg/types"
)

// Reporter accumulates counts across the run. All methods are safe for
// concurrent use by the parallel parse and validate stages.
type Reporter struct {
	mu sync.Mutex

	runID     string
	startedAt time.Time

	total    int64
	accepted int64
	rejected int64

	rejectionsByReason map[types.ReasonCode]int64
	users              map[string]struct{}
	sessions           map[string]struct{}
	eventTypes         map[string]int64
	sourceFiles        int
}

// NewReporter creates a reporter for one run.
func NewReporter(runID string, startedAt time.Time) *Reporter {
	return &Reporter{
		runID:              runID,
		startedAt:          startedAt,
		rejectionsByReason: make(map[types.ReasonCode]int64),
		users:              make(map[string]struct{}),
		sessions:           make(map[string]struct{}),
		eventTypes:         make(map[string]int64),
	}
}

// RecordSourceFile counts one processed input file.
func (r *Reporter) RecordSourceFile() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sourceFiles++
}

// RecordAccepted counts one accepted record and feeds the distinct and
// histogram aggregates.
func (r *Reporter) RecordAccepted(rec *types.ValidatedRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	r.accepted++
	r.users[rec.UserID] = struct{}{}
	if rec.SessionID != "" {
		r.sessions[rec.SessionID] = struct{}{}
	}
	r.eventTypes[rec.EventType]++
}

// RecordRejected counts one rejected record under its reason code.
func (r *Reporter) RecordRejected(reason types.ReasonCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	r.rejected++
	r.rejectionsByReason[reason]++
}

// Counts returns a snapshot of the total, accepted, and rejected
// counts, used by the commit path before the report is finalized.
func (r *Reporter) Counts() (total, accepted, rejected int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total, r.accepted, r.rejected
}

// Finalize produces the immutable QualityReport. Call it exactly once,
// after the writer has committed all partitions.
func (r *Reporter) Finalize(finishedAt time.Time, partitions []string) *types.QualityReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	byReason := make(map[types.ReasonCode]int64, len(r.rejectionsByReason))
	for reason, count := range r.rejectionsByReason {
		byReason[reason] = count
	}
	histogram := make(map[string]int64, len(r.eventTypes))
	for eventType, count := range r.eventTypes {
		histogram[eventType] = count
	}

	committed := append([]string(nil), partitions...)
	sort.Strings(committed)

	return &types.QualityReport{
		RunID:               r.runID,
		StartedAt:           r.startedAt,
		FinishedAt:          finishedAt,
		TotalRecords:        r.total,
		AcceptedRecords:     r.accepted,
		RejectedRecords:     r.rejected,
		RejectionsByReason:  byReason,
		DistinctUsers:       int64(len(r.users)),
		DistinctSessions:    int64(len(r.sessions)),
		EventTypeCounts:     histogram,
		SourceFiles:         r.sourceFiles,
		PartitionsCommitted: committed,
	}
}

// RenderSummary writes the human-readable run summary banner.
func RenderSummary(w io.Writer, report *types.QualityReport) {
	line := "============================================================"
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "TRANSFORMATION SUMMARY")
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "Run ID: %s\n", report.RunID)
	fmt.Fprintf(w, "Source files processed: %d\n", report.SourceFiles)
	fmt.Fprintf(w, "Total records: %d\n", report.TotalRecords)
	fmt.Fprintf(w, "Accepted: %d\n", report.AcceptedRecords)
	fmt.Fprintf(w, "Rejected: %d\n", report.RejectedRecords)

	if len(report.RejectionsByReason) > 0 {
		fmt.Fprintln(w, "\nRejections by reason:")
		reasons := make([]string, 0, len(report.RejectionsByReason))
		for reason := range report.RejectionsByReason {
			reasons = append(reasons, string(reason))
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			fmt.Fprintf(w, "  %s: %d\n", reason, report.RejectionsByReason[types.ReasonCode(reason)])
		}
	}

	fmt.Fprintf(w, "\nDistinct users: %d\n", report.DistinctUsers)
	fmt.Fprintf(w, "Distinct sessions: %d\n", report.DistinctSessions)

	if len(report.EventTypeCounts) > 0 {
		fmt.Fprintln(w, "\nEvent type distribution:")
		eventTypes := make([]string, 0, len(report.EventTypeCounts))
		for eventType := range report.EventTypeCounts {
			eventTypes = append(eventTypes, eventType)
		}
		sort.Strings(eventTypes)
		for _, eventType := range eventTypes {
			fmt.Fprintf(w, "  %s: %d\n", eventType, report.EventTypeCounts[eventType])
		}
	}

	if len(report.PartitionsCommitted) > 0 {
		fmt.Fprintf(w, "\nPartitions committed: %v\n", report.PartitionsCommitted)
	}
	fmt.Fprintln(w, line)
}

// Publish uploads the report JSON to the target tree so downstream
// tooling can read it alongside the output partitions. It must only be
// called after the run's partitions have been durably committed.
func Publish(ctx context.Context, store storage.ObjectStorage, workDir, targetPrefix string, report *types.QualityReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.NewInternalError("failed to marshal quality report", err)
	}

	localPath := filepath.Join(workDir, fmt.Sprintf("report-%s.json", report.RunID))
	if err := os.WriteFile(localPath, data, 0644); err != nil {
		return errors.NewInternalError("failed to stage quality report", err)
	}
	defer os.Remove(localPath)

	objectPath := fmt.Sprintf("%s/_reports/run-%s.json", targetPrefix, report.RunID)
	if err := store.Upload(ctx, localPath, objectPath); err != nil {
		return errors.NewStorageError(errors.CodeTargetUnwritable,
			fmt.Sprintf("failed to upload quality report %s", objectPath), err)
	}
	return nil
}
