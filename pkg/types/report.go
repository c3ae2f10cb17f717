package types

import "time"

// QualityReport is the run-scoped data quality aggregate. It is
// created once per run, finalized at completion, and never mutated
// afterward.
type QualityReport struct {
	RunID string `json:"run_id"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// TotalRecords is every record seen, accepted or not. The
	// invariant TotalRecords == AcceptedRecords + RejectedRecords
	// holds for every completed run.
	TotalRecords    int64 `json:"total_records"`
	AcceptedRecords int64 `json:"accepted_records"`
	RejectedRecords int64 `json:"rejected_records"`

	// RejectionsByReason breaks rejected counts down per reason code.
	RejectionsByReason map[ReasonCode]int64 `json:"rejections_by_reason"`

	DistinctUsers    int64 `json:"distinct_users"`
	DistinctSessions int64 `json:"distinct_sessions"`

	// EventTypeCounts is the histogram of event_type among accepted
	// records.
	EventTypeCounts map[string]int64 `json:"event_type_counts"`

	// SourceFiles is the number of input files processed.
	SourceFiles int `json:"source_files"`

	// PartitionsCommitted lists the partition keys the run replaced.
	PartitionsCommitted []string `json:"partitions_committed"`
}
