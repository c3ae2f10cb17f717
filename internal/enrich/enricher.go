// Package enrich derives the output attributes of a validated record:
// calendar partition fields, event category, data-quality flags, and
// the redaction of privacy-sensitive fields.
package enrich

import (
	"time"

	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/session"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/pkg/types"
)

// Enricher turns sequenced records into enriched output records. It is
// a pure transformation; the processing timestamp is captured once at
// run start and stamped on every record the run produces.
type Enricher struct {
	processedAt time.Time
}

// NewEnricher creates an enricher stamping processedAt on all output.
func NewEnricher(processedAt time.Time) *Enricher {
	return &Enricher{processedAt: processedAt.UTC()}
}

// Enrich derives the output record for one sequenced input record.
// Calendar fields come from the record's own event timestamp under UTC
// rules, never from the processing time, so output partitions follow
// event time even when the run executes days later.
func (e *Enricher) Enrich(seq session.Sequenced) *types.EnrichedRecord {
	rec := seq.Record
	Redact(rec)

	eventTime := rec.Timestamp.UTC()
	year, month, day := eventTime.Date()

	return &types.EnrichedRecord{
		EventID:   rec.EventID,
		UserID:    rec.UserID,
		SessionID: rec.SessionID,
		EventType: rec.EventType,

		Timestamp:          eventTime,
		ProcessedTimestamp: e.processedAt,

		EventDate: eventTime.Format("2006-01-02"),
		Year:      year,
		Month:     int(month),
		Day:       day,
		Hour:      eventTime.Hour(),

		EventCategory: Categorize(rec.EventType),

		EventSequence:  seq.Sequence,
		IsSessionStart: seq.IsSessionStart,

		HasProductData: rec.ProductID != "" && rec.ProductName != "",
		HasPriceData:   rec.Price != nil,

		PageURL:         rec.PageURL,
		ProductID:       rec.ProductID,
		ProductName:     rec.ProductName,
		ProductCategory: rec.ProductCategory,
		DeviceType:      rec.DeviceType,
		Referrer:        rec.Referrer,
		Price:           rec.Price,
		Quantity:        rec.Quantity,
	}
}

// EnrichAll enriches a full run's sequenced records in input order.
func (e *Enricher) EnrichAll(records []session.Sequenced) []*types.EnrichedRecord {
	out := make([]*types.EnrichedRecord, len(records))
	for i, seq := range records {
		out[i] = e.Enrich(seq)
	}
	return out
}
