// Package types provides the core data types for the clickstream
// transform pipeline.
package types

import "time"

// Field names for the raw clickstream schema.
const (
	FieldEventID         = "event_id"
	FieldUserID          = "user_id"
	FieldSessionID       = "session_id"
	FieldEventType       = "event_type"
	FieldTimestamp       = "timestamp"
	FieldPageURL         = "page_url"
	FieldProductID       = "product_id"
	FieldProductName     = "product_name"
	FieldProductCategory = "product_category"
	FieldPrice           = "price"
	FieldQuantity        = "quantity"
	FieldDeviceType      = "device_type"
	FieldReferrer        = "referrer"
	FieldUserAgent       = "user_agent"
	FieldIPAddress       = "ip_address"
	FieldAdditionalData  = "additional_data"
)

// RawRecord is an as-received record: the field bag decoded from one
// JSON object, plus the provenance of where it was decoded. No
// structural guarantee holds beyond it being a JSON object; any field
// may be absent or carry the wrong type.
type RawRecord struct {
	// Fields maps raw field names to their decoded JSON values.
	// Numbers are json.Number to preserve integer/float distinction.
	Fields map[string]interface{} `json:"fields"`

	// Source is the object path of the file the record was decoded from.
	Source string `json:"source"`

	// Offset is the byte offset within the source where decoding of
	// this record started (line start for NDJSON, 0 for array files).
	Offset int64 `json:"offset"`

	// Index is the zero-based position of the record within its source.
	Index int `json:"index"`
}

// ValidatedRecord is a RawRecord that has passed every required-field
// and type check. The identifier fields are guaranteed non-empty and
// Timestamp carries an explicit zone. Created once by the validator
// and immutable afterward.
type ValidatedRecord struct {
	EventID   string
	UserID    string
	SessionID string
	EventType string
	Timestamp time.Time

	// Source and Offset carry the raw record's provenance so a record
	// rejected after validation can still be located in its input file.
	Source string
	Offset int64

	PageURL         string
	ProductID       string
	ProductName     string
	ProductCategory string
	DeviceType      string
	Referrer        string

	// Price and Quantity are nil when absent from the raw record.
	Price    *float64
	Quantity *int64

	// Attrs holds every remaining raw field as received, including the
	// privacy-sensitive ones until the redactor strips them.
	Attrs map[string]interface{}
}

// EventCategory is the closed categorization vocabulary.
type EventCategory string

const (
	CategoryBrowsing   EventCategory = "browsing"
	CategoryCart       EventCategory = "cart"
	CategoryConversion EventCategory = "conversion"
	CategoryEngagement EventCategory = "engagement"
	CategoryOther      EventCategory = "other"
)

// EnrichedRecord is the output unit: the validated fields minus the
// redacted ones, plus the derived partition, category, session and
// quality attributes. Its fields are the external schema contract for
// downstream catalog and query tooling.
type EnrichedRecord struct {
	EventID   string
	UserID    string
	SessionID string
	EventType string

	// Timestamp is the record's own event time; the partition key is
	// derived from it, never from ProcessedTimestamp.
	Timestamp time.Time

	// ProcessedTimestamp is the run execution instant, identical for
	// every record produced by one run.
	ProcessedTimestamp time.Time

	EventDate string // YYYY-MM-DD, UTC calendar
	Year      int
	Month     int
	Day       int
	Hour      int // 0-23

	EventCategory EventCategory

	// EventSequence is the 1-based rank within the record's session.
	EventSequence  int
	IsSessionStart bool

	HasProductData bool
	HasPriceData   bool

	PageURL         string
	ProductID       string
	ProductName     string
	ProductCategory string
	DeviceType      string
	Referrer        string
	Price           *float64
	Quantity        *int64
}

// Partition returns the (year, month, day) key governing where the
// record is written.
func (r *EnrichedRecord) Partition() PartitionKey {
	return PartitionKey{Year: r.Year, Month: r.Month, Day: r.Day}
}
