package types

// ReasonCode identifies why a record was rejected. Every rejected
// record carries exactly one code.
type ReasonCode string

const (
	// ReasonCorruptRecord marks payloads that could not be decoded at all.
	ReasonCorruptRecord ReasonCode = "corrupt_record"

	// ReasonMissingRequiredField marks records where event_id, user_id
	// or event_type is absent, empty, or not a string.
	ReasonMissingRequiredField ReasonCode = "missing_required_field"

	// ReasonInvalidTimestamp marks records whose timestamp is absent or
	// does not parse as an ISO-8601 instant with an explicit offset.
	ReasonInvalidTimestamp ReasonCode = "invalid_timestamp"

	// ReasonInvalidPrice marks records whose price is present but not a
	// non-negative finite number.
	ReasonInvalidPrice ReasonCode = "invalid_price"

	// ReasonInvalidQuantity marks records whose quantity is present but
	// not a positive integer.
	ReasonInvalidQuantity ReasonCode = "invalid_quantity"

	// ReasonDuplicateEventID marks otherwise valid records dropped
	// because an earlier record in the run carries the same event_id.
	ReasonDuplicateEventID ReasonCode = "duplicate_event_id"
)

// Rejection pairs a rejected raw record with its single reason code.
type Rejection struct {
	Record RawRecord  `json:"record"`
	Reason ReasonCode `json:"reason"`
}
