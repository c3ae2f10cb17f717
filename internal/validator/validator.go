// Package validator enforces the required-field and type constraints
// on raw records. Every record is either accepted as a
// ValidatedRecord or rejected with exactly one reason code; nothing is
// dropped silently.
package validator

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/errors"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/pkg/types"
)

// requiredFields are checked first, in this order, so the reported
// reason is stable for records failing more than one check.
var requiredFields = []string{types.FieldEventID, types.FieldUserID, types.FieldEventType}

// liftedFields are raw fields promoted into typed ValidatedRecord
// fields; everything else stays in Attrs.
var liftedFields = map[string]bool{
	types.FieldEventID:         true,
	types.FieldUserID:          true,
	types.FieldSessionID:       true,
	types.FieldEventType:       true,
	types.FieldTimestamp:       true,
	types.FieldPageURL:         true,
	types.FieldProductID:       true,
	types.FieldProductName:     true,
	types.FieldProductCategory: true,
	types.FieldPrice:           true,
	types.FieldQuantity:        true,
	types.FieldDeviceType:      true,
	types.FieldReferrer:        true,
}

// Validate checks one raw record. It returns either a validated record
// or a rejection carrying the original payload; never both.
// Checks short-circuit at the first failure.
func Validate(raw types.RawRecord) (*types.ValidatedRecord, *types.Rejection) {
	for _, field := range requiredFields {
		if stringField(raw.Fields, field) == "" {
			return nil, reject(raw, types.ReasonMissingRequiredField)
		}
	}

	ts, ok := parseTimestamp(raw.Fields[types.FieldTimestamp])
	if !ok {
		return nil, reject(raw, types.ReasonInvalidTimestamp)
	}

	price, ok := parsePrice(raw.Fields)
	if !ok {
		return nil, reject(raw, types.ReasonInvalidPrice)
	}

	quantity, ok := parseQuantity(raw.Fields)
	if !ok {
		return nil, reject(raw, types.ReasonInvalidQuantity)
	}

	rec := &types.ValidatedRecord{
		EventID:   stringField(raw.Fields, types.FieldEventID),
		UserID:    stringField(raw.Fields, types.FieldUserID),
		SessionID: stringField(raw.Fields, types.FieldSessionID),
		EventType: stringField(raw.Fields, types.FieldEventType),
		Timestamp: ts,

		Source: raw.Source,
		Offset: raw.Offset,

		PageURL:         stringField(raw.Fields, types.FieldPageURL),
		ProductID:       stringField(raw.Fields, types.FieldProductID),
		ProductName:     stringField(raw.Fields, types.FieldProductName),
		ProductCategory: stringField(raw.Fields, types.FieldProductCategory),
		DeviceType:      stringField(raw.Fields, types.FieldDeviceType),
		Referrer:        stringField(raw.Fields, types.FieldReferrer),

		Price:    price,
		Quantity: quantity,

		Attrs: residualAttrs(raw.Fields),
	}
	return rec, nil
}

func reject(raw types.RawRecord, reason types.ReasonCode) *types.Rejection {
	return &types.Rejection{Record: raw, Reason: reason}
}

// reasonCodes maps rejection reasons to their structured error codes.
var reasonCodes = map[types.ReasonCode]string{
	types.ReasonMissingRequiredField: errors.CodeMissingRequiredField,
	types.ReasonInvalidTimestamp:     errors.CodeInvalidTimestamp,
	types.ReasonInvalidPrice:         errors.CodeInvalidPrice,
	types.ReasonInvalidQuantity:      errors.CodeInvalidQuantity,
}

// RejectionError converts a rejection into its structured error form
// for logs and diagnostics.
func RejectionError(rej *types.Rejection) *errors.PipelineError {
	code, ok := reasonCodes[rej.Reason]
	if !ok {
		code = errors.CodeMalformedPayload
	}
	return errors.NewValidationError(code,
		fmt.Sprintf("record at %s offset %d rejected: %s",
			rej.Record.Source, rej.Record.Offset, rej.Reason))
}

// stringField returns the field as a string, or "" when absent, null,
// or not a string.
func stringField(fields map[string]interface{}, name string) string {
	v, ok := fields[name]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// parseTimestamp requires an ISO-8601 instant with an explicit offset.
// RFC 3339 is the ISO-8601 profile the ingestion contract uses; a bare
// local time without offset does not parse.
func parseTimestamp(v interface{}) (time.Time, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// parsePrice validates an optional price: absent or null is fine,
// otherwise it must be a non-negative finite number.
func parsePrice(fields map[string]interface{}) (*float64, bool) {
	v, ok := fields[types.FieldPrice]
	if !ok || v == nil {
		return nil, true
	}

	f, ok := numberValue(v)
	if !ok {
		return nil, false
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return &f, true
}

// parseQuantity validates an optional quantity: absent or null is
// fine, otherwise it must be a positive integer.
func parseQuantity(fields map[string]interface{}) (*int64, bool) {
	v, ok := fields[types.FieldQuantity]
	if !ok || v == nil {
		return nil, true
	}

	n, ok := v.(json.Number)
	if !ok {
		return nil, false
	}
	i, err := n.Int64()
	if err != nil || i <= 0 {
		return nil, false
	}
	return &i, true
}

// numberValue extracts a float from a decoded JSON value. The parser
// decodes with UseNumber, but values passed in directly by tests may
// be float64.
func numberValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// residualAttrs copies every field not lifted into a typed slot,
// including the privacy-sensitive ones the redactor will strip.
func residualAttrs(fields map[string]interface{}) map[string]interface{} {
	attrs := make(map[string]interface{})
	for k, v := range fields {
		if !liftedFields[k] {
			attrs[k] = v
		}
	}
	return attrs
}
