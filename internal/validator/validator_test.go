package validator

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/errors"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/pkg/types"
)

func validFields() map[string]interface{} {
	return map[string]interface{}{
		"event_id":   "evt_001",
		"user_id":    "u1",
		"session_id": "s1",
		"event_type": "product_view",
		"timestamp":  "2025-01-01T10:00:00Z",
	}
}

func TestValidate_Accepted(t *testing.T) {
	fields := validFields()
	fields["page_url"] = "/products/42"
	fields["product_id"] = "p42"
	fields["product_name"] = "Widget"
	fields["price"] = json.Number("10")
	fields["quantity"] = json.Number("2")
	fields["user_agent"] = "Mozilla/5.0"

	rec, rejection := Validate(types.RawRecord{Fields: fields, Source: "raw/f.json"})
	if rejection != nil {
		t.Fatalf("expected acceptance, got rejection %s", rejection.Reason)
	}

	if rec.EventID != "evt_001" || rec.UserID != "u1" || rec.EventType != "product_view" {
		t.Errorf("unexpected identifiers: %+v", rec)
	}
	want := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	if !rec.Timestamp.Equal(want) {
		t.Errorf("expected timestamp %v, got %v", want, rec.Timestamp)
	}
	if rec.Price == nil || *rec.Price != 10 {
		t.Errorf("expected price=10, got %v", rec.Price)
	}
	if rec.Quantity == nil || *rec.Quantity != 2 {
		t.Errorf("expected quantity=2, got %v", rec.Quantity)
	}
	if rec.PageURL != "/products/42" || rec.ProductID != "p42" || rec.ProductName != "Widget" {
		t.Errorf("unexpected optional fields: %+v", rec)
	}
	// user_agent is not lifted; it stays in Attrs until redaction.
	if _, ok := rec.Attrs["user_agent"]; !ok {
		t.Error("expected user_agent retained in Attrs before redaction")
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]interface{})
		reason types.ReasonCode
	}{
		{
			name:   "missing user_id",
			mutate: func(f map[string]interface{}) { delete(f, "user_id") },
			reason: types.ReasonMissingRequiredField,
		},
		{
			name:   "empty event_id",
			mutate: func(f map[string]interface{}) { f["event_id"] = "" },
			reason: types.ReasonMissingRequiredField,
		},
		{
			name:   "non-string event_type",
			mutate: func(f map[string]interface{}) { f["event_type"] = json.Number("5") },
			reason: types.ReasonMissingRequiredField,
		},
		{
			name:   "missing timestamp",
			mutate: func(f map[string]interface{}) { delete(f, "timestamp") },
			reason: types.ReasonInvalidTimestamp,
		},
		{
			name:   "timestamp without offset",
			mutate: func(f map[string]interface{}) { f["timestamp"] = "2025-01-01T10:00:00" },
			reason: types.ReasonInvalidTimestamp,
		},
		{
			name:   "timestamp not a string",
			mutate: func(f map[string]interface{}) { f["timestamp"] = json.Number("1735725600") },
			reason: types.ReasonInvalidTimestamp,
		},
		{
			name:   "negative price",
			mutate: func(f map[string]interface{}) { f["price"] = json.Number("-5") },
			reason: types.ReasonInvalidPrice,
		},
		{
			name:   "price not a number",
			mutate: func(f map[string]interface{}) { f["price"] = "free" },
			reason: types.ReasonInvalidPrice,
		},
		{
			name:   "zero quantity",
			mutate: func(f map[string]interface{}) { f["quantity"] = json.Number("0") },
			reason: types.ReasonInvalidQuantity,
		},
		{
			name:   "fractional quantity",
			mutate: func(f map[string]interface{}) { f["quantity"] = json.Number("1.5") },
			reason: types.ReasonInvalidQuantity,
		},
		{
			name:   "quantity not a number",
			mutate: func(f map[string]interface{}) { f["quantity"] = "two" },
			reason: types.ReasonInvalidQuantity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validFields()
			tt.mutate(fields)

			rec, rejection := Validate(types.RawRecord{Fields: fields})
			if rec != nil {
				t.Fatalf("expected rejection, got accepted record %+v", rec)
			}
			if rejection == nil {
				t.Fatal("expected rejection, got nil")
			}
			if rejection.Reason != tt.reason {
				t.Errorf("expected reason %s, got %s", tt.reason, rejection.Reason)
			}
		})
	}
}

func TestValidate_ShortCircuitOrder(t *testing.T) {
	// A record failing both the required-field and timestamp checks
	// must report the required-field reason.
	fields := validFields()
	delete(fields, "user_id")
	fields["timestamp"] = "garbage"

	_, rejection := Validate(types.RawRecord{Fields: fields})
	if rejection == nil {
		t.Fatal("expected rejection")
	}
	if rejection.Reason != types.ReasonMissingRequiredField {
		t.Errorf("expected missing_required_field, got %s", rejection.Reason)
	}
}

func TestValidate_OptionalFieldsAbsent(t *testing.T) {
	rec, rejection := Validate(types.RawRecord{Fields: validFields()})
	if rejection != nil {
		t.Fatalf("expected acceptance, got rejection %s", rejection.Reason)
	}
	if rec.Price != nil {
		t.Errorf("expected nil price, got %v", *rec.Price)
	}
	if rec.Quantity != nil {
		t.Errorf("expected nil quantity, got %v", *rec.Quantity)
	}
}

func TestValidate_NullPriceAccepted(t *testing.T) {
	fields := validFields()
	fields["price"] = nil

	rec, rejection := Validate(types.RawRecord{Fields: fields})
	if rejection != nil {
		t.Fatalf("expected acceptance, got rejection %s", rejection.Reason)
	}
	if rec.Price != nil {
		t.Errorf("expected nil price for JSON null, got %v", *rec.Price)
	}
}

func TestValidate_RejectionKeepsOriginalPayload(t *testing.T) {
	fields := validFields()
	fields["price"] = json.Number("-1")

	_, rejection := Validate(types.RawRecord{Fields: fields, Source: "raw/day.json", Offset: 128})
	if rejection == nil {
		t.Fatal("expected rejection")
	}
	if rejection.Record.Source != "raw/day.json" || rejection.Record.Offset != 128 {
		t.Errorf("rejection lost provenance: %+v", rejection.Record)
	}
	if rejection.Record.Fields["event_id"] != "evt_001" {
		t.Error("rejection lost original payload fields")
	}
}

func TestValidate_AcceptedCarriesProvenance(t *testing.T) {
	rec, rejection := Validate(types.RawRecord{Fields: validFields(), Source: "raw/day.json", Offset: 256})
	if rejection != nil {
		t.Fatalf("expected acceptance, got rejection %s", rejection.Reason)
	}
	if rec.Source != "raw/day.json" || rec.Offset != 256 {
		t.Errorf("accepted record lost provenance: source=%q offset=%d", rec.Source, rec.Offset)
	}
}

func TestRejectionError(t *testing.T) {
	fields := validFields()
	fields["price"] = json.Number("-1")

	_, rejection := Validate(types.RawRecord{Fields: fields, Source: "raw/day.json", Offset: 64})
	if rejection == nil {
		t.Fatal("expected rejection")
	}

	perr := RejectionError(rejection)
	if perr.Category != errors.ErrCategoryValidation {
		t.Errorf("category = %s, want %s", perr.Category, errors.ErrCategoryValidation)
	}
	if perr.Code != errors.CodeInvalidPrice {
		t.Errorf("code = %s, want %s", perr.Code, errors.CodeInvalidPrice)
	}
	if !strings.Contains(perr.Error(), "raw/day.json") || !strings.Contains(perr.Error(), "offset 64") {
		t.Errorf("message lacks provenance: %s", perr.Error())
	}
	if errors.IsFatal(perr) {
		t.Error("a rejection must never be classified fatal")
	}
}
