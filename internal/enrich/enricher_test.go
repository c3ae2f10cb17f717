package enrich

import (
	"testing"
	"time"

	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/session"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/pkg/types"
)

func TestEnrich_TwoEventSession(t *testing.T) {
	processedAt := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	e := NewEnricher(processedAt)

	first := session.Sequenced{
		Record: &types.ValidatedRecord{
			EventID:   "evt_001",
			UserID:    "u1",
			SessionID: "s1",
			EventType: "page_view",
			Timestamp: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
			PageURL:   "/home",
		},
		Sequence:       1,
		IsSessionStart: true,
	}
	price := 9.99
	qty := int64(1)
	second := session.Sequenced{
		Record: &types.ValidatedRecord{
			EventID:     "evt_002",
			UserID:      "u1",
			SessionID:   "s1",
			EventType:   "purchase",
			Timestamp:   time.Date(2025, 1, 1, 10, 5, 0, 0, time.UTC),
			ProductID:   "p1",
			ProductName: "Widget",
			Price:       &price,
			Quantity:    &qty,
		},
		Sequence:       2,
		IsSessionStart: false,
	}

	out := e.EnrichAll([]session.Sequenced{first, second})

	a := out[0]
	if a.EventSequence != 1 || !a.IsSessionStart {
		t.Errorf("evt_001: expected sequence 1 and session start, got %d/%v",
			a.EventSequence, a.IsSessionStart)
	}
	if a.EventCategory != types.CategoryBrowsing {
		t.Errorf("evt_001: expected browsing category, got %s", a.EventCategory)
	}
	if a.EventDate != "2025-01-01" || a.Year != 2025 || a.Month != 1 || a.Day != 1 || a.Hour != 10 {
		t.Errorf("evt_001: wrong calendar fields: %s %d/%d/%d hour %d",
			a.EventDate, a.Year, a.Month, a.Day, a.Hour)
	}
	if a.HasProductData || a.HasPriceData {
		t.Errorf("evt_001: expected no product or price data flags")
	}

	b := out[1]
	if b.EventSequence != 2 || b.IsSessionStart {
		t.Errorf("evt_002: expected sequence 2 and no session start, got %d/%v",
			b.EventSequence, b.IsSessionStart)
	}
	if b.EventCategory != types.CategoryConversion {
		t.Errorf("evt_002: expected conversion category, got %s", b.EventCategory)
	}
	if !b.HasProductData || !b.HasPriceData {
		t.Errorf("evt_002: expected both data flags set")
	}
	if b.ProcessedTimestamp != processedAt {
		t.Errorf("evt_002: expected processed timestamp %v, got %v", processedAt, b.ProcessedTimestamp)
	}

	if a.Partition() != b.Partition() {
		t.Errorf("expected both events in one partition, got %v and %v", a.Partition(), b.Partition())
	}
	if got := a.Partition(); got.Year != 2025 || got.Month != 1 || got.Day != 1 {
		t.Errorf("unexpected partition key %v", got)
	}
}

func TestEnrich_CalendarFieldsUseUTC(t *testing.T) {
	e := NewEnricher(time.Now())

	// 2025-01-01T01:30:00+05:00 is 2024-12-31T20:30:00 UTC.
	offset := time.FixedZone("plus5", 5*3600)
	seq := session.Sequenced{
		Record: &types.ValidatedRecord{
			EventID:   "evt_tz",
			UserID:    "u1",
			SessionID: "s1",
			EventType: "page_view",
			Timestamp: time.Date(2025, 1, 1, 1, 30, 0, 0, offset),
		},
		Sequence:       1,
		IsSessionStart: true,
	}

	out := e.Enrich(seq)
	if out.EventDate != "2024-12-31" {
		t.Errorf("expected UTC event date 2024-12-31, got %s", out.EventDate)
	}
	if out.Year != 2024 || out.Month != 12 || out.Day != 31 || out.Hour != 20 {
		t.Errorf("expected UTC calendar 2024/12/31 hour 20, got %d/%d/%d hour %d",
			out.Year, out.Month, out.Day, out.Hour)
	}
}

func TestEnrich_ProductDataNeedsBothFields(t *testing.T) {
	e := NewEnricher(time.Now())
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name        string
		productID   string
		productName string
		want        bool
	}{
		{"both present", "p1", "Widget", true},
		{"id only", "p1", "", false},
		{"name only", "", "Widget", false},
		{"neither", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := e.Enrich(session.Sequenced{
				Record: &types.ValidatedRecord{
					EventID:     "evt_001",
					UserID:      "u1",
					SessionID:   "s1",
					EventType:   "product_view",
					Timestamp:   ts,
					ProductID:   tc.productID,
					ProductName: tc.productName,
				},
				Sequence: 1,
			})
			if out.HasProductData != tc.want {
				t.Errorf("HasProductData = %v, want %v", out.HasProductData, tc.want)
			}
		})
	}
}

func TestEnrich_RedactsSensitiveAttrs(t *testing.T) {
	e := NewEnricher(time.Now())
	rec := &types.ValidatedRecord{
		EventID:   "evt_001",
		UserID:    "u1",
		SessionID: "s1",
		EventType: "page_view",
		Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Attrs: map[string]interface{}{
			types.FieldUserAgent:      "Mozilla/5.0",
			types.FieldIPAddress:      "203.0.113.7",
			types.FieldAdditionalData: map[string]interface{}{"k": "v"},
			"campaign":                "spring",
		},
	}

	e.Enrich(session.Sequenced{Record: rec, Sequence: 1})

	for _, field := range RedactedFields {
		if _, ok := rec.Attrs[field]; ok {
			t.Errorf("field %s survived redaction", field)
		}
	}
	if _, ok := rec.Attrs["campaign"]; !ok {
		t.Errorf("non-sensitive attr was dropped")
	}
}

func TestCategorize(t *testing.T) {
	cases := map[string]types.EventCategory{
		"page_view":        types.CategoryBrowsing,
		"product_view":     types.CategoryBrowsing,
		"category_view":    types.CategoryBrowsing,
		"search":           types.CategoryBrowsing,
		"add_to_cart":      types.CategoryCart,
		"remove_from_cart": types.CategoryCart,
		"checkout_start":   types.CategoryCart,
		"payment_info":     types.CategoryCart,
		"purchase":         types.CategoryConversion,
		"login":            types.CategoryEngagement,
		"logout":           types.CategoryEngagement,
		"signup":           types.CategoryEngagement,
		"wishlist_add":     types.CategoryOther,
		"":                 types.CategoryOther,
		"PAGE_VIEW":        types.CategoryOther,
	}
	for eventType, want := range cases {
		if got := Categorize(eventType); got != want {
			t.Errorf("Categorize(%q) = %s, want %s", eventType, got, want)
		}
	}
}
