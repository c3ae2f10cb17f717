package enrich

import "github.com/bhargavirodda1278-pixel/clickstream-pipeline1/pkg/types"

// categoryTable is the closed vocabulary mapping event types to
// categories. It is a fixed table rather than runtime string dispatch
// so the vocabulary stays auditable; anything not listed falls to
// CategoryOther.
var categoryTable = map[string]types.EventCategory{
	"page_view":     types.CategoryBrowsing,
	"product_view":  types.CategoryBrowsing,
	"category_view": types.CategoryBrowsing,
	"search":        types.CategoryBrowsing,

	"add_to_cart":      types.CategoryCart,
	"remove_from_cart": types.CategoryCart,
	"checkout_start":   types.CategoryCart,
	"payment_info":     types.CategoryCart,

	"purchase": types.CategoryConversion,

	"login":  types.CategoryEngagement,
	"logout": types.CategoryEngagement,
	"signup": types.CategoryEngagement,
}

// Categorize maps an event type to its category. The mapping is total:
// every event type maps to exactly one category, with unknown types
// landing in CategoryOther.
func Categorize(eventType string) types.EventCategory {
	if c, ok := categoryTable[eventType]; ok {
		return c
	}
	return types.CategoryOther
}

// KnownEventTypes returns the event types in the controlled vocabulary.
func KnownEventTypes() []string {
	out := make([]string, 0, len(categoryTable))
	for t := range categoryTable {
		out = append(out, t)
	}
	return out
}
