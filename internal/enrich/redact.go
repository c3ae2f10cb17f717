package enrich

import "github.com/bhargavirodda1278-pixel/clickstream-pipeline1/pkg/types"

// RedactedFields are dropped from every output record regardless of
// presence in the input.
var RedactedFields = []string{
	types.FieldUserAgent,
	types.FieldIPAddress,
	types.FieldAdditionalData,
}

// Redact removes the privacy-sensitive fields from a record's residual
// attributes. Absence of a field is not an error; the projection is
// deterministic and total.
func Redact(rec *types.ValidatedRecord) {
	for _, field := range RedactedFields {
		delete(rec.Attrs, field)
	}
}
