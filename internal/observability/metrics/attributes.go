package metrics

import (
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Identifiers that would explode series cardinality.
var highCardinalityKeys = []string{
	"business_id",
	"transaction_id",
	"checkout_request_id",
	"phone",
	"request_id",
}

// FilterAttributes drops attributes keyed by per-entity identifiers.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		key := strings.ToLower(string(attr.Key))
		drop := false
		for _, needle := range highCardinalityKeys {
			if strings.Contains(key, needle) {
				drop = true
				break
			}
		}
		if !drop {
			filtered = append(filtered, attr)
		}
	}
	return filtered
}
