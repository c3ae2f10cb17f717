package types

import "fmt"

// PartitionKey is the (year, month, day) triple derived from a
// record's own event timestamp. It governs physical output placement.
type PartitionKey struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// Prefix returns the Hive-style object path segment for the key,
// e.g. "year=2025/month=01/day=01".
func (k PartitionKey) Prefix() string {
	return fmt.Sprintf("year=%04d/month=%02d/day=%02d", k.Year, k.Month, k.Day)
}

// String returns a compact identifier used as the catalog key.
func (k PartitionKey) String() string {
	return fmt.Sprintf("%04d%02d%02d", k.Year, k.Month, k.Day)
}

// Less orders partition keys chronologically.
func (k PartitionKey) Less(other PartitionKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	if k.Month != other.Month {
		return k.Month < other.Month
	}
	return k.Day < other.Day
}
