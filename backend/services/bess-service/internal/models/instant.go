package models

import "time"

// CanonicalInstant maps t onto the instant representation used for storage and comparison:
// UTC, truncated to microseconds (the resolution of Postgres timestamptz).
func CanonicalInstant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// InstantKey returns the exact string form of t used for dedup and trend grouping.
func InstantKey(t time.Time) string {
	return CanonicalInstant(t).Format(time.RFC3339Nano)
}
