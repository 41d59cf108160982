// Package timestamp provides standardized Unix timestamp handling utilities.
//
// This package uses int64 seconds as the canonical timestamp format because
// that is what the camera server speaks: every event record carries a decimal
// Unix-seconds field, and the web interface accepts the same unit. Keeping one
// unit end to end eliminates the second/millisecond confusion that creeps in
// when each call site converts for itself.
//
// Zero Value Semantics:
//   - A timestamp value of 0 means "not set" or "unknown"
//   - Functions handle zero values gracefully, returning appropriate defaults
//
// Usage Examples:
//
//	// Current time
//	now := timestamp.Now()
//
//	// Convert from time.Time
//	ts := timestamp.ToUnix(time.Now())
//
//	// Convert to time.Time
//	t := timestamp.FromUnix(ts)
//
//	// Parse a timestamp field from an event record
//	ts := timestamp.ParseField("1558749618")
//
//	// Format for display
//	display := timestamp.Format(ts)
package timestamp

import (
	"strconv"
	"time"
)

// Now returns the current time as Unix seconds.
func Now() int64 {
	return time.Now().Unix()
}

// ToUnix converts a time.Time to Unix seconds.
func ToUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// FromUnix converts Unix seconds to time.Time.
// Returns zero time if timestamp is 0.
func FromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

// ParseField converts a decimal Unix-seconds field, as carried by event
// records, to Unix seconds. Returns 0 for an empty or malformed field.
func ParseField(s string) int64 {
	if s == "" {
		return 0
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil || sec < 0 {
		return 0
	}
	return sec
}

// Format converts Unix seconds to RFC3339 string for display.
// Returns empty string if timestamp is 0.
func Format(sec int64) string {
	if sec == 0 {
		return ""
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

// IsZero checks if a timestamp is unset (zero).
func IsZero(sec int64) bool {
	return sec == 0
}

// Since returns the duration since the given timestamp.
// Returns 0 if timestamp is zero.
func Since(sec int64) time.Duration {
	if sec == 0 {
		return 0
	}
	return time.Since(time.Unix(sec, 0))
}

// Between returns the duration between two timestamps.
// Returns 0 if either timestamp is zero.
func Between(start, end int64) time.Duration {
	if start == 0 || end == 0 {
		return 0
	}
	return time.Unix(end, 0).Sub(time.Unix(start, 0))
}
