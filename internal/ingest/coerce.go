// Package ingest implements the CSV-to-document ingestion pipeline: field
// coercion, deterministic record identity, row normalization, and the
// chunked batch loader that feeds documents into the store.
//
// This package has no driver dependencies and can be exercised against any
// Sink implementation.
package ingest

import (
	"strconv"
	"strings"
	"time"
)

// EpochUnit selects how numeric timestamps are interpreted.
type EpochUnit string

const (
	UnitSeconds      EpochUnit = "s"
	UnitMilliseconds EpochUnit = "ms"
	UnitAuto         EpochUnit = "auto"
)

// MillisThreshold is the cutover for UnitAuto: values above it are read as
// milliseconds, values at or below it as seconds. The policy assumes no
// millisecond-scale timestamps before ~2001 and no second-scale timestamps
// after the year 33658, which holds for the sensor fleets this tool targets.
const MillisThreshold = 1_000_000_000_000

// ValidEpochUnit reports whether s names a supported epoch unit.
func ValidEpochUnit(s string) bool {
	switch EpochUnit(s) {
	case UnitSeconds, UnitMilliseconds, UnitAuto:
		return true
	}
	return false
}

// CoerceFloat converts a numeric-looking cell to a float64.
// Empty or non-numeric input yields ok=false; it never fails loudly.
func CoerceFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// CoerceBool converts a cell to a bool.
//
// Classification order: empty ⇒ unknown; numeric (including numeric-looking
// strings) ⇒ nonzero is true; otherwise a case-insensitive match against the
// usual truthy/falsy tokens. Anything else is unknown and the caller is
// expected to omit the field.
func CoerceBool(s string) (bool, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return false, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f != 0, true
	}
	switch s {
	case "true", "t", "yes", "y":
		return true, true
	case "false", "f", "no", "n":
		return false, true
	}
	return false, false
}

// ParseEpoch parses a numeric epoch cell into a UTC instant truncated to
// whole seconds. Truncation happens before the instant is used anywhere
// downstream so that sub-second jitter in the source cannot change a
// record's identity between runs.
func ParseEpoch(s string, unit EpochUnit) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, false
	}

	u := unit
	if u == UnitAuto {
		if f > MillisThreshold {
			u = UnitMilliseconds
		} else {
			u = UnitSeconds
		}
	}

	var sec int64
	switch u {
	case UnitMilliseconds:
		sec = int64(f) / 1000
	default:
		sec = int64(f)
	}
	return timeFromSeconds(sec), true
}

func timeFromSeconds(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
