package ingest

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Column names the pipeline requires after header normalization.
const (
	DeviceColumn = "device"
	TimeColumn   = "ts"
)

// UnknownDevice is the sentinel recorded for rows whose device cell is
// missing or empty. The row is still worth keeping, it just cannot be
// correlated to a device.
const UnknownDevice = "unknown"

// Declared measurement fields. Cells under these columns are coerced and
// included only when coercion succeeds; everything else is either dropped or
// folded into the raw sub-document.
var (
	NumericKeys = []string{"temp", "humidity", "co", "smoke", "lpg"}
	BoolKeys    = []string{"light", "motion"}
)

// HeaderIndex maps normalized column names to their position in a row.
type HeaderIndex map[string]int

// NormalizeName canonicalizes a header cell: trimmed, lowercased, spaces
// replaced with underscores.
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// MakeHeaderIndex builds a HeaderIndex from a raw header row.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		idx[NormalizeName(h)] = i
	}
	return idx
}

// HasRequired reports whether both required columns are present.
func (h HeaderIndex) HasRequired() bool {
	_, dev := h[DeviceColumn]
	_, ts := h[TimeColumn]
	return dev && ts
}

// cell returns the trimmed value under the named column, tolerating rows
// shorter than the header.
func (h HeaderIndex) cell(row []string, name string) (string, bool) {
	i, ok := h[name]
	if !ok || i >= len(row) {
		return "", false
	}
	return strings.TrimSpace(row[i]), true
}

// NormalizeOptions controls row normalization.
type NormalizeOptions struct {
	EpochUnit EpochUnit
	// KeepRaw folds unmapped, non-empty columns into a "raw" sub-document.
	KeepRaw bool
}

// NormalizeRow converts one raw CSV row into a store-ready document.
//
// A field appears in the document only if its value was successfully
// derived; absence encodes unknown, a null is never persisted. Rows whose
// id cannot be computed (no parseable timestamp) are rejected here, before
// the store is ever involved; this is the single unconditional drop rule.
func NormalizeRow(row []string, cols HeaderIndex, opts NormalizeOptions) (bson.M, bool) {
	device, _ := cols.cell(row, DeviceColumn)
	if device == "" {
		device = UnknownDevice
	}

	var epochSeconds int64
	hasTime := false
	if raw, ok := cols.cell(row, TimeColumn); ok {
		if ts, ok := ParseEpoch(raw, opts.EpochUnit); ok {
			epochSeconds = ts.Unix()
			hasTime = true
		}
	}

	id, ok := BuildID(device, epochSeconds, hasTime)
	if !ok {
		return nil, false
	}

	doc := bson.M{
		"_id":       id,
		"device":    device,
		"timestamp": timeFromSeconds(epochSeconds),
	}

	for _, k := range NumericKeys {
		if raw, ok := cols.cell(row, k); ok {
			if v, ok := CoerceFloat(raw); ok {
				doc[k] = v
			}
		}
	}
	for _, k := range BoolKeys {
		if raw, ok := cols.cell(row, k); ok {
			if v, ok := CoerceBool(raw); ok {
				doc[k] = v
			}
		}
	}

	if opts.KeepRaw {
		if raw := collectRaw(row, cols); len(raw) > 0 {
			doc["raw"] = raw
		}
	}

	return doc, true
}

// collectRaw gathers non-empty cells under columns the pipeline does not map
// to a declared field.
func collectRaw(row []string, cols HeaderIndex) bson.M {
	mapped := map[string]struct{}{
		DeviceColumn: {},
		TimeColumn:   {},
	}
	for _, k := range NumericKeys {
		mapped[k] = struct{}{}
	}
	for _, k := range BoolKeys {
		mapped[k] = struct{}{}
	}

	var raw bson.M
	for name, i := range cols {
		if _, ok := mapped[name]; ok {
			continue
		}
		if i >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[i]); v != "" {
			if raw == nil {
				raw = bson.M{}
			}
			raw[name] = v
		}
	}
	return raw
}
