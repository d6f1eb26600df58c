package ingest

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

// idSeparator joins device and timestamp before hashing. Changing it would
// change every stored id, so it is fixed for the life of a collection.
const idSeparator = "|"

// BuildID derives the storage key for a reading: the hex SHA-1 of
// "device|epochSeconds". The key is a pure function of its inputs, so any
// two processes ingesting the same logical reading converge on the same id
// and the store's unique index turns re-ingestion into a no-op.
//
// Returns ok=false when device is empty or the timestamp is unknown; a row
// without an id never reaches the store.
func BuildID(device string, epochSeconds int64, hasTime bool) (string, bool) {
	if device == "" || !hasTime {
		return "", false
	}
	sum := sha1.Sum([]byte(device + idSeparator + strconv.FormatInt(epochSeconds, 10)))
	return hex.EncodeToString(sum[:]), true
}
