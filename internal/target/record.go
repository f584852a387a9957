package target

import (
	"encoding/json"
	"time"

	"github.com/osintlab/imagehound/internal/imghash"
)

// SourceManual marks records added by hash value rather than from an image.
const SourceManual = "manual"

// Record is one registered reference image (or bare hash).
//
// The JSON field names define the durable store format and must not
// change: existing databases round-trip through them.
type Record struct {
	// ID is the store-unique identifier, "target_<n>" for image-derived
	// records and "manual_<n>" for hash-only entries. IDs are never
	// reused, even after deletion.
	ID string `json:"-"`

	// Description is free operator-supplied text.
	Description string `json:"description"`

	// Tags label the record for reporting. May be empty.
	Tags []string `json:"tags"`

	// AddedAt is the creation timestamp. Immutable.
	AddedAt time.Time `json:"added_date"`

	// Source is the original path or URL, or SourceManual.
	Source string `json:"source"`

	// Hashes maps hash family names to hex values. Image-derived records
	// carry all five families; manual entries exactly one. Never empty.
	Hashes imghash.Fingerprint `json:"hashes"`
}

// UnmarshalJSON decodes a record with a lenient added_date. Store files
// written by other tooling carry ISO-8601 timestamps without a timezone
// offset, which the default time.Time decoding rejects; those databases
// must still load.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	aux := struct {
		AddedAt string `json:"added_date"`
		*plain
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.AddedAt = parseAddedDate(aux.AddedAt)
	return nil
}

// addedDateFormats lists the timestamp layouts accepted in store files,
// most specific first. The offset-less variants cover databases written
// by tools that serialize local time without a zone.
var addedDateFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseAddedDate tries each known layout, returning zero time when none
// match. An unreadable date never blocks loading the record's hashes.
func parseAddedDate(s string) time.Time {
	for _, format := range addedDateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// clone returns a deep copy so callers can never mutate stored state.
func (r Record) clone() Record {
	out := r
	out.Tags = append([]string(nil), r.Tags...)
	out.Hashes = make(imghash.Fingerprint, len(r.Hashes))
	for k, v := range r.Hashes {
		out.Hashes[k] = v
	}
	return out
}
