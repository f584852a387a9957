package detect

import (
	"time"

	"github.com/osintlab/imagehound/internal/imgmeta"
)

// MatchRecord is one accepted detection. Records are immutable once
// appended to the log and reference their target only by id: deleting the
// target later never retracts a historical match, which is why the
// description and tags are copied at match time rather than looked up.
//
// The JSON field names define the export format.
type MatchRecord struct {
	// TargetID references the matched target record (weakly; the target
	// may no longer exist).
	TargetID string `json:"target_id"`

	// Description and Tags are copied from the target at match time.
	Description string   `json:"description"`
	Tags        []string `json:"tags"`

	// MatchReasons holds one entry per matching hash family, in the
	// fixed comparison order, e.g. "md5 (exact)" or "phash (distance: 3)".
	MatchReasons []string `json:"match_reasons"`

	// FoundAt is the resolved image locator or message descriptor.
	FoundAt string `json:"found_at"`

	// Provenance labels the source: a page URL or "stream - <channel>".
	Provenance string `json:"provenance"`

	// Timestamp is the detection time.
	Timestamp time.Time `json:"timestamp"`

	// Exif carries a metadata summary of the candidate image, when the
	// bytes contained one.
	Exif *imgmeta.Summary `json:"exif,omitempty"`
}
