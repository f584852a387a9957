package detect

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/osintlab/imagehound/internal/imghash"
	"github.com/osintlab/imagehound/internal/imgmeta"
	"github.com/osintlab/imagehound/internal/target"
)

// Threshold bounds for perceptual comparison. A threshold of 0 reduces
// perceptual matching to exact bit equality; 64 accepts every comparison
// between 64-bit hashes, which callers use as a sentinel when they want
// md5-only exact detection. The engine itself does not validate the
// threshold; clamping is the CLI's job.
const (
	MinThreshold     = 0
	MaxThreshold     = 64
	DefaultThreshold = 5
)

// Candidate is one image under evaluation: its fingerprint plus where it
// was found. Meta is optional EXIF context copied onto accepted matches.
type Candidate struct {
	Fingerprint imghash.Fingerprint
	Locator     string
	Provenance  string
	Meta        *imgmeta.Summary
}

// Engine compares candidate fingerprints against every stored target and
// appends accepted matches to the detection log.
type Engine struct {
	store  *target.Store
	log    *Log
	logger *slog.Logger
	now    func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine evaluating against the given store and
// appending to the given log.
func NewEngine(store *target.Store, log *Log, opts ...EngineOption) *Engine {
	e := &Engine{
		store: store,
		log:   log,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Evaluate compares the candidate against every stored target and returns
// the accepted matches, which are also appended to the detection log.
//
// Per target, each family present in both fingerprints is compared in the
// fixed order md5, phash, ahash, dhash, whash. One matching family is
// sufficient (logical OR); the record aggregates the reasons of every
// family that matched. A candidate may match any number of targets;
// emission follows store iteration order.
func (e *Engine) Evaluate(c Candidate, threshold int) []MatchRecord {
	matches := make([]MatchRecord, 0)

	for _, rec := range e.store.List() {
		reasons := e.compareTarget(rec, c.Fingerprint, threshold)
		if len(reasons) == 0 {
			continue
		}

		match := MatchRecord{
			TargetID:     rec.ID,
			Description:  rec.Description,
			Tags:         rec.Tags,
			MatchReasons: reasons,
			FoundAt:      c.Locator,
			Provenance:   c.Provenance,
			Timestamp:    e.now().UTC(),
			Exif:         c.Meta,
		}
		matches = append(matches, match)
		e.log.Append(match)

		e.logger.Info("match detected",
			"target", rec.ID,
			"description", rec.Description,
			"reasons", reasons,
			"found_at", c.Locator,
			"provenance", c.Provenance,
		)
	}

	return matches
}

// compareTarget returns the match reasons for one target, or nil when no
// family matched. Targets sharing no family with the candidate carry no
// information to compare and are skipped.
func (e *Engine) compareTarget(rec target.Record, fp imghash.Fingerprint, threshold int) []string {
	var reasons []string

	for _, family := range imghash.CompareOrder {
		targetHash, okTarget := rec.Hashes[family]
		candidateHash, okCandidate := fp[family]
		if !okTarget || !okCandidate {
			continue
		}

		if !imghash.IsPerceptual(family) {
			if targetHash == candidateHash {
				reasons = append(reasons, "md5 (exact)")
			}
			continue
		}

		d, err := imghash.Distance(targetHash, candidateHash)
		if err != nil {
			// Unparseable manual hash: fall back to exact equality,
			// matching the store's permissiveness on input.
			if errors.Is(err, imghash.ErrIncomparable) && targetHash == candidateHash {
				reasons = append(reasons, fmt.Sprintf("%s (distance: 0)", family))
			}
			continue
		}
		if d <= threshold {
			reasons = append(reasons, fmt.Sprintf("%s (distance: %d)", family, d))
		}
	}

	return reasons
}
