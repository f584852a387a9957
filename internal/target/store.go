package target

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/osintlab/imagehound/internal/imghash"
)

// Store errors.
var (
	// ErrNotFound is returned when an operation names a target id that is
	// not in the store. Callers report it; it is never fatal.
	ErrNotFound = errors.New("target not found")

	// ErrEmptyHash is returned when a manual entry has an empty hash value.
	ErrEmptyHash = errors.New("hash value must not be empty")
)

// PersistenceError wraps a failure to read or write the durable store.
// After a failed save the in-memory state remains authoritative; the
// error is reported but the mutation is not rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *PersistenceError) Unwrap() error { return e.Err }

// Persister loads and saves the serialized store. The on-disk mechanics
// (paths, atomicity) live behind this interface; the Store only deals in
// bytes.
type Persister interface {
	// Load returns the serialized store, or an error wrapping
	// fs.ErrNotExist when no store has been saved yet.
	Load() ([]byte, error)

	// Save replaces the serialized store.
	Save(data []byte) error
}

// Fetcher obtains raw image bytes for AddFromImage.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// Store is the in-memory target database, persisted synchronously on
// every mutation. An operator curates the store by hand, so it stays
// small and a full snapshot rewrite per mutation is fine.
//
// All methods are safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	records   map[string]Record
	order     []string
	counters  counters
	persister Persister
	fetcher   Fetcher
	now       func() time.Time
}

// counters are the persisted monotonic id counters. Keeping them in the
// store file rather than deriving ids from the current record count means
// deleting a target never causes a later addition to reuse its id.
type counters struct {
	Target int `json:"target"`
	Manual int `json:"manual"`
}

// snapshot is the durable file layout.
type snapshot struct {
	Targets  map[string]Record `json:"targets"`
	Counters counters          `json:"counters"`
}

// Option configures a Store.
type Option func(*Store)

// WithFetcher sets the fetcher used by AddFromImage.
func WithFetcher(f Fetcher) Option {
	return func(s *Store) { s.fetcher = f }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open loads the store through the persister. A missing store file yields
// an empty store, not an error: first runs start from nothing.
func Open(p Persister, opts ...Option) (*Store, error) {
	s := &Store{
		records:   make(map[string]Record),
		persister: p,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := p.Load()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	if err := s.restore(data); err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	return s, nil
}

// restore parses serialized store data, accepting both the current layout
// and the legacy layout that was a bare id-to-record mapping with no
// counters. Legacy counters are rebuilt from the highest id seen.
func (s *Store) restore(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil || snap.Targets == nil {
		// Legacy layout: the whole document is the target mapping.
		var legacy map[string]Record
		if legacyErr := json.Unmarshal(data, &legacy); legacyErr != nil {
			if err != nil {
				return err
			}
			return legacyErr
		}
		snap.Targets = legacy
	}

	for id, rec := range snap.Targets {
		rec.ID = id
		if len(rec.Hashes) == 0 {
			return fmt.Errorf("record %s has no hashes", id)
		}
		s.records[id] = rec
		s.order = append(s.order, id)

		// Rebuild counters so legacy stores never reuse an id.
		prefix, n := splitID(id)
		switch prefix {
		case "target":
			if n > snap.Counters.Target {
				snap.Counters.Target = n
			}
		case "manual":
			if n > snap.Counters.Manual {
				snap.Counters.Manual = n
			}
		}
	}
	s.counters = snap.Counters

	// JSON objects do not preserve insertion order, so reconstruct it
	// from the creation timestamps (ties broken by id).
	sort.SliceStable(s.order, func(i, j int) bool {
		a, b := s.records[s.order[i]], s.records[s.order[j]]
		if a.AddedAt.Equal(b.AddedAt) {
			return a.ID < b.ID
		}
		return a.AddedAt.Before(b.AddedAt)
	})
	return nil
}

// splitID extracts the prefix and numeric suffix of an id like "target_3".
func splitID(id string) (string, int) {
	prefix, suffix, ok := strings.Cut(id, "_")
	if !ok {
		return "", 0
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return "", 0
	}
	return prefix, n
}

// AddFromImage fetches and fingerprints the image at locator and stores a
// full five-family record. If the fetch or decode fails, no record is
// created and the cause is surfaced.
func (s *Store) AddFromImage(ctx context.Context, locator, description string, tags []string) (string, error) {
	if s.fetcher == nil {
		return "", errors.New("store has no fetcher configured")
	}

	data, err := s.fetcher.Fetch(ctx, locator)
	if err != nil {
		return "", err
	}
	fp, err := imghash.Compute(data)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters.Target++
	id := fmt.Sprintf("target_%d", s.counters.Target)
	s.insertLocked(Record{
		ID:          id,
		Description: description,
		Tags:        normalizeTags(tags),
		AddedAt:     s.now().UTC(),
		Source:      locator,
		Hashes:      fp,
	})
	return id, s.saveLocked()
}

// AddManual stores a single-family record from a bare hash value. The
// value is accepted as-is: manual entries are deliberately not validated
// against the family's expected syntax, so operators can paste hashes
// from any external tool.
func (s *Store) AddManual(hashValue, family, description string, tags []string) (string, error) {
	if hashValue == "" {
		return "", ErrEmptyHash
	}
	if family == "" {
		family = imghash.FamilyPHash
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters.Manual++
	id := fmt.Sprintf("manual_%d", s.counters.Manual)
	s.insertLocked(Record{
		ID:          id,
		Description: description,
		Tags:        normalizeTags(tags),
		AddedAt:     s.now().UTC(),
		Source:      SourceManual,
		Hashes:      imghash.Fingerprint{family: hashValue},
	})
	return id, s.saveLocked()
}

// Remove deletes the record with the given id. Returns ErrNotFound if it
// is absent; existing match records referencing the id are unaffected.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.records, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return s.saveLocked()
}

// Reset clears every record. Confirmation is the caller's concern; the
// store clears unconditionally. Id counters are kept so ids from before
// the reset are still never reused.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]Record)
	s.order = nil
	return s.saveLocked()
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec.clone(), nil
}

// List returns all records in insertion order. The result is a snapshot:
// concurrent mutations never tear an in-progress match evaluation.
func (s *Store) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].clone())
	}
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// insertLocked adds the record to the in-memory state. Caller holds mu.
func (s *Store) insertLocked(rec Record) {
	s.records[rec.ID] = rec
	s.order = append(s.order, rec.ID)
}

// saveLocked writes the full store back through the persister. Caller
// holds mu. On failure the in-memory mutation stands and a
// PersistenceError is returned for the caller to report.
func (s *Store) saveLocked() error {
	snap := snapshot{
		Targets:  s.records,
		Counters: s.counters,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	if err := s.persister.Save(data); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// normalizeTags trims whitespace and drops empty entries.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
