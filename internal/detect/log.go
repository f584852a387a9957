package detect

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrEmptyLog is returned by Export when there is nothing to write.
var ErrEmptyLog = errors.New("detection log is empty")

// Log is the append-only detection log for one process run. Appended
// records are never modified or removed; exports and queries operate on
// copies so callers cannot disturb the log.
type Log struct {
	mu      sync.Mutex
	records []MatchRecord
}

// NewLog creates an empty detection log.
func NewLog() *Log {
	return &Log{}
}

// Append adds a record to the log.
func (l *Log) Append(rec MatchRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
}

// Len returns the number of logged detections.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// All returns a copy of every logged detection, oldest first.
func (l *Log) All() []MatchRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]MatchRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Since returns a copy of the detections appended at or after the given
// mark, where the mark is a length previously observed via Len. Sessions
// use it to export only their own matches.
func (l *Log) Since(mark int) []MatchRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	if mark < 0 {
		mark = 0
	}
	if mark >= len(l.records) {
		return nil
	}
	out := make([]MatchRecord, len(l.records)-mark)
	copy(out, l.records[mark:])
	return out
}

// FilterByProvenance returns the detections whose provenance contains the
// given substring, case-insensitively.
func (l *Log) FilterByProvenance(substr string) []MatchRecord {
	needle := strings.ToLower(substr)

	l.mu.Lock()
	defer l.mu.Unlock()

	var out []MatchRecord
	for _, rec := range l.records {
		if strings.Contains(strings.ToLower(rec.Provenance), needle) {
			out = append(out, rec)
		}
	}
	return out
}

// Export writes every logged detection to w as an indented JSON array.
// It returns ErrEmptyLog, writing nothing, when the log holds no records.
func (l *Log) Export(w io.Writer) error {
	records := l.All()
	if len(records) == 0 {
		return ErrEmptyLog
	}
	return writeRecords(w, records)
}

func writeRecords(w io.Writer, records []MatchRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode detections: %w", err)
	}
	return nil
}
