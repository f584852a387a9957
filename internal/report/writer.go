// Package report renders detection results for humans and files: JSON
// exports, markdown summaries, and console output.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/osintlab/imagehound/internal/detect"
)

// Writer outputs a batch of detections in one format.
//
// Design decision: We use an interface so the same scan code can write
// to files, stdout, or both. This mirrors io.MultiWriter but at the
// record level rather than the byte level.
type Writer interface {
	// Write outputs the records to the configured destination,
	// returning the number of bytes written.
	Write(records []detect.MatchRecord) (int, error)
}

// MultiWriter writes to several Writers in sequence, stopping on the
// first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer fanning out to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the records through every configured Writer.
func (m *MultiWriter) Write(records []detect.MatchRecord) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(records)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides the shared output destination.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// filenameSanitizer collapses anything outside a conservative character
// set so tags are safe in file names.
var filenameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Filename builds the export file name for a tagged session, e.g.
// "report_leaks_20250601_120000.json".
func Filename(tag string, at time.Time) string {
	tag = filenameSanitizer.ReplaceAllString(tag, "-")
	if tag == "" {
		tag = "session"
	}
	return fmt.Sprintf("report_%s_%s.json", tag, at.Format("20060102_150405"))
}

// ExportFile writes the records as JSON to a timestamped file under dir
// and returns its path.
func ExportFile(dir, tag string, at time.Time, records []detect.MatchRecord) (string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(dir, Filename(tag, at))
	f, err := os.Create(path) //nolint:gosec // path is built from a sanitized tag
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close() //nolint:errcheck // close error is shadowed by write error

	if _, err := NewJSONWriter(f).Write(records); err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to flush export file: %w", err)
	}
	return path, nil
}
