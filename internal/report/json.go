package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/osintlab/imagehound/internal/detect"
)

// JSONWriter outputs detections as an indented JSON array. The element
// layout is defined by the MatchRecord JSON tags, so exports from any
// scan mode share one schema.
type JSONWriter struct {
	baseWriter
}

// NewJSONWriter creates a JSONWriter writing to output.
func NewJSONWriter(output io.Writer) *JSONWriter {
	return &JSONWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the records as JSON. An empty batch still produces a
// valid (empty) array so downstream tooling never sees a partial file.
func (w *JSONWriter) Write(records []detect.MatchRecord) (int, error) {
	if records == nil {
		records = []detect.MatchRecord{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return 0, fmt.Errorf("failed to encode detections: %w", err)
	}

	n, err := w.output.Write(buf.Bytes())
	if err != nil {
		return n, fmt.Errorf("failed to write detections: %w", err)
	}
	return n, nil
}
