package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/osintlab/imagehound/internal/detect"
)

// ConsoleWriter outputs detections as compact human-readable text for
// terminal use.
type ConsoleWriter struct {
	baseWriter
}

// NewConsoleWriter creates a ConsoleWriter writing to output.
func NewConsoleWriter(output io.Writer) *ConsoleWriter {
	return &ConsoleWriter{baseWriter: newBaseWriter(output)}
}

// Write renders the records as text.
func (w *ConsoleWriter) Write(records []detect.MatchRecord) (int, error) {
	var b strings.Builder

	if len(records) == 0 {
		b.WriteString("No matches.\n")
	}
	for _, rec := range records {
		fmt.Fprintf(&b, "MATCH %s", rec.TargetID)
		if rec.Description != "" {
			fmt.Fprintf(&b, " (%s)", rec.Description)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "  matched by: %s\n", strings.Join(rec.MatchReasons, ", "))
		fmt.Fprintf(&b, "  found at:   %s\n", rec.FoundAt)
		if rec.Provenance != "" {
			fmt.Fprintf(&b, "  source:     %s\n", rec.Provenance)
		}
		if len(rec.Tags) > 0 {
			fmt.Fprintf(&b, "  tags:       %s\n", strings.Join(rec.Tags, ", "))
		}
	}

	n, err := io.WriteString(w.output, b.String())
	if err != nil {
		return n, fmt.Errorf("failed to write detections: %w", err)
	}
	return n, nil
}
