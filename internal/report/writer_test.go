package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/osintlab/imagehound/internal/detect"
)

func sampleRecords() []detect.MatchRecord {
	return []detect.MatchRecord{
		{
			TargetID:     "target_1",
			Description:  "reference poster",
			Tags:         []string{"case-7"},
			MatchReasons: []string{"md5 (exact)", "phash (distance: 0)"},
			FoundAt:      "https://example.com/img/poster.png",
			Provenance:   "https://example.com/gallery",
			Timestamp:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			TargetID:     "manual_1",
			Description:  "pasted hash",
			MatchReasons: []string{"phash (distance: 4)"},
			FoundAt:      "msg 42 | from alice | date 2025-06-01 11:58",
			Provenance:   "stream - leaks",
			Timestamp:    time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC),
		},
	}
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("round-trips records", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewJSONWriter(&buf).Write(sampleRecords())
		if err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("Write reported %d bytes, wrote %d", n, buf.Len())
		}

		var decoded []detect.MatchRecord
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if len(decoded) != 2 || decoded[0].TargetID != "target_1" {
			t.Errorf("decoded = %+v", decoded)
		}
	})

	t.Run("empty batch yields an empty array", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(nil); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if got := strings.TrimSpace(buf.String()); got != "[]" {
			t.Errorf("output = %q, want []", got)
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewMarkdownWriter(&buf)
	w.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	if _, err := w.Write(sampleRecords()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"# Image Reuse Detection Report",
		"## Detections",
		"target_1",
		"md5 (exact), phash (distance: 0)",
		"stream - leaks",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %q", want)
		}
	}
}

func TestConsoleWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewConsoleWriter(&buf).Write(sampleRecords()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "MATCH target_1 (reference poster)") {
		t.Errorf("console output missing match line:\n%s", out)
	}
	if !strings.Contains(out, "matched by: phash (distance: 4)") {
		t.Errorf("console output missing reasons:\n%s", out)
	}

	buf.Reset()
	if _, err := NewConsoleWriter(&buf).Write(nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got := buf.String(); got != "No matches.\n" {
		t.Errorf("empty output = %q", got)
	}
}

func TestFilename(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC)
	tests := []struct {
		tag  string
		want string
	}{
		{tag: "leaks", want: "report_leaks_20250601_123045.json"},
		{tag: "my channel/№1", want: "report_my-channel-1_20250601_123045.json"},
		{tag: "", want: "report_session_20250601_123045.json"},
	}
	for _, tt := range tests {
		if got := Filename(tt.tag, at); got != tt.want {
			t.Errorf("Filename(%q) = %q, want %q", tt.tag, got, tt.want)
		}
	}
}

func TestExportFile(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "exports")
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	path, err := ExportFile(dir, "leaks", at, sampleRecords())
	if err != nil {
		t.Fatalf("ExportFile failed: %v", err)
	}
	if filepath.Base(path) != "report_leaks_20250601_120000.json" {
		t.Errorf("export path = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	var decoded []detect.MatchRecord
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(decoded) != 2 {
		t.Errorf("decoded %d records, want 2", len(decoded))
	}
}
