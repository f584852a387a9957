package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"

	"github.com/osintlab/imagehound/internal/detect"
)

// MarkdownWriter outputs detections as a markdown document, suitable for
// sharing or dropping into case notes.
//
// Design decision: We use the nao1215/markdown library for fluent,
// type-safe generation of tables and GitHub-flavored alerts instead of
// string concatenation.
type MarkdownWriter struct {
	baseWriter

	now func() time.Time
}

// NewMarkdownWriter creates a MarkdownWriter writing to output.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		now:        time.Now,
	}
}

// Write renders the records as a markdown report.
func (w *MarkdownWriter) Write(records []detect.MatchRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Image Reuse Detection Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Generated", w.now().Format("2006-01-02 15:04:05 MST")},
			{"Detections", strconv.Itoa(len(records))},
		},
	})
	md.PlainText("")

	if len(records) == 0 {
		md.Tip("No matches against the target database.")
	} else {
		md.Warningf("%d detection(s) of tracked images.", len(records))
		md.PlainText("")
		w.writeDetections(md, records)
	}

	md.PlainText("")
	md.HorizontalRule()

	return len(md.String()), md.Build()
}

// writeDetections renders the detection table plus per-record detail.
func (w *MarkdownWriter) writeDetections(md *markdown.Markdown, records []detect.MatchRecord) {
	md.H2("Detections")
	md.PlainText("")

	rows := make([][]string, len(records))
	for i, rec := range records {
		rows[i] = []string{
			"`" + rec.TargetID + "`",
			truncateString(rec.Description, 40),
			strings.Join(rec.MatchReasons, ", "),
			truncateString(rec.FoundAt, 50),
			truncateString(rec.Provenance, 40),
			rec.Timestamp.Format("2006-01-02 15:04"),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Target", "Description", "Matched By", "Found At", "Source", "When"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, rec := range records {
		if rec.Exif == nil {
			continue
		}
		detail := make([]string, 0, 4)
		if rec.Exif.CameraMake != "" || rec.Exif.CameraModel != "" {
			detail = append(detail, "Camera: "+strings.TrimSpace(rec.Exif.CameraMake+" "+rec.Exif.CameraModel))
		}
		if rec.Exif.Software != "" {
			detail = append(detail, "Software: "+rec.Exif.Software)
		}
		if rec.Exif.TakenAt != "" {
			detail = append(detail, "Taken: "+rec.Exif.TakenAt)
		}
		if rec.Exif.HasGPS {
			detail = append(detail, "GPS coordinates present")
		}
		if len(detail) > 0 {
			md.Details("EXIF for "+rec.TargetID+" at "+truncateString(rec.FoundAt, 50), strings.Join(detail, "; "))
		}
	}
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
