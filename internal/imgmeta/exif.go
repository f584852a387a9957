package imgmeta

import (
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// Summary holds the EXIF fields worth attaching to a match record.
// All fields are optional; a nil *Summary means no usable EXIF data.
type Summary struct {
	// CameraMake is the device manufacturer (EXIF "Make").
	CameraMake string `json:"camera_make,omitempty"`

	// CameraModel is the device model (EXIF "Model").
	CameraModel string `json:"camera_model,omitempty"`

	// Software is the processing software tag.
	Software string `json:"software,omitempty"`

	// TakenAt is the original capture timestamp, verbatim from EXIF.
	TakenAt string `json:"taken_at,omitempty"`

	// HasGPS reports whether GPS coordinate tags are present. The
	// coordinates themselves are deliberately not copied into reports.
	HasGPS bool `json:"has_gps,omitempty"`
}

// Extract returns the EXIF summary for the encoded image bytes, or nil
// when the image carries no parseable EXIF block. Extraction failures are
// never errors: metadata is a bonus, not a requirement.
func Extract(data []byte) *Summary {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return nil
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil
	}

	var s Summary
	found := false
	for _, entry := range entries {
		value := strings.TrimSpace(entry.Formatted)
		if value == "" {
			continue
		}
		switch entry.TagName {
		case "Make":
			s.CameraMake = value
			found = true
		case "Model":
			s.CameraModel = value
			found = true
		case "Software", "ProcessingSoftware":
			if s.Software == "" {
				s.Software = value
				found = true
			}
		case "DateTimeOriginal":
			s.TakenAt = value
			found = true
		case "DateTime":
			if s.TakenAt == "" {
				s.TakenAt = value
				found = true
			}
		case "GPSLatitude", "GPSLongitude":
			s.HasGPS = true
			found = true
		}
	}

	if !found {
		return nil
	}
	return &s
}
