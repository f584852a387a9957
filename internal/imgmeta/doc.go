// Package imgmeta extracts a small EXIF summary from candidate image
// bytes. Matched images often carry provenance hints (camera, editing
// software, GPS presence) that are worth recording alongside a detection.
package imgmeta
