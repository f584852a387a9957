// Package config holds runtime configuration: defaults, the YAML config
// file, and validation. The Config struct is populated from CLI flags and
// the config file, then passed by dependency injection rather than
// global state.
package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "imagehound"

	// DefaultThreshold is the Hamming distance cutoff for perceptual
	// matches. 5 bits out of 64 catches recompression and mild resizing
	// without flooding results with lookalikes.
	DefaultThreshold = 5

	// MinThreshold and MaxThreshold bound the usable threshold range.
	// 0 means exact bit equality; 64 matches any pair of 64-bit hashes.
	MinThreshold = 0
	MaxThreshold = 64

	// DefaultScanDelay is the politeness pause between image downloads
	// from the same page.
	DefaultScanDelay = 100 * time.Millisecond

	// DefaultTimeout is the per-request timeout for image and page
	// downloads.
	DefaultTimeout = 15 * time.Second

	// DefaultBatchSize is the number of pages scanned concurrently when
	// a scan names several URLs.
	DefaultBatchSize = 3

	// DefaultMaxBodySize caps downloaded bodies. 10MB covers any
	// realistic photograph while bounding memory per request.
	DefaultMaxBodySize = 10 * 1024 * 1024

	// DefaultStreamLimit is how many recent items a stream scan replays.
	DefaultStreamLimit = 100

	// DefaultUserAgent is sent with HTTP requests. A browser-like agent
	// avoids trivial scraper blocks on image CDNs.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// defaultIgnoredExtensions lists URL extensions skipped during page
// scans.
var defaultIgnoredExtensions = []string{".svg", ".gif", ".ico", ".pdf", ".js", ".css"}

// Config holds all runtime options.
//
// Design decision: One flat struct instead of nested sub-configs. The
// option count is manageable and flat access keeps CLI wiring simple.
type Config struct {
	// Threshold is the Hamming distance cutoff for perceptual matches.
	Threshold int

	// ScanDelay is the pause between image downloads during a page scan.
	ScanDelay time.Duration

	// Timeout is the per-request download timeout.
	Timeout time.Duration

	// BatchSize is the number of concurrent page scans.
	BatchSize int

	// MaxBodySize caps downloaded body size in bytes.
	MaxBodySize int64

	// StreamLimit is how many recent stream items a channel scan
	// replays.
	StreamLimit int

	// UserAgent is the HTTP User-Agent header.
	UserAgent string

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	// Empty means direct connections.
	ProxyAddress string

	// DataDir is where the target store and history database live.
	// Defaults to the XDG data directory.
	DataDir string

	// ExportDir is where session exports are written. Defaults to the
	// current directory.
	ExportDir string

	// SpoolDir is the stream source's spool directory.
	SpoolDir string

	// IgnoredExtensions lists URL extensions skipped during page scans.
	IgnoredExtensions []string

	// Verbose enables debug-level log output.
	Verbose bool

	// ConfigFilePath is the explicit config file location. Empty means
	// search the standard locations.
	ConfigFilePath string
}

// NewConfig creates a Config with default values.
//
// Design decision: A constructor rather than zero values, because most
// defaults are non-zero and the constructor documents them.
func NewConfig() *Config {
	return &Config{
		Threshold:         DefaultThreshold,
		ScanDelay:         DefaultScanDelay,
		Timeout:           DefaultTimeout,
		BatchSize:         DefaultBatchSize,
		MaxBodySize:       DefaultMaxBodySize,
		StreamLimit:       DefaultStreamLimit,
		UserAgent:         DefaultUserAgent,
		DataDir:           XDGDataDir(),
		ExportDir:         ".",
		IgnoredExtensions: append([]string(nil), defaultIgnoredExtensions...),
	}
}

// XDGDataDir returns the XDG data directory for the application.
// On Linux: ~/.local/share/imagehound
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for the application.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ClampThreshold forces the threshold into the usable range. The match
// engine accepts any value; the CLI clamps so a typo of 500 behaves as
// "match everything" rather than surprising the operator later.
func ClampThreshold(threshold int) int {
	if threshold < MinThreshold {
		return MinThreshold
	}
	if threshold > MaxThreshold {
		return MaxThreshold
	}
	return threshold
}

// Validate checks the configuration, returning the first problem found.
func (c *Config) Validate() error {
	if c.Threshold < MinThreshold || c.Threshold > MaxThreshold {
		return ErrInvalidThreshold
	}
	if c.ScanDelay < 0 {
		return ErrInvalidScanDelay
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	return nil
}
