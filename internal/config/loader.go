package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".imagehound"

// ErrConfigNotFound is returned when the configuration file does not
// exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the YAML configuration file layout. Every field is optional;
// absent fields keep their defaults, and CLI flags override the file.
type File struct {
	// Threshold is the default Hamming distance cutoff.
	Threshold *int `yaml:"threshold,omitempty"`

	// ScanDelay is the politeness pause between image downloads.
	ScanDelay *time.Duration `yaml:"scan_delay,omitempty"`

	// Timeout is the per-request download timeout.
	Timeout *time.Duration `yaml:"timeout,omitempty"`

	// BatchSize is the number of concurrent page scans.
	BatchSize *int `yaml:"batch_size,omitempty"`

	// UserAgent overrides the HTTP User-Agent header.
	UserAgent string `yaml:"user_agent,omitempty"`

	// Proxy is a SOCKS5 proxy address in "host:port" form.
	Proxy string `yaml:"proxy,omitempty"`

	// DataDir overrides where the target store and history live.
	DataDir string `yaml:"data_dir,omitempty"`

	// ExportDir overrides where session exports are written.
	ExportDir string `yaml:"export_dir,omitempty"`

	// SpoolDir is the stream source's spool directory.
	SpoolDir string `yaml:"spool_dir,omitempty"`

	// IgnoredExtensions replaces the ignored-extension list.
	IgnoredExtensions []string `yaml:"ignored_extensions,omitempty"`
}

// LoadConfigFile loads the YAML configuration from path. A missing file
// returns ErrConfigNotFound; callers decide whether that matters based
// on whether the path was explicit.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file:
//  1. the explicit path, when given
//  2. .imagehound in the current directory
//  3. .imagehound in the user's home directory
//
// Returns an empty string when nothing is found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}

// Apply overlays the file's settings onto the config. CLI flag handling
// runs after this, so flags win over the file.
func (f *File) Apply(c *Config) {
	if f == nil {
		return
	}
	if f.Threshold != nil {
		c.Threshold = *f.Threshold
	}
	if f.ScanDelay != nil {
		c.ScanDelay = *f.ScanDelay
	}
	if f.Timeout != nil {
		c.Timeout = *f.Timeout
	}
	if f.BatchSize != nil {
		c.BatchSize = *f.BatchSize
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.Proxy != "" {
		c.ProxyAddress = f.Proxy
	}
	if f.DataDir != "" {
		c.DataDir = f.DataDir
	}
	if f.ExportDir != "" {
		c.ExportDir = f.ExportDir
	}
	if f.SpoolDir != "" {
		c.SpoolDir = f.SpoolDir
	}
	if len(f.IgnoredExtensions) > 0 {
		c.IgnoredExtensions = append([]string(nil), f.IgnoredExtensions...)
	}
}
