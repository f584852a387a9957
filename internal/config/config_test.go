package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()

	c := NewConfig()
	if c.Threshold != DefaultThreshold {
		t.Errorf("Threshold = %d, want %d", c.Threshold, DefaultThreshold)
	}
	if c.ScanDelay != DefaultScanDelay {
		t.Errorf("ScanDelay = %v, want %v", c.ScanDelay, DefaultScanDelay)
	}
	if c.BatchSize != DefaultBatchSize {
		t.Errorf("BatchSize = %d, want %d", c.BatchSize, DefaultBatchSize)
	}
	if len(c.IgnoredExtensions) == 0 {
		t.Error("IgnoredExtensions is empty")
	}
	if err := c.Validate(); err != nil {
		t.Errorf("default config fails validation: %v", err)
	}
}

func TestClampThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int
		want int
	}{
		{in: -3, want: 0},
		{in: 0, want: 0},
		{in: 5, want: 5},
		{in: 64, want: 64},
		{in: 500, want: 64},
	}
	for _, tt := range tests {
		if got := ClampThreshold(tt.in); got != tt.want {
			t.Errorf("ClampThreshold(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "threshold too high", mutate: func(c *Config) { c.Threshold = 65 }, wantErr: ErrInvalidThreshold},
		{name: "threshold negative", mutate: func(c *Config) { c.Threshold = -1 }, wantErr: ErrInvalidThreshold},
		{name: "negative delay", mutate: func(c *Config) { c.ScanDelay = -time.Second }, wantErr: ErrInvalidScanDelay},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "zero batch size", mutate: func(c *Config) { c.BatchSize = 0 }, wantErr: ErrInvalidBatchSize},
		{name: "negative body size", mutate: func(c *Config) { c.MaxBodySize = -1 }, wantErr: ErrInvalidMaxBodySize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := NewConfig()
			tt.mutate(c)
			if err := c.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("LoadConfigFile = %v, want ErrConfigNotFound", err)
		}
	})

	t.Run("loads and applies settings", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := `
threshold: 8
scan_delay: 250ms
user_agent: "research-bot/1.0"
data_dir: /srv/imagehound
ignored_extensions: [".svg", ".webm"]
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile failed: %v", err)
		}

		c := NewConfig()
		cf.Apply(c)
		if c.Threshold != 8 {
			t.Errorf("Threshold = %d, want 8", c.Threshold)
		}
		if c.ScanDelay != 250*time.Millisecond {
			t.Errorf("ScanDelay = %v, want 250ms", c.ScanDelay)
		}
		if c.UserAgent != "research-bot/1.0" {
			t.Errorf("UserAgent = %q", c.UserAgent)
		}
		if c.DataDir != "/srv/imagehound" {
			t.Errorf("DataDir = %q", c.DataDir)
		}
		if len(c.IgnoredExtensions) != 2 || c.IgnoredExtensions[1] != ".webm" {
			t.Errorf("IgnoredExtensions = %v", c.IgnoredExtensions)
		}
		// Untouched fields keep their defaults.
		if c.BatchSize != DefaultBatchSize {
			t.Errorf("BatchSize = %d, want default %d", c.BatchSize, DefaultBatchSize)
		}
	})

	t.Run("malformed YAML is an error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte("threshold: [not a number"), 0600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("LoadConfigFile succeeded on malformed YAML")
		}
	})

	t.Run("find prefers the explicit path", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := filepath.Join(dir, "custom.yaml")
		if err := os.WriteFile(path, []byte("threshold: 3"), 0600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		if got := FindConfigFile(path); got != path {
			t.Errorf("FindConfigFile = %q, want %q", got, path)
		}
		if got := FindConfigFile(filepath.Join(dir, "missing.yaml")); got != "" {
			t.Errorf("FindConfigFile = %q, want empty for missing explicit path", got)
		}
	})
}
