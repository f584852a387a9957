// Package main provides the entry point for the imagehound CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/osintlab/imagehound/internal/config"
	"github.com/osintlab/imagehound/internal/detect"
	"github.com/osintlab/imagehound/internal/fetch"
	"github.com/osintlab/imagehound/internal/log"
	"github.com/osintlab/imagehound/internal/target"
)

// NewRootCmd creates the root command for imagehound.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imagehound",
		Short: "Track reuse of known images across the web and message channels",
		Long: `Imagehound maintains a database of target images and detects their reuse.

Each target is fingerprinted with five hash families (md5, ahash, phash,
dhash, whash). Scans fingerprint candidate images found on web pages or
in message channels and report every target that matches exactly (md5)
or within a Hamming distance threshold (perceptual hashes).`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .imagehound in current or home directory)")
	cmd.PersistentFlags().String("data-dir", "",
		"Directory for the target store and history database (default: XDG data dir)")

	// Add subcommands
	cmd.AddCommand(NewTargetCmd())
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewStreamCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewStatsCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildConfig assembles the runtime configuration: defaults, then the
// config file, then CLI flags (handled by each command after this).
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg.ConfigFilePath = configPath

	explicit := configPath != ""
	found := config.FindConfigFile(configPath)
	if found != "" {
		cf, err := config.LoadConfigFile(found)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
		}
		cf.Apply(cfg)
	} else if explicit {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	dataDir, err := cmd.Flags().GetString("data-dir")
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	cfg.Verbose, err = cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// setupLogger creates the redacting structured logger and installs it as
// the default.
func setupLogger(cfg *config.Config) *slog.Logger {
	logger := log.NewLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)
	return logger
}

// newFetchClient builds the download client from the configuration.
func newFetchClient(cfg *config.Config) (*fetch.Client, error) {
	opts := []fetch.Option{
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
	}
	if cfg.ProxyAddress != "" {
		opts = append(opts, fetch.WithSOCKSProxy(cfg.ProxyAddress))
	}
	client, err := fetch.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create download client: %w", err)
	}
	return client, nil
}

// openStore opens the target store in the data directory. Commands that
// never fetch images pass a nil client.
func openStore(cfg *config.Config, client *fetch.Client) (*target.Store, error) {
	opts := []target.Option{}
	if client != nil {
		opts = append(opts, target.WithFetcher(client))
	}
	store, err := target.Open(target.NewFilePersister(cfg.DataDir), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open target store: %w", err)
	}
	return store, nil
}

// newEngine wires the match engine and its detection log.
func newEngine(store *target.Store, logger *slog.Logger) (*detect.Engine, *detect.Log) {
	detectionLog := detect.NewLog()
	return detect.NewEngine(store, detectionLog, detect.WithLogger(logger)), detectionLog
}
