package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/osintlab/imagehound/internal/config"
	"github.com/osintlab/imagehound/internal/detect"
	"github.com/osintlab/imagehound/internal/history"
	"github.com/osintlab/imagehound/internal/report"
	"github.com/osintlab/imagehound/internal/stream"
)

// NewStreamCmd creates the stream command group.
func NewStreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Scan or monitor message channels for target images",
		Long: `Stream works against a channel source backed by a spool directory:
each subdirectory is a channel and image files dropped into it are its
messages. Point --spool at an export from your chat tooling.

Channels are addressed by numeric id or by a case-insensitive name
fragment.`,
	}

	cmd.PersistentFlags().String("spool", "",
		"Spool directory with one subdirectory per channel")
	cmd.PersistentFlags().IntP("threshold", "t", config.DefaultThreshold,
		"Maximum Hamming distance for perceptual matches (0-64)")

	cmd.AddCommand(newStreamChannelsCmd())
	cmd.AddCommand(newStreamScanCmd())
	cmd.AddCommand(newStreamMonitorCmd())
	return cmd
}

// streamSetup wires the common stream machinery for all subcommands.
func streamSetup(cmd *cobra.Command) (*config.Config, *slog.Logger, *stream.Monitor, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	if cmd.Flags().Changed("threshold") {
		cfg.Threshold, _ = cmd.Flags().GetInt("threshold") //nolint:errcheck // flag is registered
	}
	cfg.Threshold = config.ClampThreshold(cfg.Threshold)
	logger := setupLogger(cfg)

	spool, err := cmd.Flags().GetString("spool")
	if err != nil {
		return nil, nil, nil, err
	}
	if spool != "" {
		cfg.SpoolDir = spool
	}
	if cfg.SpoolDir == "" {
		return nil, nil, nil, errors.New("no spool directory: use --spool or set spool_dir in the config file")
	}

	source, err := stream.NewDirSource(cfg.SpoolDir)
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := openStore(cfg, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	engine, detectionLog := newEngine(store, logger)

	monitor := stream.NewMonitor(source, engine, detectionLog,
		stream.WithLogger(logger),
		stream.WithExporter(func(records []detect.MatchRecord) (string, error) {
			return report.ExportFile(cfg.ExportDir, "monitor", time.Now(), records)
		}),
	)
	return cfg, logger, monitor, nil
}

func newStreamChannelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List the channels visible in the spool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _, monitor, err := streamSetup(cmd)
			if err != nil {
				return err
			}

			channels, err := monitor.Channels(cmd.Context())
			if err != nil {
				return err
			}
			if len(channels) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No channels in the spool.")
				return nil
			}
			for _, ch := range channels {
				fmt.Fprintf(cmd.OutOrStdout(), "%3d  %s\n", ch.ID, ch.Name)
			}
			return nil
		},
	}
}

func newStreamScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <channel>",
		Short: "Scan a channel's recent messages",
		Long: `Scan replays a channel's recent image messages through the match
engine.

Examples:
  imagehound stream scan leaks --spool ./spool
  imagehound stream scan 2 --limit 500 --threshold 3`,
		Args: cobra.ExactArgs(1),
		RunE: runStreamScanCmd,
	}

	cmd.Flags().Int("limit", config.DefaultStreamLimit,
		"Number of recent messages to replay")
	return cmd
}

func runStreamScanCmd(cmd *cobra.Command, args []string) error {
	cfg, logger, monitor, err := streamSetup(cmd)
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	ch, err := monitor.ResolveChannel(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	started := time.Now()
	result, err := monitor.ScanRecent(cmd.Context(), ch, limit, cfg.Threshold)
	if err != nil {
		return fmt.Errorf("failed to scan channel: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Channel %q: %d item(s) scanned, %d failed, %d match(es)\n\n",
		ch.Name, result.ItemsScanned, result.Failed, len(result.Matches))
	if _, err := report.NewConsoleWriter(out).Write(result.Matches); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	exportMatches(cmd, cfg, logger, ch.Name, result.Matches)
	saveHistory(cmd.Context(), cfg, logger, history.Session{
		Kind:       "stream-scan",
		Argument:   ch.Name,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}, result.Matches)
	return nil
}

func newStreamMonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor <channel>",
		Short: "Watch a channel live until interrupted",
		Long: `Monitor subscribes to a channel and evaluates images as they arrive.
Stop it with Ctrl+C; the session's matches are flushed to an export
file before exit, so an interrupted session never loses findings.

Example:
  imagehound stream monitor leaks --spool ./spool`,
		Args: cobra.ExactArgs(1),
		RunE: runStreamMonitorCmd,
	}
}

func runStreamMonitorCmd(cmd *cobra.Command, args []string) error {
	cfg, logger, monitor, err := streamSetup(cmd)
	if err != nil {
		return err
	}

	ch, err := monitor.ResolveChannel(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(cmd.OutOrStdout(), "\nStopping monitor...")
		cancel()
	}()

	started := time.Now()
	fmt.Fprintf(cmd.OutOrStdout(), "Monitoring %q (threshold %d). Press Ctrl+C to stop.\n", ch.Name, cfg.Threshold)

	result, err := monitor.Watch(ctx, ch, cfg.Threshold)
	if err != nil {
		return fmt.Errorf("monitoring failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session over: %d item(s) scanned, %d failed, %d match(es)\n",
		result.ItemsScanned, result.Failed, len(result.Matches))
	if result.ExportPath != "" {
		fmt.Fprintf(out, "Matches exported to %s\n", result.ExportPath)
	}

	saveHistory(ctx, cfg, logger, history.Session{
		Kind:       "monitor",
		Argument:   ch.Name,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}, result.Matches)
	return nil
}
