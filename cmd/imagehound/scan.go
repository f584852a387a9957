package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/osintlab/imagehound/internal/config"
	"github.com/osintlab/imagehound/internal/detect"
	"github.com/osintlab/imagehound/internal/history"
	"github.com/osintlab/imagehound/internal/report"
	"github.com/osintlab/imagehound/internal/webscan"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [page-url]...",
		Short: "Scan web pages for reuse of target images",
		Long: `Scan downloads each page, extracts its images, fingerprints them, and
reports every target image found within the match threshold.

Examples:
  # Scan a single page
  imagehound scan https://example.com/gallery

  # Scan several pages concurrently
  imagehound scan https://a.example https://b.example --batch 5

  # Stricter matching (exact bits only)
  imagehound scan --threshold 0 https://example.com

  # Scan pages listed in a file, one URL per line
  imagehound scan --list pages.txt

  # Write a markdown report
  imagehound scan -m -o report.md https://example.com`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	cmd.Flags().IntP("threshold", "t", config.DefaultThreshold,
		"Maximum Hamming distance for perceptual matches (0-64)")
	cmd.Flags().Duration("delay", config.DefaultScanDelay,
		"Politeness delay between image downloads on one page")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of pages scanned concurrently")
	cmd.Flags().StringP("list", "l", "",
		"File with page URLs to scan, one per line")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output a Markdown report instead of plain text")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to this file instead of stdout")
	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	applyScanFlags(cmd, cfg)
	logger := setupLogger(cfg)

	pageURLs, err := collectPageURLs(cmd, args)
	if err != nil {
		return err
	}
	if len(pageURLs) == 0 {
		return errors.New("no pages to scan: pass page URLs or use --list")
	}

	// Graceful shutdown on interrupt
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runScan(ctx, cmd, cfg, logger, pageURLs)
}

// applyScanFlags overlays the scan flags onto the config. Only flags the
// user actually set override the config file.
func applyScanFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("threshold") {
		cfg.Threshold, _ = cmd.Flags().GetInt("threshold") //nolint:errcheck // flag is registered
	}
	if cmd.Flags().Changed("delay") {
		cfg.ScanDelay, _ = cmd.Flags().GetDuration("delay") //nolint:errcheck // flag is registered
	}
	if cmd.Flags().Changed("batch") {
		cfg.BatchSize, _ = cmd.Flags().GetInt("batch") //nolint:errcheck // flag is registered
	}
	cfg.Threshold = config.ClampThreshold(cfg.Threshold)
}

// collectPageURLs merges positional URLs with the --list file.
func collectPageURLs(cmd *cobra.Command, args []string) ([]string, error) {
	urls := append([]string(nil), args...)

	listFile, err := cmd.Flags().GetString("list")
	if err != nil {
		return nil, err
	}
	if listFile == "" {
		return urls, nil
	}

	f, err := os.Open(listFile) //nolint:gosec // user-provided list path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open URL list: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	return urls, nil
}

// runScan executes the page scans and handles reporting and persistence.
func runScan(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, pageURLs []string) error {
	client, err := newFetchClient(cfg)
	if err != nil {
		return err
	}
	store, err := openStore(cfg, client)
	if err != nil {
		return err
	}
	if store.Len() == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Warning: the target database is empty; nothing can match.")
	}

	engine, _ := newEngine(store, logger)
	scanner := webscan.NewScanner(client, engine,
		webscan.WithDelay(cfg.ScanDelay),
		webscan.WithIgnoredExtensions(cfg.IgnoredExtensions),
		webscan.WithLogger(logger),
	)

	started := time.Now()
	fmt.Fprintf(cmd.OutOrStdout(), "Scanning %d page(s) with threshold %d...\n\n", len(pageURLs), cfg.Threshold)

	results, scanErr := scanner.ScanPages(ctx, pageURLs, cfg.Threshold, cfg.BatchSize)

	matches := make([]detect.MatchRecord, 0)
	for _, res := range results {
		if res == nil {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d image(s), %d scanned, %d skipped, %d failed, %d match(es)\n",
			res.PageURL, res.ImagesFound, res.ImagesScanned, res.Skipped, res.Failed, len(res.Matches))
		matches = append(matches, res.Matches...)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nScan completed in %s: %d match(es)\n\n",
		time.Since(started).Round(time.Millisecond), len(matches))

	if err := outputReport(cmd, matches); err != nil {
		return err
	}
	exportMatches(cmd, cfg, logger, "scan", matches)
	saveHistory(ctx, cfg, logger, history.Session{
		Kind:       "scan",
		Argument:   strings.Join(pageURLs, " "),
		StartedAt:  started,
		FinishedAt: time.Now(),
	}, matches)

	return scanErr
}

// outputReport writes the matches in the selected format to stdout or
// the --output file.
func outputReport(cmd *cobra.Command, matches []detect.MatchRecord) error {
	markdown, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	output := cmd.OutOrStdout()
	if outputPath != "" {
		dir := filepath.Dir(outputPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		// Reports can reveal what is being tracked; owner-only access.
		f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // user-provided output path is intentional
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close() //nolint:errcheck // flushed by report writer
		output = f
	}

	var w report.Writer
	if markdown {
		w = report.NewMarkdownWriter(output)
	} else if outputPath != "" {
		w = report.NewJSONWriter(output)
	} else {
		w = report.NewConsoleWriter(output)
	}
	if _, err := w.Write(matches); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// exportMatches writes the session export file when matches were found.
func exportMatches(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, tag string, matches []detect.MatchRecord) {
	if len(matches) == 0 {
		return
	}
	path, err := report.ExportFile(cfg.ExportDir, tag, time.Now(), matches)
	if err != nil {
		logger.Error("failed to export matches", "error", err)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Matches exported to %s\n", path)
}

// saveHistory persists the session to the history database. History is
// best effort; a failure is logged, never fatal to the scan.
func saveHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger, session history.Session, matches []detect.MatchRecord) {
	db, err := history.Open(cfg.DataDir, history.DefaultOptions())
	if err != nil {
		logger.Error("failed to open history database", "error", err)
		return
	}
	defer db.Close() //nolint:errcheck // read-mostly teardown

	// Persist even when the scan was interrupted.
	id, err := db.SaveSession(context.WithoutCancel(ctx), session, matches)
	if err != nil {
		logger.Error("failed to save session history", "error", err)
		return
	}
	logger.Info("session saved", "session", id, "matches", len(matches))
}
