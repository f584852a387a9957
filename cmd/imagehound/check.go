package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/osintlab/imagehound/internal/config"
	"github.com/osintlab/imagehound/internal/detect"
	"github.com/osintlab/imagehound/internal/history"
	"github.com/osintlab/imagehound/internal/imghash"
	"github.com/osintlab/imagehound/internal/imgmeta"
	"github.com/osintlab/imagehound/internal/report"
)

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <image-url-or-path>",
		Short: "Check a single image against the target database",
		Long: `Check fingerprints one image and reports every target it matches.

Examples:
  imagehound check ./downloads/suspect.jpg
  imagehound check https://cdn.example.net/avatar.png --threshold 2`,
		Args: cobra.ExactArgs(1),
		RunE: runCheckCmd,
	}

	cmd.Flags().IntP("threshold", "t", config.DefaultThreshold,
		"Maximum Hamming distance for perceptual matches (0-64)")
	return cmd
}

// runCheckCmd executes the check command.
func runCheckCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("threshold") {
		cfg.Threshold, _ = cmd.Flags().GetInt("threshold") //nolint:errcheck // flag is registered
	}
	cfg.Threshold = config.ClampThreshold(cfg.Threshold)
	logger := setupLogger(cfg)

	client, err := newFetchClient(cfg)
	if err != nil {
		return err
	}
	store, err := openStore(cfg, client)
	if err != nil {
		return err
	}

	data, err := client.Fetch(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to retrieve image: %w", err)
	}
	fp, err := imghash.Compute(data)
	if err != nil {
		return fmt.Errorf("failed to fingerprint image: %w", err)
	}

	started := time.Now()
	engine, _ := newEngine(store, logger)
	matches := engine.Evaluate(detect.Candidate{
		Fingerprint: fp,
		Locator:     args[0],
		Provenance:  "check",
		Meta:        imgmeta.Extract(data),
	}, cfg.Threshold)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Fingerprint of %s:\n", args[0])
	for _, family := range imghash.CompareOrder {
		fmt.Fprintf(out, "  %-6s %s\n", family+":", fp[family])
	}
	fmt.Fprintln(out)

	if _, err := report.NewConsoleWriter(out).Write(matches); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	saveHistory(cmd.Context(), cfg, logger, history.Session{
		Kind:       "check",
		Argument:   args[0],
		StartedAt:  started,
		FinishedAt: time.Now(),
	}, matches)
	return nil
}
