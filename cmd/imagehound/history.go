package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/osintlab/imagehound/internal/history"
	"github.com/osintlab/imagehound/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded scan sessions",
		Long: `History lists past scan sessions from the local database.

Examples:
  imagehound history
  imagehound history --limit 5
  imagehound history show 3f8c2d1a-...`,
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int("limit", 20, "Number of sessions to show (0 for all)")
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryTargetCmd())
	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	db, err := history.Open(cfg.DataDir, history.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-only teardown

	sessions, err := db.ListSessions(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded yet.")
		return nil
	}

	out := cmd.OutOrStdout()
	for _, s := range sessions {
		fmt.Fprintf(out, "%s  %-11s  %-40s  %d match(es)  %s\n",
			s.StartedAt.Format("2006-01-02 15:04"),
			s.Kind,
			truncate(s.Argument, 40),
			s.MatchCount,
			s.ID,
		)
	}
	return nil
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show the detections of one session",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShowCmd,
	}

	cmd.Flags().String("provenance", "",
		"Only show detections whose source contains this substring")
	return cmd
}

// runHistoryShowCmd executes the history show command.
func runHistoryShowCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	db, err := history.Open(cfg.DataDir, history.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-only teardown

	records, err := db.SessionDetections(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	provenance, err := cmd.Flags().GetString("provenance")
	if err != nil {
		return err
	}
	if provenance != "" {
		filtered := records[:0]
		for _, rec := range records {
			if strings.Contains(strings.ToLower(rec.Provenance), strings.ToLower(provenance)) {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	if _, err := report.NewConsoleWriter(cmd.OutOrStdout()).Write(records); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func newHistoryTargetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "target <target-id>",
		Short: "Show every recorded detection of one target",
		Long: `Target lists all detections of a target across every session, newest
first. Works for removed targets too; detections are never retracted.`,
		Args: cobra.ExactArgs(1),
		RunE: runHistoryTargetCmd,
	}
}

// runHistoryTargetCmd executes the history target command.
func runHistoryTargetCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	db, err := history.Open(cfg.DataDir, history.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-only teardown

	records, err := db.DetectionsForTarget(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if _, err := report.NewConsoleWriter(cmd.OutOrStdout()).Write(records); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE:  runStatsCmd,
	}
}

// runStatsCmd executes the stats command.
func runStatsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	store, err := openStore(cfg, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Targets:    %d\n", store.Len())

	db, err := history.Open(cfg.DataDir, history.DefaultOptions())
	if err != nil {
		// A missing history database just means nothing has run yet.
		fmt.Fprintf(out, "Sessions:   0\nDetections: 0\n")
		return nil
	}
	defer db.Close() //nolint:errcheck // read-only teardown

	stats, err := db.TotalStats(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Sessions:   %d\n", stats.Sessions)
	fmt.Fprintf(out, "Detections: %d\n", stats.Detections)
	fmt.Fprintf(out, "Data dir:   %s\n", cfg.DataDir)
	return nil
}

// truncate shortens a string for table display.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
