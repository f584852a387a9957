package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/osintlab/imagehound/internal/imghash"
	"github.com/osintlab/imagehound/internal/target"
)

// NewTargetCmd creates the target command group.
func NewTargetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "target",
		Short: "Manage the target image database",
		Long: `Target manages the database of images being tracked.

Targets can be added from an image (all five hash families are computed)
or from a bare hash value pasted from another tool (single family).`,
	}

	cmd.AddCommand(newTargetAddCmd())
	cmd.AddCommand(newTargetAddHashCmd())
	cmd.AddCommand(newTargetListCmd())
	cmd.AddCommand(newTargetRemoveCmd())
	cmd.AddCommand(newTargetResetCmd())
	return cmd
}

func newTargetAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <image-url-or-path>",
		Short: "Add a target from an image URL or local file",
		Long: `Add downloads or reads the image, computes all five hash families,
and stores the result as a new target.

Examples:
  imagehound target add https://example.com/poster.png -d "campaign poster"
  imagehound target add ./evidence/photo.jpg -d "case 42 photo" --tags case42,photo`,
		Args: cobra.ExactArgs(1),
		RunE: runTargetAddCmd,
	}

	cmd.Flags().StringP("description", "d", "", "Human-readable description")
	cmd.Flags().StringSlice("tags", nil, "Comma-separated tags")
	return cmd
}

func runTargetAddCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	description, err := cmd.Flags().GetString("description")
	if err != nil {
		return err
	}
	tags, err := cmd.Flags().GetStringSlice("tags")
	if err != nil {
		return err
	}

	client, err := newFetchClient(cfg)
	if err != nil {
		return err
	}
	store, err := openStore(cfg, client)
	if err != nil {
		return err
	}

	id, err := store.AddFromImage(cmd.Context(), args[0], description, tags)
	if err != nil {
		return fmt.Errorf("failed to add target: %w", err)
	}

	logger.Info("target added", "id", id, "source", args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", id, args[0])
	return nil
}

func newTargetAddHashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-hash <hash-value>",
		Short: "Add a target from a bare hash value",
		Long: `Add-hash stores a hash pasted from another tool as a single-family
target. The value is stored verbatim; the family defaults to phash.

Examples:
  imagehound target add-hash c3a1b2d4e5f60718 -d "phash from partner org"
  imagehound target add-hash 9e107d9d372bb6826bd81d3542a419d6 --family md5`,
		Args: cobra.ExactArgs(1),
		RunE: runTargetAddHashCmd,
	}

	cmd.Flags().StringP("family", "f", imghash.FamilyPHash,
		"Hash family: md5, ahash, phash, dhash, or whash")
	cmd.Flags().StringP("description", "d", "", "Human-readable description")
	cmd.Flags().StringSlice("tags", nil, "Comma-separated tags")
	return cmd
}

func runTargetAddHashCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	family, err := cmd.Flags().GetString("family")
	if err != nil {
		return err
	}
	if family != "" && !imghash.ValidFamily(family) {
		return fmt.Errorf("unknown hash family %q (want md5, ahash, phash, dhash, or whash)", family)
	}
	description, err := cmd.Flags().GetString("description")
	if err != nil {
		return err
	}
	tags, err := cmd.Flags().GetStringSlice("tags")
	if err != nil {
		return err
	}

	store, err := openStore(cfg, nil)
	if err != nil {
		return err
	}

	id, err := store.AddManual(args[0], family, description, tags)
	if err != nil {
		return fmt.Errorf("failed to add target: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s: %s)\n", id, family, args[0])
	return nil
}

func newTargetListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all targets",
		RunE:  runTargetListCmd,
	}
}

func runTargetListCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	store, err := openStore(cfg, nil)
	if err != nil {
		return err
	}

	records := store.List()
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No targets in the database.")
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d target(s):\n\n", len(records))
	for _, rec := range records {
		fmt.Fprintf(out, "%s\n", rec.ID)
		if rec.Description != "" {
			fmt.Fprintf(out, "  description: %s\n", rec.Description)
		}
		if len(rec.Tags) > 0 {
			fmt.Fprintf(out, "  tags:        %s\n", strings.Join(rec.Tags, ", "))
		}
		fmt.Fprintf(out, "  source:      %s\n", rec.Source)
		fmt.Fprintf(out, "  added:       %s\n", rec.AddedAt.Format("2006-01-02 15:04:05 MST"))
		for _, family := range imghash.CompareOrder {
			if value, ok := rec.Hashes[family]; ok {
				fmt.Fprintf(out, "  %-6s       %s\n", family+":", value)
			}
		}
		fmt.Fprintln(out)
	}
	return nil
}

func newTargetRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <target-id>",
		Short: "Remove a target by id",
		Long: `Remove deletes one target from the database. Its id is never reused,
and detections already recorded against it are kept.`,
		Args: cobra.ExactArgs(1),
		RunE: runTargetRemoveCmd,
	}
}

func runTargetRemoveCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	store, err := openStore(cfg, nil)
	if err != nil {
		return err
	}

	if err := store.Remove(args[0]); err != nil {
		if errors.Is(err, target.ErrNotFound) {
			return fmt.Errorf("no such target: %s", args[0])
		}
		return fmt.Errorf("failed to remove target: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
	return nil
}

func newTargetResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every target",
		Long: `Reset clears the whole target database. Id counters are kept, so ids
from before the reset are never reused. Requires --yes.`,
		RunE: runTargetResetCmd,
	}

	cmd.Flags().Bool("yes", false, "Confirm deletion of every target")
	return cmd
}

func runTargetResetCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return err
	}
	if !yes {
		return errors.New("refusing to delete all targets without --yes")
	}

	store, err := openStore(cfg, nil)
	if err != nil {
		return err
	}

	n := store.Len()
	if err := store.Reset(); err != nil {
		return fmt.Errorf("failed to reset target store: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d target(s)\n", n)
	return nil
}
