package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"cardsync/internal/config"
	"cardsync/internal/history"
	"cardsync/internal/logging"
	"cardsync/internal/syncrun"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var trigger string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Copy new videos from the mounted card into the archive",
		Long: `Find the mounted camera card, list the videos under its DCIM folders and copy
every video whose name is not already in the archive.

Exits 0 when there is no card, nothing to copy, or some copies failed; the
outcome is in the log and in 'cardsync history'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, ctx, trigger, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the videos that would be copied without copying them")
	cmd.Flags().StringVar(&trigger, "trigger", "", "What started this run (set by the watcher)")
	_ = cmd.Flags().MarkHidden("trigger")
	return cmd
}

func runSync(cmd *cobra.Command, ctx *commandContext, trigger string, dryRun bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Spawned runs log to stdout only; the watcher relays and persists them.
	trigger = strings.TrimSpace(trigger)
	logger, closer, err := ctx.newLogger(cmd.OutOrStdout(), trigger == "")
	if err != nil {
		return err
	}
	defer closer.Close()

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := []syncrun.Option{}
	if store := openHistory(signalCtx, cfg, logger); store != nil {
		defer store.Close()
		opts = append(opts, syncrun.WithRecorder(store))
	}

	pipeline := syncrun.New(cfg, logger, opts...)
	summary, err := pipeline.Run(signalCtx, syncrun.Options{Trigger: trigger, DryRun: dryRun})
	if err != nil {
		return err
	}

	if dryRun && len(summary.Pending) > 0 {
		rows := make([][]string, 0, len(summary.Pending))
		for _, src := range summary.Pending {
			rows = append(rows, []string{filepath.Base(src), src})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Would copy", "Source"}, rows, nil))
	}
	return nil
}

// openHistory opens the history store when enabled. Failure only costs the
// audit trail, so it is logged and the sync continues.
func openHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger) *history.Store {
	if !cfg.History.Enabled {
		return nil
	}
	store, err := history.Open(ctx, cfg.History.Path)
	if err != nil {
		logging.WarnWithContext(logger, "history unavailable; run not recorded", "history_open_failed",
			logging.String(logging.FieldPath, cfg.History.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check history.path permissions or delete the database"),
		)
		return nil
	}
	return store
}
