package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cardsync/internal/logging"
	"cardsync/internal/preflight"
	"cardsync/internal/watcher"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Wait for the button and run a sync on each press",
		Long: `Request the configured GPIO line and spawn 'cardsync sync' as a child process on
every falling edge. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, closer, err := ctx.newLogger(cmd.OutOrStdout(), true)
			if err != nil {
				return err
			}
			defer closer.Close()

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger.Info("cardsync watcher starting",
				logging.String("config", ctx.configPath),
				logging.Bool("config_found", ctx.configExists),
				logging.String("archive", cfg.Paths.ArchiveDir),
			)
			for _, result := range preflight.RunAll(signalCtx, cfg, nil) {
				if result.Passed || result.Optional {
					continue
				}
				logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
					logging.String("check", result.Name),
					logging.String("detail", result.Detail),
					logging.String(logging.FieldImpact, "syncs may fail until this is fixed"),
				)
			}

			w, err := watcher.New(cfg, ctx.configPath, logger)
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			return w.Run(signalCtx)
		},
	}
}
