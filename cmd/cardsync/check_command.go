package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"cardsync/internal/logging"
	"cardsync/internal/mount"
	"cardsync/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check binaries, folders, GPIO access and card detection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			detector := mount.NewDetector(cfg, logging.NewNop())
			results := preflight.RunAll(cmd.Context(), cfg, detector)

			for _, line := range renderSectionHeader("cardsync check", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, r := range results {
				kind := statusOK
				switch {
				case !r.Passed && r.Optional:
					kind = statusInfo
				case !r.Passed:
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if preflight.Failed(results) {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
}
