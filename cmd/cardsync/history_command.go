package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"cardsync/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sync runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			if !cfg.History.Enabled {
				fmt.Fprintln(out, "History is disabled (history.enabled = false)")
				return nil
			}
			if _, err := os.Stat(cfg.History.Path); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(out, "No sync runs recorded yet")
				return nil
			}

			store, err := history.Open(cmd.Context(), cfg.History.Path)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			if id := strings.TrimSpace(runID); id != "" {
				run, err := store.GetRun(cmd.Context(), id)
				if err != nil {
					return err
				}
				files, err := store.RunFiles(cmd.Context(), run.ID)
				if err != nil {
					return fmt.Errorf("load run files: %w", err)
				}
				printRunDetail(out, run, files, shouldColorize(out))
				return nil
			}

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("load runs: %w", err)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No sync runs recorded yet")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Started", "Trigger", "Outcome", "Found", "New", "Copied", "Failed", "Size", "Took"},
				runRows(runs),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show the files copied by one run (id or unique prefix)")
	return cmd
}

func runRows(runs []history.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Trigger,
			string(run.Outcome),
			strconv.Itoa(run.Found),
			strconv.Itoa(run.New),
			strconv.Itoa(run.Copied),
			strconv.Itoa(run.Failed),
			humanize.Bytes(uint64(run.Bytes)),
			formatDuration(run.Duration()),
		})
	}
	return rows
}

func printRunDetail(out io.Writer, run history.Run, files []history.File, colorize bool) {
	kind := statusOK
	switch run.Outcome {
	case history.OutcomePartial, history.OutcomeCanceled:
		kind = statusWarn
	case history.OutcomeFailed:
		kind = statusError
	case history.OutcomeRunning:
		kind = statusInfo
	}

	fmt.Fprintln(out, renderStatusLine("Run", statusInfo, run.ID, colorize))
	fmt.Fprintln(out, renderStatusLine("Outcome", kind, string(run.Outcome), colorize))
	fmt.Fprintln(out, renderStatusLine("Trigger", statusInfo, run.Trigger, colorize))
	fmt.Fprintln(out, renderStatusLine("Started", statusInfo, run.StartedAt.Local().Format(time.RFC3339), colorize))
	if run.MountPoint != "" {
		fmt.Fprintln(out, renderStatusLine("Card", statusInfo, run.MountPoint, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Copied", statusInfo,
		fmt.Sprintf("%d of %d new (%s)", run.Copied, run.New, humanize.Bytes(uint64(run.Bytes))), colorize))
	if run.Message != "" {
		fmt.Fprintln(out, renderStatusLine("Note", kind, run.Message, colorize))
	}
	if len(files) == 0 {
		return
	}

	rows := make([][]string, 0, len(files))
	for _, f := range files {
		result := "ok"
		if f.Error != "" {
			result = f.Error
		}
		rows = append(rows, []string{f.Source, humanize.Bytes(uint64(f.Bytes)), formatDuration(f.Duration), result})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable([]string{"Source", "Size", "Took", "Result"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft}))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
