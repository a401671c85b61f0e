package watcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"cardsync/internal/config"
	"cardsync/internal/logging"
)

// Spawner runs one sync for a trigger and blocks until it exits.
type Spawner interface {
	Spawn(ctx context.Context, trig Trigger) Outcome
}

// Outcome is how a spawned sync ended.
type Outcome struct {
	ExitCode int
	Elapsed  time.Duration
	Err      error
}

// processSpawner starts the sync as a child process.
type processSpawner struct {
	argv   []string
	grace  time.Duration
	logger *slog.Logger
}

// newProcessSpawner resolves the child command. The default re-executes this
// binary as `sync --config <path>`; watch.sync_command replaces it.
func newProcessSpawner(cfg *config.Config, configPath string, logger *slog.Logger) (*processSpawner, error) {
	argv := append([]string(nil), cfg.Watch.SyncCommand...)
	if len(argv) == 0 {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve cardsync executable: %w", err)
		}
		argv = []string{self, "sync"}
		if configPath != "" {
			argv = append(argv, "--config", configPath)
		}
	}
	return &processSpawner{
		argv:   argv,
		grace:  cfg.ShutdownGrace(),
		logger: logging.NewComponentLogger(logger, "spawner"),
	}, nil
}

func (s *processSpawner) command(trig Trigger) []string {
	argv := append([]string(nil), s.argv...)
	// The trigger flag only makes sense for our own sync subcommand.
	if len(argv) > 1 && argv[1] == "sync" {
		argv = append(argv, "--trigger", trig.Source)
	}
	return argv
}

func (s *processSpawner) Spawn(ctx context.Context, trig Trigger) Outcome {
	argv := s.command(trig)
	logger := s.logger.With(logging.String(logging.FieldTrigger, trig.Source))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec
	cmd.Env = append(os.Environ(), "CARDSYNC_TRIGGER="+trig.Source)
	// Ask the child to stop first; it records the interrupted run and exits.
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = s.grace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return s.spawnFailed(logger, argv, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return s.spawnFailed(logger, argv, err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return s.spawnFailed(logger, argv, err)
	}
	logger.Info("sync started",
		logging.String(logging.FieldEventType, "sync_spawned"),
		logging.Int("pid", cmd.Process.Pid),
		logging.String("command", strings.Join(argv, " ")),
	)

	var readers sync.WaitGroup
	readers.Go(func() { relay(logger, "stdout", slog.LevelInfo, stdout) })
	readers.Go(func() { relay(logger, "stderr", slog.LevelWarn, stderr) })
	readers.Wait()

	err = cmd.Wait()
	outcome := Outcome{ExitCode: cmd.ProcessState.ExitCode(), Elapsed: time.Since(start), Err: err}
	if err != nil {
		var exitErr *exec.ExitError
		attrs := []logging.Attr{
			logging.Int("exit_code", outcome.ExitCode),
			logging.Duration("elapsed", outcome.Elapsed),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "see the sync output above"),
		}
		if errors.As(err, &exitErr) && ctx.Err() != nil {
			logger.Info("sync stopped for shutdown", logging.Args(attrs[:2]...)...)
			return outcome
		}
		logging.WarnWithContext(logger, "sync exited with error; not retrying", "sync_failed", attrs...)
		return outcome
	}
	logger.Info("sync finished",
		logging.String(logging.FieldEventType, "sync_finished"),
		logging.Int("exit_code", outcome.ExitCode),
		logging.Duration("elapsed", outcome.Elapsed),
	)
	return outcome
}

func (s *processSpawner) spawnFailed(logger *slog.Logger, argv []string, err error) Outcome {
	logging.ErrorWithContext(logger, "failed to start sync", "sync_spawn_failed",
		logging.String("command", strings.Join(argv, " ")),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check watch.sync_command or the cardsync binary path"),
	)
	return Outcome{ExitCode: -1, Err: err}
}

// relay logs each line the child writes at level. The pipe is drained to EOF
// even when a line is too long to log, so the child never blocks on write.
func relay(logger *slog.Logger, stream string, level slog.Level, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRelayLine)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		logger.LogAttrs(context.Background(), level, "sync output",
			logging.String("stream", stream), logging.String("line", line))
	}
	switch err := scanner.Err(); {
	case errors.Is(err, bufio.ErrTooLong):
		logger.Warn("sync output line too long; rest of stream discarded",
			logging.String("stream", stream), logging.Int("limit_bytes", maxRelayLine))
	case err != nil && !errors.Is(err, os.ErrClosed):
		logger.Debug("sync output read ended", logging.String("stream", stream), logging.Error(err))
	}
	_, _ = io.Copy(io.Discard, r)
}

const maxRelayLine = 1024 * 1024
