package watcher

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"cardsync/internal/logging"
)

func newTestSpawner(t *testing.T, argv ...string) (*processSpawner, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, _, err := logging.New(logging.Options{Console: &buf, Level: "debug"})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	cfg := testConfig()
	cfg.Watch.SyncCommand = argv
	cfg.Watch.ShutdownSeconds = 1
	spawner, err := newProcessSpawner(cfg, "/etc/cardsync.toml", logger)
	if err != nil {
		t.Fatalf("newProcessSpawner: %v", err)
	}
	return spawner, &buf
}

func TestSpawnRelaysOutputAndExitCode(t *testing.T) {
	spawner, buf := newTestSpawner(t, "sh", "-c", `echo "copied 2 videos"; echo "disk warning" >&2; echo "$CARDSYNC_TRIGGER"; exit 3`)

	outcome := spawner.Spawn(context.Background(), Trigger{Source: SourceButton})
	if outcome.ExitCode != 3 || outcome.Err == nil {
		t.Fatalf("expected exit code 3, got %+v", outcome)
	}
	logs := buf.String()
	for _, want := range []string{
		`line="copied 2 videos"`,
		`stream=stderr line="disk warning"`,
		"line=button",
		"sync exited with error",
		"exit_code=3",
	} {
		if !strings.Contains(logs, want) {
			t.Fatalf("expected %q in logs:\n%s", want, logs)
		}
	}
}

func TestSpawnRelaysStderrAsWarning(t *testing.T) {
	spawner, buf := newTestSpawner(t, "sh", "-c", `echo "copied"; echo "cp: short read" >&2`)
	spawner.Spawn(context.Background(), Trigger{Source: SourceButton})

	levels := map[string]string{}
	for _, line := range strings.Split(buf.String(), "\n") {
		switch {
		case strings.Contains(line, "line=copied"):
			levels["stdout"] = line
		case strings.Contains(line, `line="cp: short read"`):
			levels["stderr"] = line
		}
	}
	if !strings.Contains(levels["stdout"], " INFO ") {
		t.Fatalf("expected stdout at info, got %q", levels["stdout"])
	}
	if !strings.Contains(levels["stderr"], " WARN ") {
		t.Fatalf("expected stderr at warn, got %q", levels["stderr"])
	}
}

func TestSpawnDrainsOverlongOutput(t *testing.T) {
	// 2 MiB on one line, then more output the child must be able to write.
	spawner, buf := newTestSpawner(t, "sh", "-c",
		`head -c 2097152 /dev/zero | tr '\0' x; echo; head -c 262144 /dev/zero | tr '\0' y; echo; echo done`)

	result := make(chan Outcome, 1)
	go func() { result <- spawner.Spawn(context.Background(), Trigger{Source: SourceButton}) }()
	select {
	case outcome := <-result:
		if outcome.ExitCode != 0 || outcome.Err != nil {
			t.Fatalf("unexpected outcome: %+v", outcome)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("spawn blocked on an overlong output line")
	}
	if !strings.Contains(buf.String(), "sync output line too long") {
		t.Fatalf("expected truncation warning, got %d bytes of logs", buf.Len())
	}
}

func TestSpawnSuccess(t *testing.T) {
	spawner, buf := newTestSpawner(t, "true")
	outcome := spawner.Spawn(context.Background(), Trigger{Source: SourceUdev})
	if outcome.ExitCode != 0 || outcome.Err != nil {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if !strings.Contains(buf.String(), "sync finished") {
		t.Fatalf("expected finish log, got:\n%s", buf.String())
	}
}

func TestSpawnMissingBinaryIsLogged(t *testing.T) {
	spawner, buf := newTestSpawner(t, "/nonexistent/cardsync-sync")
	outcome := spawner.Spawn(context.Background(), Trigger{Source: SourceButton})
	if outcome.Err == nil || outcome.ExitCode != -1 {
		t.Fatalf("expected spawn failure, got %+v", outcome)
	}
	if !strings.Contains(buf.String(), "failed to start sync") {
		t.Fatalf("expected spawn failure log, got:\n%s", buf.String())
	}
}

func TestSpawnTerminatesChildOnShutdown(t *testing.T) {
	spawner, _ := newTestSpawner(t, "sleep", "30")
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	outcome := spawner.Spawn(ctx, Trigger{Source: SourceButton})
	if time.Since(start) > 5*time.Second {
		t.Fatal("child was not terminated on shutdown")
	}
	if outcome.Err == nil {
		t.Fatal("expected error from terminated child")
	}
}

func TestDefaultCommandPassesConfigAndTrigger(t *testing.T) {
	cfg := testConfig()
	spawner, err := newProcessSpawner(cfg, "/etc/cardsync.toml", nil)
	if err != nil {
		t.Fatalf("newProcessSpawner: %v", err)
	}
	argv := spawner.command(Trigger{Source: SourceUdev})
	got := strings.Join(argv[1:], " ")
	if got != "sync --config /etc/cardsync.toml --trigger udev" {
		t.Fatalf("unexpected argv: %q", got)
	}
}
