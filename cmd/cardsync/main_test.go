package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cardsync/internal/config"
	"cardsync/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	cardDir    string
	archiveDir string
}

// setupCLITestEnv writes a config whose lsblk is a stub script. With a
// mounted card the stub reports it under the test mount prefix.
func setupCLITestEnv(t *testing.T, cardMounted bool) *cliTestEnv {
	t.Helper()

	var cfg *config.Config
	if cardMounted {
		cfg = testsupport.NewConfig(t, testsupport.WithMountedCard("sda1", "CARD"))
	} else {
		cfg = testsupport.NewConfig(t, testsupport.WithLsblkDevices())
	}
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	env := &cliTestEnv{
		cfg:        cfg,
		configPath: filepath.Join(base, "cardsync.toml"),
		cardDir:    testsupport.CardDir(cfg, "CARD"),
		archiveDir: cfg.Paths.ArchiveDir,
	}
	writeTestConfig(t, env.configPath, cfg)
	return env
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	out := *cfg
	out.Logging.File = "-"
	data, err := out.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (e *cliTestEnv) writeCardVideos(t *testing.T, folder string, names ...string) {
	t.Helper()
	testsupport.WriteCameraVideos(t, e.cardDir, folder, names...)
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestSyncCopiesNewVideosAndRecordsHistory(t *testing.T) {
	env := setupCLITestEnv(t, true)
	env.writeCardVideos(t, "100GOPRO", "GX010001.MP4", "GX010002.MP4", "notes.txt")

	out, _, err := runCLI(t, []string{"sync"}, env.configPath)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	requireContains(t, out, "SD card detected")
	requireContains(t, out, "copying 2 new videos")
	requireContains(t, out, "sync complete")

	for _, name := range []string{"GX010001.MP4", "GX010002.MP4"} {
		if _, err := os.Stat(filepath.Join(env.archiveDir, name)); err != nil {
			t.Fatalf("expected %s archived: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(env.archiveDir, "notes.txt")); !os.IsNotExist(err) {
		t.Fatal("non-video file must not be copied")
	}

	out, _, err = runCLI(t, []string{"sync"}, env.configPath)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	requireContains(t, out, "no new videos to copy")

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "completed")
	requireContains(t, out, "up_to_date")
	requireContains(t, out, "manual")

	out, _, err = runCLI(t, []string{"history", "--limit", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("history --limit: %v", err)
	}
	if strings.Contains(out, "completed") {
		t.Fatalf("expected only the latest run, got:\n%s", out)
	}
}

func TestSyncWithoutCardExitsCleanly(t *testing.T) {
	env := setupCLITestEnv(t, false)
	out, _, err := runCLI(t, []string{"sync", "--trigger", "button"}, env.configPath)
	if err != nil {
		t.Fatalf("sync without card must not fail: %v", err)
	}
	requireContains(t, out, "no SD card detected, exiting")
	requireContains(t, out, "trigger=button")
}

func TestSyncDryRun(t *testing.T) {
	env := setupCLITestEnv(t, true)
	env.writeCardVideos(t, "100GOPRO", "GX010001.MP4")

	out, _, err := runCLI(t, []string{"sync", "--dry-run"}, env.configPath)
	if err != nil {
		t.Fatalf("sync --dry-run: %v", err)
	}
	requireContains(t, out, "WOULD COPY")
	requireContains(t, out, "GX010001.MP4")
	if _, err := os.Stat(env.archiveDir); !os.IsNotExist(err) {
		t.Fatal("dry run must not create the archive")
	}
}

func TestHistoryWithoutRuns(t *testing.T) {
	env := setupCLITestEnv(t, false)
	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No sync runs recorded yet")
}

func TestHistoryUnknownRun(t *testing.T) {
	env := setupCLITestEnv(t, false)
	if _, _, err := runCLI(t, []string{"sync"}, env.configPath); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if _, _, err := runCLI(t, []string{"history", "--run", "does-not-exist"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown run id")
	}
}

func TestCheckReportsCard(t *testing.T) {
	env := setupCLITestEnv(t, true)
	out, _, _ := runCLI(t, []string{"check"}, env.configPath)
	requireContains(t, out, "cardsync check")
	requireContains(t, out, "sda1 mounted at "+env.cardDir)
	requireContains(t, out, "lsblk")
}

func TestInvalidLogLevelRejected(t *testing.T) {
	env := setupCLITestEnv(t, false)
	if _, _, err := runCLI(t, []string{"--log-level", "loud", "sync"}, env.configPath); err == nil {
		t.Fatal("expected error for invalid --log-level")
	}
}
