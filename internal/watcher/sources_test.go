package watcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/pilebones/go-udev/netlink"
)

func TestUdevMatcher(t *testing.T) {
	m := newUdevSource(testConfig(), nil)
	matcher := m.buildMatcher()

	add := netlink.UEvent{
		Action: netlink.ADD,
		Env:    map[string]string{"SUBSYSTEM": "block", "DEVTYPE": "partition", "DEVNAME": "/dev/sda1"},
	}
	if !matcher.Evaluate(add) {
		t.Error("expected partition add to match")
	}

	disk := netlink.UEvent{
		Action: netlink.ADD,
		Env:    map[string]string{"SUBSYSTEM": "block", "DEVTYPE": "disk", "DEVNAME": "/dev/sda"},
	}
	if matcher.Evaluate(disk) {
		t.Error("whole-disk events must not match")
	}

	remove := netlink.UEvent{
		Action: netlink.REMOVE,
		Env:    map[string]string{"SUBSYSTEM": "block", "DEVTYPE": "partition", "DEVNAME": "/dev/sda1"},
	}
	if matcher.Evaluate(remove) {
		t.Error("remove events must not match")
	}
}

func TestUdevTriggerFiltersByName(t *testing.T) {
	cfg := testConfig()
	cfg.Watch.SettleSeconds = 4
	m := newUdevSource(cfg, nil)

	trig, ok := m.triggerFor(netlink.UEvent{Env: map[string]string{"DEVNAME": "/dev/sdb1"}})
	if !ok || trig.Source != SourceUdev || trig.Detail != "sdb1" || trig.Delay != cfg.Settle() {
		t.Fatalf("unexpected trigger: %+v ok=%v", trig, ok)
	}

	if _, ok := m.triggerFor(netlink.UEvent{Env: map[string]string{"DEVNAME": "/dev/mmcblk0p1"}}); ok {
		t.Fatal("non-matching device name should be ignored")
	}
	if _, ok := m.triggerFor(netlink.UEvent{Env: map[string]string{"DEVPATH": "/devices/platform/usb/block/sda/sda2"}}); !ok {
		t.Fatal("expected DEVPATH fallback to match")
	}
	if _, ok := m.triggerFor(netlink.UEvent{Env: map[string]string{}}); ok {
		t.Fatal("event without device name should be ignored")
	}
}

func TestUdevNilSafety(t *testing.T) {
	var m *udevSource
	m.Stop()
	if m.Running() {
		t.Fatal("nil monitor must not report running")
	}
	if err := m.Start(t.Context(), nil); err != nil {
		t.Fatalf("Start on nil monitor: %v", err)
	}
}

func TestMountTriggerOnlyForNewDirectories(t *testing.T) {
	prefix := t.TempDir()
	cfg := testConfig()
	cfg.Device.MountPrefix = prefix
	s := newMountSource(cfg, nil)

	card := filepath.Join(prefix, "CARD")
	if err := os.Mkdir(card, 0o755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(prefix, "stray.txt")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	trig, ok := s.triggerFor(fsnotify.Event{Name: card, Op: fsnotify.Create})
	if !ok || trig.Source != SourceMount || trig.Detail != card {
		t.Fatalf("unexpected trigger: %+v ok=%v", trig, ok)
	}
	if _, ok := s.triggerFor(fsnotify.Event{Name: file, Op: fsnotify.Create}); ok {
		t.Fatal("files must not trigger")
	}
	if _, ok := s.triggerFor(fsnotify.Event{Name: card, Op: fsnotify.Remove}); ok {
		t.Fatal("removals must not trigger")
	}
}

func TestMountSourceMissingPrefixIsNonFatal(t *testing.T) {
	cfg := testConfig()
	cfg.Device.MountPrefix = filepath.Join(t.TempDir(), "missing")
	s := newMountSource(cfg, nil)
	if err := s.Start(t.Context(), make(chan Trigger)); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	s.Stop()
}
