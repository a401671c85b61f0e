package mount

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cardsync/internal/config"
)

type fakeExecutor struct {
	output []byte
	err    error
	binary string
	args   []string
}

func (f *fakeExecutor) Run(_ context.Context, binary string, args []string) ([]byte, error) {
	f.binary = binary
	f.args = args
	return f.output, f.err
}

func newTestDetector(output string, err error) (*Detector, *fakeExecutor) {
	cfg := config.Default()
	exec := &fakeExecutor{output: []byte(output), err: err}
	return newDetector(&cfg, nil, exec), exec
}

func TestParseLsblk(t *testing.T) {
	data := `NAME="mmcblk0" MOUNTPOINT=""
NAME="mmcblk0p2" MOUNTPOINT="/"
NAME="sda1" MOUNTPOINT="/media/pi/My\x20Card"

`
	devices := ParseLsblk([]byte(data))
	if len(devices) != 3 {
		t.Fatalf("expected 3 devices, got %d: %+v", len(devices), devices)
	}
	if devices[2].Name != "sda1" || devices[2].MountPoint != "/media/pi/My Card" {
		t.Fatalf("unexpected unescaped device: %+v", devices[2])
	}
	if devices[0].MountPoint != "" {
		t.Fatalf("expected empty mount point, got %q", devices[0].MountPoint)
	}
}

func TestDetectFirstMatchWins(t *testing.T) {
	output := `NAME="sda" MOUNTPOINT=""
NAME="sda1" MOUNTPOINT="/media/pi/GOPRO"
NAME="sdb1" MOUNTPOINT="/media/pi/OTHER"
`
	d, exec := newTestDetector(output, nil)
	dev, err := d.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if dev.MountPoint != "/media/pi/GOPRO" {
		t.Fatalf("expected first match, got %+v", dev)
	}
	if exec.binary != "lsblk" || strings.Join(exec.args, " ") != "-P -o NAME,MOUNTPOINT" {
		t.Fatalf("unexpected invocation: %s %v", exec.binary, exec.args)
	}
}

func TestDetectNotFound(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"empty", ""},
		{"no removable", `NAME="mmcblk0p2" MOUNTPOINT="/"`},
		{"unmounted card", `NAME="sda1" MOUNTPOINT=""`},
		{"outside prefix", `NAME="sda1" MOUNTPOINT="/mnt/card"`},
		{"sibling prefix", `NAME="sda1" MOUNTPOINT="/media/pizza"`},
		{"wrong device name", `NAME="nvme0n1p1" MOUNTPOINT="/media/pi/DISK"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newTestDetector(tt.output, nil)
			_, err := d.Detect(context.Background())
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestDetectLsblkFailure(t *testing.T) {
	d, _ := newTestDetector("", errors.New("exec: \"lsblk\": executable file not found in $PATH"))
	_, err := d.Detect(context.Background())
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected wrapped lsblk error, got %v", err)
	}
	if !strings.Contains(err.Error(), "list block devices") {
		t.Fatalf("expected context in error, got %v", err)
	}
}

func TestDetectCustomNamePrefixes(t *testing.T) {
	cfg := config.Default()
	cfg.Device.NamePrefixes = []string{"mmcblk1"}
	exec := &fakeExecutor{output: []byte(`NAME="sda1" MOUNTPOINT="/media/pi/USB"
NAME="mmcblk1p1" MOUNTPOINT="/media/pi/SDCARD"`)}
	d := newDetector(&cfg, nil, exec)
	dev, err := d.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if dev.Name != "mmcblk1p1" {
		t.Fatalf("expected mmcblk1p1, got %+v", dev)
	}
}
