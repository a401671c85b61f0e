package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"cardsync/internal/config"
	"cardsync/internal/logging"
)

// udevSource listens for kernel uevents announcing a new block partition
// and triggers a sync once the automounter has had time to mount it.
type udevSource struct {
	logger       *slog.Logger
	namePrefixes []string
	settle       time.Duration

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func newUdevSource(cfg *config.Config, logger *slog.Logger) *udevSource {
	if cfg == nil {
		return nil
	}
	return &udevSource{
		logger:       logging.NewComponentLogger(logger, "udev-monitor"),
		namePrefixes: append([]string(nil), cfg.Device.NamePrefixes...),
		settle:       cfg.Settle(),
	}
}

func (m *udevSource) Name() string { return SourceUdev }

// Start connects to the netlink socket. A connection failure is logged and
// leaves the source idle so the other triggers keep working.
func (m *udevSource) Start(ctx context.Context, out chan<- Trigger) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "failed to connect to netlink socket; udev trigger disabled", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the watcher may open netlink sockets"),
			logging.String(logging.FieldImpact, "card insertion does not start a sync on its own"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit, out)

	m.logger.Info("udev monitor started",
		logging.String(logging.FieldEventType, "udev_monitor_started"),
		logging.String("name_prefixes", strings.Join(m.namePrefixes, ",")),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *udevSource) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("udev monitor stopped", logging.String(logging.FieldEventType, "udev_monitor_stopped"))
}

// Running reports whether the monitor is active.
func (m *udevSource) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *udevSource) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}, out chan<- Trigger) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			if trig, ok := m.triggerFor(uevent); ok {
				emit(ctx, out, trig)
			}
		case err := <-errs:
			logging.WarnWithContext(m.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "card insertion may be missed"),
			)
		}
	}
}

// buildMatcher matches partition add events: SUBSYSTEM=block,
// DEVTYPE=partition, ACTION=add.
func (m *udevSource) buildMatcher() netlink.Matcher {
	action := "add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "block",
			"DEVTYPE":   "partition",
		},
	})
	return rules
}

func (m *udevSource) triggerFor(uevent netlink.UEvent) (Trigger, bool) {
	name := deviceName(uevent)
	if name == "" {
		m.logger.Debug("ignoring event without device name",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return Trigger{}, false
	}
	if !hasAnyPrefix(name, m.namePrefixes) {
		m.logger.Debug("ignoring partition outside configured names", logging.String("device", name))
		return Trigger{}, false
	}
	m.logger.Info("partition added",
		logging.String(logging.FieldEventType, "udev_partition_added"),
		logging.String("device", name),
		logging.Duration("settle", m.settle),
	)
	return Trigger{Source: SourceUdev, Detail: name, At: time.Now(), Delay: m.settle}, true
}

// deviceName returns the kernel name (sda1) from DEVNAME or DEVPATH.
func deviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		return filepath.Base(devname)
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return parts[len(parts)-1]
}

func hasAnyPrefix(name string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
