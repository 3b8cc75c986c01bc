// Package daemon provides best-effort systemd readiness and watchdog
// notification for executor binaries run as systemd units. The teacher
// uses github.com/coreos/go-systemd/v22's activation subpackage for
// socket-activated listeners; executors here are polling loops with no
// listening socket to activate, so this adapts the same dependency's
// daemon subpackage instead, for the readiness/watchdog half of the same
// systemd integration surface.
package daemon

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/composureai/perfectstorm/pkg/logging"
)

// NotifyReady sends READY=1 to systemd. runExecutor calls it just before
// starting the executor loop, so before that loop's setup step runs. A no-op (and not an error) outside a systemd unit with
// Type=notify, since sd_notify is a best-effort signal.
func NotifyReady() {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logging.Warn("Daemon", "sd_notify(READY=1) failed: %v", err)
		return
	}
	if sent {
		logging.Debug("Daemon", "sent READY=1 to systemd")
	}
}

// WatchdogLoop pings the systemd watchdog at half its configured
// interval until ctx is cancelled, matching the interval systemd expects
// via WATCHDOG_USEC. If no watchdog is configured (the common case
// outside a systemd unit with WatchdogSec set), this returns immediately
// and does nothing.
func WatchdogLoop(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				logging.Warn("Daemon", "sd_notify(WATCHDOG=1) failed: %v", err)
			}
		}
	}
}
