package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/Extrutex/KATANA-Klipper-Installer/internal/link"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/moonraker"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/state"
)

const defaultHealthInterval = 5 * time.Second

// healthSource is the part of link.Client the poller needs.
type healthSource interface {
	link.Caller
	State() link.ConnState
}

// StartPoller launches a background goroutine that refreshes host health at a
// fixed cadence while the link is ONLINE. It returns immediately.
func StartPoller(ctx context.Context, store *state.HealthStore, src healthSource, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			refresh(ctx, store, src, log)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// refresh polls once. It reports false when the link was not ONLINE and nothing
// was attempted.
func refresh(ctx context.Context, store *state.HealthStore, src healthSource, log *slog.Logger) bool {
	if src.State() != link.StateOnline {
		return false
	}

	info, err := link.CallInto[moonraker.ServerInfo](ctx, src, moonraker.MethodServerInfo, nil)
	if err != nil {
		store.Update(nil, nil, nil, err)
		log.Warn("server info poll failed", "error", err)
		return true
	}
	sys, err := link.CallInto[moonraker.SystemInfoResult](ctx, src, moonraker.MethodSystemInfo, nil)
	if err != nil {
		store.Update(nil, nil, nil, err)
		log.Warn("system info poll failed", "error", err)
		return true
	}
	proc, err := link.CallInto[moonraker.ProcStats](ctx, src, moonraker.MethodProcStats, nil)
	if err != nil {
		store.Update(nil, nil, nil, err)
		log.Warn("proc stats poll failed", "error", err)
		return true
	}
	store.Update(&info, &sys.SystemInfo, &proc, nil)
	return true
}
