package ui

import (
	"fmt"
	"strings"

	"github.com/Extrutex/KATANA-Klipper-Installer/internal/link"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/state"
)

// renderHeader renders the status bar: connection, device status, endpoint and
// host health.
func renderHeader(styles Styles, width int, endpoint string, conn link.ConnState, snap state.Snapshot, health state.Health) string {
	parts := []string{
		styles.Logo.Render("KATANA"),
		styles.StatusStyle(conn.String()).Render(conn.String()),
	}
	if conn == link.StateOnline {
		status := string(snap.Status)
		if !snap.Synced {
			status = "syncing"
		}
		parts = append(parts, styles.StatusStyle(status).Render(status))
	}
	parts = append(parts, styles.MutedText.Render(endpoint))
	if h := healthSummary(health); h != "" {
		if health.IsOffline() {
			parts = append(parts, styles.DangerText.Render(h))
		} else {
			parts = append(parts, styles.InfoText.Render(h))
		}
	}

	return styles.Header.
		Width(width).
		MaxWidth(width).
		Render(strings.Join(parts, "  "))
}

// healthSummary condenses host health into one short phrase.
func healthSummary(h state.Health) string {
	if h.IsOffline() {
		return "host unreachable"
	}
	var parts []string
	if h.HasServer && h.Server.MoonrakerVersion != "" {
		parts = append(parts, "moonraker "+h.Server.MoonrakerVersion)
	}
	if h.HasSystem && h.System.Distribution.Name != "" {
		parts = append(parts, h.System.Distribution.Name)
	}
	if h.HasProc {
		if n := len(h.Proc.MoonrakerStats); n > 0 {
			parts = append(parts, fmt.Sprintf("cpu %.0f%%", h.Proc.MoonrakerStats[n-1].CPUUsage))
		}
		if h.Proc.CPUTemp > 0 {
			parts = append(parts, fmt.Sprintf("soc %.0f°C", h.Proc.CPUTemp))
		}
		if mem := h.MemoryPercent(); mem > 0 {
			parts = append(parts, fmt.Sprintf("mem %.0f%%", mem))
		}
	}
	return strings.Join(parts, " · ")
}

