package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Extrutex/KATANA-Klipper-Installer/internal/history"
)

// renderConsole renders console history oldest first.
func renderConsole(styles Styles, entries []history.ConsoleEntry) string {
	if len(entries) == 0 {
		return styles.FaintText.Render("No console output yet. Press i to send G-code.")
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		stamp := styles.FaintText.Render(e.Time.Format("15:04:05"))
		text := consolePrefix(e.Kind) + " " + e.Message
		switch e.Kind {
		case history.KindCommand:
			text = styles.AccentText.Render(text)
		case history.KindError:
			text = styles.DangerText.Render(text)
		case history.KindInfo:
			text = styles.InfoText.Render(text)
		default:
			text = styles.Text.Render(text)
		}
		lines = append(lines, stamp+" "+text)
	}
	return strings.Join(lines, "\n")
}

func consolePrefix(kind history.Kind) string {
	switch kind {
	case history.KindCommand:
		return ">"
	case history.KindError:
		return "!"
	case history.KindInfo:
		return "*"
	default:
		return "<"
	}
}

// renderDiagnostics renders diagnostic entries newest first.
func renderDiagnostics(styles Styles, entries []history.DiagnosticEntry) string {
	if len(entries) == 0 {
		return styles.FaintText.Render("No requests recorded yet.")
	}
	lines := make([]string, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		var status string
		switch e.Status {
		case history.StatusSuccess:
			status = styles.SuccessText.Render("ok  ")
		case history.StatusError:
			status = styles.DangerText.Render("fail")
		default:
			status = styles.WarningText.Render("... ")
		}
		latency := "-"
		if e.Duration != nil {
			latency = formatLatency(*e.Duration)
		}
		line := fmt.Sprintf("%s  %s  %-32s %8s",
			styles.FaintText.Render(e.Started.Format("15:04:05.000")), status, e.Method, latency)
		if e.Error != "" {
			line += "  " + styles.DangerText.Render(e.Error)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatLatency(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
