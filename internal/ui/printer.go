package ui

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/samber/lo"

	"github.com/Extrutex/KATANA-Klipper-Installer/internal/state"
)

// renderPrinter renders the printer view from a snapshot.
func renderPrinter(styles Styles, snap state.Snapshot, bar progress.Model) string {
	var b strings.Builder

	if !snap.Synced {
		b.WriteString(styles.WarningText.Render("Waiting for full printer state..."))
		b.WriteString("\n\n")
	}
	if snap.Message != "" {
		b.WriteString(styles.MutedText.Render(strings.TrimSpace(snap.Message)))
		b.WriteString("\n\n")
	}

	if names := heaters(snap); len(names) > 0 {
		b.WriteString(styles.Section.Render("Heaters"))
		b.WriteString("\n")
		for _, name := range names {
			b.WriteString(heaterLine(styles, snap, name))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if names := sensors(snap); len(names) > 0 {
		b.WriteString(styles.Section.Render("Sensors"))
		b.WriteString("\n")
		for _, name := range names {
			temp, _ := snap.Float(name, "temperature")
			b.WriteString(fmt.Sprintf("  %-24s %6.1f °C\n", displayName(name), temp))
		}
		b.WriteString("\n")
	}

	if job := printSection(styles, snap, bar); job != "" {
		b.WriteString(styles.Section.Render("Print"))
		b.WriteString("\n")
		b.WriteString(job)
		b.WriteString("\n")
	}

	if tool := toolheadSection(snap); tool != "" {
		b.WriteString(styles.Section.Render("Toolhead"))
		b.WriteString("\n")
		b.WriteString(tool)
		b.WriteString("\n")
	}

	names := snap.Objects.Names()
	slices.Sort(names)
	b.WriteString(styles.Section.Render(fmt.Sprintf("Objects (%d)", len(names))))
	b.WriteString("\n")
	if len(names) == 0 {
		b.WriteString(styles.FaintText.Render("  none"))
	} else {
		b.WriteString(styles.MutedText.Render("  " + strings.Join(names, ", ")))
	}
	b.WriteString("\n")
	return b.String()
}

// heaters returns objects with both a temperature and a target, extruders
// first, then the bed, then the rest by name.
func heaters(snap state.Snapshot) []string {
	names := lo.Filter(snap.Objects.Names(), func(name string, _ int) bool {
		_, hasTemp := snap.Float(name, "temperature")
		_, hasTarget := snap.Float(name, "target")
		return hasTemp && hasTarget
	})
	slices.SortFunc(names, func(a, b string) int {
		if ra, rb := heaterRank(a), heaterRank(b); ra != rb {
			return ra - rb
		}
		return strings.Compare(a, b)
	})
	return names
}

// sensors returns temperature-only objects by name.
func sensors(snap state.Snapshot) []string {
	names := lo.Filter(snap.Objects.Names(), func(name string, _ int) bool {
		_, hasTemp := snap.Float(name, "temperature")
		_, hasTarget := snap.Float(name, "target")
		return hasTemp && !hasTarget
	})
	slices.Sort(names)
	return names
}

func heaterRank(name string) int {
	switch {
	case strings.HasPrefix(name, "extruder"):
		return 0
	case name == "heater_bed":
		return 1
	default:
		return 2
	}
}

// displayName drops the config section prefix ("temperature_sensor chamber").
func displayName(name string) string {
	if _, rest, ok := strings.Cut(name, " "); ok {
		return rest
	}
	return name
}

func heaterLine(styles Styles, snap state.Snapshot, name string) string {
	temp, _ := snap.Float(name, "temperature")
	target, _ := snap.Float(name, "target")

	reading := fmt.Sprintf("%6.1f / %5.1f °C", temp, target)
	switch {
	case target <= 0:
		reading = styles.MutedText.Render(reading)
	case math.Abs(temp-target) <= 2:
		reading = styles.SuccessText.Render(reading)
	default:
		reading = styles.WarningText.Render(reading)
	}

	line := fmt.Sprintf("  %-24s %s", displayName(name), reading)
	if power, ok := snap.Float(name, "power"); ok {
		line += styles.FaintText.Render(fmt.Sprintf("  %3.0f%%", power*100))
	}
	return line
}

func printSection(styles Styles, snap state.Snapshot, bar progress.Model) string {
	jobState, hasJob := snap.Text("print_stats", "state")
	if !hasJob {
		return ""
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %-24s %s", "state", jobState))
	if file, ok := snap.Text("print_stats", "filename"); ok && file != "" {
		b.WriteString("  " + styles.AccentText.Render(file))
	}
	b.WriteString("\n")

	if p, ok := printProgress(snap); ok && jobState != "standby" {
		b.WriteString(fmt.Sprintf("  %-24s %s %3.0f%%\n", "progress", bar.ViewAs(p), p*100))
	}
	if current, ok := snap.Float("print_stats", "info", "current_layer"); ok {
		total, _ := snap.Float("print_stats", "info", "total_layer")
		b.WriteString(fmt.Sprintf("  %-24s %.0f / %.0f\n", "layer", current, total))
	}
	if secs, ok := snap.Float("print_stats", "print_duration"); ok && secs > 0 {
		d := time.Duration(secs * float64(time.Second)).Round(time.Second)
		b.WriteString(fmt.Sprintf("  %-24s %s\n", "elapsed", d))
	}
	if msg, ok := snap.Text("print_stats", "message"); ok && msg != "" {
		b.WriteString(fmt.Sprintf("  %-24s %s\n", "message", styles.WarningText.Render(msg)))
	}
	return b.String()
}

// printProgress prefers the slicer-reported display progress and falls back to
// the file position.
func printProgress(snap state.Snapshot) (float64, bool) {
	if p, ok := snap.Float("display_status", "progress"); ok && p > 0 {
		return clamp01(p), true
	}
	if p, ok := snap.Float("virtual_sdcard", "progress"); ok {
		return clamp01(p), true
	}
	return 0, false
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

func toolheadSection(snap state.Snapshot) string {
	var b strings.Builder
	if pos, ok := snap.Field("toolhead", "position"); ok {
		if items, ok := pos.Items(); ok && len(items) >= 3 {
			coords := make([]float64, 3)
			for i := range coords {
				coords[i], _ = items[i].Float()
			}
			b.WriteString(fmt.Sprintf("  %-24s X %.2f  Y %.2f  Z %.2f\n", "position", coords[0], coords[1], coords[2]))
		}
	}
	if homed, ok := snap.Text("toolhead", "homed_axes"); ok {
		if homed == "" {
			homed = "none"
		}
		b.WriteString(fmt.Sprintf("  %-24s %s\n", "homed", homed))
	}
	if speed, ok := snap.Float("fan", "speed"); ok {
		b.WriteString(fmt.Sprintf("  %-24s %.0f%%\n", "part fan", speed*100))
	}
	return b.String()
}
