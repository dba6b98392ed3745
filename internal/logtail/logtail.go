package logtail

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/Extrutex/KATANA-Klipper-Installer/internal/history"
)

const maxLineBytes = 1024 * 1024

// Read returns at most maxLines from the end of the file at path. A missing
// file yields no lines.
func Read(path string, maxLines int) ([]string, error) {
	if maxLines <= 0 {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	ring := history.NewRing[string](maxLines)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		ring.Push(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return ring.Items(), nil
}

// Format renders one JSON log record as "time LEVEL message key=value...".
// Attributes are sorted by key.
func Format(line string) string {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return line
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(trimmed), &record); err != nil {
		return line
	}

	stamp := ""
	if raw, ok := record[slog.TimeKey].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			stamp = t.Local().Format("15:04:05")
		} else {
			stamp = raw
		}
	}
	level, _ := record[slog.LevelKey].(string)
	msg, _ := record[slog.MessageKey].(string)

	keys := lo.Without(lo.Keys(record), slog.TimeKey, slog.LevelKey, slog.MessageKey)
	slices.Sort(keys)

	var b strings.Builder
	if stamp != "" {
		b.WriteString(stamp)
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, "%-5s %s", level, msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, formatValue(record[k]))
	}
	return b.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		if strings.ContainsAny(val, " \t\"=") {
			return fmt.Sprintf("%q", val)
		}
		return val
	case nil:
		return "null"
	case float64, bool:
		return fmt.Sprint(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
