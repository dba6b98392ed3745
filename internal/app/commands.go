package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/Extrutex/KATANA-Klipper-Installer/internal/config"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/history"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/link"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/logtail"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/moonraker"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/state"
)

const (
	cmdCall  = "call"
	cmdSend  = "send"
	cmdFiles = "files"
	cmdLogs  = "logs"

	defaultLogLines = 50

	defaultConnectWait = 15 * time.Second
	sendLinger         = time.Second
)

var errNotOnline = errors.New("printer link did not come online")

func runCommand(ctx context.Context, client *link.Client, cfg config.Config, args []string, out io.Writer) error {
	switch args[0] {
	case cmdCall:
		if len(args) < 2 || len(args) > 3 {
			return fmt.Errorf("usage: call <method> [json-params]")
		}
		var params any
		if len(args) == 3 {
			raw := json.RawMessage(args[2])
			if !json.Valid(raw) {
				return fmt.Errorf("call %s: params are not valid JSON", args[1])
			}
			params = raw
		}
		if err := waitOnline(ctx, client, defaultConnectWait); err != nil {
			return err
		}
		result, err := client.CallTimeout(ctx, args[1], params, cfg.RequestTimeout)
		if err != nil {
			return err
		}
		return writeJSON(out, result)

	case cmdSend:
		if len(args) < 2 {
			return fmt.Errorf("usage: send <gcode...>")
		}
		if err := waitOnline(ctx, client, defaultConnectWait); err != nil {
			return err
		}
		return runSend(ctx, client, strings.Join(args[1:], " "), out)

	default:
		return fmt.Errorf("unknown command %q (want %s, %s, %s or %s)", args[0], cmdCall, cmdSend, cmdFiles, cmdLogs)
	}
}

// runLogs prints the newest records of the configured log file.
func runLogs(cfg config.Config, args []string, out io.Writer) error {
	if len(args) > 1 {
		return fmt.Errorf("usage: logs [lines]")
	}
	lines := defaultLogLines
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("logs: invalid line count %q", args[0])
		}
		lines = n
	}
	if cfg.LogFile == "" {
		return errors.New("logs: log_file is not configured")
	}

	records, err := logtail.Read(cfg.LogFile, lines)
	if err != nil {
		return err
	}
	for _, record := range records {
		if _, err := fmt.Fprintln(out, logtail.Format(record)); err != nil {
			return err
		}
	}
	return nil
}

// runSend sends script and echoes console lines for a short while, since the
// printer answers asynchronously.
func runSend(ctx context.Context, client *link.Client, script string, out io.Writer) error {
	w := &syncWriter{w: out}
	cancel := client.SubscribeConsole(func(e history.ConsoleEntry) {
		w.println(formatConsoleLine(e))
	})
	defer cancel()

	if err := client.SendCommand(ctx, script); err != nil {
		return err
	}

	timer := time.NewTimer(sendLinger)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	return nil
}

func runWatch(ctx context.Context, client *link.Client, out io.Writer) error {
	w := &syncWriter{w: out}

	cancelState := client.SubscribeState(func(s link.ConnState) {
		w.println(fmt.Sprintf("link     %s  %s", s, client.Endpoint()))
	})
	defer cancelState()

	var last string
	cancelSnap := client.SubscribeSnapshot(func(s state.Snapshot) {
		line := formatSnapshotLine(s)
		if line == last {
			return
		}
		last = line
		w.println(line)
	})
	defer cancelSnap()

	cancelConsole := client.SubscribeConsole(func(e history.ConsoleEntry) {
		w.println(formatConsoleLine(e))
	})
	defer cancelConsole()

	<-ctx.Done()
	return nil
}

func runFiles(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	root := "gcodes"
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		root = strings.TrimSpace(args[0])
	}
	files, err := moonraker.NewHTTPClient(cfg.Endpoint())
	if err != nil {
		return fmt.Errorf("init file client: %w", err)
	}

	fctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	entries, err := files.ListFiles(fctx, root)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModifiedTime().After(entries[j].ModifiedTime())
	})

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tSIZE\tMODIFIED")
	for _, e := range entries {
		modified := "-"
		if t := e.ModifiedTime(); !t.IsZero() {
			modified = t.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Path, formatSize(e.Size), modified)
	}
	return tw.Flush()
}

// waitOnline blocks until the link is ONLINE, ctx ends, or timeout passes.
func waitOnline(ctx context.Context, client *link.Client, timeout time.Duration) error {
	online := make(chan struct{}, 1)
	cancel := client.SubscribeState(func(s link.ConnState) {
		if s == link.StateOnline {
			select {
			case online <- struct{}{}:
			default:
			}
		}
	})
	defer cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-online:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w within %v (%s)", errNotOnline, timeout, client.Endpoint())
	}
}

func writeJSON(out io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	buf.WriteByte('\n')
	_, err := out.Write(buf.Bytes())
	return err
}

func formatSnapshotLine(s state.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "printer  %s", s.Status)
	if s.Message != "" {
		fmt.Fprintf(&b, "  %s", strings.TrimSpace(s.Message))
	}
	if !s.Synced {
		b.WriteString("  (waiting for full state)")
		return b.String()
	}
	for _, heater := range []string{"extruder", "heater_bed"} {
		temp, ok := s.Float(heater, "temperature")
		if !ok {
			continue
		}
		target, _ := s.Float(heater, "target")
		fmt.Fprintf(&b, "  %s %.0f/%.0f", heater, temp, target)
	}
	return b.String()
}

func formatConsoleLine(e history.ConsoleEntry) string {
	prefix := map[history.Kind]string{
		history.KindCommand:  ">",
		history.KindResponse: "<",
		history.KindError:    "!",
		history.KindInfo:     "*",
	}[e.Kind]
	if prefix == "" {
		prefix = " "
	}
	return fmt.Sprintf("console  %s %s", prefix, e.Message)
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, line)
}
