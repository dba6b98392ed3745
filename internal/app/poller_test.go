package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Extrutex/KATANA-Klipper-Installer/internal/link"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/moonraker"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/state"
)

type fakeHealthSource struct {
	mu      sync.Mutex
	state   link.ConnState
	results map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeHealthSource) State() link.ConnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeHealthSource) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)
	if err := f.errs[method]; err != nil {
		return nil, err
	}
	return json.RawMessage(f.results[method]), nil
}

func (f *fakeHealthSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestRefresh_RecordsHealth(t *testing.T) {
	src := &fakeHealthSource{
		state: link.StateOnline,
		results: map[string]string{
			moonraker.MethodServerInfo: `{"klippy_state":"ready","moonraker_version":"v0.9.3"}`,
			moonraker.MethodSystemInfo: `{"system_info":{"cpu_info":{"cpu_count":4,"total_memory":1000},"distribution":{"name":"Debian GNU/Linux 12 (bookworm)"}}}`,
			moonraker.MethodProcStats:  `{"moonraker_stats":[{"cpu_usage":1.5}],"system_memory":{"total":1000,"used":250}}`,
		},
	}
	var store state.HealthStore

	if !refresh(context.Background(), &store, src, discardLogger()) {
		t.Fatalf("refresh skipped while ONLINE")
	}
	h := store.Snapshot()
	if h.Server.MoonrakerVersion != "v0.9.3" || h.Proc.LatestCPU() != 1.5 || h.Proc.MemoryPercent() != 25 {
		t.Fatalf("health = %+v", h)
	}
	if !h.HasSystem || h.System.CPUInfo.CPUCount != 4 || h.System.Distribution.Name != "Debian GNU/Linux 12 (bookworm)" {
		t.Fatalf("system = %+v", h.System)
	}
	want := []string{moonraker.MethodServerInfo, moonraker.MethodSystemInfo, moonraker.MethodProcStats}
	if fmt.Sprint(src.calls) != fmt.Sprint(want) {
		t.Fatalf("calls = %v, want %v", src.calls, want)
	}
	if h.ConsecutiveFailures != 0 || h.LastError != nil {
		t.Fatalf("unexpected failure state: %+v", h)
	}
}

func TestRefresh_SkipsWhileNotOnline(t *testing.T) {
	for _, s := range []link.ConnState{link.StateOffline, link.StateConnecting, link.StateReconnecting} {
		src := &fakeHealthSource{state: s}
		var store state.HealthStore
		if refresh(context.Background(), &store, src, discardLogger()) {
			t.Fatalf("refresh ran in state %v", s)
		}
		if src.callCount() != 0 {
			t.Fatalf("calls in state %v = %d, want 0", s, src.callCount())
		}
	}
}

func TestRefresh_CountsFailures(t *testing.T) {
	src := &fakeHealthSource{
		state: link.StateOnline,
		results: map[string]string{
			moonraker.MethodServerInfo: `{"klippy_state":"ready"}`,
			moonraker.MethodSystemInfo: `{"system_info":{}}`,
		},
		errs: map[string]error{moonraker.MethodProcStats: link.ErrTimeout},
	}
	var store state.HealthStore

	refresh(context.Background(), &store, src, discardLogger())
	refresh(context.Background(), &store, src, discardLogger())

	h := store.Snapshot()
	if !h.IsOffline() {
		t.Fatalf("IsOffline = false after %d failures", h.ConsecutiveFailures)
	}
	if !errors.Is(h.LastError, link.ErrTimeout) {
		t.Fatalf("LastError = %v, want ErrTimeout", h.LastError)
	}
}

func TestStartPoller_PollsUntilCancelled(t *testing.T) {
	src := &fakeHealthSource{
		state: link.StateOnline,
		results: map[string]string{
			moonraker.MethodServerInfo: `{}`,
			moonraker.MethodSystemInfo: `{}`,
			moonraker.MethodProcStats:  `{}`,
		},
	}
	var store state.HealthStore
	ctx, cancel := context.WithCancel(context.Background())

	StartPoller(ctx, &store, src, 10*time.Millisecond, discardLogger())
	deadline := time.Now().Add(5 * time.Second)
	for src.callCount() < 9 {
		if time.Now().After(deadline) {
			t.Fatalf("poller made %d calls, want at least 9", src.callCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	time.Sleep(30 * time.Millisecond)
	settled := src.callCount()
	time.Sleep(50 * time.Millisecond)
	if src.callCount() != settled {
		t.Fatalf("poller kept running after cancel")
	}
	if !store.Snapshot().HasServer {
		t.Fatalf("store never updated")
	}
}

func TestRefresh_BadResultIsAFailure(t *testing.T) {
	src := &fakeHealthSource{
		state: link.StateOnline,
		results: map[string]string{
			moonraker.MethodServerInfo: `{"klippy_state":"ready"}`,
			moonraker.MethodSystemInfo: `[1,2]`,
		},
	}
	var store state.HealthStore

	refresh(context.Background(), &store, src, discardLogger())

	h := store.Snapshot()
	if h.ConsecutiveFailures != 1 || h.LastError == nil || !strings.Contains(h.LastError.Error(), moonraker.MethodSystemInfo) {
		t.Fatalf("health = %+v, want one system_info decode failure", h)
	}
	if src.callCount() != 2 {
		t.Fatalf("calls = %d, want proc_stats skipped", src.callCount())
	}
}
