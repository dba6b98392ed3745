package link

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Extrutex/KATANA-Klipper-Installer/internal/transport"
)

// scriptedDialer hands out conns in order and fails once they run out.
type scriptedDialer struct {
	mu    sync.Mutex
	conns []transport.Conn
	dials []time.Time
}

func (d *scriptedDialer) Dial(ctx context.Context, endpoint string) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials = append(d.dials, time.Now())
	if len(d.conns) == 0 {
		return nil, errors.New("connection refused")
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func (d *scriptedDialer) attempts() []time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Time(nil), d.dials...)
}

// silentConn never delivers a frame and never answers a ping.
type silentConn struct {
	closed    chan struct{}
	closeOnce sync.Once
}

func newSilentConn() *silentConn { return &silentConn{closed: make(chan struct{})} }

func (c *silentConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, transport.ErrClosed
	}
}

func (c *silentConn) Write(ctx context.Context, data []byte) error { return nil }

func (c *silentConn) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (c *silentConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func TestSupervisor_UnreachableEndpointBacksOff(t *testing.T) {
	dialer := &scriptedDialer{}
	opts := testOptions("ws://printer.invalid/websocket")
	opts.Dialer = dialer
	opts.BackoffInitial = 10 * time.Millisecond
	opts.BackoffMax = 40 * time.Millisecond

	c := New(opts)
	var mu sync.Mutex
	var states []ConnState
	c.SubscribeState(func(s ConnState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	c.Start(context.Background())
	defer c.Close()

	waitFor(t, "six dial attempts", func() bool { return len(dialer.attempts()) >= 6 })
	c.Close()

	mu.Lock()
	defer mu.Unlock()
	if states[0] != StateOffline {
		t.Fatalf("first state = %v, want OFFLINE before Start", states[0])
	}
	cycle := states[1 : len(states)-1]
	for i, s := range cycle {
		want := StateConnecting
		if i%2 == 1 {
			want = StateReconnecting
		}
		if s != want {
			t.Fatalf("state %d = %v, want %v (states %v)", i, s, want, states)
		}
	}
	if last := states[len(states)-1]; last != StateOffline {
		t.Fatalf("final state = %v, want OFFLINE", last)
	}

	attempts := dialer.attempts()
	for i := 1; i < len(attempts); i++ {
		gap := attempts[i].Sub(attempts[i-1])
		want := calculateBackoff(i-1, opts.BackoffInitial, opts.BackoffMax)
		if gap < want {
			t.Fatalf("gap before attempt %d = %v, want at least %v", i, gap, want)
		}
	}

	var reconnecting int
	for _, e := range c.Diagnostics() {
		if e.Method == "RECONNECTING" {
			reconnecting++
			if !strings.Contains(e.Error, "connection refused") {
				t.Fatalf("RECONNECTING entry error = %q, want dial cause", e.Error)
			}
		}
	}
	if reconnecting == 0 {
		t.Fatalf("no RECONNECTING diagnostics recorded")
	}
}

func TestSupervisor_MissedHeartbeatReconnects(t *testing.T) {
	conn := newSilentConn()
	dialer := &scriptedDialer{conns: []transport.Conn{conn}}
	opts := testOptions("ws://printer.invalid/websocket")
	opts.Dialer = dialer
	opts.HeartbeatInterval = 20 * time.Millisecond
	opts.HeartbeatTimeout = 20 * time.Millisecond
	opts.BackoffInitial = time.Hour

	c := startClient(t, opts)

	waitFor(t, "reconnecting after missed heartbeat", func() bool { return c.State() == StateReconnecting })

	select {
	case <-conn.closed:
	default:
		t.Fatalf("connection not closed after missed heartbeat")
	}

	var cause string
	for _, e := range c.Diagnostics() {
		if e.Method == "RECONNECTING" {
			cause = e.Error
		}
	}
	if !strings.Contains(cause, errHeartbeat.Error()) {
		t.Fatalf("RECONNECTING cause = %q, want heartbeat", cause)
	}
}

func TestSupervisor_StableConnectionResetsBackoff(t *testing.T) {
	first, second := newSilentConn(), newSilentConn()
	dialer := &scriptedDialer{conns: []transport.Conn{first, second}}
	opts := testOptions("ws://printer.invalid/websocket")
	opts.Dialer = dialer
	opts.BackoffInitial = 10 * time.Millisecond
	opts.BackoffMax = 10 * time.Second
	opts.StableAfter = 30 * time.Millisecond

	c := startClient(t, opts)

	waitFor(t, "first connection", func() bool { return c.State() == StateOnline })
	time.Sleep(60 * time.Millisecond)
	first.Close()

	waitFor(t, "second connection", func() bool { return len(dialer.attempts()) == 2 && c.State() == StateOnline })
	second.Close()

	waitFor(t, "third dial", func() bool { return len(dialer.attempts()) == 3 })
	attempts := dialer.attempts()
	// The first connection was stable, so the redial after it waited only the
	// initial delay. The second was not, so the next delay doubled.
	if gap := attempts[1].Sub(attempts[0]); gap > 5*time.Second {
		t.Fatalf("redial after stable connection waited %v", gap)
	}
	if gap := attempts[2].Sub(attempts[1]); gap < 20*time.Millisecond {
		t.Fatalf("redial after short connection waited %v, want doubled delay", gap)
	}
}
