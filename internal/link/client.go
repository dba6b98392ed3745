package link

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Extrutex/KATANA-Klipper-Installer/internal/history"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/moonraker"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/state"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/transport"
)

// Defaults applied by New for zero Options fields.
const (
	DefaultEndpoint          = "ws://127.0.0.1:7125/websocket"
	DefaultRequestTimeout    = 5 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultBackoffInitial    = time.Second
	DefaultBackoffMax        = 30 * time.Second
	DefaultStableAfter       = 10 * time.Second
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultHeartbeatTimeout  = 10 * time.Second
	DefaultSyncRetry         = 2 * time.Second
)

var errEmptyCommand = errors.New("empty command")

// Options configure a Client.
type Options struct {
	Endpoint string
	// Objects lists the printer objects to subscribe to. Objects the printer
	// does not have are skipped; an empty list subscribes to everything.
	Objects []string

	RequestTimeout    time.Duration
	WriteTimeout      time.Duration
	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	StableAfter       time.Duration
	HeartbeatInterval time.Duration // negative disables heartbeats
	HeartbeatTimeout  time.Duration
	SyncRetry         time.Duration

	DiagnosticsCapacity int
	ConsoleCapacity     int

	Dialer transport.Dialer
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.Endpoint) == "" {
		o.Endpoint = DefaultEndpoint
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = DefaultBackoffInitial
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = DefaultBackoffMax
	}
	if o.BackoffMax < o.BackoffInitial {
		o.BackoffMax = o.BackoffInitial
	}
	if o.StableAfter <= 0 {
		o.StableAfter = DefaultStableAfter
	}
	if o.HeartbeatInterval == 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.HeartbeatTimeout <= 0 {
		o.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if o.SyncRetry <= 0 {
		o.SyncRetry = DefaultSyncRetry
	}
	if o.Dialer == nil {
		o.Dialer = transport.WebSocketDialer{HandshakeTimeout: o.RequestTimeout, UserAgent: "katana-link/0.1"}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Client is the single consumer surface of the printer link. One Client owns one
// connection; any number of consumers read its state and subscribe to changes.
// All methods are safe for concurrent use.
type Client struct {
	opts Options
	log  *slog.Logger

	store   *state.Store
	diag    *history.Diagnostics
	console *history.Console
	corr    *correlator
	sup     *supervisor
	syncer  *synchronizer

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds a Client. Nothing connects until Start.
func New(opts Options) *Client {
	opts = opts.withDefaults()
	log := opts.Logger.With("component", "link")

	c := &Client{
		opts:    opts,
		log:     log,
		store:   &state.Store{},
		diag:    history.NewDiagnostics(opts.DiagnosticsCapacity),
		console: history.NewConsole(opts.ConsoleCapacity),
	}
	c.corr = newCorrelator(log, c.diag, opts.WriteTimeout)
	c.syncer = &synchronizer{
		log:     log,
		corr:    c.corr,
		store:   c.store,
		diag:    c.diag,
		console: c.console,
		objects: opts.Objects,
		timeout: opts.RequestTimeout,
		retry:   opts.SyncRetry,
	}
	c.sup = &supervisor{
		log:      log,
		dialer:   opts.Dialer,
		endpoint: opts.Endpoint,
		timing: supervisorTiming{
			backoffInitial:    opts.BackoffInitial,
			backoffMax:        opts.BackoffMax,
			stableAfter:       opts.StableAfter,
			heartbeatInterval: opts.HeartbeatInterval,
			heartbeatTimeout:  opts.HeartbeatTimeout,
		},
		corr:     c.corr,
		store:    c.store,
		diag:     c.diag,
		onOnline: c.syncer.online,
		onFrame:  c.syncer.dispatch,
	}
	return c
}

// Start launches the connection supervisor. It returns immediately; progress is
// visible through State and SubscribeState. Later calls are no-ops, and the link
// stops when ctx is cancelled or Close is called.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		c.sup.run(ctx)
		// A cancelled ctx ends the link as Close would; after Close this is a no-op.
		c.sup.transition(StateOffline, nil)
	}()
}

// Close stops the link for good. Pending calls fail with ErrConnectionLost, the
// state becomes OFFLINE and later calls fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	c.sup.transition(StateOffline, nil)
	return nil
}

// Endpoint returns the websocket URL the link dials.
func (c *Client) Endpoint() string { return c.opts.Endpoint }

// Snapshot returns the current printer state.
func (c *Client) Snapshot() state.Snapshot { return c.store.Snapshot() }

// SubscribeSnapshot registers fn for every snapshot change. The first call
// carries the current snapshot.
func (c *Client) SubscribeSnapshot(fn func(state.Snapshot)) func() {
	return c.store.Subscribe(fn)
}

// State returns the connection state.
func (c *Client) State() ConnState { return c.sup.State() }

// SubscribeState registers fn for connection transitions. The first call
// carries the current state.
func (c *Client) SubscribeState(fn func(ConnState)) func() {
	return c.sup.Subscribe(fn)
}

// Diagnostics returns the retained diagnostic entries, oldest first.
func (c *Client) Diagnostics() []history.DiagnosticEntry { return c.diag.Entries() }

// SubscribeDiagnostics registers fn for every appended or updated entry.
func (c *Client) SubscribeDiagnostics(fn func(history.DiagnosticEntry)) func() {
	return c.diag.Subscribe(fn)
}

// Console returns the retained console history, oldest first.
func (c *Client) Console() []history.ConsoleEntry { return c.console.Entries() }

// SubscribeConsole registers fn for every appended console line.
func (c *Client) SubscribeConsole(fn func(history.ConsoleEntry)) func() {
	return c.console.Subscribe(fn)
}

// AppendConsole adds a local line to the console history.
func (c *Client) AppendConsole(message string, kind history.Kind) history.ConsoleEntry {
	return c.console.Append(message, kind)
}

// SendCommand records text as a console command and sends it as a G-code script
// without waiting for the printer. Output arrives later as console responses. A
// failed send is recorded as a console error and returned.
func (c *Client) SendCommand(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errEmptyCommand
	}
	c.console.Append(text, history.KindCommand)

	err := c.corr.notify(ctx, moonraker.MethodGCodeScript, moonraker.GCodeScriptParams{Script: text})
	if err != nil {
		c.console.Append(fmt.Sprintf("send failed: %v", err), history.KindError)
		return err
	}
	return nil
}

// Call sends method with the default request timeout and returns the raw result.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return c.CallTimeout(ctx, method, params, c.opts.RequestTimeout)
}

// CallTimeout sends method and waits up to timeout for its response. Errors
// match ErrConnectionLost, ErrTimeout or *ApplicationError.
func (c *Client) CallTimeout(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = c.opts.RequestTimeout
	}
	return c.corr.call(ctx, method, params, timeout, nil)
}

// Caller issues a request and returns its raw result. *Client implements it.
type Caller interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// CallInto sends method through c and decodes the result into T.
func CallInto[T any](ctx context.Context, c Caller, method string, params any) (T, error) {
	var out T
	raw, err := c.Call(ctx, method, params)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%s: decode result: %w", method, err)
	}
	return out, nil
}
