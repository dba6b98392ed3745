package link

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/Extrutex/KATANA-Klipper-Installer/internal/moonraker"
)

// requestHandler answers one request on a fake connection. It may also keep the
// request and reply later through fc, or never.
type requestHandler func(fc *fakeConn, req moonraker.Frame)

// fakeMoonraker is an in-process Moonraker speaking JSON-RPC over a websocket.
type fakeMoonraker struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	status   map[string]map[string]any
	handlers map[string]requestHandler
	conns    []*fakeConn
	requests []moonraker.Frame
	scripts  []string
	accepted int
}

type fakeConn struct {
	c   *websocket.Conn
	ctx context.Context
}

func newFakeMoonraker(t *testing.T) *fakeMoonraker {
	t.Helper()
	f := &fakeMoonraker{
		t: t,
		status: map[string]map[string]any{
			"extruder":    {"temperature": 21.0, "target": 0.0},
			"heater_bed":  {"temperature": 20.0, "target": 0.0},
			"webhooks":    {"state": "ready", "state_message": "Printer is ready"},
			"print_stats": {"state": "standby", "filename": ""},
			"fan":         {"speed": 0.0},
		},
		handlers: map[string]requestHandler{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeMoonraker) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/websocket"
}

// handle overrides the reply for method.
func (f *fakeMoonraker) handle(method string, h requestHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

func (f *fakeMoonraker) setStatus(object string, fields map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[object] = fields
}

func (f *fakeMoonraker) serve(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer c.CloseNow()

	fc := &fakeConn{c: c, ctx: r.Context()}
	f.mu.Lock()
	f.conns = append(f.conns, fc)
	f.accepted++
	f.mu.Unlock()

	for {
		_, data, err := c.Read(r.Context())
		if err != nil {
			return
		}
		frame, err := moonraker.DecodeFrame(data)
		if err != nil {
			f.t.Errorf("fake received invalid frame %s: %v", data, err)
			return
		}
		f.dispatch(fc, frame)
	}
}

func (f *fakeMoonraker) dispatch(fc *fakeConn, frame moonraker.Frame) {
	f.mu.Lock()
	f.requests = append(f.requests, frame)
	if frame.Method == moonraker.MethodGCodeScript {
		var p moonraker.GCodeScriptParams
		_ = json.Unmarshal(frame.Params, &p)
		f.scripts = append(f.scripts, p.Script)
	}
	h := f.handlers[frame.Method]
	f.mu.Unlock()

	if !frame.HasID() {
		return
	}
	if h != nil {
		h(fc, frame)
		return
	}

	switch frame.Method {
	case moonraker.MethodObjectsList:
		fc.reply(frame, map[string]any{"objects": f.objectNames()})
	case moonraker.MethodObjectsSubscribe:
		fc.reply(frame, map[string]any{"eventtime": 100.0, "status": f.subscribedStatus(frame.Params)})
	default:
		fc.fail(frame, -32601, "Method not found")
	}
}

func (f *fakeMoonraker) objectNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.status))
	for name := range f.status {
		names = append(names, name)
	}
	return names
}

func (f *fakeMoonraker) subscribedStatus(params json.RawMessage) map[string]any {
	var p struct {
		Objects map[string]any `json:"objects"`
	}
	_ = json.Unmarshal(params, &p)

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]any, len(p.Objects))
	for name := range p.Objects {
		if fields, ok := f.status[name]; ok {
			out[name] = fields
		}
	}
	return out
}

// subscribedObjects returns the object names of the latest subscribe request.
func (f *fakeMoonraker) subscribedObjects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].Method != moonraker.MethodObjectsSubscribe {
			continue
		}
		var p struct {
			Objects map[string]any `json:"objects"`
		}
		_ = json.Unmarshal(f.requests[i].Params, &p)
		names := make([]string, 0, len(p.Objects))
		for name := range p.Objects {
			names = append(names, name)
		}
		return names
	}
	return nil
}

func (f *fakeMoonraker) countRequests(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.Method == method {
			n++
		}
	}
	return n
}

func (f *fakeMoonraker) sentScripts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.scripts...)
}

func (f *fakeMoonraker) connections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accepted
}

func (f *fakeMoonraker) latest() *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		f.t.Fatalf("no connection accepted")
	}
	return f.conns[len(f.conns)-1]
}

// notify pushes a notification on the newest connection.
func (f *fakeMoonraker) notify(method string, params any) {
	f.t.Helper()
	f.latest().notify(f.t, method, params)
}

// dropAll closes every open connection abnormally.
func (f *fakeMoonraker) dropAll() {
	f.mu.Lock()
	conns := f.conns
	f.conns = nil
	f.mu.Unlock()
	for _, fc := range conns {
		fc.c.CloseNow()
	}
}

func (fc *fakeConn) write(data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = fc.c.Write(ctx, websocket.MessageText, data)
}

func (fc *fakeConn) reply(req moonraker.Frame, result any) {
	data, err := moonraker.EncodeResponse(req.ID, result, nil)
	if err != nil {
		panic(err)
	}
	fc.write(data)
}

func (fc *fakeConn) fail(req moonraker.Frame, code int, message string) {
	data, err := moonraker.EncodeResponse(req.ID, nil, &moonraker.RPCError{Code: code, Message: message})
	if err != nil {
		panic(err)
	}
	fc.write(data)
}

func (fc *fakeConn) notify(t *testing.T, method string, params any) {
	t.Helper()
	data, err := moonraker.EncodeNotification(method, params)
	if err != nil {
		t.Fatalf("EncodeNotification: %v", err)
	}
	fc.write(data)
}

func statusUpdate(delta map[string]any) []any {
	return []any{delta, 123.4}
}

// testOptions returns fast timings for tests.
func testOptions(endpoint string) Options {
	return Options{
		Endpoint:          endpoint,
		Objects:           []string{"extruder", "heater_bed", "webhooks", "print_stats", "toolhead"},
		RequestTimeout:    2 * time.Second,
		WriteTimeout:      time.Second,
		BackoffInitial:    10 * time.Millisecond,
		BackoffMax:        50 * time.Millisecond,
		StableAfter:       time.Hour,
		HeartbeatInterval: -1,
		SyncRetry:         20 * time.Millisecond,
	}
}

func startClient(t *testing.T, opts Options) *Client {
	t.Helper()
	c := New(opts)
	c.Start(context.Background())
	t.Cleanup(func() { c.Close() })
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitSynced(t *testing.T, c *Client) {
	t.Helper()
	waitFor(t, "synced snapshot", func() bool { return c.Snapshot().Synced })
}
