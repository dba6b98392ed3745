package link

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Extrutex/KATANA-Klipper-Installer/internal/history"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/moonraker"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/transport"
)

// completionHook runs on the goroutine that resolves a request, before the caller
// is released. For responses that is the frame-dispatch goroutine, so whatever the
// hook does is ordered with the frames that follow.
type completionHook func(result json.RawMessage, err error)

type outcome struct {
	result json.RawMessage
	err    error
}

type pendingRequest struct {
	id       int64
	method   string
	issuedAt time.Time
	diagID   uint64
	then     completionHook
	timer    *time.Timer
	done     chan outcome
}

// correlator matches responses to the requests that caused them. Every pending
// request is resolved exactly once: by its response, its timeout, or a
// connection drop, whichever removes it from the pending map first.
type correlator struct {
	log          *slog.Logger
	diag         *history.Diagnostics
	writeTimeout time.Duration

	nextID atomic.Int64

	mu      sync.Mutex
	conn    transport.Conn
	closed  bool
	pending map[int64]*pendingRequest
}

func newCorrelator(log *slog.Logger, diag *history.Diagnostics, writeTimeout time.Duration) *correlator {
	return &correlator{
		log:          log,
		diag:         diag,
		writeTimeout: writeTimeout,
		pending:      make(map[int64]*pendingRequest),
	}
}

// attach routes new requests to conn. It is ignored after shutdown.
func (c *correlator) attach(conn transport.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.conn = conn
}

// unavailable is the error for requests issued while no connection is attached.
// Callers must hold c.mu.
func (c *correlator) unavailable(method string) error {
	if c.closed {
		return fmt.Errorf("%s: %w: %w", method, ErrConnectionLost, ErrClosed)
	}
	return wrapMethod(method, ErrConnectionLost)
}

// call issues method and waits for its outcome. Cancelling ctx releases the
// caller; the request itself stays pending until its response or timeout.
func (c *correlator) call(ctx context.Context, method string, params any, timeout time.Duration, then completionHook) (json.RawMessage, error) {
	p, err := c.issue(ctx, method, params, timeout, then)
	if err != nil {
		return nil, err
	}
	select {
	case out := <-p.done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, wrapMethod(method, ctx.Err())
	}
}

func (c *correlator) issue(ctx context.Context, method string, params any, timeout time.Duration, then completionHook) (*pendingRequest, error) {
	id := c.nextID.Add(1)
	diagID := c.diag.Begin(method)

	data, err := moonraker.EncodeRequest(id, method, params)
	if err != nil {
		err = wrapMethod(method, err)
		c.diag.Finish(diagID, err)
		return nil, err
	}

	p := &pendingRequest{
		id:       id,
		method:   method,
		issuedAt: time.Now(),
		diagID:   diagID,
		then:     then,
		done:     make(chan outcome, 1),
	}

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		err := c.unavailable(method)
		c.mu.Unlock()
		c.diag.Finish(diagID, err)
		return nil, err
	}
	c.pending[id] = p
	p.timer = time.AfterFunc(timeout, func() {
		if p := c.take(id); p != nil {
			c.complete(p, nil, wrapMethod(method, ErrTimeout))
		}
	})
	c.mu.Unlock()

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.writeTimeout)
	defer cancel()
	if err := conn.Write(wctx, data); err != nil {
		if p := c.take(id); p != nil {
			c.complete(p, nil, fmt.Errorf("%s: %w: %v", method, ErrConnectionLost, err))
		}
	}
	return p, nil
}

// notify sends a frame without an id. Nothing is recorded as pending.
func (c *correlator) notify(ctx context.Context, method string, params any) error {
	data, err := moonraker.EncodeNotification(method, params)
	if err != nil {
		return wrapMethod(method, err)
	}

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		err := c.unavailable(method)
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	if err := conn.Write(wctx, data); err != nil {
		return fmt.Errorf("%s: %w: %v", method, ErrConnectionLost, err)
	}
	return nil
}

// handleResponse resolves the request frame answers. Unknown ids are dropped.
func (c *correlator) handleResponse(frame moonraker.Frame) {
	id, _ := frame.NumericID()
	p := c.take(id)
	if p == nil {
		c.log.Debug("dropping response for unknown request", "id", id)
		return
	}

	var err error
	if frame.Error != nil {
		err = wrapMethod(p.method, &ApplicationError{
			Method:  p.method,
			Code:    frame.Error.Code,
			Message: frame.Error.Message,
		})
	}
	c.complete(p, frame.Result, err)
}

// failAll detaches the connection and rejects every pending request with
// ErrConnectionLost, oldest first.
func (c *correlator) failAll() int {
	c.mu.Lock()
	c.conn = nil
	pending := c.pending
	c.pending = make(map[int64]*pendingRequest)
	c.mu.Unlock()

	ids := make([]int64, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		p := pending[id]
		c.complete(p, nil, wrapMethod(p.method, ErrConnectionLost))
	}
	return len(ids)
}

// shutdown fails every pending request like failAll and refuses new ones with
// ErrClosed from then on.
func (c *correlator) shutdown() int {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.failAll()
}

// outstanding reports how many requests await resolution.
func (c *correlator) outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *correlator) take(id int64) *pendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return p
}

func (c *correlator) complete(p *pendingRequest, result json.RawMessage, err error) {
	if p.timer != nil {
		p.timer.Stop()
	}
	c.diag.Finish(p.diagID, err)
	if err != nil {
		c.log.Debug("request failed", "method", p.method, "id", p.id, "elapsed", time.Since(p.issuedAt), "error", err)
	}
	if p.then != nil {
		p.then(result, err)
	}
	p.done <- outcome{result: result, err: err}
}
