package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Extrutex/KATANA-Klipper-Installer/internal/history"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/notify"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/state"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/transport"
)

var errHeartbeat = errors.New("heartbeat missed")

type supervisorTiming struct {
	backoffInitial    time.Duration
	backoffMax        time.Duration
	stableAfter       time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// supervisor owns the connection lifecycle: dial, serve, detect failure, back off,
// dial again. It is the only writer of the connection state.
type supervisor struct {
	log      *slog.Logger
	dialer   transport.Dialer
	endpoint string
	timing   supervisorTiming

	corr  *correlator
	store *state.Store
	diag  *history.Diagnostics

	// onOnline runs once per connection after ONLINE is published; ctx ends
	// with the connection.
	onOnline func(ctx context.Context)
	// onFrame runs on the reader goroutine for every inbound frame, in order.
	onFrame func(ctx context.Context, data []byte)

	mu     sync.Mutex
	state  ConnState
	closed bool
	hub    notify.Hub[ConnState]
}

// State returns the current connection state.
func (s *supervisor) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for transitions. Its first call carries the current
// state.
func (s *supervisor) Subscribe(fn func(ConnState)) func() {
	return s.hub.SubscribeWith(fn, s.State)
}

// run dials and serves connections until ctx is cancelled.
func (s *supervisor) run(ctx context.Context) {
	failures := 0
	for {
		if !s.transition(StateConnecting, nil) {
			return
		}

		conn, err := s.dialer.Dial(ctx, s.endpoint)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Debug("dial failed", "endpoint", s.endpoint, "error", err)
		} else {
			onlineAt := time.Now()
			err = s.serve(ctx, conn)
			if ctx.Err() != nil {
				return
			}
			if time.Since(onlineAt) >= s.timing.stableAfter {
				failures = 0
			}
			s.log.Warn("connection lost", "endpoint", s.endpoint, "error", err)
		}

		if !s.transition(StateReconnecting, err) {
			return
		}
		delay := calculateBackoff(failures, s.timing.backoffInitial, s.timing.backoffMax)
		failures++
		s.log.Debug("reconnecting", "delay", delay, "failures", failures)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// serve runs one connection until it fails or ctx ends. It returns only after the
// reader has stopped, so no frame is dispatched once the caller moves on.
func (s *supervisor) serve(ctx context.Context, conn transport.Conn) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.corr.attach(conn)
	if !s.transition(StateOnline, nil) {
		conn.Close()
		return ErrClosed
	}

	readerDone := make(chan error, 1)
	go func() {
		for {
			data, err := conn.Read(connCtx)
			if err != nil {
				readerDone <- err
				return
			}
			s.onFrame(connCtx, data)
		}
	}()

	heartbeatDone := make(chan error, 1)
	go func() {
		heartbeatDone <- s.heartbeat(connCtx, conn)
	}()

	if s.onOnline != nil {
		go s.onOnline(connCtx)
	}

	var cause error
	select {
	case cause = <-readerDone:
		cancel()
		conn.Close()
	case cause = <-heartbeatDone:
		cancel()
		conn.Close()
		<-readerDone
	case <-ctx.Done():
		cause = ctx.Err()
		conn.Close()
		<-readerDone
	}
	return cause
}

func (s *supervisor) heartbeat(ctx context.Context, conn transport.Conn) error {
	if s.timing.heartbeatInterval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(s.timing.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		pctx, cancel := context.WithTimeout(ctx, s.timing.heartbeatTimeout)
		err := conn.Ping(pctx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %v", errHeartbeat, err)
		}
	}
}

// transition moves to next and publishes it. Leaving ONLINE fails every pending
// request and invalidates the snapshot before observers hear about it. It
// reports false once the supervisor is closed.
func (s *supervisor) transition(next ConnState, cause error) bool {
	ok := true
	s.hub.Update(func() (ConnState, bool) {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			ok = false
			return next, false
		}
		prev := s.state
		s.state = next
		if next == StateOffline {
			s.closed = true
		}
		s.mu.Unlock()

		failed := 0
		if next == StateOffline {
			failed = s.corr.shutdown()
		} else if prev == StateOnline {
			failed = s.corr.failAll()
		}
		if failed > 0 {
			s.log.Debug("failed pending requests", "count", failed)
		}
		if prev == StateOnline && next != StateOnline {
			s.store.Invalidate("")
		}

		var diagErr error
		if next == StateReconnecting {
			diagErr = cause
			if diagErr == nil {
				diagErr = ErrConnectionLost
			}
		}
		s.diag.Event(next.String(), diagErr)
		s.log.Info("connection state", "from", prev.String(), "to", next.String())
		return next, true
	})
	return ok
}
