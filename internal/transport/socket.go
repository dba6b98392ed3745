package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// DefaultReadLimit bounds a single inbound frame. Full status payloads of large
// printers exceed the library default of 32 KiB.
const DefaultReadLimit = 4 << 20

// ErrClosed is returned by Read when the peer closed the connection normally.
var ErrClosed = errors.New("connection closed")

// Conn is one open connection.
type Conn interface {
	// Read blocks until the next text frame arrives.
	Read(ctx context.Context) ([]byte, error)
	// Write sends one text frame.
	Write(ctx context.Context, data []byte) error
	// Ping sends a ping and waits for the matching pong.
	Ping(ctx context.Context) error
	// Close tears the connection down. It is safe to call more than once.
	Close() error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// WebSocketDialer dials websocket endpoints.
type WebSocketDialer struct {
	// HTTPClient is used for the opening handshake. Nil means http.DefaultClient.
	HTTPClient *http.Client
	// ReadLimit overrides DefaultReadLimit when positive.
	ReadLimit int64
	// HandshakeTimeout bounds the opening handshake when positive.
	HandshakeTimeout time.Duration
	// UserAgent is sent with the handshake when set.
	UserAgent string
}

// Dial opens a websocket to endpoint.
func (d WebSocketDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	if d.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.HandshakeTimeout)
		defer cancel()
	}

	opts := &websocket.DialOptions{HTTPClient: d.HTTPClient}
	if d.UserAgent != "" {
		opts.HTTPHeader = http.Header{"User-Agent": []string{d.UserAgent}}
	}

	c, resp, err := websocket.Dial(ctx, endpoint, opts)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	limit := d.ReadLimit
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	c.SetReadLimit(limit)
	return Wrap(c), nil
}

// Wrap adapts an established websocket connection, for example one returned by
// websocket.Accept in a test server.
func Wrap(c *websocket.Conn) Conn {
	return &wsConn{c: c}
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := w.c.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil, ErrClosed
			}
			return nil, fmt.Errorf("read frame: %w", err)
		}
		if typ == websocket.MessageText {
			return data, nil
		}
	}
}

func (w *wsConn) Write(ctx context.Context, data []byte) error {
	if err := w.c.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (w *wsConn) Ping(ctx context.Context) error {
	if err := w.c.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}
